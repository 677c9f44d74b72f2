package version

import (
	"strings"
	"testing"
)

func TestInfoMatchesGetters(t *testing.T) {
	v, c, d := Info()
	if v == "" || c == "" || d == "" {
		t.Fatalf("build info must not be empty: %q %q %q", v, c, d)
	}
	if GetVersion() != v || GetCommit() != c || GetDate() != d {
		t.Fatalf("getters disagree with Info: %s", String())
	}
}

func TestString(t *testing.T) {
	s := String()
	for _, part := range []string{"version=", "commit=", "date="} {
		if !strings.Contains(s, part) {
			t.Errorf("String() = %q, missing %q", s, part)
		}
	}
}

func TestUserAgentAndFields(t *testing.T) {
	if got := UserAgent(); got != "storebot/"+GetVersion() {
		t.Fatalf("UserAgent() = %q", got)
	}
	fields := Fields()
	if fields["version"] != GetVersion() || fields["commit"] != GetCommit() || fields["build_date"] != GetDate() {
		t.Fatalf("unexpected fields: %v", fields)
	}
}
