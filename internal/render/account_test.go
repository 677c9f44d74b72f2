package render

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
)

func TestNormalizeAccountKey(t *testing.T) {
	tests := map[string]string{
		"E-mail":      "email",
		"username":    "email",
		"PW":          "password",
		"sandi":       "password",
		"Profil":      "profile",
		"kode redeem": "redeem",
		"masa aktif":  "duration",
		"server":      "server",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeAccountKey(in), in)
	}
}

func TestParseAccountKV(t *testing.T) {
	kv := ParseAccountKV("email: a@b.c | pass = rahasia || catatan bebas")
	assert.Equal(t, "a@b.c", kv["email"])
	assert.Equal(t, "rahasia", kv["password"])
	assert.Equal(t, "catatan bebas", kv["info"])
}

func TestAccountDetails(t *testing.T) {
	t.Run("empty delivers manually", func(t *testing.T) {
		assert.Equal(t, ManualDelivery, AccountDetails(nil))
	})

	t.Run("mixed items", func(t *testing.T) {
		got := AccountDetails([]domain.LedgerItem{
			{Data: "email: a@b.c | password: x1 | region: sg"},
			{Data: "VOUCHER-123"},
			{Data: "catatan: kirim ulang"},
		})
		want := "( ACCOUNT DETAIL )\n" +
			"1. Email: a@b.c\n" +
			"- Password: x1\n" +
			"- Region: sg\n" +
			"2. VOUCHER-123\n" +
			"3. -\n" +
			"- Catatan: kirim ulang"
		assert.Equal(t, want, got)
	})
}
