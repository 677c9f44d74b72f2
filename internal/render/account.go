package render

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
)

// ManualDelivery: текст, если склад не вернул данных для выдачи.
const ManualDelivery = "( ACCOUNT DETAIL )\n- Stok akan dikirim manual oleh admin."

var (
	separatorRe = regexp.MustCompile(`\|\||\||,|\n`)
	pairRe      = regexp.MustCompile(`^([^:=]+?)\s*[:=]\s*(.+)$`)

	keyAliases = []struct {
		re  *regexp.Regexp
		key string
	}{
		{regexp.MustCompile(`^(e-?mail|user(name)?)$`), "email"},
		{regexp.MustCompile(`^(pass(word)?|pw|sandi)$`), "password"},
		{regexp.MustCompile(`^profile?$`), "profile"},
		{regexp.MustCompile(`^pin$`), "pin"},
		{regexp.MustCompile(`^(redeem(code)?|kode ?redeem)$`), "redeem"},
		{regexp.MustCompile(`^(durasi|masa ?aktif|valid)$`), "duration"},
	}

	knownKeys = []struct{ key, label string }{
		{"password", "Password"},
		{"profile", "Profile"},
		{"pin", "Pin"},
		{"redeem", "Redeem"},
		{"duration", "Durasi"},
	}
)

// NormalizeAccountKey приводит ключ из данных склада к каноническому имени.
func NormalizeAccountKey(k string) string {
	s := strings.ToLower(strings.TrimSpace(k))
	for _, a := range keyAliases {
		if a.re.MatchString(s) {
			return a.key
		}
	}
	return s
}

func splitParts(raw string) []string {
	var out []string
	for _, p := range separatorRe.Split(raw, -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseAccountKV разбирает "email: a | password: b" в словарь; части без ключа
// собираются в "info".
func ParseAccountKV(raw string) map[string]string {
	kv := make(map[string]string)
	for _, p := range splitParts(raw) {
		if m := pairRe.FindStringSubmatch(p); m != nil {
			kv[NormalizeAccountKey(m[1])] = strings.TrimSpace(m[2])
			continue
		}
		if kv["info"] != "" {
			kv["info"] += " | " + p
		} else {
			kv["info"] = p
		}
	}
	return kv
}

// singleToken возвращает значение, если данные состоят из одного токена без ключей (например, код ваучера).
func singleToken(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" || strings.ContainsAny(s, ":=") {
		return "", false
	}
	parts := splitParts(s)
	if len(parts) != 1 {
		return "", false
	}
	return parts[0], true
}

// AccountDetails форматирует данные выдачи столбиком, по одному блоку на единицу.
func AccountDetails(items []domain.LedgerItem) string {
	if len(items) == 0 {
		return ManualDelivery
	}

	lines := []string{"( ACCOUNT DETAIL )"}
	for idx, it := range items {
		raw := strings.TrimSpace(it.Data)
		if raw == "" {
			continue
		}
		n := idx + 1
		if single, ok := singleToken(raw); ok {
			lines = append(lines, strconv.Itoa(n)+". "+single)
			continue
		}

		kv := ParseAccountKV(raw)
		if info, ok := kv["info"]; ok && len(kv) == 1 {
			lines = append(lines, strconv.Itoa(n)+". "+info)
			continue
		}
		if email := kv["email"]; email != "" {
			lines = append(lines, strconv.Itoa(n)+". Email: "+email)
		} else {
			lines = append(lines, strconv.Itoa(n)+". -")
		}
		shown := map[string]bool{"email": true, "info": true}
		for _, k := range knownKeys {
			shown[k.key] = true
			if v := kv[k.key]; v != "" {
				lines = append(lines, "- "+k.label+": "+v)
			}
		}
		var extra []string
		for k := range kv {
			if !shown[k] {
				extra = append(extra, k)
			}
		}
		sort.Strings(extra)
		for _, k := range extra {
			lines = append(lines, "- "+strings.ToUpper(k[:1])+k[1:]+": "+kv[k])
		}
		if info := kv["info"]; info != "" {
			lines = append(lines, "- Info: "+info)
		}
	}
	return strings.Join(lines, "\n")
}
