package catalog

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold раскладывает строку (NFKD) и выбрасывает диакритику: "Café" -> "Cafe".
func Fold(s string) string {
	// transform.Chain хранит состояние, поэтому собирается на каждый вызов.
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Normalize приводит текст к нижнему регистру без диакритики и со схлопнутыми пробелами.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(Fold(s))), " ")
}

// NormalizeCode оставляет от нормализованного текста только буквы и цифры: "SPO-3B" -> "spo3b".
func NormalizeCode(s string) string {
	folded := Normalize(s)
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Words режет нормализованный текст на слова по всему, что не буква и не цифра.
func Words(s string) []string {
	return strings.FieldsFunc(Normalize(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// SplitAliases режет ячейку с алиасами по переводу строки, запятой, ; | и /.
func SplitAliases(cell string) []string {
	parts := strings.FieldsFunc(cell, func(r rune) bool {
		switch r {
		case '\n', '\r', ',', ';', '|', '/':
			return true
		}
		return false
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
