// Package bot разбирает входящие сообщения чата и отвечает на команды магазина.
package bot

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/vladislavdragonenkov/storebot/internal/catalog"
)

// Kind: результат классификации входящего текста.
type Kind int

const (
	KindIgnore Kind = iota
	KindCommand
	KindQuery
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindQuery:
		return "query"
	default:
		return "ignore"
	}
}

const (
	commandPrefix   = "#"
	minTokenLen     = 3
	maxChatterWords = 8
)

// TokenIndex: индекс слов каталога.
type TokenIndex interface {
	HasToken(token string) bool
}

// stopwords не несут смысла для поиска товара.
var stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		stok stock harga beli order pesan list kategori produk product
		minta tolong dong kak bang min gan bro sist sista admin
		gaada nggak tidak iya halo hai terimakasih makasih makasi assalamualaikum salam p
		test coba udah sudah lagi banget lol wkwk`) {
		stopwords[w] = struct{}{}
	}
}

var urlPattern = regexp.MustCompile(`(?i)https?://`)

// Classify относит текст к команде, запросу по каталогу или к болтовне.
// В тихом режиме запросы не распознаются.
func Classify(text string, quiet bool, index TokenIndex) Kind {
	text = strings.TrimSpace(text)
	if text == "" {
		return KindIgnore
	}
	if strings.HasPrefix(text, commandPrefix) {
		return KindCommand
	}
	if quiet || index == nil {
		return KindIgnore
	}
	if strings.Contains(text, "?") || urlPattern.MatchString(text) {
		return KindIgnore
	}

	tokens := contentWords(text)
	if len(tokens) == 0 {
		return KindIgnore
	}
	signal := false
	for _, t := range tokens {
		if len([]rune(t)) >= minTokenLen && index.HasToken(t) {
			signal = true
			break
		}
	}
	if !signal {
		return KindIgnore
	}
	if len(tokens) >= maxChatterWords && !strings.ContainsFunc(text, unicode.IsDigit) {
		return KindIgnore
	}
	return KindQuery
}

// contentWords: слова текста без стоп-слов.
func contentWords(text string) []string {
	words := catalog.Words(text)
	out := words[:0]
	for _, w := range words {
		if _, stop := stopwords[w]; !stop {
			out = append(out, w)
		}
	}
	return out
}

// CleanQuery убирает из запроса стоп-слова и отделяет номер страницы в конце.
// Если после чистки ничего не осталось, возвращается нормализованный исходный текст.
func CleanQuery(text string) (query string, page int) {
	normalized := catalog.Normalize(strings.TrimPrefix(strings.TrimSpace(text), commandPrefix))
	fields := strings.Fields(strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.' {
			return r
		}
		return ' '
	}, normalized))
	kept := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, stop := stopwords[f]; !stop {
			kept = append(kept, f)
		}
	}
	if len(kept) == 0 {
		kept = fields
	}

	page = 1
	if n := len(kept); n > 1 {
		if p, ok := pageNumber(kept[n-1]); ok {
			page = p
			kept = kept[:n-1]
		}
	}
	return strings.Join(kept, " "), page
}

// pageNumber принимает номер страницы из одной-трёх цифр.
func pageNumber(s string) (int, bool) {
	if len(s) == 0 || len(s) > 3 || strings.ContainsFunc(s, func(r rune) bool { return r < '0' || r > '9' }) {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}
