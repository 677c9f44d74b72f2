package catalog

import (
	"sort"
	"strings"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
)

// Collision описывает конфликт ключей при построении индекса.
// Выигрывает строка, стоящая в таблице раньше.
type Collision struct {
	Key     string
	Kind    string // "code" или "alias"
	Kept    string
	Dropped string
}

// snapshot: неизменяемый индекс товаров одного цикла обновления.
type snapshot struct {
	products   []domain.Product
	byCode     map[string]int
	byAlias    map[string]int
	haystacks  []string
	categories []string
	tokens     map[string]struct{}
	collisions []Collision
}

const minTokenLen = 3

func buildSnapshot(products []domain.Product) *snapshot {
	s := &snapshot{
		products:  products,
		byCode:    make(map[string]int, len(products)),
		byAlias:   make(map[string]int),
		haystacks: make([]string, len(products)),
		tokens:    make(map[string]struct{}),
	}

	seenCategory := make(map[string]struct{})
	for i, p := range products {
		key := NormalizeCode(p.Code)
		if key != "" {
			if prev, ok := s.byCode[key]; ok {
				s.collisions = append(s.collisions, Collision{Key: key, Kind: "code", Kept: products[prev].Code, Dropped: p.Code})
			} else {
				s.byCode[key] = i
			}
			s.tokens[key] = struct{}{}
		}

		for _, alias := range p.Aliases {
			akey := NormalizeCode(alias)
			if akey == "" {
				continue
			}
			if prev, ok := s.byAlias[akey]; ok {
				if prev != i {
					s.collisions = append(s.collisions, Collision{Key: akey, Kind: "alias", Kept: products[prev].Code, Dropped: p.Code})
				}
				continue
			}
			s.byAlias[akey] = i
		}

		for _, w := range append(Words(p.Name), Words(strings.Join(p.Aliases, " "))...) {
			if len([]rune(w)) >= minTokenLen {
				s.tokens[w] = struct{}{}
			}
		}

		s.haystacks[i] = Normalize(strings.Join([]string{
			p.Name, p.Description, p.Code, p.Category, strings.Join(p.Aliases, " "),
		}, " "))

		if c := strings.TrimSpace(p.Category); c != "" {
			if _, ok := seenCategory[c]; !ok {
				seenCategory[c] = struct{}{}
				s.categories = append(s.categories, c)
			}
		}
	}
	sort.Strings(s.categories)

	return s
}

func (s *snapshot) lookup(q string) (domain.Product, bool) {
	key := NormalizeCode(q)
	if key == "" {
		return domain.Product{}, false
	}
	if i, ok := s.byCode[key]; ok {
		return s.products[i], true
	}
	if i, ok := s.byAlias[key]; ok {
		return s.products[i], true
	}
	return domain.Product{}, false
}

func (s *snapshot) search(q string) []domain.Product {
	needle := Normalize(q)
	if needle == "" {
		return nil
	}
	var out []domain.Product
	for i, hay := range s.haystacks {
		if strings.Contains(hay, needle) {
			out = append(out, s.products[i])
		}
	}
	return out
}

func (s *snapshot) byCategory(cat string) []domain.Product {
	want := Normalize(cat)
	var out []domain.Product
	for _, p := range s.products {
		if Normalize(p.Category) == want {
			out = append(out, p)
		}
	}
	return out
}

func (s *snapshot) hasCategory(cat string) (string, bool) {
	want := Normalize(cat)
	if want == "" {
		return "", false
	}
	for _, c := range s.categories {
		if Normalize(c) == want {
			return c, true
		}
	}
	return "", false
}
