// Package inventory implements lexical product lookup over an agent profile's
// catalog. Everything here is pure: no I/O, deterministic ordering.
package inventory

import (
	"sort"
	"strings"

	"github.com/PabloGalante/brandbot/internal/domain"
)

const (
	// DefaultLimit caps results so card rendering stays compact.
	DefaultLimit = 5
	minTokenLen  = 2
)

type Index struct {
	products   []domain.Product
	categories []domain.Category
	rules      []ExclusionRule
	limit      int
	lang       domain.Language
}

type Option func(*Index)

func WithCategories(c []domain.Category) Option {
	return func(ix *Index) { ix.categories = c }
}

// WithRules replaces the exclusion table. A nil table disables exclusions.
func WithRules(r []ExclusionRule) Option {
	return func(ix *Index) { ix.rules = r }
}

func WithLimit(n int) Option {
	return func(ix *Index) {
		if n > 0 {
			ix.limit = n
		}
	}
}

func WithLanguage(l domain.Language) Option {
	return func(ix *Index) { ix.lang = l }
}

func New(products []domain.Product, opts ...Option) *Index {
	ix := &Index{
		products: products,
		rules:    DefaultRules,
		limit:    DefaultLimit,
		lang:     domain.LangES,
	}
	for _, o := range opts {
		o(ix)
	}
	return ix
}

// FromProfile builds an index over a profile's products and navigation tree.
func FromProfile(p *domain.AgentProfile, opts ...Option) *Index {
	if p == nil {
		return New(nil, opts...)
	}
	base := []Option{WithCategories(p.NavigationTree)}
	return New(p.Products, append(base, opts...)...)
}

// Search with the default rule table and no categories.
func Search(query string, catalog []domain.Product) []domain.Product {
	return New(catalog).Search(query)
}

type scored struct {
	pos     int
	matches int
}

// Search returns at most limit products: exact name-substring matches first,
// then token matches by descending match count, then the category fallback.
func (ix *Index) Search(query string) []domain.Product {
	q := strings.TrimSpace(Normalize(query))
	if q == "" {
		return nil
	}

	tokens := Tokens(q)
	required := 1
	if len(tokens) > 2 {
		required = 2
	}
	excluded := activeExclusions(ix.rules, q)

	var exact, partial []scored
	for i, p := range ix.products {
		name := Normalize(p.Name)
		if strings.Contains(name, q) {
			exact = append(exact, scored{pos: i})
			continue
		}
		if len(tokens) == 0 || containsAny(name, excluded) {
			continue
		}
		tags := normalizedTags(p.Tags)
		n := 0
		for _, t := range tokens {
			if strings.Contains(name, t) || tagsContain(tags, t) {
				n++
			}
		}
		if n >= required {
			partial = append(partial, scored{pos: i, matches: n})
		}
	}
	sort.SliceStable(partial, func(a, b int) bool {
		return partial[a].matches > partial[b].matches
	})

	out := make([]domain.Product, 0, ix.limit)
	for _, s := range append(exact, partial...) {
		if len(out) == ix.limit {
			break
		}
		out = append(out, ix.products[s.pos])
	}
	if len(out) > 0 {
		return out
	}
	return ix.categoryFallback(q)
}

// categoryFallback turns matching navigation entries into price-less LINK cards.
func (ix *Index) categoryFallback(q string) []domain.Product {
	var out []domain.Product
	for _, c := range ix.categories {
		name := strings.TrimSpace(Normalize(c.Name))
		if name == "" || c.URL == "" {
			continue
		}
		if !strings.Contains(q, name) && !strings.Contains(name, q) {
			continue
		}
		out = append(out, categoryCard(c, name, ix.lang))
		if len(out) == ix.limit {
			break
		}
	}
	return out
}

func categoryCard(c domain.Category, normalizedName string, lang domain.Language) domain.Product {
	name, desc := "Ver "+c.Name, "Explora toda la sección de "+c.Name
	if lang == domain.LangEN {
		name, desc = "View "+c.Name, "Explore all "+c.Name
	}
	return domain.Product{
		ID:          "nav-" + strings.ReplaceAll(normalizedName, " ", "-"),
		Name:        name,
		Description: desc,
		Kind:        domain.KindLink,
		BuyURL:      c.URL,
	}
}

func normalizedTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, Normalize(t))
	}
	return out
}

func tagsContain(tags []string, token string) bool {
	for _, t := range tags {
		if strings.Contains(t, token) {
			return true
		}
	}
	return false
}
