package grounding

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PabloGalante/brandbot/internal/app/inventory"
	"github.com/PabloGalante/brandbot/internal/domain"
)

const maxCardTitle = 50

var (
	// "19,99 €", "19.99€", "€19.99", "$20.00", "$20"
	priceRe = regexp.MustCompile(`(\d+[.,]\d{2}\s?€|€\s?\d+(?:[.,]\d{2})?|\$\s?\d+(?:[.,]\d{2})?)`)

	categoryMarkers = []string{"category", "categoria", "categoría", "familia", "seccion", "sección", "listado", "/c/", "collections"}
	productMarkers  = []string{"/p/", "/product/", "/products/", "/producto/", "/productos/", "/dp/", "/item/"}
)

// CitationCard converts a grounding citation into a candidate card. The URL
// itself is not checked here; the Selector does that.
func CitationCard(c domain.Citation, index int, query string, lang domain.Language) domain.Product {
	lowerURI := strings.ToLower(c.URI)
	price := priceRe.FindString(c.Title)

	kind := domain.KindProduct
	if price == "" {
		isCategory := containsAny(lowerURI, categoryMarkers)
		isProduct := containsAny(lowerURI, productMarkers) || (strings.Contains(lowerURI, ".html") && !isCategory)
		switch {
		case isCategory:
			kind = domain.KindLink
		case isProduct || urlMatchesQuery(lowerURI, query):
			kind = domain.KindProduct
		default:
			kind = domain.KindLink
		}
	}

	desc := "Disponible en tienda"
	switch {
	case kind == domain.KindLink && lang == domain.LangEN:
		desc = "View category"
	case kind == domain.KindLink:
		desc = "Ver catálogo completo"
	case lang == domain.LangEN:
		desc = "Available in store"
	}

	return domain.Product{
		ID:          fmt.Sprintf("live-%d", index),
		Name:        cleanTitle(c.Title, c.URI),
		Description: desc,
		Price:       price,
		BuyURL:      c.URI,
		Kind:        kind,
	}
}

func urlMatchesQuery(lowerURI, query string) bool {
	for _, t := range inventory.Tokens(inventory.Normalize(query)) {
		if strings.Contains(lowerURI, t) {
			return true
		}
	}
	return false
}

// cleanTitle keeps the part before the first "-" or "|" and truncates it.
func cleanTitle(title, uri string) string {
	t := strings.TrimSpace(title)
	if i := strings.IndexAny(t, "-|"); i > 0 {
		t = strings.TrimSpace(t[:i])
	}
	if t == "" {
		t = uri
	}
	if r := []rune(t); len(r) > maxCardTitle {
		t = string(r[:maxCardTitle-3]) + "..."
	}
	return t
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// DedupeCitations keeps the first citation per URI, preserving order.
func DedupeCitations(in []domain.Citation) []domain.Citation {
	seen := make(map[string]struct{}, len(in))
	out := make([]domain.Citation, 0, len(in))
	for _, c := range in {
		if c.URI == "" {
			continue
		}
		if _, ok := seen[c.URI]; ok {
			continue
		}
		seen[c.URI] = struct{}{}
		out = append(out, c)
	}
	return out
}
