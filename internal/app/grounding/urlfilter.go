// Package grounding turns a chat turn into reply text plus product cards whose
// links are provably tied to the merchant's site.
package grounding

import (
	"net/url"
	"strings"
	"unicode"
)

// RejectReason explains why a candidate link was dropped. Empty means accepted.
type RejectReason string

const (
	Accepted          RejectReason = ""
	RejectEmpty       RejectReason = "empty_url"
	RejectScheme      RejectReason = "bad_scheme"
	RejectPlaceholder RejectReason = "placeholder"
	RejectDomain      RejectReason = "foreign_domain"
	RejectDenylisted  RejectReason = "denylisted_path"
	RejectDuplicate   RejectReason = "duplicate"
)

// DefaultPlaceholders are template remnants a backend emits instead of real links.
var DefaultPlaceholders = []string{
	"example", "url_real", "real_url", "tudominio.com", "yourdomain", "your-domain", "dominio.com", "{", "}", "[", "]",
}

// DefaultDenylist holds words of pages never worth a card. They match whole
// path or query words (or their plural), so "/cart" is denied and
// "/cartuchos-tinta" is not.
var DefaultDenylist = []string{"login", "signin", "cart", "carrito", "checkout", "politica", "policy", "privacy", "cookies"}

// RootDomain extracts the brand label of a site: host, minus a leading "www.",
// first dot-separated label, lowercased. "www.tienda.pcbox.es" yields "tienda".
// This is a permissive heuristic, not public-suffix resolution: hosts such as
// "shop.co.uk" resolve to "shop" and subdomain-first hosts to the subdomain.
func RootDomain(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Hostname() == "" {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	label, _, _ := strings.Cut(host, ".")
	return label
}

// URLFilter checks candidate links for provenance. A zero filter accepts any
// well-formed http(s) link that is not a placeholder or denylisted page.
type URLFilter struct {
	Root         string
	siteHost     string
	Placeholders []string
	Denylist     []string
}

// NewURLFilter builds a filter for the given site. Placeholder tokens that
// appear in the site's own host are ignored so real links are never rejected.
func NewURLFilter(websiteURL string) *URLFilter {
	f := &URLFilter{
		Root:         RootDomain(websiteURL),
		Placeholders: DefaultPlaceholders,
		Denylist:     DefaultDenylist,
	}
	if u, err := url.Parse(strings.TrimSpace(websiteURL)); err == nil {
		f.siteHost = strings.ToLower(u.Hostname())
	}
	return f
}

// Check applies scheme, placeholder, domain and denylist rules.
func (f *URLFilter) Check(rawURL string) RejectReason {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return RejectEmpty
	}
	lower := strings.ToLower(raw)
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return RejectScheme
	}
	for _, p := range f.Placeholders {
		if strings.Contains(lower, p) && !strings.Contains(f.siteHost, p) {
			return RejectPlaceholder
		}
	}
	if f.Root != "" && !strings.Contains(strings.ToLower(u.Hostname()), f.Root) {
		return RejectDomain
	}
	if f.denylisted(u) {
		return RejectDenylisted
	}
	return Accepted
}

func (f *URLFilter) denylisted(u *url.URL) bool {
	if len(f.Denylist) == 0 {
		return false
	}
	query, err := url.QueryUnescape(u.RawQuery)
	if err != nil {
		query = u.RawQuery
	}
	words := strings.FieldsFunc(strings.ToLower(u.Path+"?"+query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		for _, d := range f.Denylist {
			if w == d || w == d+"s" {
				return true
			}
		}
	}
	return false
}

// Selector applies the filter and de-duplicates by exact URL within one turn.
type Selector struct {
	filter *URLFilter
	seen   map[string]struct{}
}

func NewSelector(f *URLFilter) *Selector {
	return &Selector{filter: f, seen: make(map[string]struct{})}
}

// Admit reports whether rawURL may be surfaced and records it when it may.
func (s *Selector) Admit(rawURL string) RejectReason {
	if r := s.filter.Check(rawURL); r != Accepted {
		return r
	}
	key := strings.TrimSpace(rawURL)
	if _, dup := s.seen[key]; dup {
		return RejectDuplicate
	}
	s.seen[key] = struct{}{}
	return Accepted
}
