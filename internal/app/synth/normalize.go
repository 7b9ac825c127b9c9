package synth

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PabloGalante/brandbot/internal/app/grounding"
	"github.com/PabloGalante/brandbot/internal/domain"
	"github.com/PabloGalante/brandbot/internal/observability"
)

const (
	DefaultAgentName  = "Asistente"
	DefaultBrandColor = "#0ea5e9"
)

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// ValidBrandColor reports whether s is a #RGB or #RRGGBB color.
func ValidBrandColor(s string) bool { return hexColor.MatchString(s) }

type normalizer struct {
	newID    func() string
	seedURLs []string
	contacts domain.ContactInfo
}

// apply turns decoded backend output into a profile that upholds every
// catalog invariant. The payload is not modified.
func (n normalizer) apply(p *profilePayload, citations []domain.Citation) *domain.AgentProfile {
	out := p.toProfile()

	out.AgentName = strings.TrimSpace(out.AgentName)
	if out.AgentName == "" {
		out.AgentName = DefaultAgentName
	}
	out.BrandColor = strings.TrimSpace(out.BrandColor)
	if !hexColor.MatchString(out.BrandColor) {
		out.BrandColor = DefaultBrandColor
	}
	if strings.TrimSpace(out.WebsiteURL) == "" && len(n.seedURLs) > 0 {
		out.WebsiteURL = n.seedURLs[0]
	}
	out.ContactInfo = mergeContacts(n.contacts, out.ContactInfo)

	// Synthesized buy links pass the provenance filter without the page
	// denylist: a legitimate product page may live under any path.
	filter := grounding.NewURLFilter(out.WebsiteURL)
	filter.Denylist = nil

	seen := make(map[string]struct{}, len(out.Products))
	products := make([]domain.Product, 0, len(out.Products))
	for _, prod := range out.Products {
		prod.Name = strings.TrimSpace(prod.Name)
		if prod.Name == "" {
			continue
		}
		if prod.BuyURL != "" {
			if reason := filter.Check(prod.BuyURL); reason != grounding.Accepted {
				observability.Logger().Debug("synthesized product dropped",
					"product", prod.Name, "url", prod.BuyURL, "reason", string(reason))
				continue
			}
		}
		if _, dup := seen[prod.ID]; prod.ID == "" || dup {
			prod.ID = n.newID()
		}
		seen[prod.ID] = struct{}{}

		switch prod.Kind {
		case domain.KindProduct, domain.KindService, domain.KindLink:
		default:
			prod.Kind = domain.KindProduct
		}
		if prod.Kind == domain.KindLink {
			prod.Price = ""
		}
		products = append(products, prod)
	}
	out.Products = products

	var navigation []domain.Category
	for _, c := range out.NavigationTree {
		if strings.TrimSpace(c.Name) == "" || filter.Check(c.URL) != grounding.Accepted {
			continue
		}
		navigation = append(navigation, c)
	}
	out.NavigationTree = navigation

	out.Sources = normalizeCitations(citations)
	return out
}

// mergeContacts prefers channels declared by the operator over synthesized ones.
func mergeContacts(operator, synthesized domain.ContactInfo) domain.ContactInfo {
	out := synthesized
	if operator.Sales != "" {
		out.Sales = operator.Sales
	}
	if operator.Support != "" {
		out.Support = operator.Support
	}
	if operator.Technical != "" {
		out.Technical = operator.Technical
	}
	return out
}

func normalizeCitations(in []domain.Citation) []domain.Citation {
	out := grounding.DedupeCitations(in)
	for i := range out {
		if strings.TrimSpace(out[i].Title) != "" {
			continue
		}
		if u, err := url.Parse(out[i].URI); err == nil && u.Hostname() != "" {
			out[i].Title = u.Hostname()
		} else {
			out[i].Title = out[i].URI
		}
	}
	return out
}
