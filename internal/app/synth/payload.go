package synth

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/PabloGalante/brandbot/internal/domain"
)

var errUnusableOutput = errors.New("backend output carries no usable profile fields")

// flexString accepts JSON strings and numbers; models emit prices both ways.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type productPayload struct {
	ID          flexString `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Price       flexString `json:"price"`
	ImageURL    string     `json:"imageUrl"`
	BuyURL      string     `json:"buyUrl"`
	Type        string     `json:"type"`
	Tags        []string   `json:"tags"`
}

type profilePayload struct {
	AgentName         string             `json:"agentName"`
	BrandColor        string             `json:"brandColor"`
	Summary           string             `json:"summary"`
	SystemInstruction string             `json:"systemInstruction"`
	SuggestedGreeting string             `json:"suggestedGreeting"`
	KeyTopics         []string           `json:"keyTopics"`
	WebsiteURL        string             `json:"websiteUrl"`
	NavigationTree    []domain.Category  `json:"navigationTree"`
	ContactInfo       domain.ContactInfo `json:"contactInfo"`
	Products          []productPayload   `json:"products"`
}

// decodeProfile is the validated decode of structured synthesis output.
func decodeProfile(raw []byte) (*profilePayload, error) {
	var p profilePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// lenientDecode never fails: unparsable text yields an empty payload.
func lenientDecode(text string) *profilePayload {
	p, err := decodeProfile([]byte(domain.ExtractJSON(text)))
	if err != nil {
		return &profilePayload{}
	}
	return p
}

func (p *profilePayload) usable() bool {
	return strings.TrimSpace(p.SystemInstruction) != "" ||
		strings.TrimSpace(p.Summary) != "" ||
		len(p.Products) > 0
}

func (p *profilePayload) toProfile() *domain.AgentProfile {
	out := &domain.AgentProfile{
		AgentName:         p.AgentName,
		BrandColor:        p.BrandColor,
		Summary:           p.Summary,
		SystemInstruction: p.SystemInstruction,
		SuggestedGreeting: p.SuggestedGreeting,
		KeyTopics:         p.KeyTopics,
		WebsiteURL:        p.WebsiteURL,
		NavigationTree:    p.NavigationTree,
		ContactInfo:       p.ContactInfo,
	}
	for _, pp := range p.Products {
		out.Products = append(out.Products, domain.Product{
			ID:          string(pp.ID),
			Name:        pp.Name,
			Description: pp.Description,
			Price:       string(pp.Price),
			ImageURL:    pp.ImageURL,
			BuyURL:      pp.BuyURL,
			Kind:        domain.ProductKind(strings.ToUpper(strings.TrimSpace(pp.Type))),
			Tags:        pp.Tags,
		})
	}
	return out
}
