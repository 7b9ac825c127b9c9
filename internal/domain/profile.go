package domain

type ProductKind string

const (
	KindProduct ProductKind = "PRODUCT"
	KindService ProductKind = "SERVICE"
	KindLink    ProductKind = "LINK"
)

type Product struct {
	ID          string      `json:"id" firestore:"id"`
	Name        string      `json:"name" firestore:"name"`
	Description string      `json:"description" firestore:"description"`
	Price       string      `json:"price,omitempty" firestore:"price,omitempty"`
	ImageURL    string      `json:"imageUrl,omitempty" firestore:"imageUrl,omitempty"`
	BuyURL      string      `json:"buyUrl,omitempty" firestore:"buyUrl,omitempty"`
	Kind        ProductKind `json:"type,omitempty" firestore:"type,omitempty"`
	Tags        []string    `json:"tags,omitempty" firestore:"tags,omitempty"`
}

// Category is one entry of the site's navigation tree.
type Category struct {
	Name        string `json:"name" firestore:"name"`
	URL         string `json:"url" firestore:"url"`
	Description string `json:"description,omitempty" firestore:"description,omitempty"`
}

type Citation struct {
	Title string `json:"title" firestore:"title"`
	URI   string `json:"uri" firestore:"uri"`
}

type ContactInfo struct {
	Sales     string `json:"sales,omitempty" firestore:"sales,omitempty"`
	Support   string `json:"support,omitempty" firestore:"support,omitempty"`
	Technical string `json:"technical,omitempty" firestore:"technical,omitempty"`
}

// IsZero reports whether no channel is set.
func (c ContactInfo) IsZero() bool {
	return c.Sales == "" && c.Support == "" && c.Technical == ""
}

// AgentProfile is the synthesized configuration served to the chat runtime.
type AgentProfile struct {
	AgentName         string      `json:"agentName,omitempty" firestore:"agentName,omitempty"`
	BrandColor        string      `json:"brandColor,omitempty" firestore:"brandColor,omitempty"`
	Summary           string      `json:"summary" firestore:"summary"`
	SystemInstruction string      `json:"systemInstruction" firestore:"systemInstruction"`
	SuggestedGreeting string      `json:"suggestedGreeting" firestore:"suggestedGreeting"`
	KeyTopics         []string    `json:"keyTopics,omitempty" firestore:"keyTopics,omitempty"`
	Products          []Product   `json:"products" firestore:"products"`
	NavigationTree    []Category  `json:"navigationTree,omitempty" firestore:"navigationTree,omitempty"`
	ContactInfo       ContactInfo `json:"contactInfo,omitempty" firestore:"contactInfo,omitempty"`
	Sources           []Citation  `json:"sources,omitempty" firestore:"sources,omitempty"`
	WebsiteURL        string      `json:"websiteUrl,omitempty" firestore:"websiteUrl,omitempty"`
}

// Clone returns a deep copy so callers never share slices with a stored profile.
func (p *AgentProfile) Clone() *AgentProfile {
	if p == nil {
		return nil
	}
	cp := *p
	cp.KeyTopics = append([]string(nil), p.KeyTopics...)
	cp.NavigationTree = append([]Category(nil), p.NavigationTree...)
	cp.Sources = append([]Citation(nil), p.Sources...)
	if p.Products != nil {
		cp.Products = make([]Product, len(p.Products))
		for i, prod := range p.Products {
			prod.Tags = append([]string(nil), prod.Tags...)
			cp.Products[i] = prod
		}
	}
	return &cp
}

// ProductByID looks a product up by its id.
func (p *AgentProfile) ProductByID(id string) (Product, bool) {
	if p == nil {
		return Product{}, false
	}
	for _, prod := range p.Products {
		if prod.ID == id {
			return prod, true
		}
	}
	return Product{}, false
}

// Workspace is the unit handled by the persistence gateway for one token.
type Workspace struct {
	Profile   *AgentProfile
	Items     []ContextItem
	UpdatedAt Timestamp
}

// Clone deep-copies the workspace, including file bytes.
func (w *Workspace) Clone() *Workspace {
	if w == nil {
		return nil
	}
	cp := &Workspace{
		Profile:   w.Profile.Clone(),
		UpdatedAt: w.UpdatedAt,
	}
	for _, it := range w.Items {
		it.FileData = append([]byte(nil), it.FileData...)
		cp.Items = append(cp.Items, it)
	}
	return cp
}
