package domain

import "strings"

type ContextKind string

const (
	ContextText ContextKind = "TEXT"
	ContextURL  ContextKind = "URL"
	ContextFile ContextKind = "FILE"
)

// ContextItem is one unit of operator-supplied knowledge.
// FileData holds raw bytes; once offloaded to a blob store only BlobRef is kept.
type ContextItem struct {
	ID       string      `json:"id" firestore:"id"`
	Kind     ContextKind `json:"type" firestore:"type"`
	Content  string      `json:"content" firestore:"content"`
	FileName string      `json:"fileName,omitempty" firestore:"fileName,omitempty"`
	FileData []byte      `json:"fileData,omitempty" firestore:"fileData,omitempty"`
	MimeType string      `json:"mimeType,omitempty" firestore:"mimeType,omitempty"`
	BlobRef  string      `json:"blobRef,omitempty" firestore:"blobRef,omitempty"`
}

// ContextTag is a reserved prefix turning a TEXT item into a structured sub-record.
type ContextTag string

const (
	TagSupport      ContextTag = "[CONTACTO_SOPORTE]:"
	TagSales        ContextTag = "[CONTACTO_VENTAS]:"
	TagTechnical    ContextTag = "[CONTACTO_TECNICO]:"
	TagBusinessRule ContextTag = "[REGLA DE NEGOCIO]:"
)

var knownTags = []ContextTag{TagSupport, TagSales, TagTechnical, TagBusinessRule}

// Singleton reports whether at most one item of this tag may be active.
func (t ContextTag) Singleton() bool {
	return t != TagBusinessRule
}

// IsContact reports whether the tag carries a contact channel.
func (t ContextTag) IsContact() bool {
	return t == TagSupport || t == TagSales || t == TagTechnical
}

// ParseTag splits a tagged TEXT item into its tag and value.
func ParseTag(item ContextItem) (ContextTag, string, bool) {
	if item.Kind != ContextText {
		return "", "", false
	}
	content := strings.TrimSpace(item.Content)
	for _, tag := range knownTags {
		if strings.HasPrefix(content, string(tag)) {
			return tag, strings.TrimSpace(strings.TrimPrefix(content, string(tag))), true
		}
	}
	return "", "", false
}

// TaggedText renders a tag and value into the persisted content form.
func TaggedText(tag ContextTag, value string) string {
	return string(tag) + " " + strings.TrimSpace(value)
}

// SetTaggedItem returns a new item list where the singleton tag holds value.
// Any prior item with the same tag is removed; an empty value only removes.
func SetTaggedItem(items []ContextItem, tag ContextTag, value string) []ContextItem {
	out := make([]ContextItem, 0, len(items)+1)
	for _, it := range items {
		if t, _, ok := ParseTag(it); ok && t == tag {
			continue
		}
		out = append(out, it)
	}
	if strings.TrimSpace(value) == "" {
		return out
	}
	return append(out, ContextItem{
		ID:      "contact-" + strings.ToLower(strings.Trim(string(tag), "[]:")),
		Kind:    ContextText,
		Content: TaggedText(tag, value),
	})
}

// ContactsFromItems collects contact channels declared through tags. Last one wins.
func ContactsFromItems(items []ContextItem) ContactInfo {
	var c ContactInfo
	for _, it := range items {
		tag, value, ok := ParseTag(it)
		if !ok {
			continue
		}
		switch tag {
		case TagSupport:
			c.Support = value
		case TagSales:
			c.Sales = value
		case TagTechnical:
			c.Technical = value
		}
	}
	return c
}
