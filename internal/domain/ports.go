package domain

import (
	"context"
	"encoding/json"
	"strings"
)

// Part is one element of a prompt: either text or an inline binary attachment.
type Part struct {
	Text     string
	Data     []byte
	MimeType string
}

func TextPart(s string) Part { return Part{Text: s} }

func BinaryPart(data []byte, mimeType string) Part {
	return Part{Data: data, MimeType: mimeType}
}

func (p Part) IsBinary() bool { return len(p.Data) > 0 }

type SchemaType string

const (
	SchemaObject  SchemaType = "object"
	SchemaArray   SchemaType = "array"
	SchemaString  SchemaType = "string"
	SchemaNumber  SchemaType = "number"
	SchemaBoolean SchemaType = "boolean"
)

// Schema is a vendor-neutral description of structured output.
type Schema struct {
	Type        SchemaType
	Description string
	Properties  map[string]*Schema
	Items       *Schema
	Required    []string
	Enum        []string
}

// GenerateRequest is what the core asks of the generative backend.
type GenerateRequest struct {
	Model           string // empty means backend default
	System          string
	History         []Turn
	Parts           []Part
	Schema          *Schema
	SearchAugmented bool
	Temperature     float32
}

type GenerateResponse struct {
	Text       string
	Structured json.RawMessage // set when a schema was requested and the output is JSON
	Citations  []Citation
}

// JSON returns the structured output, or the JSON object embedded in Text
// when the backend answered in prose (search-grounded replies often wrap it
// in a markdown fence). Text is returned as-is when it holds no object.
func (r *GenerateResponse) JSON() []byte {
	if len(r.Structured) > 0 {
		return r.Structured
	}
	if obj := ExtractJSON(r.Text); obj != "" {
		return []byte(obj)
	}
	return []byte(r.Text)
}

// ExtractJSON returns the text between the first '{' and the last '}'.
func ExtractJSON(text string) string {
	first := strings.Index(text, "{")
	last := strings.LastIndex(text, "}")
	if first == -1 || last < first {
		return ""
	}
	return text[first : last+1]
}

// Generator is the generative-language capability boundary.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// ProfileStore is the document side of the persistence gateway.
type ProfileStore interface {
	Load(ctx context.Context, token Token) (*Workspace, error) // ErrNotFound when absent
	Save(ctx context.Context, token Token, ws *Workspace) error
}

// BlobStore keeps file payloads out-of-band.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, mimeType string) (ref string, err error)
	Get(ctx context.Context, ref string) ([]byte, error)
	// Delete removes a payload. Deleting a missing ref is not an error.
	Delete(ctx context.Context, ref string) error
}

// TokenValidator maps an opaque bearer token to an account.
type TokenValidator interface {
	Validate(ctx context.Context, token Token) (*Account, error)
}

type SessionStore interface {
	CreateSession(ctx context.Context, session *Session) error
	UpdateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id SessionID) (*Session, error)
	ListSessionsByToken(ctx context.Context, token Token, limit int) ([]*Session, error)
}

type TurnStore interface {
	AppendTurn(ctx context.Context, turn *Turn) error
	GetTurnsBySession(ctx context.Context, sessionID SessionID, limit int) ([]*Turn, error)
}
