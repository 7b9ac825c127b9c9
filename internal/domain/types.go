package domain

import "time"

type SessionID string
type TurnID string
type Token string

type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

type AccountRole string

const (
	AccountAdmin AccountRole = "admin"
	AccountUser  AccountRole = "user"
)

// Language selects prompt language and localized fallback texts.
type Language string

const (
	LangES Language = "es"
	LangEN Language = "en"
)

// ParseLanguage maps free input to a supported language, defaulting to Spanish.
func ParseLanguage(s string) Language {
	switch s {
	case "en", "EN", "en-US", "en-GB":
		return LangEN
	default:
		return LangES
	}
}

type Timestamp = time.Time

// Account is what an already-issued bearer token resolves to.
type Account struct {
	Token    Token
	Email    string
	IsActive bool
	Role     AccountRole
}

// Short returns a log-safe prefix of the token.
func (t Token) Short() string {
	if len(t) <= 6 {
		return string(t)
	}
	return string(t[:6]) + "…"
}
