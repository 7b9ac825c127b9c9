package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PabloGalante/brandbot/internal/domain"
)

// TokenValidator resolves tokens from a fixed in-process account list.
type TokenValidator struct {
	mu       sync.RWMutex
	accounts map[domain.Token]domain.Account
}

func NewTokenValidator(accounts ...domain.Account) *TokenValidator {
	v := &TokenValidator{accounts: make(map[domain.Token]domain.Account)}
	for _, a := range accounts {
		v.Add(a)
	}
	return v
}

// ParseStaticTokens reads "token:email" pairs. Entries are active users.
func ParseStaticTokens(pairs []string) ([]domain.Account, error) {
	var out []domain.Account
	for _, p := range pairs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		token, email, ok := strings.Cut(p, ":")
		if !ok || token == "" {
			return nil, fmt.Errorf("static token %q: want token:email", p)
		}
		out = append(out, domain.Account{
			Token:    domain.Token(token),
			Email:    email,
			IsActive: true,
			Role:     domain.AccountUser,
		})
	}
	return out, nil
}

func (v *TokenValidator) Add(a domain.Account) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.accounts[a.Token] = a
}

func (v *TokenValidator) Validate(_ context.Context, token domain.Token) (*domain.Account, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	a, ok := v.accounts[token]
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	if !a.IsActive {
		return nil, domain.ErrInactiveAccount
	}
	return &a, nil
}
