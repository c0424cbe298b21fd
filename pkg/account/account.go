// Package account supplies the authenticated identity workflows run under.
package account

import (
	"context"
	"errors"
)

// ErrNoAccount indicates no authenticated account is available; runs fail
// fast before touching any step.
var ErrNoAccount = errors.New("no authenticated account available")

// Account is the identity used for mail access and as the default sender.
type Account struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Provider yields the current authenticated account, or ErrNoAccount.
type Provider interface {
	Account(ctx context.Context) (*Account, error)
}

// StaticProvider returns a fixed account, typically read from the
// environment at startup.
type StaticProvider struct {
	account *Account
}

// NewStaticProvider creates a provider for the given address. An empty
// address yields a provider that always fails.
func NewStaticProvider(email, name string) *StaticProvider {
	if email == "" {
		return &StaticProvider{}
	}

	return &StaticProvider{account: &Account{Email: email, Name: name}}
}

func (p *StaticProvider) Account(_ context.Context) (*Account, error) {
	if p.account == nil {
		return nil, ErrNoAccount
	}

	return p.account, nil
}
