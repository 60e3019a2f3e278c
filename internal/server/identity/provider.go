// Package identity adapts the managed identity provider (Firebase Auth) to
// the service: account administration through the Admin SDK and delegated
// password verification through the Identity Toolkit REST endpoint. All
// errors leave this package classified into the common taxonomy.
package identity

import (
	"context"
	"strings"
	"time"
)

// Account is the provider's view of a user.
type Account struct {
	UID         string
	Email       string
	DisplayName string
	CreatedAt   time.Time
}

// AccountUpdate lists provider-side changes. Nil fields are left unchanged.
type AccountUpdate struct {
	DisplayName *string
	Password    *string
}

// Provider administers accounts on the identity provider.
type Provider interface {
	CreateAccount(ctx context.Context, email, password, displayName string) (*Account, error)
	GetAccount(ctx context.Context, uid string) (*Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*Account, error)
	UpdateAccount(ctx context.Context, uid string, upd AccountUpdate) error
	DeleteAccount(ctx context.Context, uid string) error
	ListAccounts(ctx context.Context) ([]*Account, error)
	// ExchangeToken mints a short-lived token the client exchanges for a
	// provider session.
	ExchangeToken(ctx context.Context, uid string) (string, error)
}

// Session is the result of a successful password grant.
type Session struct {
	UID         string
	Email       string
	DisplayName string
	IDToken     string
}

// PasswordGrant verifies an email/password pair on the provider.
type PasswordGrant interface {
	SignIn(ctx context.Context, email, password string) (*Session, error)
}

// IsUsableWebKey reports whether key looks like a real web API key: not
// blank and not a "YOUR_..." placeholder.
func IsUsableWebKey(key string) bool {
	return strings.TrimSpace(key) != "" && !strings.Contains(strings.ToUpper(key), "YOUR")
}
