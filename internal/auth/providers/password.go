package providers

import (
	"context"
	"errors"
	"sync"

	"github.com/stackspend/stackspend/internal/auth"
	"github.com/stackspend/stackspend/internal/store"
)

// PasswordProvider checks email and password against the local user table.
type PasswordProvider struct {
	Users store.UserRepository
}

func NewPasswordProvider(users store.UserRepository) *PasswordProvider {
	return &PasswordProvider{Users: users}
}

func (p *PasswordProvider) Name() string { return auth.MethodPassword }

// decoyHash is compared against when the account is unusable, so unknown and disabled
// users cost the same argon2id work as a wrong password.
var decoyHash = sync.OnceValue(func() string {
	hash, _ := auth.HashPassword("stackspend-decoy-password")
	return hash
})

// Authenticate returns the principal for a matching active user. Every credential failure
// is reported as auth.ErrInvalidCredentials; other errors come from the store or the hash.
func (p *PasswordProvider) Authenticate(ctx context.Context, email, password string) (auth.Principal, error) {
	email = auth.NormalizeEmail(email)
	if email == "" || password == "" {
		return auth.Principal{}, auth.ErrInvalidCredentials
	}

	user, err := p.Users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		_, _ = auth.ComparePassword(password, decoyHash())
		return auth.Principal{}, auth.ErrInvalidCredentials
	case err != nil:
		return auth.Principal{}, err
	}

	hash := user.PasswordHash
	if !user.IsActive {
		hash = decoyHash()
	}
	ok, err := auth.ComparePassword(password, hash)
	if err != nil {
		return auth.Principal{}, err
	}
	if !ok || !user.IsActive {
		return auth.Principal{}, auth.ErrInvalidCredentials
	}
	return auth.Principal{UserID: user.ID, Email: user.Email, Role: user.Role, Method: auth.MethodPassword}, nil
}

// EnsureDemoAdmin seeds the demo admin into an empty user table and reports whether it did.
func EnsureDemoAdmin(ctx context.Context, users store.UserRepository) (bool, error) {
	n, err := users.CountUsers(ctx)
	if err != nil || n > 0 {
		return false, err
	}
	hash, err := auth.HashPassword(auth.DemoAdminPassword)
	if err != nil {
		return false, err
	}
	if _, err := users.Create(ctx, store.CreateUserParams{
		Email:        auth.DemoAdminEmail,
		PasswordHash: hash,
		Role:         auth.RoleAdmin,
		IsActive:     true,
	}); err != nil {
		return false, err
	}
	return true, nil
}
