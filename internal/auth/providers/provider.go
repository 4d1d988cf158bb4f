// Package providers authenticates console and API logins.
package providers

import (
	"context"

	"github.com/stackspend/stackspend/internal/auth"
)

// Provider verifies a login and names the method recorded on the resulting principal.
type Provider interface {
	Name() string
	Authenticate(ctx context.Context, email, password string) (auth.Principal, error)
}

var _ Provider = (*PasswordProvider)(nil)
