package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/stackspend/stackspend/internal/auth"
	"github.com/stackspend/stackspend/internal/store"
	"github.com/stackspend/stackspend/internal/store/memstore"
)

func TestPasswordProviderAuthenticate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := memstore.New()

	hash, err := auth.HashPassword("s3cret-password!")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if _, err := st.Users().Create(ctx, store.CreateUserParams{Email: "ops@acme.example", PasswordHash: hash, Role: auth.RoleViewer, IsActive: true}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := st.Users().Create(ctx, store.CreateUserParams{Email: "gone@acme.example", PasswordHash: hash, Role: auth.RoleAdmin, IsActive: false}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	p := NewPasswordProvider(st.Users())

	got, err := p.Authenticate(ctx, "  OPS@acme.example ", "s3cret-password!")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.Email != "ops@acme.example" || got.Role != auth.RoleViewer || got.Method != auth.MethodPassword {
		t.Fatalf("principal = %+v", got)
	}

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "wrong password", email: "ops@acme.example", password: "nope"},
		{name: "unknown user", email: "who@acme.example", password: "s3cret-password!"},
		{name: "inactive user", email: "gone@acme.example", password: "s3cret-password!"},
		{name: "empty", email: "", password: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := p.Authenticate(ctx, tt.email, tt.password); !errors.Is(err, auth.ErrInvalidCredentials) {
				t.Fatalf("err = %v, want ErrInvalidCredentials", err)
			}
		})
	}
}

func TestEnsureDemoAdmin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := memstore.New()

	created, err := EnsureDemoAdmin(ctx, st.Users())
	if err != nil || !created {
		t.Fatalf("EnsureDemoAdmin = %v, %v", created, err)
	}
	created, err = EnsureDemoAdmin(ctx, st.Users())
	if err != nil || created {
		t.Fatalf("second EnsureDemoAdmin = %v, %v", created, err)
	}
	if _, err := NewPasswordProvider(st.Users()).Authenticate(ctx, auth.DemoAdminEmail, auth.DemoAdminPassword); err != nil {
		t.Fatalf("demo admin login: %v", err)
	}
}
