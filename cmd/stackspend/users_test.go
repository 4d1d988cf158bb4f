package main

import (
	"context"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stackspend/stackspend/internal/auth"
	"github.com/stackspend/stackspend/internal/store"
	"github.com/stackspend/stackspend/internal/store/memstore"
)

func TestBootstrapAdmin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	users := memstore.New().Users()

	created, err := bootstrapAdmin(ctx, users, "owner@example.com", "correct horse battery")
	if err != nil || !created {
		t.Fatalf("first bootstrapAdmin() = %v, %v; want true, nil", created, err)
	}
	u, err := users.GetByEmail(ctx, "owner@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if u.Role != auth.RoleAdmin || !u.IsActive {
		t.Fatalf("user = %+v, want active admin", u)
	}
	if ok, err := auth.ComparePassword("correct horse battery", u.PasswordHash); err != nil || !ok {
		t.Fatalf("stored hash does not match: ok=%v err=%v", ok, err)
	}

	created, err = bootstrapAdmin(ctx, users, "second@example.com", "another long password")
	if err != nil || created {
		t.Fatalf("second bootstrapAdmin() = %v, %v; want false, nil", created, err)
	}
}

func TestBootstrapAdminRefusesExistingViewer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	users := memstore.New().Users()
	if _, err := users.Create(ctx, store.CreateUserParams{
		Email:        "viewer@example.com",
		PasswordHash: "x",
		Role:         auth.RoleViewer,
		IsActive:     true,
	}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, err := bootstrapAdmin(ctx, users, "viewer@example.com", "correct horse battery")
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("bootstrapAdmin() error = %v, want already exists", err)
	}
}

func TestResolvePassword(t *testing.T) {
	t.Setenv(envAdminPassword, "from-the-environment")

	tests := []struct {
		name          string
		flags         bootstrapFlags
		stdin         string
		want          string
		wantGenerated bool
		wantErr       bool
	}{
		{name: "stdin first line", flags: bootstrapFlags{stdin: true}, stdin: "piped-password-123\r\nignored\n", want: "piped-password-123"},
		{name: "stdin without newline", flags: bootstrapFlags{stdin: true}, stdin: "piped-password-123", want: "piped-password-123"},
		{name: "empty stdin", flags: bootstrapFlags{stdin: true}, stdin: "\n", wantErr: true},
		{name: "flag beats env", flags: bootstrapFlags{password: "flag-password-123"}, want: "flag-password-123"},
		{name: "env", want: "from-the-environment"},
		{name: "generated", flags: bootstrapFlags{generate: true}, wantGenerated: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &cobra.Command{}
			cmd.SetIn(strings.NewReader(tt.stdin))

			got, generated, err := tt.flags.resolvePassword(cmd)
			if (err != nil) != tt.wantErr {
				t.Fatalf("resolvePassword() error = %v, wantErr %v", err, tt.wantErr)
			}
			if generated != tt.wantGenerated {
				t.Fatalf("generated = %v, want %v", generated, tt.wantGenerated)
			}
			if tt.wantGenerated {
				if err := auth.ValidatePassword(got); err != nil {
					t.Fatalf("generated password rejected: %v", err)
				}
				return
			}
			if got != tt.want {
				t.Fatalf("password = %q, want %q", got, tt.want)
			}
		})
	}
}
