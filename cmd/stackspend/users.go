package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/stackspend/stackspend/internal/auth"
	"github.com/stackspend/stackspend/internal/config"
	"github.com/stackspend/stackspend/internal/store"
	"github.com/stackspend/stackspend/internal/store/pgstore"
)

const envAdminPassword = "STACKSPEND_ADMIN_PASSWORD"

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage console users.",
}

type bootstrapFlags struct {
	email    string
	password string
	stdin    bool
	generate bool
}

var bootstrapOpts bootstrapFlags

var bootstrapAdminCmd = &cobra.Command{
	Use:   "bootstrap-admin",
	Short: "Create the first admin. Does nothing once an active admin exists.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		email := auth.NormalizeEmail(bootstrapOpts.email)
		if email == "" {
			return &exitError{code: exitUsage, err: errors.New("--email is required")}
		}
		password, generated, err := bootstrapOpts.resolvePassword(cmd)
		if err != nil {
			return err
		}
		if err := auth.ValidatePassword(password); err != nil {
			return &exitError{code: exitUsage, err: err}
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.UseMockData {
			return errors.New("mock mode seeds its own demo admin; unset USE_MOCK_DATA")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()
		st, err := pgstore.Open(ctx, cfg.DatabaseURL, 2)
		if err != nil {
			return err
		}
		defer st.Close()

		created, err := bootstrapAdmin(ctx, st.Users(), email, password)
		switch {
		case err != nil:
			return err
		case !created:
			cmd.Println("an active admin already exists; nothing to do")
		case generated:
			cmd.Printf("created admin %s with password %s\n", email, password)
		default:
			cmd.Printf("created admin %s\n", email)
		}
		return nil
	},
}

// resolvePassword takes the password from, in order: stdin, a generated value, the flag,
// the environment, then an interactive prompt.
func (f bootstrapFlags) resolvePassword(cmd *cobra.Command) (password string, generated bool, err error) {
	switch {
	case f.stdin:
		password, err = readPasswordLine(cmd.InOrStdin())
	case f.generate:
		return rand.Text(), true, nil
	case f.password != "":
		password = f.password
	case os.Getenv(envAdminPassword) != "":
		password = os.Getenv(envAdminPassword)
	default:
		password, err = promptPassword(cmd.ErrOrStderr(), true)
	}
	return password, false, err
}

// bootstrapAdmin creates an active admin unless one already exists. An existing non-admin
// account with the same email is an error rather than a silent promotion.
func bootstrapAdmin(ctx context.Context, users store.UserRepository, email, password string) (bool, error) {
	if n, err := users.CountActiveAdmins(ctx); err != nil || n > 0 {
		return false, err
	}
	switch _, err := users.GetByEmail(ctx, email); {
	case err == nil:
		return false, fmt.Errorf("user %s already exists without the admin role", email)
	case !errors.Is(err, store.ErrNotFound):
		return false, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return false, err
	}
	_, err = users.Create(ctx, store.CreateUserParams{
		Email:        email,
		PasswordHash: hash,
		Role:         auth.RoleAdmin,
		IsActive:     true,
	})
	return err == nil, err
}

func init() {
	usersCmd.AddCommand(bootstrapAdminCmd)

	f := bootstrapAdminCmd.Flags()
	f.StringVar(&bootstrapOpts.email, "email", "", "admin email address")
	f.StringVar(&bootstrapOpts.password, "password", "", "admin password (default $"+envAdminPassword+", else prompt)")
	f.BoolVar(&bootstrapOpts.stdin, "password-stdin", false, "read the password from the first line of stdin")
	f.BoolVar(&bootstrapOpts.generate, "generate-password", false, "generate a random password and print it once")
	bootstrapAdminCmd.MarkFlagsMutuallyExclusive("password", "password-stdin", "generate-password")
	_ = bootstrapAdminCmd.MarkFlagRequired("email")
}
