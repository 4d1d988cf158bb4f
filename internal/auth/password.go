package auth

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/alexedwards/argon2id"
)

const (
	MinPasswordLength = 12
	maxPasswordBytes  = 1024
)

// DefaultPasswordParams follow the OWASP argon2id baseline (19 MiB, t=2, p=1).
var DefaultPasswordParams = &argon2id.Params{
	Memory:      19 * 1024,
	Iterations:  2,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

var (
	ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrPasswordTooLong  = errors.New("password is too long")
)

func HashPassword(password string) (string, error) {
	return argon2id.CreateHash(password, DefaultPasswordParams)
}

// ComparePassword reports whether password matches an encoded argon2id hash.
func ComparePassword(password, hash string) (bool, error) {
	return argon2id.ComparePasswordAndHash(password, hash)
}

// ValidatePassword applies the length policy to passwords set through the console or CLI.
// Length counts characters, not bytes.
func ValidatePassword(password string) error {
	switch {
	case len(password) > maxPasswordBytes:
		return ErrPasswordTooLong
	case utf8.RuneCountInString(password) < MinPasswordLength:
		return ErrPasswordTooShort
	}
	return nil
}
