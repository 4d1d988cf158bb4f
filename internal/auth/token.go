package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"
)

const tokenIssuer = "stackspend"

// IssuedToken is a signed API bearer token.
type IssuedToken struct {
	Value     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Role      string    `json:"role"`
}

// TokenIssuer signs and verifies HS256 API tokens carrying the user id, email and role.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if len(secret) < 16 {
		return nil, errors.New("API token secret must be at least 16 bytes")
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// WithClock returns a copy of the issuer using now as its time source.
func (i *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	cp := *i
	cp.now = now
	return &cp
}

func (i *TokenIssuer) Issue(p Principal) (IssuedToken, error) {
	now := i.now().UTC().Truncate(time.Second)
	exp := now.Add(i.ttl)
	tok, err := jwt.NewBuilder().
		Issuer(tokenIssuer).
		Subject(strconv.FormatInt(p.UserID, 10)).
		JwtID(uuid.NewString()).
		IssuedAt(now).
		Expiration(exp).
		Claim("email", p.Email).
		Claim("role", p.Role).
		Build()
	if err != nil {
		return IssuedToken{}, fmt.Errorf("build token: %w", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256(), i.secret))
	if err != nil {
		return IssuedToken{}, fmt.Errorf("sign token: %w", err)
	}
	return IssuedToken{Value: string(signed), ExpiresAt: exp, Role: p.Role}, nil
}

// Verify checks the signature, issuer and expiry and returns the token's principal.
func (i *TokenIssuer) Verify(raw string) (Principal, error) {
	tok, err := jwt.Parse([]byte(raw),
		jwt.WithKey(jwa.HS256(), i.secret),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithClock(jwt.ClockFunc(i.now)),
	)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	sub, ok := tok.Subject()
	if !ok {
		return Principal{}, ErrInvalidToken
	}
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || id <= 0 {
		return Principal{}, ErrInvalidToken
	}
	var email, role string
	if err := tok.Get("email", &email); err != nil {
		return Principal{}, ErrInvalidToken
	}
	if err := tok.Get("role", &role); err != nil || !ValidRole(role) {
		return Principal{}, ErrInvalidToken
	}
	return Principal{UserID: id, Email: email, Role: role, Method: MethodToken}, nil
}
