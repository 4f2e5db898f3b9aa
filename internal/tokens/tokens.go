package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

var (
	ErrMalformed        = errors.New("token is malformed")
	ErrInvalidSignature = errors.New("token signature is invalid")
	ErrExpired          = errors.New("token has expired")
	ErrWrongType        = errors.New("wrong token type")
)

type UserClaims struct {
	ID uuid.UUID `json:"id"`
}

type Claims struct {
	TokenType  string     `json:"type"`
	CSRF       string     `json:"csrf"`
	UserClaims UserClaims `json:"user_claims"`
	jwt.RegisteredClaims
}

// Remaining reports how long the token is still valid, zero if already past
// its expiry. Used as the denylist TTL so revocation entries never outlive
// the token they block.
func (c *Claims) Remaining(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	d := c.ExpiresAt.Time.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Codec signs and verifies session tokens with a process-wide HS256 secret.
type Codec struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func (cd *Codec) IssueAccess(subject string, uc UserClaims) (string, *Claims, error) {
	return cd.issue(subject, uc, TypeAccess, cd.AccessTTL)
}

func (cd *Codec) IssueRefresh(subject string, uc UserClaims) (string, *Claims, error) {
	return cd.issue(subject, uc, TypeRefresh, cd.RefreshTTL)
}

func (cd *Codec) issue(subject string, uc UserClaims, tokenType string, ttl time.Duration) (string, *Claims, error) {
	now := time.Now()
	claims := &Claims{
		TokenType:  tokenType,
		CSRF:       uuid.NewString(),
		UserClaims: uc,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(cd.Secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return signed, claims, nil
}

// Decode verifies signature, expiry and token type.
func (cd *Codec) Decode(raw, wantType string) (*Claims, error) {
	return cd.decode(raw, wantType)
}

// DecodeStale verifies signature and type but ignores expiry. Refresh uses it
// to read the jti out of an already-expired access token before revoking it.
func (cd *Codec) DecodeStale(raw, wantType string) (*Claims, error) {
	return cd.decode(raw, wantType, jwt.WithoutClaimsValidation())
}

func (cd *Codec) decode(raw, wantType string, opts ...jwt.ParserOption) (*Claims, error) {
	claims := &Claims{}
	t, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return cd.Secret, nil
	}, opts...)

	switch {
	case err == nil && t.Valid:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, ErrInvalidSignature
	default:
		return nil, ErrMalformed
	}

	if claims.TokenType != wantType {
		return nil, ErrWrongType
	}
	return claims, nil
}
