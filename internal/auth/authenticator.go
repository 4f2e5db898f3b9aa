package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/arklight/photo_restoration/internal/models"
	"github.com/arklight/photo_restoration/internal/revocation"
	"github.com/arklight/photo_restoration/internal/tokens"
	"github.com/arklight/photo_restoration/pkg/logging"
)

const sessionKey = "auth_session"

// Session is the immutable result of a successful validation: the live user
// row plus the claims of the token that authenticated the request. Claims are
// never trusted for authorization on their own; User is re-resolved from the
// store on every request.
type Session struct {
	User       *models.User
	Claims     *tokens.Claims
	JTI        string
	FromCookie bool
}

type Authenticator struct {
	Codec   *tokens.Codec
	Revoked *revocation.Store
	DB      *gorm.DB
}

// RequireAccess validates an access token and puts the Session into the echo
// context. Rejections surface as 401 errors rendered with a "detail" body.
func (a *Authenticator) RequireAccess(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, err := a.Authenticate(c, tokens.TypeAccess)
		if err != nil {
			return err
		}
		c.Set(sessionKey, sess)
		return next(c)
	}
}

func (a *Authenticator) RequireRefresh(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, err := a.Authenticate(c, tokens.TypeRefresh)
		if err != nil {
			return err
		}
		c.Set(sessionKey, sess)
		return next(c)
	}
}

func SessionFrom(c echo.Context) *Session {
	if sess, ok := c.Get(sessionKey).(*Session); ok {
		return sess
	}
	return nil
}

// Authenticate runs the per-request validation state machine: extract token,
// verify signature/expiry/type, check the denylist, enforce CSRF for the
// cookie transport, then resolve the live user.
func (a *Authenticator) Authenticate(c echo.Context, wantType string) (*Session, error) {
	raw, fromCookie, found := extractToken(c, wantType)
	if !found {
		return nil, unauthorized(missingDetail(wantType))
	}

	claims, err := a.Codec.Decode(raw, wantType)
	if err != nil {
		return nil, unauthorized(decodeDetail(err, wantType))
	}

	ctx := c.Request().Context()
	revoked, err := a.Revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		// Fail closed: an unreachable store must never let a possibly
		// revoked token through.
		logging.FromContext(ctx).Error("revocation check failed", "error", err)
		return nil, unauthorized("Token revocation check failed")
	}
	if revoked {
		return nil, unauthorized("Token has been revoked")
	}

	if fromCookie {
		provided := c.Request().Header.Get(CSRFHeader)
		if provided == "" {
			return nil, unauthorized("Missing CSRF Token")
		}
		if !secureCompare(claims.CSRF, provided) {
			return nil, unauthorized("CSRF double submit tokens do not match")
		}
	}

	var user models.User
	if err := a.DB.WithContext(ctx).Preload("Role").
		Where("id = ?", claims.UserClaims.ID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, unauthorized("Invalid authentication credentials")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	return &Session{
		User:       &user,
		Claims:     claims,
		JTI:        claims.ID,
		FromCookie: fromCookie,
	}, nil
}

// extractToken prefers the bearer header, then falls back to the cookie
// matching the required token type.
func extractToken(c echo.Context, wantType string) (raw string, fromCookie, found bool) {
	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer "), false, true
	}

	name := AccessCookie
	if wantType == tokens.TypeRefresh {
		name = RefreshCookie
	}
	cookie, err := c.Cookie(name)
	if err != nil || cookie.Value == "" {
		return "", false, false
	}
	return cookie.Value, true, true
}

func missingDetail(wantType string) string {
	if wantType == tokens.TypeRefresh {
		return "Missing refresh token"
	}
	return "Missing access token"
}

func decodeDetail(err error, wantType string) string {
	switch {
	case errors.Is(err, tokens.ErrExpired):
		return "Token has expired"
	case errors.Is(err, tokens.ErrInvalidSignature):
		return "Signature verification failed"
	case errors.Is(err, tokens.ErrWrongType):
		if wantType == tokens.TypeRefresh {
			return "Only refresh tokens are allowed"
		}
		return "Only access tokens are allowed"
	default:
		return "Invalid token"
	}
}

func unauthorized(detail string) error {
	return echo.NewHTTPError(http.StatusUnauthorized, detail)
}

func secureCompare(a, b string) bool {
	if len(a) == 0 || len(a) != len(b) {
		return false
	}
	var v byte
	for i := 0; i < len(a); i++ {
		v |= a[i] ^ b[i]
	}
	return v == 0
}
