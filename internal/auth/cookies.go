package auth

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/arklight/photo_restoration/internal/tokens"
)

const (
	AccessCookie      = "access_token_cookie"
	RefreshCookie     = "refresh_token_cookie"
	CSRFAccessCookie  = "csrf_access_token"
	CSRFRefreshCookie = "csrf_refresh_token"
	CSRFHeader        = "X-CSRF-Token"
)

func CreateCookie(name, value, path string, expTime time.Time, httpOnly bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  expTime,
		HttpOnly: httpOnly,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

func DeleteCookie(name, path string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

// SetAccessCookies binds an access token to the cookie transport: the token
// itself in an HttpOnly cookie plus its CSRF double-submit value in a cookie
// the frontend is allowed to read.
func SetAccessCookies(c echo.Context, token string, claims *tokens.Claims) {
	exp := claims.ExpiresAt.Time
	c.SetCookie(CreateCookie(AccessCookie, token, "/", exp, true))
	c.SetCookie(CreateCookie(CSRFAccessCookie, claims.CSRF, "/", exp, false))
}

func SetRefreshCookies(c echo.Context, token string, claims *tokens.Claims) {
	exp := claims.ExpiresAt.Time
	c.SetCookie(CreateCookie(RefreshCookie, token, "/", exp, true))
	c.SetCookie(CreateCookie(CSRFRefreshCookie, claims.CSRF, "/", exp, false))
}

// ClearCookies removes every token artifact the cookie transport sets.
func ClearCookies(c echo.Context) {
	c.SetCookie(DeleteCookie(AccessCookie, "/"))
	c.SetCookie(DeleteCookie(RefreshCookie, "/"))
	c.SetCookie(DeleteCookie(CSRFAccessCookie, "/"))
	c.SetCookie(DeleteCookie(CSRFRefreshCookie, "/"))
}
