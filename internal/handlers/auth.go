package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/arklight/photo_restoration/internal/auth"
	"github.com/arklight/photo_restoration/internal/hash"
	"github.com/arklight/photo_restoration/internal/models"
	"github.com/arklight/photo_restoration/internal/revocation"
	"github.com/arklight/photo_restoration/internal/tokens"
)

type AuthHandler struct {
	DB      *gorm.DB
	Codec   *tokens.Codec
	Revoked *revocation.Store
	Events  EventPublisher
}

type credentialsReq struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Invalid request body")
	}
	if req.Username == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "username and password are required")
	}

	ctx := c.Request().Context()

	var user models.User
	err := h.DB.WithContext(ctx).Where("username = ?", req.Username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !hash.CheckPassword(user.PasswordHash, req.Password)) {
		// One message for both cases so usernames cannot be enumerated.
		return echo.NewHTTPError(http.StatusUnauthorized, "Bad username or password")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	userClaims := tokens.UserClaims{ID: user.ID}
	accessToken, accessClaims, err := h.Codec.IssueAccess(user.Username, userClaims)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}
	refreshToken, refreshClaims, err := h.Codec.IssueRefresh(user.Username, userClaims)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	auth.SetAccessCookies(c, accessToken, accessClaims)
	auth.SetRefreshCookies(c, refreshToken, refreshClaims)

	publishEvent(c, h.Events, userEventsTopic, user.ID.String(), map[string]interface{}{
		"type":     "user_logged_in",
		"user_id":  user.ID,
		"username": user.Username,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
	})
}

// Refresh issues a new access token for an authenticated refresh session and
// revokes the tokens it supersedes: the refresh token just used and, in
// cookie mode, the previous access token.
func (h *AuthHandler) Refresh(c echo.Context) error {
	sess := auth.SessionFrom(c)
	if sess == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Missing refresh token")
	}

	ctx := c.Request().Context()
	now := time.Now()

	accessToken, accessClaims, err := h.Codec.IssueAccess(sess.User.Username, sess.Claims.UserClaims)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	if err := h.Revoked.MarkRevoked(ctx, sess.JTI, sess.Claims.Remaining(now)); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}
	if ck, cerr := c.Cookie(auth.AccessCookie); cerr == nil && ck.Value != "" {
		// The old access cookie may already be expired; a stale decode is
		// enough to learn its jti.
		if old, derr := h.Codec.DecodeStale(ck.Value, tokens.TypeAccess); derr == nil {
			if err := h.Revoked.MarkRevoked(ctx, old.ID, old.Remaining(now)); err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, err)
			}
		}
	}

	auth.SetAccessCookies(c, accessToken, accessClaims)

	return c.JSON(http.StatusOK, echo.Map{
		"access_token": accessToken,
		"success":      "The token has been refreshed",
	})
}

func (h *AuthHandler) Logout(c echo.Context) error {
	sess := auth.SessionFrom(c)
	if sess == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Missing access token")
	}

	ctx := c.Request().Context()
	if err := h.Revoked.MarkRevoked(ctx, sess.JTI, sess.Claims.Remaining(time.Now())); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	auth.ClearCookies(c)

	return c.JSON(http.StatusOK, echo.Map{"success": "Successfully logout"})
}
