package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/arklight/photo_restoration/internal/auth"
	"github.com/arklight/photo_restoration/internal/hash"
	"github.com/arklight/photo_restoration/internal/models"
	"github.com/arklight/photo_restoration/internal/revocation"
)

type UserHandler struct {
	DB      *gorm.DB
	Revoked *revocation.Store
	Events  EventPublisher
}

type userCreateReq struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

type userUpdateReq struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
}

func validUsername(s string) bool { return len(s) >= 2 && len(s) <= 20 }
func validPassword(s string) bool { return len(s) >= 8 && len(s) <= 32 }

func (h *UserHandler) CreateUser(c echo.Context) error {
	var req userCreateReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Invalid request body")
	}
	if req.Username == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "username and password are required")
	}
	if !validUsername(req.Username) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "username must be 2-20 characters")
	}
	if !validPassword(req.Password) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "password must be 8-32 characters")
	}

	ctx := c.Request().Context()

	var existing models.User
	err := h.DB.WithContext(ctx).Where("username = ?", req.Username).First(&existing).Error
	if err == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "User already exists")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	var role models.Role
	if err := h.DB.WithContext(ctx).Where("name = ?", "user").First(&role).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	user := models.User{
		Username:     req.Username,
		PasswordHash: pwHash,
		RoleID:       role.ID,
		Role:         role,
	}
	if err := h.DB.WithContext(ctx).Create(&user).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	publishEvent(c, h.Events, userEventsTopic, user.ID.String(), map[string]interface{}{
		"type":     "user_registered",
		"user_id":  user.ID,
		"username": user.Username,
	})

	return c.JSON(http.StatusCreated, user)
}

func (h *UserHandler) GetUsers(c echo.Context) error {
	limit, err := limitParam(c)
	if err != nil {
		return err
	}

	var users []models.User
	if err := h.DB.WithContext(c.Request().Context()).
		Preload("Role").Order("created_at").Limit(limit).Find(&users).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}
	return c.JSON(http.StatusOK, users)
}

func (h *UserHandler) Me(c echo.Context) error {
	sess := auth.SessionFrom(c)
	if sess == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Missing access token")
	}
	return c.JSON(http.StatusOK, sess.User)
}

func (h *UserHandler) GetUser(c echo.Context) error {
	user, err := h.findByUsername(c, c.Param("username"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

func (h *UserHandler) PatchUser(c echo.Context) error {
	sess := auth.SessionFrom(c)
	user, err := h.findByUsername(c, c.Param("username"))
	if err != nil {
		return err
	}
	if user.ID != sess.User.ID {
		// Users may only modify themselves.
		return echo.NewHTTPError(http.StatusMethodNotAllowed, "Method Not Allowed")
	}

	var req userUpdateReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Invalid request body")
	}
	if req.Username == nil && req.Password == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Nothing to update")
	}

	updates := map[string]interface{}{}
	if req.Username != nil {
		if !validUsername(*req.Username) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "username must be 2-20 characters")
		}
		updates["username"] = *req.Username
	}
	if req.Password != nil {
		if !validPassword(*req.Password) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "password must be 8-32 characters")
		}
		pwHash, err := hash.HashPassword(*req.Password)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err)
		}
		updates["password_hash"] = pwHash
	}

	ctx := c.Request().Context()
	if err := h.DB.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}
	if err := h.DB.WithContext(ctx).Preload("Role").First(user, "id = ?", user.ID).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	return c.JSON(http.StatusOK, user)
}

// DeleteUser removes the caller's own account. The current token is revoked
// for its remaining lifetime and the cookie transport is cleared, since the
// principal it names no longer exists.
func (h *UserHandler) DeleteUser(c echo.Context) error {
	sess := auth.SessionFrom(c)
	user, err := h.findByUsername(c, c.Param("username"))
	if err != nil {
		return err
	}
	if user.ID != sess.User.ID {
		return echo.NewHTTPError(http.StatusMethodNotAllowed, "Method Not Allowed")
	}

	ctx := c.Request().Context()
	if err := h.Revoked.MarkRevoked(ctx, sess.JTI, sess.Claims.Remaining(time.Now())); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}
	auth.ClearCookies(c)

	if err := h.DB.WithContext(ctx).Where("user_id = ?", user.ID).Delete(&models.Image{}).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}
	if err := h.DB.WithContext(ctx).Delete(user).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *UserHandler) findByUsername(c echo.Context, username string) (*models.User, error) {
	var user models.User
	err := h.DB.WithContext(c.Request().Context()).
		Preload("Role").Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "User not found")
	}
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err)
	}
	return &user, nil
}

// limitParam parses an optional positive ?limit= query. -1 means no limit,
// which gorm treats as "no LIMIT clause".
func limitParam(c echo.Context) (int, error) {
	raw := c.QueryParam("limit")
	if raw == "" {
		return -1, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, echo.NewHTTPError(http.StatusUnprocessableEntity, "limit must be a positive integer")
	}
	return n, nil
}
