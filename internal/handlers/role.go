package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/arklight/photo_restoration/internal/models"
)

type RoleHandler struct {
	DB *gorm.DB
}

func (h *RoleHandler) GetRoles(c echo.Context) error {
	limit, err := limitParam(c)
	if err != nil {
		return err
	}

	var roles []models.Role
	if err := h.DB.WithContext(c.Request().Context()).
		Order("name").Limit(limit).Find(&roles).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}
	return c.JSON(http.StatusOK, roles)
}
