package httpserver

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/arklight/photo_restoration/internal/auth"
	"github.com/arklight/photo_restoration/internal/handlers"
)

type Deps struct {
	Auth         *auth.Authenticator
	AuthHandler  *handlers.AuthHandler
	UserHandler  *handlers.UserHandler
	RoleHandler  *handlers.RoleHandler
	ImageHandler *handlers.ImageHandler
	StaticPath   string
}

func Register(e *echo.Echo, d *Deps) {
	e.HTTPErrorHandler = DetailErrorHandler

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	if d.StaticPath != "" {
		e.Static("/static", d.StaticPath)
	}

	api := e.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/login", d.AuthHandler.Login)
	authGroup.POST("/refresh", d.AuthHandler.Refresh, d.Auth.RequireRefresh)
	authGroup.DELETE("/logout", d.AuthHandler.Logout, d.Auth.RequireAccess)

	users := api.Group("/users")
	users.POST("", d.UserHandler.CreateUser)
	users.GET("", d.UserHandler.GetUsers)
	users.GET("/me", d.UserHandler.Me, d.Auth.RequireAccess)
	users.GET("/:username", d.UserHandler.GetUser, d.Auth.RequireAccess)
	users.PATCH("/:username", d.UserHandler.PatchUser, d.Auth.RequireAccess)
	users.DELETE("/:username", d.UserHandler.DeleteUser, d.Auth.RequireAccess)

	api.GET("/roles", d.RoleHandler.GetRoles, d.Auth.RequireAccess)

	images := api.Group("/images", d.Auth.RequireAccess)
	images.POST("/restore", d.ImageHandler.Restore)
	images.GET("", d.ImageHandler.ListImages)
	images.GET("/search", d.ImageHandler.Search)
}

// DetailErrorHandler renders every HTTP error as {"detail": ...} so auth
// rejections and validation failures share one machine-readable shape.
func DetailErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	detail := "Internal Server Error"
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		switch m := he.Message.(type) {
		case string:
			detail = m
		case error:
			detail = m.Error()
		default:
			detail = fmt.Sprintf("%v", m)
		}
		if code == http.StatusInternalServerError {
			// Internal details stay in the logs, not in the response.
			c.Logger().Error(err)
			detail = "Internal Server Error"
		}
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, echo.Map{"detail": detail})
}
