package handlers

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/arklight/photo_restoration/internal/auth"
	"github.com/arklight/photo_restoration/internal/imaging"
	"github.com/arklight/photo_restoration/internal/models"
	"github.com/arklight/photo_restoration/internal/service/search"
	"github.com/arklight/photo_restoration/internal/util"
	"github.com/arklight/photo_restoration/pkg/logging"
)

type ImageHandler struct {
	DB         *gorm.DB
	Processor  imaging.Processor
	StaticPath string
	ES         *elasticsearch.Client
	Index      string
	Events     EventPublisher
}

// Restore accepts a multipart upload, runs the external restoration command
// over it and records the result, served back from the static dir.
func (h *ImageHandler) Restore(c echo.Context) error {
	sess := auth.SessionFrom(c)

	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing file")
	}

	src, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}
	defer src.Close()

	hashed := imaging.HashFileName(fh.Filename) + filepath.Ext(fh.Filename)
	uploadDir := filepath.Join(h.StaticPath, "uploads")
	restoredDir := filepath.Join(h.StaticPath, "restored")
	for _, dir := range []string{uploadDir, restoredDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err)
		}
	}

	uploadPath := filepath.Join(uploadDir, hashed)
	out, err := os.Create(uploadPath)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}
	if err := out.Close(); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	ctx := c.Request().Context()
	restoredPath := filepath.Join(restoredDir, hashed)
	if err := h.Processor.Restore(ctx, uploadPath, restoredPath); err != nil {
		logging.FromContext(ctx).Error("restoration failed", "file", fh.Filename, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Restoration failed")
	}

	fi, err := os.Stat(restoredPath)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	img := models.Image{
		Name:     fh.Filename,
		Size:     fi.Size(),
		Location: "/static/restored/" + hashed,
		UserID:   sess.User.ID,
	}
	if err := h.DB.WithContext(ctx).Create(&img).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}

	if h.ES != nil {
		if err := search.IndexImage(ctx, h.ES, h.Index, &img); err != nil {
			logging.FromContext(ctx).Error("image index error", "image_id", img.ID, "error", err)
		}
	}

	publishEvent(c, h.Events, imageEventsTopic, img.ID.String(), map[string]interface{}{
		"type":     "image_restored",
		"image_id": img.ID,
		"user_id":  sess.User.ID,
		"name":     img.Name,
	})

	return c.JSON(http.StatusCreated, img)
}

func (h *ImageHandler) ListImages(c echo.Context) error {
	sess := auth.SessionFrom(c)

	var images []models.Image
	if err := h.DB.WithContext(c.Request().Context()).
		Where("user_id = ?", sess.User.ID).Find(&images).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}
	return c.JSON(http.StatusOK, images)
}

func (h *ImageHandler) Search(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query error")
	}
	if h.ES == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Search is not available")
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("size"))
	from, size := util.Paginate(page, size)

	total, images, err := search.Search(c.Request().Context(), h.ES, h.Index, q, from, size)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"total": total, "images": images})
}
