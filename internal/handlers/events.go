package handlers

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/arklight/photo_restoration/pkg/logging"
)

const (
	userEventsTopic  = "user_events"
	imageEventsTopic = "image_events"
)

type EventPublisher interface {
	PublishEvent(ctx context.Context, topic, key string, event interface{}) error
}

// publishEvent is best-effort: a broker outage must not fail the request.
func publishEvent(c echo.Context, p EventPublisher, topic, key string, event map[string]interface{}) {
	if p == nil {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := p.PublishEvent(ctx, topic, key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "topic", topic, "error", err)
	}
}
