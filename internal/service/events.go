// Package service holds the business rules between HTTP handlers and repositories.
package service

import (
	"context"
	"log/slog"
	"time"

	"workit/internal/middleware"
)

// EventPublisher delivers push events to the given users, or to every
// connected user when none are named.
type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, payload interface{}, userIDs ...uint) error
}

// publish sends an event and logs failures. Push delivery never fails the
// request that caused it.
func publish(ctx context.Context, pub EventPublisher, eventType string, payload interface{}, userIDs ...uint) {
	if pub == nil {
		return
	}
	if err := pub.PublishEvent(ctx, eventType, payload, userIDs...); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish event",
			slog.String("event", eventType),
			slog.String("error", err.Error()),
		)
	}
}

func systemNow() time.Time {
	return time.Now()
}
