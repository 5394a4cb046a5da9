package server

import (
	"context"
	"fmt"

	"workit/internal/models"
	"workit/internal/notifications"
	"workit/internal/observability"
	"workit/internal/service"
)

// realtimePublisher delivers push events. With Redis the notifier fans them
// out to every instance; without it they go straight to this instance's hub.
type realtimePublisher struct {
	hub      *notifications.Hub
	notifier *notifications.Notifier
	viaRedis bool
}

var _ service.EventPublisher = (*realtimePublisher)(nil)

func newRealtimePublisher(hub *notifications.Hub, notifier *notifications.Notifier, viaRedis bool) *realtimePublisher {
	return &realtimePublisher{hub: hub, notifier: notifier, viaRedis: viaRedis}
}

// PublishEvent sends eventType to userIDs, or to everyone when none are given.
func (p *realtimePublisher) PublishEvent(ctx context.Context, eventType string, payload interface{}, userIDs ...uint) error {
	if p.viaRedis {
		return p.notifier.PublishEvent(ctx, eventType, payload, userIDs...)
	}

	raw, err := models.NewEvent(eventType, payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	observability.RealtimeEventsTotal.WithLabelValues(eventType).Inc()
	if len(userIDs) == 0 {
		p.hub.BroadcastAll(raw)
		return nil
	}
	seen := make(map[uint]struct{}, len(userIDs))
	for _, id := range userIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		p.hub.SendToUser(id, raw)
	}
	return nil
}

// presenceSnapshot is the presence_sync event sent to a socket on connect.
func presenceSnapshot(online []uint) ([]byte, error) {
	if online == nil {
		online = []uint{}
	}
	return models.NewEvent(models.EventPresenceSync, models.PresenceSyncPayload{UserIDs: online})
}
