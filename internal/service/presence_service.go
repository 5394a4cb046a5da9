package service

import (
	"context"
	"log/slog"
	"time"

	"workit/internal/middleware"
	"workit/internal/models"
	"workit/internal/repository"
)

// PresenceTracker is the live presence view, backed by sockets and heartbeats.
type PresenceTracker interface {
	Heartbeat(ctx context.Context, userID uint) bool
	Leave(ctx context.Context, userID uint)
	IsOnline(ctx context.Context, userID uint) bool
	GetOnlineUserIDs(ctx context.Context) []uint
}

// PresenceService keeps the users table in step with the tracker and
// broadcasts join/leave transitions.
type PresenceService struct {
	userRepo repository.UserRepository
	tracker  PresenceTracker
	pub      EventPublisher
	now      func() time.Time
}

func NewPresenceService(userRepo repository.UserRepository, tracker PresenceTracker, pub EventPublisher) *PresenceService {
	return &PresenceService{userRepo: userRepo, tracker: tracker, pub: pub, now: systemNow}
}

// Heartbeat refreshes the caller's presence and returns who is online.
func (s *PresenceService) Heartbeat(ctx context.Context, userID uint) ([]uint, error) {
	if err := s.userRepo.SetOnlineStatus(ctx, userID, true, s.now()); err != nil {
		return nil, err
	}
	s.tracker.Heartbeat(ctx, userID)
	return s.Online(ctx), nil
}

// Online returns the ids of users currently online.
func (s *PresenceService) Online(ctx context.Context) []uint {
	ids := s.tracker.GetOnlineUserIDs(ctx)
	if ids == nil {
		ids = []uint{}
	}
	return ids
}

// GoOffline ends the caller's presence on logout.
func (s *PresenceService) GoOffline(ctx context.Context, userID uint) error {
	s.tracker.Leave(ctx, userID)
	if s.tracker.IsOnline(ctx, userID) {
		return nil
	}
	return s.userRepo.SetOnlineStatus(ctx, userID, false, s.now())
}

// HandleOnline is the tracker's online callback.
func (s *PresenceService) HandleOnline(userID uint) {
	ctx := context.Background()
	publish(ctx, s.pub, models.EventPresenceJoin, models.PresencePayload{UserID: userID})
}

// HandleOffline is the tracker's offline callback. It covers logouts, closed
// sockets and heartbeats that lapsed without a logout.
func (s *PresenceService) HandleOffline(userID uint) {
	ctx := context.Background()
	if err := s.userRepo.MarkOffline(ctx, []uint{userID}); err != nil {
		middleware.Logger.Warn("failed to mark user offline",
			slog.Uint64("user_id", uint64(userID)),
			slog.String("error", err.Error()),
		)
	}
	publish(ctx, s.pub, models.EventPresenceLeave, models.PresencePayload{UserID: userID})
}
