package service

import (
	"context"
	"sync"
	"time"

	"workit/internal/models"
)

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	getByIDFn         func(context.Context, uint) (*models.User, error)
	getByUsernameFn   func(context.Context, string) (*models.User, error)
	createFn          func(context.Context, *models.User) error
	setOnlineStatusFn func(context.Context, uint, bool, time.Time) error
	listExceptFn      func(context.Context, uint) ([]models.User, error)
	markOfflineFn     func(context.Context, []uint) error
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getByUsernameFn(ctx, username)
}
func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	return s.createFn(ctx, user)
}
func (s *userRepoStub) SetOnlineStatus(ctx context.Context, id uint, online bool, at time.Time) error {
	return s.setOnlineStatusFn(ctx, id, online, at)
}
func (s *userRepoStub) ListExcept(ctx context.Context, id uint) ([]models.User, error) {
	return s.listExceptFn(ctx, id)
}
func (s *userRepoStub) MarkOffline(ctx context.Context, ids []uint) error {
	return s.markOfflineFn(ctx, ids)
}

func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		getByIDFn: func(_ context.Context, id uint) (*models.User, error) {
			return &models.User{ID: id, Username: "user"}, nil
		},
		getByUsernameFn: func(_ context.Context, _ string) (*models.User, error) {
			return nil, models.NewNotFoundMessage("user not found")
		},
		createFn:          func(_ context.Context, _ *models.User) error { return nil },
		setOnlineStatusFn: func(_ context.Context, _ uint, _ bool, _ time.Time) error { return nil },
		listExceptFn:      func(_ context.Context, _ uint) ([]models.User, error) { return nil, nil },
		markOfflineFn:     func(_ context.Context, _ []uint) error { return nil },
	}
}

// projectRepoStub is a stub for repository.ProjectRepository.
type projectRepoStub struct {
	listByUserFn  func(context.Context, uint) ([]models.Project, error)
	getForOwnerFn func(context.Context, uint, uint) (*models.Project, error)
	createFn      func(context.Context, *models.Project) error
	updateFn      func(context.Context, *models.Project) error
	deleteFn      func(context.Context, uint, uint) error
	togglePaidFn  func(context.Context, uint, uint) (*models.Project, error)
}

func (s *projectRepoStub) ListByUser(ctx context.Context, userID uint) ([]models.Project, error) {
	return s.listByUserFn(ctx, userID)
}
func (s *projectRepoStub) GetForOwner(ctx context.Context, id, userID uint) (*models.Project, error) {
	return s.getForOwnerFn(ctx, id, userID)
}
func (s *projectRepoStub) Create(ctx context.Context, p *models.Project) error {
	return s.createFn(ctx, p)
}
func (s *projectRepoStub) Update(ctx context.Context, p *models.Project) error {
	return s.updateFn(ctx, p)
}
func (s *projectRepoStub) Delete(ctx context.Context, id, userID uint) error {
	return s.deleteFn(ctx, id, userID)
}
func (s *projectRepoStub) TogglePaid(ctx context.Context, id, userID uint) (*models.Project, error) {
	return s.togglePaidFn(ctx, id, userID)
}

func noopProjectRepo() *projectRepoStub {
	return &projectRepoStub{
		listByUserFn: func(_ context.Context, _ uint) ([]models.Project, error) { return nil, nil },
		getForOwnerFn: func(_ context.Context, id, userID uint) (*models.Project, error) {
			return &models.Project{ID: id, UserID: userID}, nil
		},
		createFn: func(_ context.Context, _ *models.Project) error { return nil },
		updateFn: func(_ context.Context, _ *models.Project) error { return nil },
		deleteFn: func(_ context.Context, _, _ uint) error { return nil },
		togglePaidFn: func(_ context.Context, id, userID uint) (*models.Project, error) {
			return &models.Project{ID: id, UserID: userID, IsPaid: true}, nil
		},
	}
}

// messageRepoStub is a stub for repository.MessageRepository.
type messageRepoStub struct {
	conversationFn func(context.Context, uint, uint) ([]models.Message, error)
	createFn       func(context.Context, *models.Message) error
	markReadFn     func(context.Context, uint, uint) ([]models.Message, error)
	unreadCountsFn func(context.Context, uint) (map[uint]int64, error)
}

func (s *messageRepoStub) Conversation(ctx context.Context, a, b uint) ([]models.Message, error) {
	return s.conversationFn(ctx, a, b)
}
func (s *messageRepoStub) Create(ctx context.Context, m *models.Message) error {
	return s.createFn(ctx, m)
}
func (s *messageRepoStub) MarkRead(ctx context.Context, reader, peer uint) ([]models.Message, error) {
	return s.markReadFn(ctx, reader, peer)
}
func (s *messageRepoStub) UnreadCounts(ctx context.Context, userID uint) (map[uint]int64, error) {
	return s.unreadCountsFn(ctx, userID)
}

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	listFn            func(context.Context) ([]models.Post, error)
	getByIDFn         func(context.Context, uint) (*models.Post, error)
	likedPostIDsFn    func(context.Context, uint, []uint) ([]uint, error)
	createFn          func(context.Context, *models.Post) error
	toggleLikeFn      func(context.Context, uint, uint) (*models.Post, bool, error)
	incrementSharesFn func(context.Context, uint) (*models.Post, error)
}

func (s *postRepoStub) List(ctx context.Context) ([]models.Post, error) {
	return s.listFn(ctx)
}
func (s *postRepoStub) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id)
}
func (s *postRepoStub) LikedPostIDs(ctx context.Context, userID uint, ids []uint) ([]uint, error) {
	return s.likedPostIDsFn(ctx, userID, ids)
}
func (s *postRepoStub) Create(ctx context.Context, p *models.Post) error {
	return s.createFn(ctx, p)
}
func (s *postRepoStub) ToggleLike(ctx context.Context, postID, userID uint) (*models.Post, bool, error) {
	return s.toggleLikeFn(ctx, postID, userID)
}
func (s *postRepoStub) IncrementShares(ctx context.Context, postID uint) (*models.Post, error) {
	return s.incrementSharesFn(ctx, postID)
}

// commentRepoStub is a stub for repository.CommentRepository.
type commentRepoStub struct {
	createFn     func(context.Context, *models.Comment) (*models.Post, error)
	listByPostFn func(context.Context, uint) ([]models.Comment, error)
}

func (s *commentRepoStub) Create(ctx context.Context, c *models.Comment) (*models.Post, error) {
	return s.createFn(ctx, c)
}
func (s *commentRepoStub) ListByPost(ctx context.Context, postID uint) ([]models.Comment, error) {
	return s.listByPostFn(ctx, postID)
}

type publishedEvent struct {
	Type    string
	Payload interface{}
	UserIDs []uint
}

// recordingPublisher captures events instead of sending them.
type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) PublishEvent(_ context.Context, eventType string, payload interface{}, userIDs ...uint) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Type: eventType, Payload: payload, UserIDs: userIDs})
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// trackerStub is a stub for PresenceTracker.
type trackerStub struct {
	online map[uint]bool
	left   []uint
	local  map[uint]bool
}

func newTrackerStub() *trackerStub {
	return &trackerStub{online: map[uint]bool{}, local: map[uint]bool{}}
}

func (t *trackerStub) Heartbeat(_ context.Context, userID uint) bool {
	was := t.online[userID]
	t.online[userID] = true
	return !was
}
func (t *trackerStub) Leave(_ context.Context, userID uint) {
	t.left = append(t.left, userID)
	if !t.local[userID] {
		delete(t.online, userID)
	}
}
func (t *trackerStub) IsOnline(_ context.Context, userID uint) bool {
	return t.online[userID]
}
func (t *trackerStub) GetOnlineUserIDs(_ context.Context) []uint {
	var ids []uint
	for id := range t.online {
		ids = append(ids, id)
	}
	return ids
}
