// Package session drives a signed-in client: it turns user actions into API
// calls and view-state changes, keeps presence alive with one heartbeat loop,
// and feeds push events into the store.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"workit/internal/client"
	"workit/internal/models"
	"workit/internal/viewstate"
)

const (
	DefaultHeartbeatInterval = 15 * time.Second
	DefaultRefreshInterval   = 45 * time.Second
)

// Backend is the API surface a session needs. *client.Client implements it.
type Backend interface {
	Register(ctx context.Context, username, password, confirm string) (*models.AuthResponse, error)
	Login(ctx context.Context, username, password string) (*models.AuthResponse, error)
	Logout(ctx context.Context) error
	ListUsers(ctx context.Context) ([]models.User, error)
	Heartbeat(ctx context.Context) (*client.HeartbeatResult, error)
	Online(ctx context.Context) ([]uint, error)

	ListProjects(ctx context.Context) ([]models.Project, error)
	GetProject(ctx context.Context, id uint) (*models.Project, error)
	CreateProject(ctx context.Context, form models.ProjectForm) (*models.Project, error)
	UpdateProject(ctx context.Context, id uint, form models.ProjectForm) (*models.Project, error)
	DeleteProject(ctx context.Context, id uint) error
	TogglePaid(ctx context.Context, id uint) (*models.Project, error)
	DashboardStats(ctx context.Context) (*models.DashboardStats, error)
	InvoicePDF(ctx context.Context, projectID uint) (*client.Download, error)

	Conversation(ctx context.Context, peerID uint) ([]models.Message, error)
	SendMessage(ctx context.Context, receiverID uint, content string) (*models.Message, error)
	MarkRead(ctx context.Context, peerID uint) ([]models.Message, error)
	UnreadCounts(ctx context.Context) (map[uint]int64, error)

	ListPosts(ctx context.Context) ([]models.PostView, error)
	CreatePost(ctx context.Context, content string) (*models.PostView, error)
	ToggleLike(ctx context.Context, postID uint) (*models.LikeResult, error)
	ListComments(ctx context.Context, postID uint) ([]models.Comment, error)
	AddComment(ctx context.Context, postID uint, content string) (*models.Comment, error)
	SharePost(ctx context.Context, postID uint, opts client.ShareOptions) (*client.ShareCard, error)

	Subscribe(ctx context.Context) (client.EventStream, error)
}

var _ Backend = (*client.Client)(nil)

type ticker interface {
	Chan() <-chan time.Time
	Stop()
}

type timeTicker struct{ *time.Ticker }

func (t timeTicker) Chan() <-chan time.Time { return t.C }

func newTimeTicker(d time.Duration) ticker { return timeTicker{time.NewTicker(d)} }

// Session is one user's client session.
type Session struct {
	backend Backend
	store   *viewstate.Store
	logger  *slog.Logger

	heartbeatInterval time.Duration
	refreshInterval   time.Duration
	downloadDir       string
	shareTargets      map[string]client.ShareTarget
	newTicker         func(time.Duration) ticker

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Session.
type Option func(*Session)

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithIntervals overrides the heartbeat and reconciliation periods.
func WithIntervals(heartbeat, refresh time.Duration) Option {
	return func(s *Session) {
		if heartbeat > 0 {
			s.heartbeatInterval = heartbeat
		}
		if refresh > 0 {
			s.refreshInterval = refresh
		}
	}
}

// WithDownloadDir sets where invoices and share cards are saved.
func WithDownloadDir(dir string) Option {
	return func(s *Session) { s.downloadDir = dir }
}

// WithShareTarget registers how the device performs one share method.
func WithShareTarget(method string, target client.ShareTarget) Option {
	return func(s *Session) { s.shareTargets[method] = target }
}

// New creates a logged-out session backed by b.
func New(b Backend, opts ...Option) *Session {
	s := &Session{
		backend:           b,
		store:             viewstate.NewStore(viewstate.NewState()),
		logger:            slog.Default(),
		heartbeatInterval: DefaultHeartbeatInterval,
		refreshInterval:   DefaultRefreshInterval,
		downloadDir:       ".",
		shareTargets:      map[string]client.ShareTarget{},
		newTicker:         newTimeTicker,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store exposes the view state for rendering.
func (s *Session) Store() *viewstate.Store { return s.store }

// State is a snapshot of the current view state.
func (s *Session) State() viewstate.State { return s.store.Snapshot() }

// Start launches the heartbeat, reconciliation and push-feed loops. Calling it
// again replaces the running loops.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	heartbeat := s.newTicker(s.heartbeatInterval)
	refresh := s.newTicker(s.refreshInterval)
	resubscribe := make(chan struct{}, 1)

	s.wg.Add(3)
	go s.heartbeatLoop(loopCtx, heartbeat)
	go s.refreshLoop(loopCtx, refresh, resubscribe)
	go s.streamLoop(loopCtx, resubscribe)

	s.logger.Info("session loops started",
		slog.Duration("heartbeat", s.heartbeatInterval),
		slog.Duration("refresh", s.refreshInterval))
}

// Stop ends the loops and the push feed. It does not log the user out.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Session) stopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.cancel = nil
}

// Close logs out if needed and releases the store. Safe to call twice.
func (s *Session) Close(ctx context.Context) {
	if s.State().User != nil {
		_ = s.Logout(ctx)
	} else {
		s.Stop()
	}
	s.store.Close()
}

func (s *Session) heartbeatLoop(ctx context.Context, t ticker) {
	defer s.wg.Done()
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.Chan():
			s.heartbeat(ctx)
		}
	}
}

func (s *Session) heartbeat(ctx context.Context) {
	res, err := s.backend.Heartbeat(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("heartbeat failed", slog.String("error", err.Error()))
		}
		return
	}
	s.dispatch(viewstate.OnlineSynced{UserIDs: res.UserIDs})
}

func (s *Session) refreshLoop(ctx context.Context, t ticker, resubscribe chan<- struct{}) {
	defer s.wg.Done()
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.Chan():
			s.refreshPresence(ctx)
			select {
			case resubscribe <- struct{}{}:
			default:
			}
		}
	}
}

// refreshPresence re-fetches the user list and online set to repair anything
// the push feed missed.
func (s *Session) refreshPresence(ctx context.Context) {
	users, err := s.backend.ListUsers(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("refreshing users failed", slog.String("error", err.Error()))
		}
		return
	}
	s.dispatch(viewstate.UsersLoaded{Users: users})

	online, err := s.backend.Online(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("refreshing online users failed", slog.String("error", err.Error()))
		}
		return
	}
	s.dispatch(viewstate.OnlineSynced{UserIDs: online})
}

// streamLoop keeps one push feed open. After the feed ends it waits for the
// next reconciliation tick before reconnecting.
func (s *Session) streamLoop(ctx context.Context, resubscribe <-chan struct{}) {
	defer s.wg.Done()
	for {
		stream, err := s.backend.Subscribe(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Warn("push feed unavailable", slog.String("error", err.Error()))
			}
		} else {
			s.consume(ctx, stream)
		}

		select {
		case <-ctx.Done():
			return
		case <-resubscribe:
		}
	}
}

func (s *Session) consume(ctx context.Context, stream client.EventStream) {
	defer stream.Close()
	events := stream.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.handleEvent(ctx, ev)
		}
	}
}

func (s *Session) dispatch(a viewstate.Action) {
	if err := s.store.Dispatch(a); err != nil {
		s.logger.Debug("dropping view update", slog.String("error", err.Error()))
	}
}

// alert shows err to the user and returns it.
func (s *Session) alert(prefix string, err error) error {
	s.dispatch(viewstate.AlertRaised{Message: prefix + client.Message(err)})
	return err
}
