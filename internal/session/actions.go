package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"workit/internal/client"
	"workit/internal/models"
	"workit/internal/viewstate"
)

var (
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrMissingCredentials = errors.New("username and password are required")
	ErrNoConversation     = errors.New("no conversation is open")
)

// Login signs in, starts the session loops and loads the dashboard.
func (s *Session) Login(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return s.alert("", ErrMissingCredentials)
	}
	res, err := s.backend.Login(ctx, username, password)
	if err != nil {
		return s.alert("Login failed: ", err)
	}
	return s.begin(ctx, res.User)
}

// Register creates an account and signs in. A confirmation mismatch is
// rejected locally.
func (s *Session) Register(ctx context.Context, username, password, confirm string) error {
	if password != confirm {
		return s.alert("", ErrPasswordMismatch)
	}
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return s.alert("", ErrMissingCredentials)
	}
	res, err := s.backend.Register(ctx, username, password, confirm)
	if err != nil {
		return s.alert("Registration failed: ", err)
	}
	return s.begin(ctx, res.User)
}

func (s *Session) begin(ctx context.Context, user models.User) error {
	if _, err := s.store.Update(ctx, viewstate.LoggedIn{User: user}); err != nil {
		return err
	}
	s.Start(ctx)
	return errors.Join(s.LoadProjects(ctx), s.LoadUsers(ctx), s.LoadPosts(ctx))
}

// Logout stops the loops, marks the user offline and clears the view state.
// The local session ends even when the API call fails.
func (s *Session) Logout(ctx context.Context) error {
	s.Stop()
	err := s.backend.Logout(ctx)
	if err != nil {
		s.logger.Warn("logout call failed", slog.String("error", err.Error()))
	}
	s.dispatch(viewstate.LoggedOut{})
	return err
}

// Navigate switches screens.
func (s *Session) Navigate(screen viewstate.Screen, projectID uint) {
	s.dispatch(viewstate.Navigate{Screen: screen, ProjectID: projectID})
}

// LoadProjects refreshes the project list and dashboard figures.
func (s *Session) LoadProjects(ctx context.Context) error {
	projects, err := s.backend.ListProjects(ctx)
	if err != nil {
		return s.alert("Failed to load projects: ", err)
	}
	s.dispatch(viewstate.ProjectsLoaded{Projects: projects})
	return s.loadStats(ctx)
}

func (s *Session) loadStats(ctx context.Context) error {
	stats, err := s.backend.DashboardStats(ctx)
	if err != nil {
		return s.alert("Failed to load dashboard: ", err)
	}
	s.dispatch(viewstate.StatsLoaded{Stats: *stats})
	return nil
}

// SetExpenses records the operating expenses typed on the dashboard and
// recomputes the remaining balance. Text that is not a number counts as zero.
// The figure stays on this client and is cleared on logout.
func (s *Session) SetExpenses(raw string) {
	s.dispatch(viewstate.ExpensesSet{Amount: models.ParseAmount(raw).Decimal})
}

// OpenProject fetches a project and shows its detail view. A project that no
// longer exists is dropped from the list.
func (s *Session) OpenProject(ctx context.Context, id uint) error {
	p, err := s.backend.GetProject(ctx, id)
	if err != nil {
		if client.IsNotFound(err) {
			s.dispatch(viewstate.ProjectRemoved{ID: id})
		}
		return s.alert("Failed to open project: ", err)
	}
	s.dispatch(viewstate.ProjectSaved{Project: *p})
	return nil
}

// SaveProject creates a project when id is zero and updates it otherwise,
// then shows the saved project.
func (s *Session) SaveProject(ctx context.Context, id uint, form models.ProjectForm) (*models.Project, error) {
	var (
		p   *models.Project
		err error
	)
	if id == 0 {
		p, err = s.backend.CreateProject(ctx, form)
	} else {
		p, err = s.backend.UpdateProject(ctx, id, form)
	}
	if err != nil {
		return nil, s.alert("Failed to save project: ", err)
	}
	s.dispatch(viewstate.ProjectSaved{Project: *p})
	return p, s.loadStats(ctx)
}

// DeleteProject removes a project, closing its view if it was open.
func (s *Session) DeleteProject(ctx context.Context, id uint) error {
	if err := s.backend.DeleteProject(ctx, id); err != nil {
		return s.alert("Failed to delete project: ", err)
	}
	s.dispatch(viewstate.ProjectRemoved{ID: id})
	return s.loadStats(ctx)
}

// TogglePaid flips a project's paid flag.
func (s *Session) TogglePaid(ctx context.Context, id uint) error {
	p, err := s.backend.TogglePaid(ctx, id)
	if err != nil {
		return s.alert("Failed to update payment status: ", err)
	}
	s.dispatch(viewstate.ProjectUpdated{Project: *p})
	return s.loadStats(ctx)
}

// ExportInvoice downloads a project's invoice PDF into the download
// directory and returns the saved path.
func (s *Session) ExportInvoice(ctx context.Context, projectID uint) (string, error) {
	dl, err := s.backend.InvoicePDF(ctx, projectID)
	if err != nil {
		return "", s.alert("Failed to generate invoice: ", err)
	}
	name := filepath.Base(dl.FileName)
	if name == "." || name == "" || name == string(filepath.Separator) {
		name = fmt.Sprintf("Invoice-%d.pdf", projectID)
	}
	if err := os.MkdirAll(s.downloadDir, 0o755); err != nil {
		return "", s.alert("Failed to save invoice: ", err)
	}
	path := filepath.Join(s.downloadDir, name)
	if err := os.WriteFile(path, dl.Data, 0o644); err != nil {
		return "", s.alert("Failed to save invoice: ", err)
	}
	return path, nil
}

// LoadUsers refreshes the user list, the online set and the unread counts.
func (s *Session) LoadUsers(ctx context.Context) error {
	users, err := s.backend.ListUsers(ctx)
	if err != nil {
		return s.alert("Failed to load users: ", err)
	}
	s.dispatch(viewstate.UsersLoaded{Users: users})

	online, err := s.backend.Online(ctx)
	if err != nil {
		return s.alert("Failed to load online users: ", err)
	}
	s.dispatch(viewstate.OnlineSynced{UserIDs: online})

	unread, err := s.backend.UnreadCounts(ctx)
	if err != nil {
		return s.alert("Failed to load unread messages: ", err)
	}
	s.dispatch(viewstate.UnreadLoaded{Counts: unread})
	return nil
}

// OpenConversation loads the thread with peerID and marks it read.
func (s *Session) OpenConversation(ctx context.Context, peerID uint) error {
	msgs, err := s.backend.Conversation(ctx, peerID)
	if err != nil {
		return s.alert("Failed to load conversation: ", err)
	}
	s.dispatch(viewstate.ConversationOpened{PeerID: peerID, Messages: msgs})
	s.markRead(ctx, peerID)
	return nil
}

// markRead acknowledges the thread with peerID. Failures are logged, not
// alerted.
func (s *Session) markRead(ctx context.Context, peerID uint) {
	read, err := s.backend.MarkRead(ctx, peerID)
	if err != nil {
		s.logger.Warn("marking conversation read failed", slog.Uint64("peer_id", uint64(peerID)), slog.String("error", err.Error()))
		return
	}
	for _, m := range read {
		s.dispatch(viewstate.MessageUpdated{Message: m})
	}
}

// CloseConversation hides the open thread.
func (s *Session) CloseConversation() {
	s.dispatch(viewstate.ConversationClosed{})
}

// SetDraft stores the text being typed in the open thread.
func (s *Session) SetDraft(text string) {
	s.dispatch(viewstate.DraftSet{Text: text})
}

// SendMessage sends the open thread's draft. A blank draft is ignored. The
// draft clears at once and comes back if the send fails.
func (s *Session) SendMessage(ctx context.Context) error {
	st := s.State()
	if st.Conversation == nil {
		return ErrNoConversation
	}
	content := strings.TrimSpace(st.Conversation.Draft)
	if content == "" {
		return nil
	}
	peer := st.Conversation.PeerID

	cmd := viewstate.Optimistic[*models.Message]{
		Apply: func(st *viewstate.State) viewstate.Action {
			if st.Conversation == nil || st.Conversation.PeerID != peer {
				return nil
			}
			draft := st.Conversation.Draft
			st.Conversation.Draft = ""
			return viewstate.Func(func(st *viewstate.State) {
				if st.Conversation != nil && st.Conversation.PeerID == peer && st.Conversation.Draft == "" {
					st.Conversation.Draft = draft
				}
			})
		},
		Remote: func(ctx context.Context) (*models.Message, error) {
			return s.backend.SendMessage(ctx, peer, content)
		},
		Reconcile: func(st *viewstate.State, m *models.Message) {
			viewstate.MessageReceived{Message: *m}.Apply(st)
		},
		Alert: func(err error) string { return "Failed to send message: " + client.Message(err) },
	}
	_, err := cmd.Run(ctx, s.store)
	return err
}

// LoadPosts refreshes the forum feed.
func (s *Session) LoadPosts(ctx context.Context) error {
	posts, err := s.backend.ListPosts(ctx)
	if err != nil {
		return s.alert("Failed to load posts: ", err)
	}
	s.dispatch(viewstate.PostsLoaded{Posts: posts})
	return nil
}

// CreatePost publishes a forum post. Blank content is ignored.
func (s *Session) CreatePost(ctx context.Context, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	p, err := s.backend.CreatePost(ctx, content)
	if err != nil {
		return s.alert("Failed to create post: ", err)
	}
	s.dispatch(viewstate.PostAdded{Post: *p})
	return nil
}

// ToggleLike flips the like on a post at once and settles on the server's
// answer. On failure the previous count and liked flag come back.
func (s *Session) ToggleLike(ctx context.Context, postID uint) error {
	cmd := viewstate.Optimistic[*models.LikeResult]{
		Apply: func(st *viewstate.State) viewstate.Action {
			for i := range st.Posts {
				if st.Posts[i].ID != postID {
					continue
				}
				p := &st.Posts[i]
				likes, liked := p.Likes, p.Liked
				if liked {
					p.Likes = max(p.Likes-1, 0)
				} else {
					p.Likes++
				}
				p.Liked = !liked
				return viewstate.Func(func(st *viewstate.State) {
					for i := range st.Posts {
						if st.Posts[i].ID == postID {
							st.Posts[i].Likes = likes
							st.Posts[i].Liked = liked
						}
					}
				})
			}
			return nil
		},
		Remote: func(ctx context.Context) (*models.LikeResult, error) {
			return s.backend.ToggleLike(ctx, postID)
		},
		Reconcile: func(st *viewstate.State, r *models.LikeResult) {
			viewstate.LikeSettled{Result: *r}.Apply(st)
		},
		Alert: func(err error) string { return "Failed to like post: " + client.Message(err) },
	}
	_, err := cmd.Run(ctx, s.store)
	return err
}

// LoadComments loads a post's comment thread.
func (s *Session) LoadComments(ctx context.Context, postID uint) error {
	comments, err := s.backend.ListComments(ctx, postID)
	if err != nil {
		return s.alert("Failed to load comments: ", err)
	}
	s.dispatch(viewstate.CommentsLoaded{PostID: postID, Comments: comments})
	return nil
}

// AddComment replies to a post. The comment counter moves at once and is
// put back if the call fails. Blank content is ignored.
func (s *Session) AddComment(ctx context.Context, postID uint, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	cmd := viewstate.Optimistic[*models.Comment]{
		Apply: func(st *viewstate.State) viewstate.Action {
			for i := range st.Posts {
				if st.Posts[i].ID == postID {
					st.Posts[i].Comments++
					return viewstate.Func(func(st *viewstate.State) {
						for i := range st.Posts {
							if st.Posts[i].ID == postID && st.Posts[i].Comments > 0 {
								st.Posts[i].Comments--
							}
						}
					})
				}
			}
			return nil
		},
		Remote: func(ctx context.Context) (*models.Comment, error) {
			return s.backend.AddComment(ctx, postID, content)
		},
		Reconcile: func(st *viewstate.State, c *models.Comment) {
			viewstate.CommentAdded{Comment: *c}.Apply(st)
		},
		Alert: func(err error) string { return "Failed to add comment: " + client.Message(err) },
	}
	_, err := cmd.Run(ctx, s.store)
	return err
}

// SharePost renders a share card and walks its fallback chain. The download
// step always has a target that saves into the download directory.
func (s *Session) SharePost(ctx context.Context, postID uint, opts client.ShareOptions) (*client.ShareOutcome, error) {
	card, err := s.backend.SharePost(ctx, postID, opts)
	if err != nil {
		return nil, s.alert("Failed to share post: ", err)
	}
	s.dispatch(viewstate.Func(func(st *viewstate.State) {
		for i := range st.Posts {
			if st.Posts[i].ID == postID {
				st.Posts[i].Shares = card.Shares
			}
		}
	}))

	targets := make(map[string]client.ShareTarget, len(s.shareTargets)+1)
	for method, t := range s.shareTargets {
		targets[method] = t
	}
	if _, ok := targets[client.MethodDownload]; !ok {
		targets[client.MethodDownload] = &client.FileTarget{Dir: s.downloadDir}
	}

	out, err := client.ExecutePlan(ctx, card, targets)
	if err != nil {
		return out, s.alert("Failed to share post: ", err)
	}
	return out, nil
}
