package viewstate

import (
	"workit/internal/models"

	"github.com/shopspring/decimal"
)

// Action is one state transition. Apply runs on the store goroutine only.
type Action interface {
	Apply(s *State)
}

// Func adapts a closure to Action.
type Func func(s *State)

func (f Func) Apply(s *State) { f(s) }

type LoggedIn struct{ User models.User }

func (a LoggedIn) Apply(s *State) {
	u := a.User
	s.User = &u
	s.Screen = ScreenDashboard
	s.Alert = ""
}

// LoggedOut drops everything belonging to the previous user.
type LoggedOut struct{}

func (LoggedOut) Apply(s *State) { *s = NewState() }

// Navigate switches screens. ProjectID selects the project for the detail
// and form screens; zero on the form screen means a new project.
type Navigate struct {
	Screen    Screen
	ProjectID uint
}

func (a Navigate) Apply(s *State) {
	s.Screen = a.Screen
	switch a.Screen {
	case ScreenProjectDetail, ScreenProjectForm:
		s.SelectedProject = a.ProjectID
	default:
		s.SelectedProject = 0
	}
}

type ProjectsLoaded struct{ Projects []models.Project }

func (a ProjectsLoaded) Apply(s *State) { s.Projects = cloneProjects(a.Projects) }

type StatsLoaded struct{ Stats models.DashboardStats }

// The locally entered expenses survive a reload of the server figures.
func (a StatsLoaded) Apply(s *State) { s.Stats = a.Stats.WithExpenses(s.Stats.Expenses) }

// ExpensesSet records the operating expenses typed on the dashboard.
type ExpensesSet struct{ Amount decimal.Decimal }

func (a ExpensesSet) Apply(s *State) { s.Stats = s.Stats.WithExpenses(a.Amount) }

// ProjectSaved inserts or replaces a project and opens its detail view.
type ProjectSaved struct{ Project models.Project }

func (a ProjectSaved) Apply(s *State) {
	p := cloneProjects([]models.Project{a.Project})[0]
	if i := s.projectIndex(p.ID); i >= 0 {
		s.Projects[i] = p
	} else {
		s.Projects = append([]models.Project{p}, s.Projects...)
	}
	s.SelectedProject = p.ID
	s.Screen = ScreenProjectDetail
}

// ProjectUpdated replaces a project in place without navigating.
type ProjectUpdated struct{ Project models.Project }

func (a ProjectUpdated) Apply(s *State) {
	if i := s.projectIndex(a.Project.ID); i >= 0 {
		s.Projects[i] = cloneProjects([]models.Project{a.Project})[0]
	}
}

// ProjectRemoved drops a project and closes its detail or form view.
type ProjectRemoved struct{ ID uint }

func (a ProjectRemoved) Apply(s *State) {
	if i := s.projectIndex(a.ID); i >= 0 {
		s.Projects = append(s.Projects[:i:i], s.Projects[i+1:]...)
	}
	if s.SelectedProject == a.ID && (s.Screen == ScreenProjectDetail || s.Screen == ScreenProjectForm) {
		s.SelectedProject = 0
		s.Screen = ScreenDashboard
	}
}

type UsersLoaded struct{ Users []models.User }

func (a UsersLoaded) Apply(s *State) { s.Users = append([]models.User(nil), a.Users...) }

// OnlineSynced replaces the online set.
type OnlineSynced struct{ UserIDs []uint }

func (a OnlineSynced) Apply(s *State) {
	s.Online = make(map[uint]bool, len(a.UserIDs))
	for _, id := range a.UserIDs {
		s.Online[id] = true
	}
}

// PresenceChanged records one join or leave.
type PresenceChanged struct {
	UserID uint
	Online bool
}

func (a PresenceChanged) Apply(s *State) {
	if a.Online {
		s.Online[a.UserID] = true
	} else {
		delete(s.Online, a.UserID)
	}
}

type PostsLoaded struct{ Posts []models.PostView }

func (a PostsLoaded) Apply(s *State) { s.Posts = append([]models.PostView(nil), a.Posts...) }

// PostAdded puts a post at the top of the feed unless it is already there.
type PostAdded struct{ Post models.PostView }

func (a PostAdded) Apply(s *State) {
	if s.postIndex(a.Post.ID) >= 0 {
		return
	}
	s.Posts = append([]models.PostView{a.Post}, s.Posts...)
}

// PostCountersUpdated applies fresh counters. The liked flag only changes when
// the update came from the current user's own toggle.
type PostCountersUpdated struct{ Update models.PostUpdatePayload }

func (a PostCountersUpdated) Apply(s *State) {
	i := s.postIndex(a.Update.PostID)
	if i < 0 {
		return
	}
	p := &s.Posts[i]
	p.Likes = a.Update.Likes
	p.Comments = a.Update.Comments
	p.Shares = a.Update.Shares
	if a.Update.ActorID != 0 && s.User != nil && a.Update.ActorID == s.User.ID {
		p.Liked = a.Update.Liked
	}
}

// LikeSettled records the authoritative result of the user's like toggle.
type LikeSettled struct{ Result models.LikeResult }

func (a LikeSettled) Apply(s *State) {
	if i := s.postIndex(a.Result.PostID); i >= 0 {
		s.Posts[i].Likes = a.Result.Likes
		s.Posts[i].Liked = a.Result.Liked
	}
}

type CommentsLoaded struct {
	PostID   uint
	Comments []models.Comment
}

func (a CommentsLoaded) Apply(s *State) {
	s.Comments[a.PostID] = append([]models.Comment(nil), a.Comments...)
}

// CommentAdded appends a comment to a loaded thread unless it is already there.
type CommentAdded struct{ Comment models.Comment }

func (a CommentAdded) Apply(s *State) {
	list, ok := s.Comments[a.Comment.PostID]
	if !ok {
		return
	}
	for _, c := range list {
		if c.ID == a.Comment.ID {
			return
		}
	}
	s.Comments[a.Comment.PostID] = append(list, a.Comment)
}

// ConversationOpened shows the thread with PeerID.
type ConversationOpened struct {
	PeerID   uint
	Messages []models.Message
}

func (a ConversationOpened) Apply(s *State) {
	s.Conversation = &Conversation{
		PeerID:   a.PeerID,
		Messages: append([]models.Message(nil), a.Messages...),
	}
	delete(s.Unread, a.PeerID)
}

// ConversationClosed hides the open thread.
type ConversationClosed struct{}

func (ConversationClosed) Apply(s *State) { s.Conversation = nil }

// MessageReceived adds a message to the open thread when it belongs there,
// otherwise counts it as unread. Duplicate ids are ignored.
type MessageReceived struct{ Message models.Message }

func (a MessageReceived) Apply(s *State) {
	if s.User == nil {
		return
	}
	m := a.Message
	me := s.User.ID
	var peer uint
	switch me {
	case m.SenderID:
		peer = m.ReceiverID
	case m.ReceiverID:
		peer = m.SenderID
	default:
		return
	}

	if conv := s.Conversation; conv != nil && conv.PeerID == peer {
		for _, existing := range conv.Messages {
			if existing.ID == m.ID {
				return
			}
		}
		conv.Messages = append(conv.Messages, m)
		return
	}
	if m.ReceiverID == me && !m.IsRead {
		s.Unread[peer]++
	}
}

// MessageUpdated replaces a message in the open thread, e.g. when it is read.
type MessageUpdated struct{ Message models.Message }

func (a MessageUpdated) Apply(s *State) {
	if s.Conversation == nil {
		return
	}
	for i := range s.Conversation.Messages {
		if s.Conversation.Messages[i].ID == a.Message.ID {
			s.Conversation.Messages[i] = a.Message
			return
		}
	}
}

type DraftSet struct{ Text string }

func (a DraftSet) Apply(s *State) {
	if s.Conversation != nil {
		s.Conversation.Draft = a.Text
	}
}

type UnreadLoaded struct{ Counts map[uint]int64 }

func (a UnreadLoaded) Apply(s *State) {
	s.Unread = make(map[uint]int64, len(a.Counts))
	for id, n := range a.Counts {
		s.Unread[id] = n
	}
}

// AlertRaised shows a one-off error message.
type AlertRaised struct{ Message string }

func (a AlertRaised) Apply(s *State) { s.Alert = a.Message }

type AlertCleared struct{}

func (AlertCleared) Apply(s *State) { s.Alert = "" }
