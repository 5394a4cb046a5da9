// Package viewstate holds the client's view state behind a single-goroutine
// store. Every change is an Action applied in order; readers get copies.
package viewstate

import (
	"sort"

	"workit/internal/models"
)

// Screen is the page the user is looking at.
type Screen string

const (
	ScreenLogin         Screen = "login"
	ScreenDashboard     Screen = "dashboard"
	ScreenProjectForm   Screen = "project_form"
	ScreenProjectDetail Screen = "project_detail"
	ScreenNetwork       Screen = "network"
)

// Conversation is the open direct-message thread.
type Conversation struct {
	PeerID   uint
	Messages []models.Message
	Draft    string
}

// State is everything the client renders.
type State struct {
	User            *models.User
	Screen          Screen
	SelectedProject uint
	Projects        []models.Project
	Stats           models.DashboardStats
	Users           []models.User
	Online          map[uint]bool
	Posts           []models.PostView
	Comments        map[uint][]models.Comment
	Conversation    *Conversation
	Unread          map[uint]int64
	Alert           string
}

// NewState is the logged-out starting state.
func NewState() State {
	return State{
		Screen:   ScreenLogin,
		Online:   map[uint]bool{},
		Comments: map[uint][]models.Comment{},
		Unread:   map[uint]int64{},
	}
}

// Clone returns a deep copy that shares nothing mutable with s.
func (s State) Clone() State {
	out := s
	if s.User != nil {
		u := *s.User
		out.User = &u
	}
	out.Projects = cloneProjects(s.Projects)
	out.Stats.Chart = append([]models.ChartPoint(nil), s.Stats.Chart...)
	out.Users = append([]models.User(nil), s.Users...)
	out.Online = make(map[uint]bool, len(s.Online))
	for id, on := range s.Online {
		out.Online[id] = on
	}
	out.Posts = append([]models.PostView(nil), s.Posts...)
	out.Comments = make(map[uint][]models.Comment, len(s.Comments))
	for id, list := range s.Comments {
		out.Comments[id] = append([]models.Comment(nil), list...)
	}
	if s.Conversation != nil {
		conv := *s.Conversation
		conv.Messages = append([]models.Message(nil), s.Conversation.Messages...)
		out.Conversation = &conv
	}
	out.Unread = make(map[uint]int64, len(s.Unread))
	for id, n := range s.Unread {
		out.Unread[id] = n
	}
	return out
}

func cloneProjects(in []models.Project) []models.Project {
	if in == nil {
		return nil
	}
	out := make([]models.Project, len(in))
	for i, p := range in {
		p.Features = append([]models.Feature(nil), p.Features...)
		out[i] = p
	}
	return out
}

// Project returns the project with id, if loaded.
func (s State) Project(id uint) (models.Project, bool) {
	for _, p := range s.Projects {
		if p.ID == id {
			return p, true
		}
	}
	return models.Project{}, false
}

// Post returns the post with id, if loaded.
func (s State) Post(id uint) (models.PostView, bool) {
	if i := s.postIndex(id); i >= 0 {
		return s.Posts[i], true
	}
	return models.PostView{}, false
}

// OnlineIDs returns the online user ids in ascending order.
func (s State) OnlineIDs() []uint {
	ids := make([]uint, 0, len(s.Online))
	for id, on := range s.Online {
		if on {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *State) postIndex(id uint) int {
	for i := range s.Posts {
		if s.Posts[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *State) projectIndex(id uint) int {
	for i := range s.Projects {
		if s.Projects[i].ID == id {
			return i
		}
	}
	return -1
}
