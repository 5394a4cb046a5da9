package session

import (
	"context"
	"encoding/json"
	"log/slog"

	"workit/internal/models"
	"workit/internal/viewstate"
)

// handleEvent maps one push event onto a view-state action. Unknown or
// malformed events are logged and skipped. A message arriving in the open
// thread is marked read on the server.
func (s *Session) handleEvent(ctx context.Context, ev models.Event) {
	action, err := eventAction(ev)
	if err != nil {
		s.logger.Warn("skipping malformed push event",
			slog.String("type", ev.Type),
			slog.String("error", err.Error()))
		return
	}
	if action == nil {
		s.logger.Debug("ignoring push event", slog.String("type", ev.Type))
		return
	}
	s.dispatch(action)

	if recv, ok := action.(viewstate.MessageReceived); ok {
		st := s.State()
		m := recv.Message
		if st.User != nil && m.ReceiverID == st.User.ID &&
			st.Conversation != nil && st.Conversation.PeerID == m.SenderID {
			s.markRead(ctx, m.SenderID)
		}
	}
}

func eventAction(ev models.Event) (viewstate.Action, error) {
	switch ev.Type {
	case models.EventPresenceSync:
		var p models.PresenceSyncPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return nil, err
		}
		return viewstate.OnlineSynced{UserIDs: p.UserIDs}, nil

	case models.EventPresenceJoin, models.EventPresenceLeave:
		var p models.PresencePayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return nil, err
		}
		return viewstate.PresenceChanged{UserID: p.UserID, Online: ev.Type == models.EventPresenceJoin}, nil

	case models.EventMessageCreated:
		var m models.Message
		if err := json.Unmarshal(ev.Payload, &m); err != nil {
			return nil, err
		}
		return viewstate.MessageReceived{Message: m}, nil

	case models.EventMessageUpdated:
		var m models.Message
		if err := json.Unmarshal(ev.Payload, &m); err != nil {
			return nil, err
		}
		return viewstate.MessageUpdated{Message: m}, nil

	case models.EventPostCreated:
		var p models.PostView
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return nil, err
		}
		// The author's own view; nobody has liked a new post yet.
		p.Liked = false
		return viewstate.PostAdded{Post: p}, nil

	case models.EventPostUpdated:
		var p models.PostUpdatePayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return nil, err
		}
		return viewstate.PostCountersUpdated{Update: p}, nil

	case models.EventCommentCreated:
		var c models.Comment
		if err := json.Unmarshal(ev.Payload, &c); err != nil {
			return nil, err
		}
		return viewstate.CommentAdded{Comment: c}, nil
	}
	return nil, nil
}
