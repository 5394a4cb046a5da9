package models

import "encoding/json"

// Push event types delivered over the WebSocket feed.
const (
	EventMessageCreated = "message_created"
	EventMessageUpdated = "message_updated"
	EventPostCreated    = "post_created"
	EventPostUpdated    = "post_updated"
	EventCommentCreated = "comment_created"
	EventPresenceSync   = "presence_sync"
	EventPresenceJoin   = "presence_join"
	EventPresenceLeave  = "presence_leave"
)

// Event is the envelope of every push message.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// PresencePayload carries a single presence transition.
type PresencePayload struct {
	UserID uint `json:"user_id"`
}

// PresenceSyncPayload carries the full set of online users.
type PresenceSyncPayload struct {
	UserIDs []uint `json:"user_ids"`
}

// PostUpdatePayload carries fresh counters for a post. ActorID and Liked
// describe the like toggle that caused the update, when there was one.
type PostUpdatePayload struct {
	PostID   uint `json:"post_id"`
	Likes    int  `json:"likes"`
	Comments int  `json:"comments"`
	Shares   int  `json:"shares"`
	ActorID  uint `json:"actor_id,omitempty"`
	Liked    bool `json:"liked,omitempty"`
}

// NewEvent marshals a payload into an event envelope.
func NewEvent(eventType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Event{Type: eventType, Payload: raw})
}
