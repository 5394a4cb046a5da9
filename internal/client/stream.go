package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"workit/internal/models"

	"github.com/gorilla/websocket"
)

const (
	streamBuffer     = 64
	streamPongWait   = 60 * time.Second
	streamWriteWait  = 10 * time.Second
	handshakeTimeout = 10 * time.Second
)

// EventStream delivers push events until it is closed or the connection drops.
// Events is closed when delivery ends.
type EventStream interface {
	Events() <-chan models.Event
	Close() error
}

// Stream is a live push-feed connection.
type Stream struct {
	conn   *websocket.Conn
	events chan models.Event
	logger *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

var _ EventStream = (*Stream)(nil)

// streamURL maps the API base to the ws:// or wss:// feed URL.
func (c *Client) streamURL(ticket string) string {
	u := *c.baseURL
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/ws"
	u.RawQuery = ""
	if ticket != "" {
		u.RawQuery = url.Values{"ticket": {ticket}}.Encode()
	}
	return u.String()
}

// Subscribe redeems a fresh ticket and opens the push feed. The first event
// is a presence_sync snapshot. A server without a ticket store answers 503
// and the upgrade carries the bearer token instead.
func (c *Client) Subscribe(ctx context.Context) (EventStream, error) {
	header := http.Header{}
	if c.apiKey != "" {
		header.Set(apiKeyHeader, c.apiKey)
	}

	ticket, err := c.IssueTicket(ctx)
	switch {
	case HasStatus(err, http.StatusServiceUnavailable):
		token := c.Token()
		if token == "" {
			return nil, fmt.Errorf("issuing stream ticket: %w", err)
		}
		c.logger.Debug("ticket store unavailable, upgrading with bearer token")
		header.Set("Authorization", "Bearer "+token)
	case err != nil:
		return nil, fmt.Errorf("issuing stream ticket: %w", err)
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, c.streamURL(ticket), header)
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	if err != nil {
		if resp != nil && resp.StatusCode >= 400 {
			return nil, decodeAPIError(resp)
		}
		return nil, fmt.Errorf("dialing push feed: %w", err)
	}

	s := &Stream{
		conn:   conn,
		events: make(chan models.Event, streamBuffer),
		logger: c.logger,
		done:   make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

// Events returns the channel of decoded events.
func (s *Stream) Events() <-chan models.Event {
	return s.events
}

// Close sends a close frame and tears down the connection.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(streamWriteWait))
		err = s.conn.Close()
	})
	return err
}

func (s *Stream) readLoop() {
	defer close(s.events)
	defer func() { _ = s.Close() }()

	_ = s.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	s.conn.SetPingHandler(func(appData string) error {
		_ = s.conn.SetReadDeadline(time.Now().Add(streamPongWait))
		return s.conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(streamWriteWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
					!errors.Is(err, net.ErrClosed) {
					s.logger.Warn("push feed closed", slog.String("error", err.Error()))
				}
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(streamPongWait))

		var ev models.Event
		if err := json.Unmarshal(raw, &ev); err != nil || ev.Type == "" {
			s.logger.Debug("ignoring malformed push frame")
			continue
		}
		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}
