package client

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"workit/internal/models"
)

// Download is a file returned by the API.
type Download struct {
	FileName    string
	ContentType string
	Data        []byte
	Header      http.Header
}

// StoredInvoice is an invoice uploaded to object storage.
type StoredInvoice struct {
	Key       string    `json:"key"`
	FileName  string    `json:"file_name"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ShareStep is one delivery method of a share plan.
type ShareStep struct {
	Method       string `json:"method"`
	URL          string `json:"url,omitempty"`
	Instructions string `json:"instructions,omitempty"`
}

// Share methods, in the order the API plans them.
const (
	MethodNativeShare = "native_share"
	MethodDeepLink    = "deep_link"
	MethodDownload    = "download"
)

// SharePlan is the ordered fallback chain for a share card.
type SharePlan struct {
	Platform    string      `json:"platform"`
	Title       string      `json:"title"`
	Text        string      `json:"text"`
	FileName    string      `json:"file_name"`
	ContentType string      `json:"content_type"`
	Scale       float64     `json:"scale"`
	Steps       []ShareStep `json:"steps"`
}

// ShareCard is a rendered share card and its plan.
type ShareCard struct {
	Plan   SharePlan `json:"plan"`
	Shares int       `json:"shares"`
	Image  []byte    `json:"image"`
}

// ShareOptions describes what the device can do with a card.
type ShareOptions struct {
	CanShareFiles bool
	AcceptWebP    bool
}

// HeartbeatResult is the online set returned by a heartbeat.
type HeartbeatResult struct {
	UserIDs           []uint `json:"user_ids"`
	HeartbeatInterval int    `json:"heartbeat_interval"`
}

func fileNameFromDisposition(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return params["filename"]
}

func idPath(format string, id uint) string {
	return fmt.Sprintf(format, id)
}

// Register creates an account and stores the returned token.
func (c *Client) Register(ctx context.Context, username, password, confirm string) (*models.AuthResponse, error) {
	var out models.AuthResponse
	body := map[string]string{
		"username":         username,
		"password":         password,
		"confirm_password": confirm,
	}
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", nil, body, &out); err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out, nil
}

// Login authenticates and stores the returned token. An unknown username is
// a 404 and a wrong password a 401.
func (c *Client) Login(ctx context.Context, username, password string) (*models.AuthResponse, error) {
	var out models.AuthResponse
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, body, &out); err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out, nil
}

// Logout revokes the token and marks the user offline. The stored token is
// dropped even when the call fails.
func (c *Client) Logout(ctx context.Context) error {
	defer c.SetToken("")
	return c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil, nil)
}

func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var out models.User
	if err := c.do(ctx, http.MethodGet, "/api/users/me", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListUsers returns every user except the caller.
func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	var out []models.User
	if err := c.do(ctx, http.MethodGet, "/api/users", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Heartbeat keeps the caller online and returns who else is.
func (c *Client) Heartbeat(ctx context.Context) (*HeartbeatResult, error) {
	var out HeartbeatResult
	if err := c.do(ctx, http.MethodPost, "/api/presence/heartbeat", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Online(ctx context.Context) ([]uint, error) {
	var out struct {
		UserIDs []uint `json:"user_ids"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/presence", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.UserIDs, nil
}

func (c *Client) ListProjects(ctx context.Context) ([]models.Project, error) {
	var out []models.Project
	if err := c.do(ctx, http.MethodGet, "/api/projects", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetProject(ctx context.Context, id uint) (*models.Project, error) {
	var out models.Project
	if err := c.do(ctx, http.MethodGet, idPath("/api/projects/%d", id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateProject(ctx context.Context, form models.ProjectForm) (*models.Project, error) {
	var out models.Project
	if err := c.do(ctx, http.MethodPost, "/api/projects", nil, form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProject(ctx context.Context, id uint, form models.ProjectForm) (*models.Project, error) {
	var out models.Project
	if err := c.do(ctx, http.MethodPut, idPath("/api/projects/%d", id), nil, form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteProject(ctx context.Context, id uint) error {
	return c.do(ctx, http.MethodDelete, idPath("/api/projects/%d", id), nil, nil, nil)
}

func (c *Client) TogglePaid(ctx context.Context, id uint) (*models.Project, error) {
	var out models.Project
	if err := c.do(ctx, http.MethodPost, idPath("/api/projects/%d/toggle-paid", id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	var out models.DashboardStats
	if err := c.do(ctx, http.MethodGet, "/api/projects/stats", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// InvoicePDF downloads a project's invoice.
func (c *Client) InvoicePDF(ctx context.Context, projectID uint) (*Download, error) {
	return c.download(ctx, http.MethodGet, idPath("/api/projects/%d/invoice", projectID), nil, nil, "application/pdf")
}

// StoreInvoice uploads a project's invoice and returns a time-limited link.
func (c *Client) StoreInvoice(ctx context.Context, projectID uint) (*StoredInvoice, error) {
	var out StoredInvoice
	query := url.Values{"store": {"true"}}
	if err := c.do(ctx, http.MethodGet, idPath("/api/projects/%d/invoice", projectID), query, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Conversation returns the messages between the caller and peerID, oldest first.
func (c *Client) Conversation(ctx context.Context, peerID uint) ([]models.Message, error) {
	var out []models.Message
	if err := c.do(ctx, http.MethodGet, idPath("/api/messages/%d", peerID), nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SendMessage(ctx context.Context, receiverID uint, content string) (*models.Message, error) {
	var out models.Message
	body := models.SendMessageRequest{ReceiverID: receiverID, Content: content}
	if err := c.do(ctx, http.MethodPost, "/api/messages", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkRead marks peerID's messages to the caller as read.
func (c *Client) MarkRead(ctx context.Context, peerID uint) ([]models.Message, error) {
	var out []models.Message
	if err := c.do(ctx, http.MethodPost, idPath("/api/messages/%d/read", peerID), nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UnreadCounts maps peer ids to the number of unread messages they sent.
func (c *Client) UnreadCounts(ctx context.Context) (map[uint]int64, error) {
	var raw map[string]int64
	if err := c.do(ctx, http.MethodGet, "/api/messages/unread", nil, nil, &raw); err != nil {
		return nil, err
	}
	out := make(map[uint]int64, len(raw))
	for k, n := range raw {
		id, err := strconv.ParseUint(k, 10, 32)
		if err != nil {
			continue
		}
		out[uint(id)] = n
	}
	return out, nil
}

func (c *Client) ListPosts(ctx context.Context) ([]models.PostView, error) {
	var out []models.PostView
	if err := c.do(ctx, http.MethodGet, "/api/posts", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreatePost(ctx context.Context, content string) (*models.PostView, error) {
	var out models.PostView
	if err := c.do(ctx, http.MethodPost, "/api/posts", nil, models.CreatePostRequest{Content: content}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ToggleLike flips the caller's like and returns the stored counter.
func (c *Client) ToggleLike(ctx context.Context, postID uint) (*models.LikeResult, error) {
	var out models.LikeResult
	if err := c.do(ctx, http.MethodPost, idPath("/api/posts/%d/like", postID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListComments(ctx context.Context, postID uint) ([]models.Comment, error) {
	var out []models.Comment
	if err := c.do(ctx, http.MethodGet, idPath("/api/posts/%d/comments", postID), nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AddComment(ctx context.Context, postID uint, content string) (*models.Comment, error) {
	var out models.Comment
	body := models.CreateCommentRequest{Content: content}
	if err := c.do(ctx, http.MethodPost, idPath("/api/posts/%d/comments", postID), nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SharePost counts a share and fetches the card rendered for this device.
func (c *Client) SharePost(ctx context.Context, postID uint, opts ShareOptions) (*ShareCard, error) {
	body := map[string]bool{"can_share_files": opts.CanShareFiles}
	req, err := c.newRequest(ctx, http.MethodPost, idPath("/api/posts/%d/share", postID), nil, body)
	if err != nil {
		return nil, err
	}
	if opts.AcceptWebP {
		req.Header.Set("Accept", "application/json, image/webp")
	}
	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var out ShareCard
	if err := decodeJSON(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// IssueTicket returns a single-use ticket for the push feed.
func (c *Client) IssueTicket(ctx context.Context) (string, error) {
	var out struct {
		Ticket string `json:"ticket"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/ws/ticket", nil, nil, &out); err != nil {
		return "", err
	}
	return out.Ticket, nil
}
