package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"workit/internal/config"
	"workit/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(&config.ClientConfig{APIURL: srv.URL, APIKey: "pub-key"}, opts...)
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
	_, err = New(&config.ClientConfig{APIURL: "ftp://example.com"})
	assert.Error(t, err)
}

func TestLogin_StoresTokenAndSendsHeaders(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "pub-key", r.Header.Get("X-API-Key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "alice", body["username"])
		writeJSON(w, http.StatusOK, models.AuthResponse{Token: "tok-1", User: models.User{ID: 7, Username: "alice"}})
	})
	mux.HandleFunc("/api/users/me", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, models.User{ID: 7, Username: "alice"})
	})
	c := newTestClient(t, mux, WithUserAgent("test-agent"))

	auth, err := c.Login(context.Background(), "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, uint(7), auth.User.ID)
	assert.Equal(t, "tok-1", c.Token())

	me, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", me.Username)
}

func TestLogin_DistinguishesFailures(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["username"] != "alice" {
			writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "user not found", Code: models.CodeNotFound})
			return
		}
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "wrong password", Code: models.CodeUnauthorized})
	}))

	_, err := c.Login(context.Background(), "bob", "pw")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsUnauthorized(err))

	_, err = c.Login(context.Background(), "alice", "wrong")
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, models.CodeUnauthorized, apiErr.Code)
	assert.Equal(t, "wrong password", Message(err))
	assert.Empty(t, c.Token())
}

func TestAPIError_NonJSONBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))

	_, err := c.ListProjects(context.Background())
	require.Error(t, err)
	assert.True(t, HasStatus(err, http.StatusBadGateway))
	assert.Equal(t, "Bad Gateway", Message(err))
}

func TestLogout_DropsToken(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "boom"})
	}))
	c.SetToken("tok")

	assert.Error(t, c.Logout(context.Background()))
	assert.Empty(t, c.Token())
}

func TestInvoicePDF_ReadsAttachment(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/projects/4/invoice", r.URL.Path)
		assert.Equal(t, "application/pdf", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="Invoice-Acme-Site.pdf"`)
		_, _ = w.Write([]byte("%PDF-1.4"))
	}))

	dl, err := c.InvoicePDF(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, "Invoice-Acme-Site.pdf", dl.FileName)
	assert.Equal(t, "application/pdf", dl.ContentType)
	assert.Equal(t, []byte("%PDF-1.4"), dl.Data)
}

func TestStoreInvoice_SendsStoreFlag(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("store"))
		writeJSON(w, http.StatusCreated, StoredInvoice{Key: "invoices/1/x/a.pdf", URL: "https://bucket/a.pdf"})
	}))

	stored, err := c.StoreInvoice(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "https://bucket/a.pdf", stored.URL)
}

func TestUnreadCounts_ParsesKeys(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]int64{"3": 2, "9": 1, "bogus": 5})
	}))

	counts, err := c.UnreadCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[uint]int64{3: 2, 9: 1}, counts)
}

func TestSharePost_SendsCapabilities(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Accept"), "image/webp")
		var body map[string]bool
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.True(t, body["can_share_files"])
		writeJSON(w, http.StatusOK, ShareCard{
			Plan:   SharePlan{FileName: "workit_post_alice_1126_930.webp", Steps: []ShareStep{{Method: MethodDownload}}},
			Shares: 3,
			Image:  []byte("RIFF"),
		})
	}))

	card, err := c.SharePost(context.Background(), 5, ShareOptions{CanShareFiles: true, AcceptWebP: true})
	require.NoError(t, err)
	assert.Equal(t, 3, card.Shares)
	assert.Equal(t, []byte("RIFF"), card.Image)
}

func TestExecutePlan_FallsThrough(t *testing.T) {
	dir := t.TempDir()
	card := &ShareCard{
		Plan: SharePlan{
			FileName: "workit_post_alice_1126_930.png",
			Steps: []ShareStep{
				{Method: MethodNativeShare},
				{Method: MethodDeepLink, URL: "instagram-stories://share"},
				{Method: MethodDownload, Instructions: "Open Instagram"},
			},
		},
		Image: []byte("\x89PNG"),
	}
	var deepLinked []string
	targets := map[string]ShareTarget{
		MethodNativeShare: ShareTargetFunc(func(context.Context, *ShareCard, ShareStep) error {
			return ErrUnsupported
		}),
		MethodDeepLink: ShareTargetFunc(func(_ context.Context, _ *ShareCard, step ShareStep) error {
			deepLinked = append(deepLinked, step.URL)
			return errors.New("app not installed")
		}),
		MethodDownload: &FileTarget{Dir: dir},
	}

	out, err := ExecutePlan(context.Background(), card, targets)
	require.NoError(t, err)
	assert.Equal(t, MethodDownload, out.Method)
	assert.Equal(t, "Open Instagram", out.Instructions)
	assert.Len(t, out.Skipped, 2)
	assert.Equal(t, []string{"instagram-stories://share"}, deepLinked)

	saved, err := os.ReadFile(filepath.Join(dir, "workit_post_alice_1126_930.png"))
	require.NoError(t, err)
	assert.Equal(t, card.Image, saved)
	assert.Equal(t, filepath.Join(dir, "workit_post_alice_1126_930.png"), out.Path)
}

func TestExecutePlan_NothingWorks(t *testing.T) {
	card := &ShareCard{Plan: SharePlan{Steps: []ShareStep{{Method: MethodNativeShare}}}}
	_, err := ExecutePlan(context.Background(), card, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = ExecutePlan(context.Background(), &ShareCard{}, nil)
	assert.Error(t, err)
}
