package server

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"workit/internal/config"
	"workit/internal/export"
	"workit/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const iphoneUA = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15"

func (e *testEnv) createPost(t *testing.T, token, content string) models.PostView {
	t.Helper()
	resp := e.request(t, http.MethodPost, "/api/posts", token, fiber.Map{"content": content})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decodeBody[models.PostView](t, resp)
}

func TestPosts_FeedAndLikes(t *testing.T) {
	env := newTestEnv(t)
	aliceToken, alice := env.register(t, "alice")
	bobToken, _ := env.register(t, "bob")

	first := env.createPost(t, aliceToken, "first post")
	second := env.createPost(t, aliceToken, "  second post  ")
	assert.Equal(t, "second post", second.Content)
	assert.Equal(t, alice.ID, second.Author.ID)

	resp := env.request(t, http.MethodPost, "/api/posts", aliceToken, fiber.Map{"content": "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	likePath := fmt.Sprintf("/api/posts/%d/like", first.ID)
	resp = env.request(t, http.MethodPost, likePath, bobToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	like := decodeBody[models.LikeResult](t, resp)
	assert.True(t, like.Liked)
	assert.Equal(t, 1, like.Likes)

	resp = env.request(t, http.MethodGet, "/api/posts", bobToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	feed := decodeBody[[]models.PostView](t, resp)
	require.Len(t, feed, 2)
	assert.Equal(t, second.ID, feed[0].ID, "newest first")
	assert.True(t, feed[1].Liked)

	resp = env.request(t, http.MethodGet, "/api/posts", aliceToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decodeBody[[]models.PostView](t, resp)[1].Liked, "likes are per viewer")

	resp = env.request(t, http.MethodPost, likePath, bobToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	like = decodeBody[models.LikeResult](t, resp)
	assert.False(t, like.Liked)
	assert.Equal(t, 0, like.Likes)

	resp = env.request(t, http.MethodPost, "/api/posts/999/like", bobToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPosts_Comments(t *testing.T) {
	env := newTestEnv(t)
	aliceToken, _ := env.register(t, "alice")
	bobToken, _ := env.register(t, "bob")
	post := env.createPost(t, aliceToken, "hello")
	path := fmt.Sprintf("/api/posts/%d/comments", post.ID)

	resp := env.request(t, http.MethodPost, path, bobToken, fiber.Map{"content": "nice"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	comment := decodeBody[models.Comment](t, resp)
	assert.Equal(t, "bob", comment.Username)

	resp = env.request(t, http.MethodPost, path, bobToken, fiber.Map{"content": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.request(t, http.MethodGet, path, aliceToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	comments := decodeBody[[]models.Comment](t, resp)
	require.Len(t, comments, 1)
	assert.Equal(t, "nice", comments[0].Content)

	resp = env.request(t, http.MethodGet, "/api/posts", aliceToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, decodeBody[[]models.PostView](t, resp)[0].Comments)

	resp = env.request(t, http.MethodPost, "/api/posts/999/comments", bobToken, fiber.Map{"content": "lost"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func shareRequest(t *testing.T, path, token, userAgent, accept string, body []byte) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	if len(body) > 0 {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	req.Header.Set(fiber.HeaderUserAgent, userAgent)
	if accept != "" {
		req.Header.Set(fiber.HeaderAccept, accept)
	}
	return req
}

func TestSharePost(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.register(t, "alice")
	post := env.createPost(t, token, "Shipped the invoice generator today")
	path := fmt.Sprintf("/api/posts/%d/share", post.ID)

	t.Run("mobile plan with native share", func(t *testing.T) {
		req := shareRequest(t, path, token, iphoneUA, "", []byte(`{"can_share_files":true}`))
		resp, err := env.app.Test(req, -1)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		share := decodeBody[ShareResponse](t, resp)
		assert.Equal(t, 1, share.Shares)
		assert.Equal(t, export.PlatformIOS, share.Plan.Platform)
		assert.Equal(t, export.MobileScale, share.Plan.Scale)
		require.NotEmpty(t, share.Plan.Steps)
		assert.Equal(t, export.MethodNativeShare, share.Plan.Steps[0].Method)
		assert.Equal(t, export.MethodDownload, share.Plan.Steps[len(share.Plan.Steps)-1].Method)
		assert.True(t, bytes.HasPrefix(share.Image, []byte("\x89PNG")))
	})

	t.Run("desktop download", func(t *testing.T) {
		req := shareRequest(t, path+"?download=true", token, "Mozilla/5.0 (X11; Linux x86_64)", "", nil)
		resp, err := env.app.Test(req, -1)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		assert.Equal(t, "image/png", resp.Header.Get(fiber.HeaderContentType))
		assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "workit_post_alice_")
		assert.Equal(t, "2", resp.Header.Get("X-Share-Count"))
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(raw, []byte("\x89PNG")))
	})

	t.Run("missing post", func(t *testing.T) {
		resp := env.request(t, http.MethodPost, "/api/posts/999/share", token, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestSharePost_WebPFlag(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.FeatureFlags = "share_webp=on" })
	token, _ := env.register(t, "alice")
	post := env.createPost(t, token, "webp please")
	path := fmt.Sprintf("/api/posts/%d/share?download=true", post.ID)

	req := shareRequest(t, path, token, "Mozilla/5.0 (X11; Linux x86_64)", "image/webp,image/*", nil)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/webp", resp.Header.Get(fiber.HeaderContentType))

	req = shareRequest(t, path, token, "Mozilla/5.0 (X11; Linux x86_64)", "image/png", nil)
	resp2, err := env.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp2.Body.Close() }()
	require.Equal(t, http.StatusOK, resp2.StatusCode)
	assert.Equal(t, "image/png", resp2.Header.Get(fiber.HeaderContentType))
}
