package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"workit/internal/config"
	"workit/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHumanizeParam(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"id", "ID"},
		{"userId", "user ID"},
		{"postCommentId", "post comment ID"},
		{"slug", "slug"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, humanizeParam(tt.in))
		})
	}
}

func TestRespondWithError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantError  string
	}{
		{"not found", models.NewNotFoundError("Project", 4), http.StatusNotFound, models.CodeNotFound, "Project with ID 4 not found"},
		{"validation", models.NewValidationError("bad"), http.StatusBadRequest, models.CodeValidation, "bad"},
		{"conflict", models.NewConflictError("taken"), http.StatusConflict, models.CodeConflict, "taken"},
		{"wrapped", errors.Join(errors.New("ctx"), models.NewUnauthorizedError("nope")), http.StatusUnauthorized, models.CodeUnauthorized, "nope"},
		{"plain", errors.New("db exploded"), http.StatusInternalServerError, models.CodeInternal, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error { return RespondWithError(c, tt.err) })

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			body := decodeBody[models.ErrorResponse](t, resp)
			assert.Equal(t, tt.wantCode, body.Code)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, body.Error)
			}
			assert.NotContains(t, body.Error, "db exploded")
		})
	}
}

func TestParseID(t *testing.T) {
	s := &Server{}
	app := fiber.New()
	app.Get("/items/:userId", func(c *fiber.Ctx) error {
		id, err := s.parseID(c, "userId")
		if err != nil {
			return nil
		}
		return c.JSON(fiber.Map{"id": id})
	})

	for _, raw := range []string{"abc", "0", "-3"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/items/"+raw, nil), -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, raw)
		assert.Equal(t, "Invalid user ID", decodeBody[models.ErrorResponse](t, resp).Error)
		_ = resp.Body.Close()
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/items/12", nil), -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(12), decodeBody[map[string]interface{}](t, resp)["id"])
}

func TestGetFeatureFlags(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.FeatureFlags = "share_webp=on,invoice_storage=off" })
	token, _ := env.register(t, "alice")

	resp := env.request(t, http.MethodGet, "/api/flags", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[struct {
		Names     []string        `json:"names"`
		Evaluated map[string]bool `json:"evaluated"`
	}](t, resp)
	assert.Contains(t, body.Names, "share_webp")
	assert.True(t, body.Evaluated["share_webp"])
	assert.False(t, body.Evaluated["invoice_storage"])
}
