package server

import (
	"errors"
	"log/slog"
	"strconv"
	"time"

	"workit/internal/middleware"
	"workit/internal/models"
	"workit/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const wsTicketTTL = 30 * time.Second

// Register handles POST /api/auth/register
func (s *Server) Register(c *fiber.Ctx) error {
	var req service.RegisterInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.userService.Register(c.UserContext(), req)
	if err != nil {
		return RespondWithError(c, err)
	}

	token, err := s.generateToken(user.ID, user.Username)
	if err != nil {
		return RespondWithError(c, models.NewInternalError(err))
	}
	return c.Status(fiber.StatusCreated).JSON(models.AuthResponse{Token: token, User: *user})
}

// Login handles POST /api/auth/login. Unknown usernames and wrong passwords
// are reported separately.
func (s *Server) Login(c *fiber.Ctx) error {
	var req service.LoginInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.userService.Login(c.UserContext(), req)
	if err != nil {
		return RespondWithError(c, err)
	}
	s.presence.Heartbeat(c.UserContext(), user.ID)

	token, err := s.generateToken(user.ID, user.Username)
	if err != nil {
		return RespondWithError(c, models.NewInternalError(err))
	}
	return c.JSON(models.AuthResponse{Token: token, User: *user})
}

// Logout handles POST /api/auth/logout. The token is revoked until it would
// have expired and the caller goes offline.
func (s *Server) Logout(c *fiber.Ctx) error {
	userID := currentUserID(c)
	ctx := c.UserContext()

	if claims, ok := c.Locals("tokenClaims").(*tokenClaims); ok && claims.ID != "" && s.redis != nil {
		ttl := time.Until(claims.ExpiresAt.Time)
		if ttl > 0 {
			if err := s.redis.Set(ctx, blacklistKey(claims.ID), userID, ttl).Err(); err != nil {
				middleware.Logger.WarnContext(ctx, "failed to revoke token", slog.String("error", err.Error()))
			}
		}
	}

	if err := s.presenceService.GoOffline(ctx, userID); err != nil {
		return RespondWithError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Logged out"})
}

// IssueWSTicket handles POST /api/ws/ticket. The ticket authenticates one
// WebSocket upgrade within 30 seconds. Tickets live in Redis; without it the
// endpoint answers 503 and clients upgrade with the bearer header instead.
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	if s.redis == nil {
		return RespondWithError(c, models.NewUnavailableError("WebSocket tickets unavailable; connect with the Authorization header"))
	}
	ticket := uuid.NewString()
	userID := currentUserID(c)
	if err := s.redis.Set(c.UserContext(), wsTicketKey(ticket), strconv.FormatUint(uint64(userID), 10), wsTicketTTL).Err(); err != nil {
		return RespondWithError(c, models.NewInternalError(err))
	}
	return c.JSON(fiber.Map{
		"ticket":     ticket,
		"expires_in": int(wsTicketTTL.Seconds()),
	})
}

// tokenClaims is the JWT payload: the registered claims plus the username.
type tokenClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// generateToken signs a 7-day token for userID.
func (s *Server) generateToken(userID uint, username string) (string, error) {
	if s.config.JWTSecret == "" {
		return "", errors.New("JWT secret not configured")
	}
	now := time.Now()
	claims := tokenClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

func blacklistKey(jti string) string {
	return "blacklist:" + jti
}

func wsTicketKey(ticket string) string {
	return "ws_ticket:" + ticket
}
