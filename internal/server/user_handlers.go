package server

import (
	"github.com/gofiber/fiber/v2"
)

// GetMyProfile handles GET /api/users/me
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	user, err := s.userService.GetUserByID(c.UserContext(), currentUserID(c))
	if err != nil {
		return RespondWithError(c, err)
	}
	return c.JSON(user)
}

// ListUsers handles GET /api/users. The caller is left out.
func (s *Server) ListUsers(c *fiber.Ctx) error {
	users, err := s.userService.ListUsers(c.UserContext(), currentUserID(c))
	if err != nil {
		return RespondWithError(c, err)
	}
	return c.JSON(users)
}

// Heartbeat handles POST /api/presence/heartbeat
func (s *Server) Heartbeat(c *fiber.Ctx) error {
	online, err := s.presenceService.Heartbeat(c.UserContext(), currentUserID(c))
	if err != nil {
		return RespondWithError(c, err)
	}
	return c.JSON(fiber.Map{
		"user_ids":           online,
		"heartbeat_interval": int(s.config.HeartbeatInterval().Seconds()),
	})
}

// GetOnlineUsers handles GET /api/presence
func (s *Server) GetOnlineUsers(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"user_ids": s.presenceService.Online(c.UserContext())})
}
