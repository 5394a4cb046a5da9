package server

import (
	"strconv"

	"workit/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetConversation handles GET /api/messages/:userId
func (s *Server) GetConversation(c *fiber.Ctx) error {
	peerID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}
	messages, err := s.messageService.Conversation(c.UserContext(), currentUserID(c), peerID)
	if err != nil {
		return RespondWithError(c, err)
	}
	return c.JSON(messages)
}

// SendMessage handles POST /api/messages
func (s *Server) SendMessage(c *fiber.Ctx) error {
	var req models.SendMessageRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	msg, err := s.messageService.Send(c.UserContext(), currentUserID(c), req)
	if err != nil {
		return RespondWithError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// MarkMessagesRead handles POST /api/messages/:userId/read
func (s *Server) MarkMessagesRead(c *fiber.Ctx) error {
	peerID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}
	changed, err := s.messageService.MarkRead(c.UserContext(), currentUserID(c), peerID)
	if err != nil {
		return RespondWithError(c, err)
	}
	return c.JSON(changed)
}

// GetUnreadCounts handles GET /api/messages/unread. Keys are peer ids.
func (s *Server) GetUnreadCounts(c *fiber.Ctx) error {
	counts, err := s.messageService.UnreadCounts(c.UserContext(), currentUserID(c))
	if err != nil {
		return RespondWithError(c, err)
	}
	out := make(map[string]int64, len(counts))
	for peer, n := range counts {
		out[strconv.FormatUint(uint64(peer), 10)] = n
	}
	return c.JSON(out)
}
