package server

import (
	"fmt"
	"strconv"

	"workit/internal/export"
	"workit/internal/models"
	"workit/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ShareResponse is the JSON form of a rendered share card. Image is base64.
type ShareResponse struct {
	Plan   export.SharePlan `json:"plan"`
	Shares int              `json:"shares"`
	Image  []byte           `json:"image"`
}

// ListPosts handles GET /api/posts
func (s *Server) ListPosts(c *fiber.Ctx) error {
	posts, err := s.postService.ListPosts(c.UserContext(), currentUserID(c))
	if err != nil {
		return RespondWithError(c, err)
	}
	return c.JSON(posts)
}

// CreatePost handles POST /api/posts
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req models.CreatePostRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	post, err := s.postService.CreatePost(c.UserContext(), currentUserID(c), req)
	if err != nil {
		return RespondWithError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// ToggleLike handles POST /api/posts/:id/like
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	result, err := s.postService.ToggleLike(c.UserContext(), id, currentUserID(c))
	if err != nil {
		return RespondWithError(c, err)
	}
	return c.JSON(result)
}

// ListComments handles GET /api/posts/:id/comments
func (s *Server) ListComments(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	comments, err := s.postService.ListComments(c.UserContext(), id)
	if err != nil {
		return RespondWithError(c, err)
	}
	return c.JSON(comments)
}

// CreateComment handles POST /api/posts/:id/comments
func (s *Server) CreateComment(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req models.CreateCommentRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	comment, err := s.postService.AddComment(c.UserContext(), id, currentUserID(c), req)
	if err != nil {
		return RespondWithError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// SharePost handles POST /api/posts/:id/share. The card is sized and encoded
// for the requesting device. ?download=true returns the image itself with
// the plan's file name.
func (s *Server) SharePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		CanShareFiles bool `json:"can_share_files"`
	}
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return nil
		}
	}

	result, err := s.exportService.SharePost(c.UserContext(), currentUserID(c), id, service.ShareOptions{
		UserAgent:     c.Get(fiber.HeaderUserAgent),
		Accept:        c.Get(fiber.HeaderAccept),
		CanShareFiles: req.CanShareFiles,
	})
	if err != nil {
		return RespondWithError(c, err)
	}

	if c.QueryBool("download") {
		c.Set(fiber.HeaderContentType, result.Artifact.ContentType)
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", result.Artifact.FileName))
		c.Set("X-Share-Count", strconv.Itoa(result.Shares))
		return c.Send(result.Artifact.Data)
	}
	return c.JSON(ShareResponse{
		Plan:   result.Plan,
		Shares: result.Shares,
		Image:  result.Artifact.Data,
	})
}
