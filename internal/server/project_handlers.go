package server

import (
	"fmt"

	"workit/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ListProjects handles GET /api/projects
func (s *Server) ListProjects(c *fiber.Ctx) error {
	projects, err := s.projectService.ListProjects(c.UserContext(), currentUserID(c))
	if err != nil {
		return RespondWithError(c, err)
	}
	return c.JSON(projects)
}

// GetProject handles GET /api/projects/:id
func (s *Server) GetProject(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	project, err := s.projectService.GetProject(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return RespondWithError(c, err)
	}
	return c.JSON(project)
}

// CreateProject handles POST /api/projects
func (s *Server) CreateProject(c *fiber.Ctx) error {
	var form models.ProjectForm
	if err := parseBody(c, &form); err != nil {
		return nil
	}
	project, err := s.projectService.CreateProject(c.UserContext(), currentUserID(c), form)
	if err != nil {
		return RespondWithError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(project)
}

// UpdateProject handles PUT /api/projects/:id
func (s *Server) UpdateProject(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var form models.ProjectForm
	if err := parseBody(c, &form); err != nil {
		return nil
	}
	project, err := s.projectService.UpdateProject(c.UserContext(), currentUserID(c), id, form)
	if err != nil {
		return RespondWithError(c, err)
	}
	return c.JSON(project)
}

// DeleteProject handles DELETE /api/projects/:id
func (s *Server) DeleteProject(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.projectService.DeleteProject(c.UserContext(), currentUserID(c), id); err != nil {
		return RespondWithError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// TogglePaid handles POST /api/projects/:id/toggle-paid
func (s *Server) TogglePaid(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	project, err := s.projectService.TogglePaid(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return RespondWithError(c, err)
	}
	return c.JSON(project)
}

// GetDashboardStats handles GET /api/projects/stats
func (s *Server) GetDashboardStats(c *fiber.Ctx) error {
	stats, err := s.projectService.DashboardStats(c.UserContext(), currentUserID(c))
	if err != nil {
		return RespondWithError(c, err)
	}
	return c.JSON(stats)
}

// GenerateInvoice handles GET /api/projects/:id/invoice. The PDF is streamed
// as an attachment, or with ?store=true uploaded and returned as a
// presigned link.
func (s *Server) GenerateInvoice(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	userID := currentUserID(c)

	if c.QueryBool("store") {
		stored, err := s.exportService.StoreInvoice(c.UserContext(), userID, id)
		if err != nil {
			return RespondWithError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(stored)
	}

	artifact, err := s.exportService.InvoicePDF(c.UserContext(), userID, id)
	if err != nil {
		return RespondWithError(c, err)
	}
	c.Set(fiber.HeaderContentType, artifact.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", artifact.FileName))
	return c.Send(artifact.Data)
}
