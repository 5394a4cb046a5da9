package server

import "github.com/gofiber/fiber/v2"

// GetFeatureFlags returns the known flag names and their state for the caller.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	if s.featureFlag == nil {
		return c.JSON(fiber.Map{
			"names":     []string{},
			"evaluated": map[string]bool{},
		})
	}
	return c.JSON(fiber.Map{
		"names":     s.featureFlag.Names(),
		"evaluated": s.featureFlag.Snapshot(currentUserID(c)),
	})
}
