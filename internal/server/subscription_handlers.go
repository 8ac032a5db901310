package server

import (
	"github.com/gofiber/fiber/v2"
)

// recipesLimit reads ?recipes_limit=; zero or invalid means no limit.
func recipesLimit(c *fiber.Ctx) int {
	n := c.QueryInt("recipes_limit", 0)
	if n < 0 {
		return 0
	}
	return n
}

// ListSubscriptions handles GET /api/users/subscriptions
// @Summary List followed authors with their recipes
// @Tags subscriptions
// @Security BearerAuth
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Param recipes_limit query int false "Recipes per author"
// @Success 200 {object} Page[service.AuthorWithRecipesView]
// @Router /users/subscriptions [get]
func (s *Server) ListSubscriptions(c *fiber.Ctx) error {
	p := parsePagination(c, s.config.PageSize)
	authors, total, err := s.subscriptions.ListSubscriptions(c.UserContext(), currentUserID(c), p.Limit, p.Offset, recipesLimit(c))
	if err != nil {
		return s.mapServiceError(c, err)
	}
	return c.JSON(newPage(c, p, total, authors))
}

// Subscribe handles POST /api/users/:id/subscribe
// @Summary Follow an author
// @Tags subscriptions
// @Security BearerAuth
// @Produce json
// @Param id path int true "Author ID"
// @Param recipes_limit query int false "Recipes in the preview"
// @Success 201 {object} service.AuthorWithRecipesView
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id}/subscribe [post]
func (s *Server) Subscribe(c *fiber.Ctx) error {
	authorID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	view, err := s.subscriptions.Subscribe(c.UserContext(), currentUserID(c), authorID, recipesLimit(c))
	if err != nil {
		return s.mapServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(view)
}

// Unsubscribe handles DELETE /api/users/:id/subscribe
// @Summary Unfollow an author
// @Tags subscriptions
// @Security BearerAuth
// @Param id path int true "Author ID"
// @Success 204
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id}/subscribe [delete]
func (s *Server) Unsubscribe(c *fiber.Ctx) error {
	authorID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.subscriptions.Unsubscribe(c.UserContext(), currentUserID(c), authorID); err != nil {
		return s.mapServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
