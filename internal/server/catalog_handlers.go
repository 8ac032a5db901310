package server

import (
	"github.com/gofiber/fiber/v2"
)

// ListTags handles GET /api/tags/
// @Summary List tags
// @Tags catalog
// @Produce json
// @Success 200 {array} models.Tag
// @Router /tags/ [get]
func (s *Server) ListTags(c *fiber.Ctx) error {
	tags, err := s.catalog.ListTags(c.UserContext())
	if err != nil {
		return s.mapServiceError(c, err)
	}
	return c.JSON(tags)
}

// GetTag handles GET /api/tags/:id
// @Summary Get a tag
// @Tags catalog
// @Produce json
// @Param id path int true "Tag ID"
// @Success 200 {object} models.Tag
// @Failure 404 {object} models.ErrorResponse
// @Router /tags/{id} [get]
func (s *Server) GetTag(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	tag, err := s.catalog.GetTag(c.UserContext(), id)
	if err != nil {
		return s.mapServiceError(c, err)
	}
	return c.JSON(tag)
}

// ListIngredients handles GET /api/ingredients/?name=<prefix>
// @Summary Search ingredients by name prefix
// @Tags catalog
// @Produce json
// @Param name query string false "Case-insensitive name prefix"
// @Success 200 {array} models.Ingredient
// @Router /ingredients/ [get]
func (s *Server) ListIngredients(c *fiber.Ctx) error {
	ingredients, err := s.catalog.SearchIngredients(c.UserContext(), c.Query("name"))
	if err != nil {
		return s.mapServiceError(c, err)
	}
	return c.JSON(ingredients)
}

// GetIngredient handles GET /api/ingredients/:id
// @Summary Get an ingredient
// @Tags catalog
// @Produce json
// @Param id path int true "Ingredient ID"
// @Success 200 {object} models.Ingredient
// @Failure 404 {object} models.ErrorResponse
// @Router /ingredients/{id} [get]
func (s *Server) GetIngredient(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	ingredient, err := s.catalog.GetIngredient(c.UserContext(), id)
	if err != nil {
		return s.mapServiceError(c, err)
	}
	return c.JSON(ingredient)
}
