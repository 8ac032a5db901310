package server

import (
	"io"
	"strconv"
	"strings"

	"foodgram/internal/models"
	"foodgram/internal/repository"
	"foodgram/internal/service"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
)

// ListRecipes handles GET /api/recipes/
// @Summary List recipes, newest first
// @Tags recipes
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Param author query int false "Author ID"
// @Param tags query []string false "Tag slugs (any match)" collectionFormat(multi)
// @Param is_favorited query int false "1 to list favorites only"
// @Param is_in_shopping_cart query int false "1 to list the shopping cart only"
// @Success 200 {object} Page[service.RecipeView]
// @Router /recipes/ [get]
func (s *Server) ListRecipes(c *fiber.Ctx) error {
	p := parsePagination(c, s.config.PageSize)
	viewerID := s.optionalUserID(c)

	filter := repository.RecipeFilter{}
	if raw := c.Query("author"); raw != "" {
		authorID, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || authorID == 0 {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewFieldValidationError(map[string]string{"author": "author must be a user ID"}))
		}
		filter.AuthorID = uint(authorID)
	}
	for _, slug := range c.Context().QueryArgs().PeekMulti("tags") {
		if v := strings.TrimSpace(string(slug)); v != "" {
			filter.TagSlugs = append(filter.TagSlugs, v)
		}
	}
	if viewerID != 0 {
		filter.Favorited = parseBoolFlag(c, "is_favorited")
		filter.InCart = parseBoolFlag(c, "is_in_shopping_cart")
	}

	recipes, total, err := s.recipes.ListRecipes(c.UserContext(), service.ListRecipesInput{
		Filter:   filter,
		ViewerID: viewerID,
		Limit:    p.Limit,
		Offset:   p.Offset,
	})
	if err != nil {
		return s.mapServiceError(c, err)
	}
	return c.JSON(newPage(c, p, total, recipes))
}

// GetRecipe handles GET /api/recipes/:id
// @Summary Get a recipe
// @Tags recipes
// @Produce json
// @Param id path int true "Recipe ID"
// @Success 200 {object} service.RecipeView
// @Failure 404 {object} models.ErrorResponse
// @Router /recipes/{id} [get]
func (s *Server) GetRecipe(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	recipe, err := s.recipes.GetRecipe(c.UserContext(), id, s.optionalUserID(c))
	if err != nil {
		return s.mapServiceError(c, err)
	}
	return c.JSON(recipe)
}

// CreateRecipe handles POST /api/recipes/ (JSON or multipart)
// @Summary Publish a recipe
// @Tags recipes
// @Security BearerAuth
// @Accept json,mpfd
// @Produce json
// @Param request body service.RecipeInput true "Recipe"
// @Success 201 {object} service.RecipeView
// @Failure 400 {object} models.ErrorResponse
// @Router /recipes/ [post]
func (s *Server) CreateRecipe(c *fiber.Ctx) error {
	in, err := s.parseRecipeInput(c)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, err)
	}
	recipe, err := s.recipes.CreateRecipe(c.UserContext(), currentUserID(c), *in)
	if err != nil {
		return s.mapServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(recipe)
}

// UpdateRecipe handles PUT and PATCH /api/recipes/:id
// @Summary Update a recipe (author only)
// @Tags recipes
// @Security BearerAuth
// @Accept json,mpfd
// @Produce json
// @Param id path int true "Recipe ID"
// @Param request body service.RecipeInput true "Recipe"
// @Success 200 {object} service.RecipeView
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /recipes/{id} [patch]
func (s *Server) UpdateRecipe(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	in, err := s.parseRecipeInput(c)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, err)
	}
	recipe, err := s.recipes.UpdateRecipe(c.UserContext(), currentUserID(c), id, *in)
	if err != nil {
		return s.mapServiceError(c, err)
	}
	return c.JSON(recipe)
}

// DeleteRecipe handles DELETE /api/recipes/:id
// @Summary Delete a recipe (author only)
// @Tags recipes
// @Security BearerAuth
// @Param id path int true "Recipe ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /recipes/{id} [delete]
func (s *Server) DeleteRecipe(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.recipes.DeleteRecipe(c.UserContext(), currentUserID(c), id); err != nil {
		return s.mapServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetRecipeLink handles GET /api/recipes/:id/get-link
// @Summary Get the recipe's short link
// @Tags recipes
// @Produce json
// @Param id path int true "Recipe ID"
// @Success 200 {object} object{short_link=string}
// @Failure 404 {object} models.ErrorResponse
// @Router /recipes/{id}/get-link [get]
func (s *Server) GetRecipeLink(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	link, err := s.recipes.GetShortLink(c.UserContext(), id)
	if err != nil {
		return s.mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"short_link": link})
}

// ResolveShortLink handles GET /s/:code
// @Summary Follow a short link
// @Tags recipes
// @Param code path string true "Short code"
// @Success 302
// @Failure 404 {object} models.ErrorResponse
// @Router /s/{code} [get]
func (s *Server) ResolveShortLink(c *fiber.Ctx) error {
	id, err := s.recipes.ResolveShortCode(c.UserContext(), c.Params("code"))
	if err != nil {
		return s.mapServiceError(c, err)
	}
	return c.Redirect("/recipes/"+strconv.FormatUint(uint64(id), 10), fiber.StatusFound)
}

// DownloadShoppingCart handles GET /api/recipes/download_shopping_cart
// @Summary Download the aggregated shopping list
// @Tags shopping cart
// @Security BearerAuth
// @Produce plain
// @Success 200 {string} string "shopping_list.txt"
// @Failure 400 {object} models.ErrorResponse
// @Router /recipes/download_shopping_cart [get]
func (s *Server) DownloadShoppingCart(c *fiber.Ctx) error {
	list, err := s.shoppingList.Build(c.UserContext(), currentUserID(c))
	if err != nil {
		return s.mapServiceError(c, err)
	}
	c.Attachment(service.ShoppingListFilename)
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.SendString(list)
}

// AddFavorite handles POST /api/recipes/:id/favorite
// @Summary Add a recipe to favorites
// @Tags favorites
// @Security BearerAuth
// @Produce json
// @Param id path int true "Recipe ID"
// @Success 201 {object} service.ShortRecipeView
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /recipes/{id}/favorite [post]
func (s *Server) AddFavorite(c *fiber.Ctx) error {
	return s.addMark(c, s.favorites)
}

// RemoveFavorite handles DELETE /api/recipes/:id/favorite
// @Summary Remove a recipe from favorites
// @Tags favorites
// @Security BearerAuth
// @Param id path int true "Recipe ID"
// @Success 204
// @Failure 404 {object} models.ErrorResponse
// @Router /recipes/{id}/favorite [delete]
func (s *Server) RemoveFavorite(c *fiber.Ctx) error {
	return s.removeMark(c, s.favorites)
}

// AddToShoppingCart handles POST /api/recipes/:id/shopping_cart
// @Summary Add a recipe to the shopping cart
// @Tags shopping cart
// @Security BearerAuth
// @Produce json
// @Param id path int true "Recipe ID"
// @Success 201 {object} service.ShortRecipeView
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /recipes/{id}/shopping_cart [post]
func (s *Server) AddToShoppingCart(c *fiber.Ctx) error {
	return s.addMark(c, s.cart)
}

// RemoveFromShoppingCart handles DELETE /api/recipes/:id/shopping_cart
// @Summary Remove a recipe from the shopping cart
// @Tags shopping cart
// @Security BearerAuth
// @Param id path int true "Recipe ID"
// @Success 204
// @Failure 404 {object} models.ErrorResponse
// @Router /recipes/{id}/shopping_cart [delete]
func (s *Server) RemoveFromShoppingCart(c *fiber.Ctx) error {
	return s.removeMark(c, s.cart)
}

func (s *Server) addMark(c *fiber.Ctx, marks *service.RecipeMarkService) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	view, err := marks.Add(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return s.mapServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(view)
}

func (s *Server) removeMark(c *fiber.Ctx, marks *service.RecipeMarkService) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := marks.Remove(c.UserContext(), currentUserID(c), id); err != nil {
		return s.mapServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// parseRecipeInput accepts a JSON body or a multipart form whose
// ingredients and tags fields hold JSON and whose image is a file part.
func (s *Server) parseRecipeInput(c *fiber.Ctx) (*service.RecipeInput, error) {
	var in service.RecipeInput
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		if err := c.BodyParser(&in); err != nil {
			return nil, models.NewValidationError("Invalid request body")
		}
		return &in, nil
	}

	in.Name = c.FormValue("name")
	in.Text = c.FormValue("text")
	in.Image = c.FormValue("image")
	if raw := c.FormValue("cooking_time"); raw != "" {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, models.NewFieldValidationError(map[string]string{"cooking_time": "cooking_time must be an integer"})
		}
		in.CookingTime = n
	}
	if raw := c.FormValue("ingredients"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &in.Ingredients); err != nil {
			return nil, models.NewFieldValidationError(map[string]string{"ingredients": "ingredients must be a JSON list of {id, amount}"})
		}
	}
	if raw := c.FormValue("tags"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &in.Tags); err != nil {
			return nil, models.NewFieldValidationError(map[string]string{"tags": "tags must be a JSON list of IDs"})
		}
	}

	file, err := c.FormFile("image")
	if err != nil {
		// No file part; a data URI in the image field may still be present.
		return &in, nil
	}
	src, err := file.Open()
	if err != nil {
		return nil, models.NewFieldValidationError(map[string]string{"image": "Unable to read uploaded file"})
	}
	defer func() { _ = src.Close() }()

	content, err := io.ReadAll(src)
	if err != nil {
		return nil, models.NewFieldValidationError(map[string]string{"image": "Unable to read uploaded file"})
	}
	in.Image = ""
	in.ImageFile = &service.ImageUpload{
		Filename:    file.Filename,
		ContentType: file.Header.Get(fiber.HeaderContentType),
		Content:     content,
	}
	return &in, nil
}
