package server

import (
	"foodgram/internal/models"
	"foodgram/internal/service"

	"github.com/gofiber/fiber/v2"
)

type registerResponse struct {
	ID        uint   `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type avatarRequest struct {
	Avatar string `json:"avatar"`
}

// Register handles POST /api/users/
// @Summary Register a new user
// @Tags users
// @Accept json
// @Produce json
// @Param request body service.RegisterInput true "Sign-up data"
// @Success 201 {object} registerResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /users/ [post]
func (s *Server) Register(c *fiber.Ctx) error {
	var in service.RegisterInput
	if err := c.BodyParser(&in); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.users.Register(c.UserContext(), in)
	if err != nil {
		return s.mapServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(registerResponse{
		ID:        user.ID,
		Email:     user.Email,
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	})
}

// ListUsers handles GET /api/users/
// @Summary List users
// @Tags users
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} Page[service.UserView]
// @Router /users/ [get]
func (s *Server) ListUsers(c *fiber.Ctx) error {
	p := parsePagination(c, s.config.PageSize)
	users, total, err := s.users.ListUsers(c.UserContext(), s.optionalUserID(c), p.Limit, p.Offset)
	if err != nil {
		return s.mapServiceError(c, err)
	}
	return c.JSON(newPage(c, p, total, users))
}

// GetUser handles GET /api/users/:id
// @Summary Get a user profile
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} service.UserView
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id} [get]
func (s *Server) GetUser(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	user, err := s.users.GetUser(c.UserContext(), id, s.optionalUserID(c))
	if err != nil {
		return s.mapServiceError(c, err)
	}
	return c.JSON(user)
}

// GetMe handles GET /api/users/me
// @Summary Get the current user
// @Tags users
// @Security BearerAuth
// @Produce json
// @Success 200 {object} service.UserView
// @Failure 401 {object} models.ErrorResponse
// @Router /users/me [get]
func (s *Server) GetMe(c *fiber.Ctx) error {
	userID := currentUserID(c)
	user, err := s.users.GetUser(c.UserContext(), userID, userID)
	if err != nil {
		return s.mapServiceError(c, err)
	}
	return c.JSON(user)
}

// SetAvatar handles PUT /api/users/me/avatar with a base64 data URI.
// @Summary Set the current user's avatar
// @Tags users
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body avatarRequest true "Avatar data URI"
// @Success 200 {object} object{avatar=string}
// @Failure 400 {object} models.ErrorResponse
// @Router /users/me/avatar [put]
func (s *Server) SetAvatar(c *fiber.Ctx) error {
	var req avatarRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	url, err := s.users.SetAvatar(c.UserContext(), currentUserID(c), req.Avatar)
	if err != nil {
		return s.mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"avatar": url})
}

// DeleteAvatar handles DELETE /api/users/me/avatar
// @Summary Remove the current user's avatar
// @Tags users
// @Security BearerAuth
// @Success 204
// @Router /users/me/avatar [delete]
func (s *Server) DeleteAvatar(c *fiber.Ctx) error {
	if err := s.users.DeleteAvatar(c.UserContext(), currentUserID(c)); err != nil {
		return s.mapServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// SetPassword handles POST /api/users/set_password
// @Summary Change the current user's password
// @Tags users
// @Security BearerAuth
// @Accept json
// @Param request body service.SetPasswordInput true "Passwords"
// @Success 204
// @Failure 400 {object} models.ErrorResponse
// @Router /users/set_password [post]
func (s *Server) SetPassword(c *fiber.Ctx) error {
	var in service.SetPasswordInput
	if err := c.BodyParser(&in); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if err := s.users.SetPassword(c.UserContext(), currentUserID(c), in); err != nil {
		return s.mapServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
