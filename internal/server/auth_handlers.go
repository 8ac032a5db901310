package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"foodgram/internal/featureflags"
	"foodgram/internal/middleware"
	"foodgram/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	tokenIssuer   = "foodgram-api"
	tokenAudience = "foodgram-client"

	blacklistKeyPrefix = "blacklist:"
	wsTicketKeyPrefix  = "ws_ticket:"
	wsTicketTTL        = 30 * time.Second
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/auth/token/login
// @Summary Obtain an auth token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body loginRequest true "Credentials"
// @Success 200 {object} object{auth_token=string}
// @Failure 400 {object} models.ErrorResponse
// @Router /auth/token/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.users.Authenticate(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return s.mapServiceError(c, err)
	}

	token, err := s.generateToken(user.ID, user.Username)
	if err != nil {
		return s.mapServiceError(c, models.NewInternalError(err))
	}
	return c.JSON(fiber.Map{"auth_token": token})
}

// Logout handles POST /api/auth/token/logout by revoking the presented token.
// @Summary Revoke the current token
// @Tags auth
// @Security BearerAuth
// @Success 204
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/token/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	jti, _ := c.Locals("jti").(string)
	exp, _ := c.Locals("tokenExp").(time.Time)

	if jti != "" && s.redis != nil {
		ttl := time.Until(exp)
		if ttl <= 0 {
			ttl = time.Minute
		}
		if err := s.redis.Set(c.UserContext(), blacklistKeyPrefix+jti, "1", ttl).Err(); err != nil {
			middleware.RedisErrors.WithLabelValues("set").Inc()
			return s.mapServiceError(c, models.NewInternalError(err))
		}
	} else if s.redis == nil {
		middleware.Logger.WarnContext(c.UserContext(), "logout without redis; token stays valid until expiry")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// IssueWSTicket handles POST /api/ws/ticket. Browsers cannot set headers on a
// websocket handshake, so the feed authenticates with a single-use ticket.
// @Summary Issue a websocket ticket
// @Tags feed
// @Security BearerAuth
// @Produce json
// @Success 200 {object} object{ticket=string,expires_in=int}
// @Failure 403 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /ws/ticket [post]
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	if s.redis == nil {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			models.NewValidationError("Realtime feed is unavailable"))
	}
	userID := c.Locals("userID").(uint)
	if !s.flags.Enabled(featureflags.RecipeFeed, userID) {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewForbiddenError("Realtime feed is not enabled for this account"))
	}
	ticket := uuid.NewString()
	if err := s.redis.Set(c.UserContext(), wsTicketKeyPrefix+ticket, strconv.FormatUint(uint64(userID), 10), wsTicketTTL).Err(); err != nil {
		middleware.RedisErrors.WithLabelValues("set").Inc()
		return s.mapServiceError(c, models.NewInternalError(err))
	}
	return c.JSON(fiber.Map{"ticket": ticket, "expires_in": int(wsTicketTTL.Seconds())})
}

func (s *Server) generateToken(userID uint, username string) (string, error) {
	if s.config.JWTSecret == "" {
		return "", errors.New("JWT secret not configured")
	}
	ttl := time.Duration(s.config.JWTTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(userID), 10),
		"username": username,
		"iss":      tokenIssuer,
		"aud":      tokenAudience,
		"exp":      now.Add(ttl).Unix(),
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"jti":      uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.JWTSecret))
}

type tokenClaims struct {
	userID uint
	jti    string
	exp    time.Time
}

// parseToken validates signature, issuer, audience and expiry and checks the
// revocation list.
func (s *Server) parseToken(ctx context.Context, raw string) (*tokenClaims, error) {
	token, err := jwt.Parse(raw, func(*jwt.Token) (any, error) {
		return []byte(s.config.JWTSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, models.NewUnauthorizedError("Invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, models.NewUnauthorizedError("Invalid token claims")
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return nil, models.NewUnauthorizedError("Invalid subject claim")
	}
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || userID == 0 {
		return nil, models.NewUnauthorizedError("Invalid user ID in token")
	}

	out := &tokenClaims{userID: uint(userID)}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.exp = exp.Time
	}
	out.jti, _ = claims["jti"].(string)

	if out.jti != "" && s.redis != nil {
		revoked, err := s.redis.Exists(ctx, blacklistKeyPrefix+out.jti).Result()
		if err != nil {
			middleware.RedisErrors.WithLabelValues("exists").Inc()
		} else if revoked > 0 {
			return nil, models.NewUnauthorizedError("Token has been revoked")
		}
	}
	return out, nil
}

// tokenFromHeader accepts "Bearer <jwt>" and "Token <jwt>".
func tokenFromHeader(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok {
		return ""
	}
	switch strings.ToLower(scheme) {
	case "bearer", "token":
		return strings.TrimSpace(token)
	}
	return ""
}

// AuthRequired returns the authentication middleware. The feed endpoint also
// accepts a single-use ticket in the query string.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if ticket := c.Query("ticket"); ticket != "" && strings.HasPrefix(c.Path(), "/api/ws") {
			userID, err := s.consumeWSTicket(c.UserContext(), ticket)
			if err != nil {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
			}
			s.setUser(c, userID)
			return c.Next()
		}

		raw := tokenFromHeader(c.Get(fiber.HeaderAuthorization))
		if raw == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authentication credentials were not provided"))
		}
		claims, err := s.parseToken(c.UserContext(), raw)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized, err)
		}

		c.Locals("jti", claims.jti)
		c.Locals("tokenExp", claims.exp)
		s.setUser(c, claims.userID)
		return c.Next()
	}
}

func (s *Server) setUser(c *fiber.Ctx, userID uint) {
	c.Locals("userID", userID)
	c.SetUserContext(context.WithValue(c.UserContext(), middleware.UserIDKey, userID))
}

func (s *Server) consumeWSTicket(ctx context.Context, ticket string) (uint, error) {
	if s.redis == nil {
		return 0, errors.New("redis unavailable")
	}
	raw, err := s.redis.GetDel(ctx, wsTicketKeyPrefix+ticket).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			middleware.RedisErrors.WithLabelValues("getdel").Inc()
		}
		return 0, err
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("bad ticket payload: %w", err)
	}
	return uint(id), nil
}

// optionalUserID returns the authenticated user on public endpoints, or 0.
func (s *Server) optionalUserID(c *fiber.Ctx) uint {
	if id, ok := c.Locals("userID").(uint); ok {
		return id
	}
	raw := tokenFromHeader(c.Get(fiber.HeaderAuthorization))
	if raw == "" {
		return 0
	}
	claims, err := s.parseToken(c.UserContext(), raw)
	if err != nil {
		middleware.Logger.DebugContext(c.UserContext(), "ignoring invalid token on public route", slog.String("error", err.Error()))
		return 0
	}
	s.setUser(c, claims.userID)
	return claims.userID
}
