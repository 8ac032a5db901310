package server

import (
	"log/slog"

	"foodgram/internal/featureflags"
	"foodgram/internal/middleware"
	"foodgram/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

var feedReadyMessage = []byte(`{"type":"ready"}`)

// FeedUpgradeRequired rejects plain HTTP requests to the feed endpoint.
func (s *Server) FeedUpgradeRequired(c *fiber.Ctx) error {
	if s.hub == nil {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			models.NewValidationError("Realtime feed is unavailable"))
	}
	if userID, _ := c.Locals("userID").(uint); !s.flags.Enabled(featureflags.RecipeFeed, userID) {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewForbiddenError("Realtime feed is not enabled for this account"))
	}
	if !websocket.IsWebSocketUpgrade(c) {
		return models.RespondWithError(c, fiber.StatusUpgradeRequired,
			models.NewValidationError("WebSocket upgrade required"))
	}
	return c.Next()
}

// FeedHandler streams recipe_created events from followed authors.
// @Summary Subscribe to the recipe feed
// @Description Authenticate with ?ticket= from POST /ws/ticket.
// @Tags feed
// @Param ticket query string true "Single-use ticket"
// @Success 101
// @Failure 401 {object} models.ErrorResponse
// @Failure 426 {object} models.ErrorResponse
// @Router /ws [get]
func (s *Server) FeedHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		middleware.ActiveWebSockets.Inc()
		defer middleware.ActiveWebSockets.Dec()

		userID, ok := conn.Locals("userID").(uint)
		if !ok || userID == 0 {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(userID, conn)
		if err != nil {
			middleware.Logger.Warn("feed connection rejected",
				slog.Uint64("user_id", uint64(userID)), slog.String("error", err.Error()))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}
		middleware.Logger.Debug("feed connected", slog.Uint64("user_id", uint64(userID)))

		client.TrySend(feedReadyMessage)
		client.Run()
	})
}
