// Package notifications delivers recipe feed events to connected subscribers.
package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"foodgram/internal/middleware"
	"foodgram/internal/models"
	"foodgram/internal/observability"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const (
	userChannelPrefix = "notifications:user:"
	userChannelGlob   = userChannelPrefix + "*"

	// EventRecipeCreated is sent to subscribers when a followed author publishes.
	EventRecipeCreated = "recipe_created"
)

// Event is the envelope written to websocket clients.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// RecipeCreatedPayload describes a newly published recipe.
type RecipeCreatedPayload struct {
	RecipeID       uint      `json:"recipe_id"`
	Name           string    `json:"name"`
	Image          string    `json:"image"`
	CookingTime    int       `json:"cooking_time"`
	ShortLink      string    `json:"short_link,omitempty"`
	AuthorID       uint      `json:"author_id"`
	AuthorUsername string    `json:"author_username"`
	PublishedAt    time.Time `json:"published_at"`
}

// Notifier publishes events into per-user Redis channels.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a Notifier. A nil client turns every publish into a no-op.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishUser sends a raw payload to a user's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, payload string) error {
	if n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// PublishRecipeCreated fans a recipe_created event out to every subscriber in one pipeline.
func (n *Notifier) PublishRecipeCreated(ctx context.Context, subscriberIDs []uint, recipe *models.Recipe, author *models.User) error {
	if n.rdb == nil || len(subscriberIDs) == 0 {
		return nil
	}

	payload := RecipeCreatedPayload{
		RecipeID:    recipe.ID,
		Name:        recipe.Name,
		Image:       recipe.Image,
		CookingTime: recipe.CookingTime,
		AuthorID:    recipe.AuthorID,
		PublishedAt: recipe.PubDate,
	}
	if recipe.ShortLink != nil {
		payload.ShortLink = *recipe.ShortLink
	}
	if author != nil {
		payload.AuthorUsername = author.Username
	}

	data, err := json.Marshal(Event{Type: EventRecipeCreated, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pipe := n.rdb.Pipeline()
	for _, id := range subscriberIDs {
		pipe.Publish(ctx, UserChannel(id), data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish recipe_created: %w", err)
	}
	observability.FeedEventsPublished.Add(float64(len(subscriberIDs)))
	return nil
}

// StartPatternSubscriber subscribes to every user channel and calls onMessage
// for each message until ctx is cancelled.
func (n *Notifier) StartPatternSubscriber(ctx context.Context, onMessage func(channel, payload string)) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, userChannelGlob)
	// Wait for the subscription to be confirmed so early publishes are not lost.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", userChannelGlob, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in feed subscriber",
								slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID uint) string {
	return userChannelPrefix + strconv.FormatUint(uint64(userID), 10)
}

// ParseUserChannel extracts the user ID from a channel produced by UserChannel.
func ParseUserChannel(channel string) (uint, bool) {
	raw, ok := strings.CutPrefix(channel, userChannelPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
