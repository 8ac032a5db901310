package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	UserKeyPrefix             = "user:%d"
	TagsKey                   = "tags:all"
	IngredientSearchKeyPrefix = "ingredients:search:%s"
)

const (
	UserTTL       = 5 * time.Minute
	TagsTTL       = 30 * time.Minute
	IngredientTTL = 10 * time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

// IngredientSearchKey keys prefix searches case-insensitively.
func IngredientSearchKey(prefix string) string {
	return fmt.Sprintf(IngredientSearchKeyPrefix, strings.ToLower(strings.TrimSpace(prefix)))
}

func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

// InvalidateCatalog drops cached tags and every ingredient search page.
func InvalidateCatalog(ctx context.Context) {
	if client == nil {
		return
	}
	Invalidate(ctx, TagsKey)
	iter := client.Scan(ctx, 0, fmt.Sprintf(IngredientSearchKeyPrefix, "*"), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	Invalidate(ctx, keys...)
}
