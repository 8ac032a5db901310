package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"foodgram/internal/models"
	"foodgram/internal/observability"
	"foodgram/internal/repository"
)

// ShoppingListFilename is the attachment name of a downloaded shopping list.
const ShoppingListFilename = "shopping_list.txt"

// ShoppingListItem is the summed amount of one (ingredient, unit) pair.
type ShoppingListItem struct {
	Name            string
	MeasurementUnit string
	Total           int
}

type shoppingListKey struct {
	name string
	unit string
}

// AggregateShoppingList sums amounts per (name, unit) pair and returns the
// groups sorted by name, then unit.
func AggregateShoppingList(lines []models.ShoppingListLine) []ShoppingListItem {
	totals := make(map[shoppingListKey]int, len(lines))
	for _, l := range lines {
		totals[shoppingListKey{name: l.Name, unit: l.MeasurementUnit}] += l.Amount
	}

	items := make([]ShoppingListItem, 0, len(totals))
	for k, total := range totals {
		items = append(items, ShoppingListItem{Name: k.name, MeasurementUnit: k.unit, Total: total})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Name != items[j].Name {
			return items[i].Name < items[j].Name
		}
		return items[i].MeasurementUnit < items[j].MeasurementUnit
	})
	return items
}

// RenderShoppingList writes one "<name> — <total> <unit>" line per item.
func RenderShoppingList(items []ShoppingListItem) string {
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "%s — %d %s\n", it.Name, it.Total, it.MeasurementUnit)
	}
	return b.String()
}

// ShoppingListService builds downloadable shopping lists from a user's cart.
type ShoppingListService struct {
	cart repository.ShoppingCartRepository
}

// NewShoppingListService creates a ShoppingListService.
func NewShoppingListService(cart repository.ShoppingCartRepository) *ShoppingListService {
	return &ShoppingListService{cart: cart}
}

// Build returns the rendered list for userID. An empty cart is a validation error.
func (s *ShoppingListService) Build(ctx context.Context, userID uint) (string, error) {
	ctx, span := observability.StartServiceSpan(ctx, "ShoppingListService", "Build")
	defer span.End()

	lines, err := s.cart.Lines(ctx, userID)
	if err != nil {
		observability.RecordErrorInContext(ctx, err)
		return "", err
	}
	if len(lines) == 0 {
		return "", models.NewValidationError("Shopping cart is empty")
	}

	observability.ShoppingListDownloads.Inc()
	return RenderShoppingList(AggregateShoppingList(lines)), nil
}
