package service

import (
	"context"

	"foodgram/internal/models"
	"foodgram/internal/observability"
	"foodgram/internal/repository"
)

// Toggle kinds used in metrics and messages.
const (
	MarkKindFavorite     = "favorite"
	MarkKindShoppingCart = "shopping_cart"
)

// RecipeMarkService adds and removes recipes from a per-user set.
type RecipeMarkService struct {
	kind     string
	listName string
	marks    repository.RecipeMarkRepository
	recipes  repository.RecipeRepository
}

// NewFavoriteService manages favorites.
func NewFavoriteService(marks repository.RecipeMarkRepository, recipes repository.RecipeRepository) *RecipeMarkService {
	return &RecipeMarkService{kind: MarkKindFavorite, listName: "favorites", marks: marks, recipes: recipes}
}

// NewShoppingCartService manages the shopping cart.
func NewShoppingCartService(marks repository.RecipeMarkRepository, recipes repository.RecipeRepository) *RecipeMarkService {
	return &RecipeMarkService{kind: MarkKindShoppingCart, listName: "the shopping cart", marks: marks, recipes: recipes}
}

// Add marks the recipe. Adding twice is a conflict.
func (s *RecipeMarkService) Add(ctx context.Context, userID, recipeID uint) (*ShortRecipeView, error) {
	recipe, err := s.recipes.GetByID(ctx, recipeID)
	if err != nil {
		return nil, err
	}

	exists, err := s.marks.Exists(ctx, userID, recipeID)
	if err != nil {
		return nil, err
	}
	if exists {
		s.record("add", "conflict")
		return nil, models.NewConflictError("Recipe is already in " + s.listName)
	}
	if err := s.marks.Add(ctx, userID, recipeID); err != nil {
		if models.HasCode(err, models.CodeConflict) {
			s.record("add", "conflict")
			return nil, models.NewConflictError("Recipe is already in " + s.listName)
		}
		s.record("add", "error")
		return nil, err
	}

	s.record("add", "ok")
	view := NewShortRecipeView(recipe)
	return &view, nil
}

// Remove unmarks the recipe. Removing an absent mark is not found.
func (s *RecipeMarkService) Remove(ctx context.Context, userID, recipeID uint) error {
	if _, err := s.recipes.GetByID(ctx, recipeID); err != nil {
		return err
	}
	if err := s.marks.Remove(ctx, userID, recipeID); err != nil {
		if models.HasCode(err, models.CodeNotFound) {
			s.record("remove", "not_found")
			return models.NewNotFoundError("Recipe in "+s.listName, recipeID)
		}
		s.record("remove", "error")
		return err
	}
	s.record("remove", "ok")
	return nil
}

func (s *RecipeMarkService) record(action, result string) {
	observability.ToggleOperations.WithLabelValues(s.kind, action, result).Inc()
}
