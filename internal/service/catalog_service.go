package service

import (
	"context"

	"foodgram/internal/models"
	"foodgram/internal/repository"
)

// CatalogService exposes the read-only tag and ingredient catalogs.
type CatalogService struct {
	tags        repository.TagRepository
	ingredients repository.IngredientRepository
}

func NewCatalogService(tags repository.TagRepository, ingredients repository.IngredientRepository) *CatalogService {
	return &CatalogService{tags: tags, ingredients: ingredients}
}

func (s *CatalogService) ListTags(ctx context.Context) ([]models.Tag, error) {
	tags, err := s.tags.List(ctx)
	if err != nil {
		return nil, err
	}
	if tags == nil {
		tags = []models.Tag{}
	}
	return tags, nil
}

func (s *CatalogService) GetTag(ctx context.Context, id uint) (*models.Tag, error) {
	return s.tags.GetByID(ctx, id)
}

// SearchIngredients matches the start of the name, case-insensitively.
func (s *CatalogService) SearchIngredients(ctx context.Context, prefix string) ([]models.Ingredient, error) {
	ingredients, err := s.ingredients.SearchByPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}
	if ingredients == nil {
		ingredients = []models.Ingredient{}
	}
	return ingredients, nil
}

func (s *CatalogService) GetIngredient(ctx context.Context, id uint) (*models.Ingredient, error) {
	return s.ingredients.GetByID(ctx, id)
}
