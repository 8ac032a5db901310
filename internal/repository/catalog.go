package repository

import (
	"context"
	"strings"

	"foodgram/internal/cache"
	"foodgram/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TagRepository reads the tag catalog.
type TagRepository interface {
	List(ctx context.Context) ([]models.Tag, error)
	GetByID(ctx context.Context, id uint) (*models.Tag, error)
	GetByIDs(ctx context.Context, ids []uint) ([]models.Tag, error)
	// Upsert inserts tags whose slug is not taken yet and reports how many were added.
	Upsert(ctx context.Context, tags []models.Tag) (int64, error)
}

type tagRepository struct {
	db *gorm.DB
}

// NewTagRepository returns a GORM-backed TagRepository.
func NewTagRepository(db *gorm.DB) TagRepository {
	return &tagRepository{db: db}
}

func (r *tagRepository) List(ctx context.Context) ([]models.Tag, error) {
	var tags []models.Tag
	err := cache.Aside(ctx, cache.TagsKey, &tags, cache.TagsTTL, func() error {
		if err := readDB(r.db).WithContext(ctx).Order("name ASC").Find(&tags).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tags, nil
}

func (r *tagRepository) GetByID(ctx context.Context, id uint) (*models.Tag, error) {
	var tag models.Tag
	if err := readDB(r.db).WithContext(ctx).First(&tag, id).Error; err != nil {
		return nil, mapLookupError(err, "Tag", id)
	}
	return &tag, nil
}

func (r *tagRepository) GetByIDs(ctx context.Context, ids []uint) ([]models.Tag, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var tags []models.Tag
	if err := readDB(r.db).WithContext(ctx).Where("id IN ?", ids).Find(&tags).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return tags, nil
}

func (r *tagRepository) Upsert(ctx context.Context, tags []models.Tag) (int64, error) {
	if len(tags) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&tags)
	if result.Error != nil {
		return 0, models.NewInternalError(result.Error)
	}
	if result.RowsAffected > 0 {
		cache.InvalidateCatalog(ctx)
	}
	return result.RowsAffected, nil
}

// IngredientRepository reads the ingredient catalog.
type IngredientRepository interface {
	SearchByPrefix(ctx context.Context, prefix string) ([]models.Ingredient, error)
	GetByID(ctx context.Context, id uint) (*models.Ingredient, error)
	GetByIDs(ctx context.Context, ids []uint) ([]models.Ingredient, error)
	Upsert(ctx context.Context, ingredients []models.Ingredient) (int64, error)
}

type ingredientRepository struct {
	db *gorm.DB
}

// NewIngredientRepository returns a GORM-backed IngredientRepository.
func NewIngredientRepository(db *gorm.DB) IngredientRepository {
	return &ingredientRepository{db: db}
}

// SearchByPrefix matches names case-insensitively. An empty prefix lists the whole catalog.
func (r *ingredientRepository) SearchByPrefix(ctx context.Context, prefix string) ([]models.Ingredient, error) {
	prefix = strings.TrimSpace(prefix)

	var ingredients []models.Ingredient
	err := cache.Aside(ctx, cache.IngredientSearchKey(prefix), &ingredients, cache.IngredientTTL, func() error {
		q := readDB(r.db).WithContext(ctx).Order("name ASC").Order("measurement_unit ASC")
		if prefix != "" {
			q = q.Where("LOWER(name) LIKE ? ESCAPE '\\'", escapeLike(strings.ToLower(prefix))+"%")
		}
		if err := q.Find(&ingredients).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ingredients, nil
}

func (r *ingredientRepository) GetByID(ctx context.Context, id uint) (*models.Ingredient, error) {
	var ing models.Ingredient
	if err := readDB(r.db).WithContext(ctx).First(&ing, id).Error; err != nil {
		return nil, mapLookupError(err, "Ingredient", id)
	}
	return &ing, nil
}

func (r *ingredientRepository) GetByIDs(ctx context.Context, ids []uint) ([]models.Ingredient, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var ingredients []models.Ingredient
	if err := readDB(r.db).WithContext(ctx).Where("id IN ?", ids).Find(&ingredients).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ingredients, nil
}

func (r *ingredientRepository) Upsert(ctx context.Context, ingredients []models.Ingredient) (int64, error) {
	if len(ingredients) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&ingredients, 500)
	if result.Error != nil {
		return 0, models.NewInternalError(result.Error)
	}
	if result.RowsAffected > 0 {
		cache.InvalidateCatalog(ctx)
	}
	return result.RowsAffected, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
