package repository

import (
	"context"
	"errors"

	"foodgram/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecipeFilter narrows a recipe listing. Zero values disable a filter;
// Favorited and InCart only apply when ViewerID is set.
type RecipeFilter struct {
	AuthorID  uint
	TagSlugs  []string
	ViewerID  uint
	Favorited *bool
	InCart    *bool
}

// RecipeRepository defines persistence operations for recipes.
type RecipeRepository interface {
	List(ctx context.Context, filter RecipeFilter, limit, offset int) ([]models.Recipe, int64, error)
	GetByID(ctx context.Context, id uint) (*models.Recipe, error)
	// Create inserts the recipe with its ingredient lines and tag links in one transaction.
	Create(ctx context.Context, recipe *models.Recipe, ingredients []models.RecipeIngredient, tagIDs []uint) error
	// Update writes scalar fields. A nil ingredients or tagIDs slice leaves that relation untouched.
	Update(ctx context.Context, recipe *models.Recipe, ingredients []models.RecipeIngredient, tagIDs []uint) error
	Delete(ctx context.Context, id uint) error
	ShortLinkExists(ctx context.Context, link string) (bool, error)
	// SetShortLinkIfEmpty stores link only when the recipe has none and reports whether it did.
	SetShortLinkIfEmpty(ctx context.Context, id uint, link string) (bool, error)
	GetByShortLink(ctx context.Context, link string) (*models.Recipe, error)
	ListByAuthor(ctx context.Context, authorID uint, limit int) ([]models.Recipe, error)
	CountByAuthors(ctx context.Context, authorIDs []uint) (map[uint]int64, error)
}

type recipeRepository struct {
	db *gorm.DB
}

// NewRecipeRepository creates a new recipe repository
func NewRecipeRepository(db *gorm.DB) RecipeRepository {
	return &recipeRepository{db: db}
}

func (r *recipeRepository) filtered(ctx context.Context, f RecipeFilter) *gorm.DB {
	q := readDB(r.db).WithContext(ctx).Model(&models.Recipe{})
	if f.AuthorID != 0 {
		q = q.Where("recipes.author_id = ?", f.AuthorID)
	}
	if len(f.TagSlugs) > 0 {
		q = q.Where(`recipes.id IN (SELECT recipe_tags.recipe_id FROM recipe_tags
			JOIN tags ON tags.id = recipe_tags.tag_id WHERE tags.slug IN ?)`, f.TagSlugs)
	}
	if f.ViewerID != 0 {
		q = membershipFilter(q, "favorites", f.ViewerID, f.Favorited)
		q = membershipFilter(q, "shopping_carts", f.ViewerID, f.InCart)
	}
	return q
}

func membershipFilter(q *gorm.DB, table string, userID uint, want *bool) *gorm.DB {
	if want == nil {
		return q
	}
	sub := "SELECT recipe_id FROM " + table + " WHERE user_id = ?"
	if *want {
		return q.Where("recipes.id IN ("+sub+")", userID)
	}
	return q.Where("recipes.id NOT IN ("+sub+")", userID)
}

func withDetails(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Author").
		Preload("Ingredients", func(db *gorm.DB) *gorm.DB { return db.Order("recipe_ingredients.id ASC") }).
		Preload("Ingredients.Ingredient").
		Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("tags.id ASC") })
}

func (r *recipeRepository) List(ctx context.Context, f RecipeFilter, limit, offset int) ([]models.Recipe, int64, error) {
	var total int64
	if err := r.filtered(ctx, f).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	if total == 0 {
		return []models.Recipe{}, 0, nil
	}

	var recipes []models.Recipe
	err := withDetails(r.filtered(ctx, f)).
		Order("recipes.pub_date DESC").
		Order("recipes.id DESC").
		Limit(limit).
		Offset(offset).
		Find(&recipes).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return recipes, total, nil
}

func (r *recipeRepository) GetByID(ctx context.Context, id uint) (*models.Recipe, error) {
	var recipe models.Recipe
	if err := withDetails(r.db.WithContext(ctx)).First(&recipe, id).Error; err != nil {
		return nil, mapLookupError(err, "Recipe", id)
	}
	return &recipe, nil
}

func (r *recipeRepository) Create(ctx context.Context, recipe *models.Recipe, ingredients []models.RecipeIngredient, tagIDs []uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(recipe).Error; err != nil {
			return err
		}
		if err := replaceIngredients(tx, recipe.ID, ingredients); err != nil {
			return err
		}
		return replaceTags(tx, recipe.ID, tagIDs)
	})
	if err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("recipe conflicts with an existing record")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *recipeRepository) Update(ctx context.Context, recipe *models.Recipe, ingredients []models.RecipeIngredient, tagIDs []uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Recipe{ID: recipe.ID}).
			Select("name", "image", "text", "cooking_time", "updated_at").
			Updates(map[string]interface{}{
				"name":         recipe.Name,
				"image":        recipe.Image,
				"text":         recipe.Text,
				"cooking_time": recipe.CookingTime,
				"updated_at":   gorm.Expr("CURRENT_TIMESTAMP"),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if ingredients != nil {
			if err := tx.Where("recipe_id = ?", recipe.ID).Delete(&models.RecipeIngredient{}).Error; err != nil {
				return err
			}
			if err := replaceIngredients(tx, recipe.ID, ingredients); err != nil {
				return err
			}
		}
		if tagIDs != nil {
			if err := tx.Exec("DELETE FROM recipe_tags WHERE recipe_id = ?", recipe.ID).Error; err != nil {
				return err
			}
			if err := replaceTags(tx, recipe.ID, tagIDs); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("Recipe", recipe.ID)
		}
		return models.NewInternalError(err)
	}
	return nil
}

func replaceIngredients(tx *gorm.DB, recipeID uint, ingredients []models.RecipeIngredient) error {
	if len(ingredients) == 0 {
		return nil
	}
	rows := make([]models.RecipeIngredient, len(ingredients))
	for i, ing := range ingredients {
		rows[i] = models.RecipeIngredient{RecipeID: recipeID, IngredientID: ing.IngredientID, Amount: ing.Amount}
	}
	return tx.Omit(clause.Associations).Create(&rows).Error
}

func replaceTags(tx *gorm.DB, recipeID uint, tagIDs []uint) error {
	for _, tagID := range tagIDs {
		if err := tx.Exec("INSERT INTO recipe_tags (recipe_id, tag_id) VALUES (?, ?)", recipeID, tagID).Error; err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the recipe and every row referencing it.
func (r *recipeRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, dependent := range []interface{}{
			&models.RecipeIngredient{},
			&models.Favorite{},
			&models.ShoppingCart{},
		} {
			if err := tx.Where("recipe_id = ?", id).Delete(dependent).Error; err != nil {
				return err
			}
		}
		if err := tx.Exec("DELETE FROM recipe_tags WHERE recipe_id = ?", id).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Recipe{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return mapLookupError(err, "Recipe", id)
	}
	return nil
}

func (r *recipeRepository) ShortLinkExists(ctx context.Context, link string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Recipe{}).Where("short_link = ?", link).Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *recipeRepository) SetShortLinkIfEmpty(ctx context.Context, id uint, link string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Recipe{}).
		Where("id = ? AND short_link IS NULL", id).
		UpdateColumn("short_link", link)
	if result.Error != nil {
		if isUniqueConstraintError(result.Error) {
			return false, models.NewConflictError("short link already taken")
		}
		return false, models.NewInternalError(result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *recipeRepository) GetByShortLink(ctx context.Context, link string) (*models.Recipe, error) {
	var recipe models.Recipe
	if err := readDB(r.db).WithContext(ctx).Where("short_link = ?", link).First(&recipe).Error; err != nil {
		return nil, mapLookupError(err, "Recipe", link)
	}
	return &recipe, nil
}

// ListByAuthor returns the author's newest recipes. limit <= 0 means no limit.
func (r *recipeRepository) ListByAuthor(ctx context.Context, authorID uint, limit int) ([]models.Recipe, error) {
	q := readDB(r.db).WithContext(ctx).
		Where("author_id = ?", authorID).
		Order("pub_date DESC").
		Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var recipes []models.Recipe
	if err := q.Find(&recipes).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return recipes, nil
}

func (r *recipeRepository) CountByAuthors(ctx context.Context, authorIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(authorIDs))
	if len(authorIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		AuthorID uint
		Total    int64
	}
	err := readDB(r.db).WithContext(ctx).
		Model(&models.Recipe{}).
		Select("author_id, COUNT(*) AS total").
		Where("author_id IN ?", authorIDs).
		Group("author_id").
		Scan(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, row := range rows {
		counts[row.AuthorID] = row.Total
	}
	return counts, nil
}
