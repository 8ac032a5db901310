package repository

import (
	"context"

	"foodgram/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecipeMarkRepository stores a per-user set of recipes (favorites or cart).
type RecipeMarkRepository interface {
	Add(ctx context.Context, userID, recipeID uint) error
	Remove(ctx context.Context, userID, recipeID uint) error
	Exists(ctx context.Context, userID, recipeID uint) (bool, error)
	// MarkedRecipeIDs returns the subset of recipeIDs the user has marked.
	MarkedRecipeIDs(ctx context.Context, userID uint, recipeIDs []uint) ([]uint, error)
}

// ShoppingCartRepository is the cart mark set plus the ingredient lines it expands to.
type ShoppingCartRepository interface {
	RecipeMarkRepository
	Lines(ctx context.Context, userID uint) ([]models.ShoppingListLine, error)
}

type recipeMarkRepository struct {
	db       *gorm.DB
	model    interface{}
	resource string
	newRow   func(userID, recipeID uint) interface{}
}

// NewFavoriteRepository returns the favorites mark set.
func NewFavoriteRepository(db *gorm.DB) RecipeMarkRepository {
	return &recipeMarkRepository{
		db:       db,
		model:    &models.Favorite{},
		resource: "Favorite",
		newRow: func(userID, recipeID uint) interface{} {
			return &models.Favorite{UserID: userID, RecipeID: recipeID}
		},
	}
}

type shoppingCartRepository struct {
	*recipeMarkRepository
}

// NewShoppingCartRepository returns the shopping cart mark set.
func NewShoppingCartRepository(db *gorm.DB) ShoppingCartRepository {
	return &shoppingCartRepository{&recipeMarkRepository{
		db:       db,
		model:    &models.ShoppingCart{},
		resource: "Shopping cart entry",
		newRow: func(userID, recipeID uint) interface{} {
			return &models.ShoppingCart{UserID: userID, RecipeID: recipeID}
		},
	}}
}

// Add inserts the pair. A unique violation means a concurrent request won
// the race and is reported as a conflict.
func (r *recipeMarkRepository) Add(ctx context.Context, userID, recipeID uint) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(r.newRow(userID, recipeID)).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError(r.resource + " already exists")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *recipeMarkRepository) Remove(ctx context.Context, userID, recipeID uint) error {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND recipe_id = ?", userID, recipeID).
		Delete(r.model)
	if result.Error != nil {
		return models.NewInternalError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError(r.resource, recipeID)
	}
	return nil
}

func (r *recipeMarkRepository) Exists(ctx context.Context, userID, recipeID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(r.model).
		Where("user_id = ? AND recipe_id = ?", userID, recipeID).
		Count(&count).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *recipeMarkRepository) MarkedRecipeIDs(ctx context.Context, userID uint, recipeIDs []uint) ([]uint, error) {
	if userID == 0 || len(recipeIDs) == 0 {
		return nil, nil
	}
	var marked []uint
	err := readDB(r.db).WithContext(ctx).
		Model(r.model).
		Where("user_id = ? AND recipe_id IN ?", userID, recipeIDs).
		Pluck("recipe_id", &marked).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return marked, nil
}

// Lines returns one row per ingredient line of every recipe in the cart, un-aggregated.
func (r *shoppingCartRepository) Lines(ctx context.Context, userID uint) ([]models.ShoppingListLine, error) {
	var lines []models.ShoppingListLine
	err := r.db.WithContext(ctx).
		Table("shopping_carts").
		Select("ingredients.name AS name, ingredients.measurement_unit AS measurement_unit, recipe_ingredients.amount AS amount").
		Joins("JOIN recipe_ingredients ON recipe_ingredients.recipe_id = shopping_carts.recipe_id").
		Joins("JOIN ingredients ON ingredients.id = recipe_ingredients.ingredient_id").
		Where("shopping_carts.user_id = ?", userID).
		Scan(&lines).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return lines, nil
}

// SubscriptionRepository stores follow relations between users and authors.
type SubscriptionRepository interface {
	Add(ctx context.Context, userID, authorID uint) error
	Remove(ctx context.Context, userID, authorID uint) error
	Exists(ctx context.Context, userID, authorID uint) (bool, error)
	SubscribedAuthorIDs(ctx context.Context, userID uint, authorIDs []uint) ([]uint, error)
	// ListAuthors pages through the authors userID follows, most recent first.
	ListAuthors(ctx context.Context, userID uint, limit, offset int) ([]models.User, int64, error)
	SubscriberIDs(ctx context.Context, authorID uint) ([]uint, error)
}

type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository returns a GORM-backed SubscriptionRepository.
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) Add(ctx context.Context, userID, authorID uint) error {
	sub := &models.Subscription{UserID: userID, AuthorID: authorID}
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(sub).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Subscription already exists")
		}
		if isCheckConstraintError(err) {
			return models.NewValidationError("You cannot subscribe to yourself")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *subscriptionRepository) Remove(ctx context.Context, userID, authorID uint) error {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND author_id = ?", userID, authorID).
		Delete(&models.Subscription{})
	if result.Error != nil {
		return models.NewInternalError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Subscription", authorID)
	}
	return nil
}

func (r *subscriptionRepository) Exists(ctx context.Context, userID, authorID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("user_id = ? AND author_id = ?", userID, authorID).
		Count(&count).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *subscriptionRepository) SubscribedAuthorIDs(ctx context.Context, userID uint, authorIDs []uint) ([]uint, error) {
	if userID == 0 || len(authorIDs) == 0 {
		return nil, nil
	}
	var ids []uint
	err := readDB(r.db).WithContext(ctx).
		Model(&models.Subscription{}).
		Where("user_id = ? AND author_id IN ?", userID, authorIDs).
		Pluck("author_id", &ids).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

func (r *subscriptionRepository) ListAuthors(ctx context.Context, userID uint, limit, offset int) ([]models.User, int64, error) {
	db := readDB(r.db).WithContext(ctx)

	var total int64
	if err := db.Model(&models.Subscription{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var authors []models.User
	err := db.Model(&models.User{}).
		Joins("JOIN subscriptions ON subscriptions.author_id = users.id").
		Where("subscriptions.user_id = ?", userID).
		Order("subscriptions.id DESC").
		Limit(limit).
		Offset(offset).
		Find(&authors).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return authors, total, nil
}

func (r *subscriptionRepository) SubscriberIDs(ctx context.Context, authorID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("author_id = ?", authorID).
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}
