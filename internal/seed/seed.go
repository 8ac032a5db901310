package seed

import (
	"context"
	"fmt"
	"log"

	"foodgram/internal/models"

	"gorm.io/gorm"
)

// DemoOptions sizes the generated demo data.
type DemoOptions struct {
	Users          int
	RecipesPerUser int
	// Seed makes the run reproducible when non-zero.
	Seed int64
	// BcryptCost overrides bcrypt.DefaultCost; tests use bcrypt.MinCost.
	BcryptCost int
}

// DemoResult counts what a demo run created.
type DemoResult struct {
	Users         int
	Recipes       int
	Favorites     int
	CartItems     int
	Subscriptions int
}

// Seeder orchestrates catalog loading and demo data generation.
type Seeder struct {
	db *gorm.DB
}

// NewSeeder returns a Seeder bound to db.
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db}
}

// ClearAll removes users, recipes and everything hanging off them.
// The ingredient and tag catalog is kept.
func (s *Seeder) ClearAll() error {
	log.Println("🗑️  Clearing existing data...")
	if s.db.Dialector.Name() == "postgres" {
		return s.db.Exec(`TRUNCATE TABLE favorites, shopping_carts, subscriptions, recipe_tags, recipe_ingredients, recipes, users RESTART IDENTITY CASCADE`).Error
	}

	tx := s.db.Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, model := range []any{
		&models.Favorite{}, &models.ShoppingCart{}, &models.Subscription{},
		&models.RecipeIngredient{},
	} {
		if err := tx.Delete(model).Error; err != nil {
			return err
		}
	}
	if err := tx.Exec("DELETE FROM recipe_tags").Error; err != nil {
		return err
	}
	for _, model := range []any{&models.Recipe{}, &models.User{}} {
		if err := tx.Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}

// Demo creates users with recipes, then has every user favorite, queue and
// follow a handful of other users' work. The catalog must be loaded first.
func (s *Seeder) Demo(ctx context.Context, opts DemoOptions) (DemoResult, error) {
	var res DemoResult
	db := s.db.WithContext(ctx)

	var ingredients []models.Ingredient
	if err := db.Find(&ingredients).Error; err != nil {
		return res, err
	}
	var tags []models.Tag
	if err := db.Find(&tags).Error; err != nil {
		return res, err
	}
	if len(ingredients) == 0 || len(tags) == 0 {
		return res, fmt.Errorf("catalog is empty: load ingredients and tags first")
	}

	f, err := NewFactory(db, opts.Seed, opts.BcryptCost)
	if err != nil {
		return res, err
	}

	users := make([]*models.User, 0, opts.Users)
	for i := 0; i < opts.Users; i++ {
		u, err := f.CreateUser()
		if err != nil {
			return res, fmt.Errorf("create user: %w", err)
		}
		users = append(users, u)
	}
	res.Users = len(users)

	recipes := make([]*models.Recipe, 0, opts.Users*opts.RecipesPerUser)
	for _, u := range users {
		for i := 0; i < opts.RecipesPerUser; i++ {
			r, err := f.CreateRecipe(u, ingredients, tags)
			if err != nil {
				return res, fmt.Errorf("create recipe: %w", err)
			}
			recipes = append(recipes, r)
		}
	}
	res.Recipes = len(recipes)

	for _, u := range users {
		for _, idx := range f.pick(len(recipes), 0, 3) {
			r := recipes[idx]
			if r.AuthorID == u.ID {
				continue
			}
			if err := f.Favorite(u, r); err != nil {
				return res, fmt.Errorf("favorite: %w", err)
			}
			res.Favorites++
		}
		for _, idx := range f.pick(len(recipes), 0, 2) {
			if err := f.AddToCart(u, recipes[idx]); err != nil {
				return res, fmt.Errorf("add to cart: %w", err)
			}
			res.CartItems++
		}
		for _, idx := range f.pick(len(users), 0, 3) {
			author := users[idx]
			if author.ID == u.ID {
				continue
			}
			if err := f.Subscribe(u, author); err != nil {
				return res, fmt.Errorf("subscribe: %w", err)
			}
			res.Subscriptions++
		}
	}

	return res, nil
}
