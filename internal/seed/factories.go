// Package seed loads the ingredient and tag catalog and builds demo data
// for development databases.
package seed

import (
	"fmt"
	"strings"

	"foodgram/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DemoPassword is the plain-text password of every demo user.
const DemoPassword = "password123"

// Factory builds domain entities and persists them to the database.
type Factory struct {
	db           *gorm.DB
	faker        *gofakeit.Faker
	passwordHash string
}

// NewFactory returns a Factory bound to db. A zero seed draws a random one;
// any other value makes the generated data reproducible.
func NewFactory(db *gorm.DB, seed int64, bcryptCost int) (*Factory, error) {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash demo password: %w", err)
	}
	return &Factory{db: db, faker: gofakeit.New(seed), passwordHash: string(hash)}, nil
}

// CreateUser persists a user with fake identity fields.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	first, last := f.faker.FirstName(), f.faker.LastName()
	username := fmt.Sprintf("%s.%s%d", strings.ToLower(first), strings.ToLower(last), f.faker.Number(10, 99999))
	user := &models.User{
		Email:     username + "@example.com",
		Username:  username,
		FirstName: first,
		LastName:  last,
		Password:  f.passwordHash,
		Avatar:    fmt.Sprintf("https://i.pravatar.cc/150?u=%s", username),
	}
	for _, override := range overrides {
		override(user)
	}

	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// CreateRecipe persists a recipe by author using between one and five
// distinct ingredients and one or two tags from the given pools.
func (f *Factory) CreateRecipe(author *models.User, ingredients []models.Ingredient, tags []models.Tag, overrides ...func(*models.Recipe)) (*models.Recipe, error) {
	if len(ingredients) == 0 || len(tags) == 0 {
		return nil, fmt.Errorf("recipe needs a non-empty ingredient and tag catalog")
	}

	recipe := &models.Recipe{
		AuthorID:    author.ID,
		Name:        f.dishName(),
		Image:       fmt.Sprintf("https://picsum.photos/seed/%s/800/600", f.faker.UUID()),
		Text:        f.faker.Paragraph(2, 4, 12, "\n"),
		CookingTime: f.faker.Number(5, 180),
	}

	for _, idx := range f.pick(len(ingredients), 1, 5) {
		recipe.Ingredients = append(recipe.Ingredients, models.RecipeIngredient{
			IngredientID: ingredients[idx].ID,
			Amount:       f.amountFor(ingredients[idx].MeasurementUnit),
		})
	}
	for _, idx := range f.pick(len(tags), 1, 2) {
		recipe.Tags = append(recipe.Tags, tags[idx])
	}
	for _, override := range overrides {
		override(recipe)
	}

	if err := f.db.Omit("Author", "Tags.*").Create(recipe).Error; err != nil {
		return nil, err
	}
	return recipe, nil
}

// Favorite marks recipe as a favorite of user.
func (f *Factory) Favorite(user *models.User, recipe *models.Recipe) error {
	return f.db.Create(&models.Favorite{UserID: user.ID, RecipeID: recipe.ID}).Error
}

// AddToCart queues recipe in user's shopping cart.
func (f *Factory) AddToCart(user *models.User, recipe *models.Recipe) error {
	return f.db.Create(&models.ShoppingCart{UserID: user.ID, RecipeID: recipe.ID}).Error
}

// Subscribe makes user follow author.
func (f *Factory) Subscribe(user, author *models.User) error {
	return f.db.Create(&models.Subscription{UserID: user.ID, AuthorID: author.ID}).Error
}

func (f *Factory) dishName() string {
	switch f.faker.Number(0, 3) {
	case 0:
		return f.faker.Breakfast()
	case 1:
		return f.faker.Lunch()
	case 2:
		return f.faker.Dinner()
	default:
		return f.faker.Dessert()
	}
}

func (f *Factory) amountFor(unit string) int {
	switch unit {
	case "g", "ml":
		return f.faker.Number(1, 20) * 25
	case "pinch", "clove", "slice", "bunch":
		return f.faker.Number(1, 4)
	default:
		return f.faker.Number(1, 6)
	}
}

// pick returns between lo and hi distinct indexes in [0, n).
func (f *Factory) pick(n, lo, hi int) []int {
	if hi > n {
		hi = n
	}
	if lo > hi {
		lo = hi
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	f.faker.ShuffleInts(idx)
	return idx[:f.faker.Number(lo, hi)]
}
