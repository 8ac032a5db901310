package testutil

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"foodgram/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the plain-text password of every fixture user.
const DefaultPassword = "tomato-soup-42"

var fixturePasswordHash = func() string {
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return string(hash)
}()

// CreateUser inserts a user with unique fake identity fields.
func CreateUser(t testing.TB, db *gorm.DB) *models.User {
	t.Helper()
	u := &models.User{
		Email:     fmt.Sprintf("%d.%s", gofakeit.Number(1, 1<<30), gofakeit.Email()),
		Username:  fmt.Sprintf("%s%d", strings.ToLower(gofakeit.FirstName()), gofakeit.Number(1, 1<<30)),
		FirstName: gofakeit.FirstName(),
		LastName:  gofakeit.LastName(),
		Password:  fixturePasswordHash,
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

// CreateIngredient inserts an ingredient with the given name and unit.
func CreateIngredient(t testing.TB, db *gorm.DB, name, unit string) *models.Ingredient {
	t.Helper()
	ing := &models.Ingredient{Name: name, MeasurementUnit: unit}
	if err := db.Create(ing).Error; err != nil {
		t.Fatalf("create ingredient: %v", err)
	}
	return ing
}

// CreateTag inserts a tag derived from slug.
func CreateTag(t testing.TB, db *gorm.DB, slug string) *models.Tag {
	t.Helper()
	tag := &models.Tag{
		Name:  strings.ToUpper(slug[:1]) + slug[1:],
		Color: gofakeit.HexColor(),
		Slug:  slug,
	}
	if err := db.Create(tag).Error; err != nil {
		t.Fatalf("create tag: %v", err)
	}
	return tag
}

// RecipeLine is an ingredient/amount pair for CreateRecipe.
type RecipeLine struct {
	Ingredient *models.Ingredient
	Amount     int
}

// CreateRecipe inserts a recipe by author with the given ingredient lines and tags.
func CreateRecipe(t testing.TB, db *gorm.DB, author *models.User, lines []RecipeLine, tags ...*models.Tag) *models.Recipe {
	t.Helper()
	r := &models.Recipe{
		AuthorID:    author.ID,
		Name:        gofakeit.Dessert(),
		Image:       "/media/recipes/test.jpg",
		Text:        gofakeit.Sentence(12),
		CookingTime: gofakeit.Number(5, 90),
	}
	for _, l := range lines {
		r.Ingredients = append(r.Ingredients, models.RecipeIngredient{IngredientID: l.Ingredient.ID, Amount: l.Amount})
	}
	for _, tag := range tags {
		r.Tags = append(r.Tags, *tag)
	}
	if err := db.Omit("Author", "Tags.*").Create(r).Error; err != nil {
		t.Fatalf("create recipe: %v", err)
	}
	return r
}

// TinyPNG returns an in-memory PNG byte slice with the requested dimensions.
func TinyPNG(t testing.TB, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, G: 80, B: 20, A: 255})
	}
	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}
