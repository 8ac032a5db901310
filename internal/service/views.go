package service

import "foodgram/internal/models"

// UserView is a user as seen by the requesting user.
type UserView struct {
	ID           uint    `json:"id"`
	Email        string  `json:"email"`
	Username     string  `json:"username"`
	FirstName    string  `json:"first_name"`
	LastName     string  `json:"last_name"`
	IsSubscribed bool    `json:"is_subscribed"`
	Avatar       *string `json:"avatar"`
}

// IngredientAmountView is one ingredient line of a recipe.
type IngredientAmountView struct {
	ID              uint   `json:"id"`
	Name            string `json:"name"`
	MeasurementUnit string `json:"measurement_unit"`
	Amount          int    `json:"amount"`
}

// RecipeView is the full recipe representation with per-viewer flags.
type RecipeView struct {
	ID               uint                   `json:"id"`
	Tags             []models.Tag           `json:"tags"`
	Author           UserView               `json:"author"`
	Ingredients      []IngredientAmountView `json:"ingredients"`
	IsFavorited      bool                   `json:"is_favorited"`
	IsInShoppingCart bool                   `json:"is_in_shopping_cart"`
	Name             string                 `json:"name"`
	Image            string                 `json:"image"`
	Text             string                 `json:"text"`
	CookingTime      int                    `json:"cooking_time"`
}

// ShortRecipeView is the compact recipe returned by favorite, cart and subscription endpoints.
type ShortRecipeView struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Image       string `json:"image"`
	CookingTime int    `json:"cooking_time"`
}

// AuthorWithRecipesView is a followed author with a preview of their recipes.
type AuthorWithRecipesView struct {
	UserView
	Recipes      []ShortRecipeView `json:"recipes"`
	RecipesCount int64             `json:"recipes_count"`
}

// NewUserView builds the view of u; subscribed is the viewer's relation to u.
func NewUserView(u *models.User, subscribed bool) UserView {
	v := UserView{
		ID:           u.ID,
		Email:        u.Email,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		IsSubscribed: subscribed,
	}
	if u.Avatar != "" {
		avatar := u.Avatar
		v.Avatar = &avatar
	}
	return v
}

// NewShortRecipeView builds the compact view of r.
func NewShortRecipeView(r *models.Recipe) ShortRecipeView {
	return ShortRecipeView{ID: r.ID, Name: r.Name, Image: r.Image, CookingTime: r.CookingTime}
}

// NewRecipeView builds the full view of r. The boolean flags are computed by
// the caller from membership queries for the requesting user.
func NewRecipeView(r *models.Recipe, authorSubscribed, favorited, inCart bool) RecipeView {
	v := RecipeView{
		ID:               r.ID,
		Tags:             r.Tags,
		Author:           NewUserView(&r.Author, authorSubscribed),
		Ingredients:      make([]IngredientAmountView, 0, len(r.Ingredients)),
		IsFavorited:      favorited,
		IsInShoppingCart: inCart,
		Name:             r.Name,
		Image:            r.Image,
		Text:             r.Text,
		CookingTime:      r.CookingTime,
	}
	if v.Tags == nil {
		v.Tags = []models.Tag{}
	}
	for _, ri := range r.Ingredients {
		v.Ingredients = append(v.Ingredients, IngredientAmountView{
			ID:              ri.IngredientID,
			Name:            ri.Ingredient.Name,
			MeasurementUnit: ri.Ingredient.MeasurementUnit,
			Amount:          ri.Amount,
		})
	}
	return v
}

func idSet(ids []uint) map[uint]bool {
	set := make(map[uint]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
