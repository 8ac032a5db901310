package models

import "time"

// Recipe is owned by its author and composed of ingredients and tags.
// PubDate is written on insert only.
type Recipe struct {
	ID          uint               `gorm:"primaryKey" json:"id"`
	AuthorID    uint               `gorm:"not null;index" json:"author_id"`
	Name        string             `gorm:"size:256;not null" json:"name"`
	Image       string             `gorm:"size:512;not null" json:"image"`
	Text        string             `gorm:"type:text;not null" json:"text"`
	CookingTime int                `gorm:"not null;check:chk_recipes_cooking_time,cooking_time >= 1" json:"cooking_time"`
	PubDate     time.Time          `gorm:"<-:create;autoCreateTime;not null;index" json:"pub_date"`
	ShortLink   *string            `gorm:"size:255;uniqueIndex" json:"short_link,omitempty"`
	UpdatedAt   time.Time          `json:"-"`
	Author      User               `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"author"`
	Ingredients []RecipeIngredient `gorm:"foreignKey:RecipeID;constraint:OnDelete:CASCADE" json:"ingredients"`
	Tags        []Tag              `gorm:"many2many:recipe_tags;constraint:OnDelete:CASCADE" json:"tags"`
}

// TableName specifies the table name for GORM
func (Recipe) TableName() string {
	return "recipes"
}

// RecipeIngredient links a recipe to an ingredient with a positive amount.
type RecipeIngredient struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	RecipeID     uint       `gorm:"not null;uniqueIndex:idx_recipe_ingredient" json:"recipe_id"`
	IngredientID uint       `gorm:"not null;uniqueIndex:idx_recipe_ingredient;index" json:"ingredient_id"`
	Amount       int        `gorm:"not null;check:chk_recipe_ingredients_amount,amount >= 1" json:"amount"`
	Ingredient   Ingredient `gorm:"foreignKey:IngredientID;constraint:OnDelete:CASCADE" json:"ingredient"`
}

// TableName specifies the table name for GORM
func (RecipeIngredient) TableName() string {
	return "recipe_ingredients"
}

// ShoppingListLine is one ingredient row pulled from a user's cart recipes.
type ShoppingListLine struct {
	Name            string
	MeasurementUnit string
	Amount          int
}
