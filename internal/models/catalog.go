package models

// Tag labels recipes (breakfast, dinner, ...). Tags are managed out of band.
type Tag struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Name  string `gorm:"size:64;uniqueIndex;not null" json:"name"`
	Color string `gorm:"size:7;uniqueIndex;not null" json:"color"`
	Slug  string `gorm:"size:64;uniqueIndex;not null" json:"slug"`
}

// Ingredient is a catalog entry; the (name, unit) pair is unique.
type Ingredient struct {
	ID              uint   `gorm:"primaryKey" json:"id"`
	Name            string `gorm:"size:128;not null;uniqueIndex:idx_ingredient_name_unit;index:idx_ingredients_name" json:"name"`
	MeasurementUnit string `gorm:"size:64;not null;uniqueIndex:idx_ingredient_name_unit" json:"measurement_unit"`
}
