package seed

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"foodgram/internal/models"
	"foodgram/internal/repository"
	"foodgram/internal/validation"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed data/ingredients.json data/tags.yml
var builtin embed.FS

// CatalogSources points at the ingredient and tag files to load.
// Empty paths fall back to the catalog bundled with the binary.
type CatalogSources struct {
	IngredientsPath string
	TagsPath        string
}

// CatalogResult reports how many rows were inserted.
type CatalogResult struct {
	Ingredients int64
	Tags        int64
}

type ingredientRecord struct {
	Name            string `json:"name" validate:"required,max=128"`
	MeasurementUnit string `json:"measurement_unit" validate:"required,max=64"`
}

type tagRecord struct {
	Name  string `json:"name" yaml:"name" validate:"required,max=64"`
	Color string `json:"color" yaml:"color" validate:"required,hexcolor,len=7"`
	Slug  string `json:"slug" yaml:"slug" validate:"required,max=64"`
}

// LoadIngredients decodes a JSON array of {name, measurement_unit} objects.
// Entries with a blank name or unit are rejected.
func LoadIngredients(r io.Reader) ([]models.Ingredient, error) {
	var records []ingredientRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode ingredients: %w", err)
	}

	out := make([]models.Ingredient, 0, len(records))
	for i, rec := range records {
		rec.Name = strings.TrimSpace(rec.Name)
		rec.MeasurementUnit = strings.TrimSpace(rec.MeasurementUnit)
		if err := validation.ValidateStruct(&rec); err != nil {
			return nil, fmt.Errorf("ingredient #%d: %w", i+1, err)
		}
		out = append(out, models.Ingredient{Name: rec.Name, MeasurementUnit: rec.MeasurementUnit})
	}
	return out, nil
}

// LoadTags decodes a YAML list of tags.
func LoadTags(r io.Reader) ([]models.Tag, error) {
	var records []tagRecord
	if err := yaml.NewDecoder(r).Decode(&records); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode tags: %w", err)
	}

	out := make([]models.Tag, 0, len(records))
	for i, rec := range records {
		rec.Name = strings.TrimSpace(rec.Name)
		rec.Color = strings.ToUpper(strings.TrimSpace(rec.Color))
		rec.Slug = strings.TrimSpace(rec.Slug)
		if err := validation.ValidateStruct(&rec); err != nil {
			return nil, fmt.Errorf("tag #%d (%q): %w", i+1, rec.Slug, err)
		}
		out = append(out, models.Tag{Name: rec.Name, Color: rec.Color, Slug: rec.Slug})
	}
	return out, nil
}

// Catalog loads ingredients and tags into the database. Rows that already
// exist are skipped, so running it repeatedly is safe.
func Catalog(ctx context.Context, db *gorm.DB, src CatalogSources) (CatalogResult, error) {
	var res CatalogResult

	ingredients, err := readSource(src.IngredientsPath, "data/ingredients.json", LoadIngredients)
	if err != nil {
		return res, err
	}
	tags, err := readSource(src.TagsPath, "data/tags.yml", LoadTags)
	if err != nil {
		return res, err
	}

	res.Ingredients, err = repository.NewIngredientRepository(db).Upsert(ctx, ingredients)
	if err != nil {
		return res, fmt.Errorf("insert ingredients: %w", err)
	}
	res.Tags, err = repository.NewTagRepository(db).Upsert(ctx, tags)
	if err != nil {
		return res, fmt.Errorf("insert tags: %w", err)
	}
	return res, nil
}

func readSource[T any](path, fallback string, load func(io.Reader) ([]T, error)) ([]T, error) {
	var (
		f   io.ReadCloser
		err error
	)
	if path != "" {
		f, err = os.Open(path)
	} else {
		f, err = builtin.Open(fallback)
		path = fallback
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	items, err := load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return items, nil
}
