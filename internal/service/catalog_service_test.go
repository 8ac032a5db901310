package service

import (
	"context"
	"testing"

	"foodgram/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogService(t *testing.T) {
	t.Parallel()

	empty := &catalogStub{}
	svc := NewCatalogService(tagRepoStub{empty}, ingredientRepoStub{empty})

	tags, err := svc.ListTags(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, tags)
	assert.Empty(t, tags)

	ings, err := svc.SearchIngredients(context.Background(), "zzz")
	require.NoError(t, err)
	assert.NotNil(t, ings)

	full := &catalogStub{
		tags:        []models.Tag{{ID: 1, Slug: "lunch"}},
		ingredients: []models.Ingredient{{ID: 4, Name: "salt", MeasurementUnit: "g"}},
	}
	svc = NewCatalogService(tagRepoStub{full}, ingredientRepoStub{full})

	tag, err := svc.GetTag(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "lunch", tag.Slug)

	_, err = svc.GetTag(context.Background(), 2)
	assertAppErrorCode(t, err, models.CodeNotFound)

	ing, err := svc.GetIngredient(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, "salt", ing.Name)
}
