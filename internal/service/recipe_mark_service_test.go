package service

import (
	"context"
	"errors"
	"testing"

	"foodgram/internal/models"
	"foodgram/internal/observability"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func markRecipes() *recipeRepoStub {
	return &recipeRepoStub{
		getByIDFn: func(_ context.Context, id uint) (*models.Recipe, error) {
			if id != 3 {
				return nil, models.NewNotFoundError("Recipe", id)
			}
			return &models.Recipe{ID: 3, AuthorID: 1, Name: "Borscht", Image: "/media/recipes/b.jpg", CookingTime: 90}, nil
		},
	}
}

func TestRecipeMarkService_AddRemove(t *testing.T) {
	t.Parallel()

	constructors := map[string]func(*markSetStub, *recipeRepoStub) *RecipeMarkService{
		MarkKindFavorite: func(m *markSetStub, r *recipeRepoStub) *RecipeMarkService { return NewFavoriteService(m, r) },
		MarkKindShoppingCart: func(m *markSetStub, r *recipeRepoStub) *RecipeMarkService {
			return NewShoppingCartService(m, r)
		},
	}

	for kind, newSvc := range constructors {
		kind, newSvc := kind, newSvc
		t.Run(kind, func(t *testing.T) {
			t.Parallel()
			marks := newMarkSet()
			svc := newSvc(marks, markRecipes())
			ctx := context.Background()

			view, err := svc.Add(ctx, 5, 3)
			require.NoError(t, err)
			assert.Equal(t, ShortRecipeView{ID: 3, Name: "Borscht", Image: "/media/recipes/b.jpg", CookingTime: 90}, *view)
			assert.True(t, marks.pairs[markPair{5, 3}])

			_, err = svc.Add(ctx, 5, 3)
			assertAppErrorCode(t, err, models.CodeConflict)

			require.NoError(t, svc.Remove(ctx, 5, 3))
			assert.False(t, marks.pairs[markPair{5, 3}])

			err = svc.Remove(ctx, 5, 3)
			assertAppErrorCode(t, err, models.CodeNotFound)
		})
	}
}

func TestRecipeMarkService_OwnRecipeAllowed(t *testing.T) {
	t.Parallel()

	svc := NewFavoriteService(newMarkSet(), markRecipes())
	_, err := svc.Add(context.Background(), 1, 3)
	assert.NoError(t, err)
}

func TestRecipeMarkService_MissingRecipe(t *testing.T) {
	t.Parallel()

	marks := newMarkSet()
	svc := NewShoppingCartService(marks, markRecipes())

	_, err := svc.Add(context.Background(), 5, 99)
	assertAppErrorCode(t, err, models.CodeNotFound)
	assert.Empty(t, marks.pairs)

	err = svc.Remove(context.Background(), 5, 99)
	assertAppErrorCode(t, err, models.CodeNotFound)
}

func TestRecipeMarkService_RepositoryError(t *testing.T) {
	t.Parallel()

	marks := newMarkSet()
	marks.err = errors.New("connection reset")
	svc := NewFavoriteService(marks, markRecipes())

	_, err := svc.Add(context.Background(), 5, 3)
	assert.EqualError(t, err, "connection reset")
}

func TestRecipeMarkService_AddLosesRaceToConcurrentInsert(t *testing.T) {
	marks := newMarkSet()
	marks.staleExists = true
	marks.pairs[markPair{7, 3}] = true
	svc := NewFavoriteService(marks, markRecipes())

	conflicts := observability.ToggleOperations.WithLabelValues(MarkKindFavorite, "add", "conflict")
	before := promtest.ToFloat64(conflicts)

	view, err := svc.Add(context.Background(), 7, 3)
	assert.Nil(t, view)
	assert.True(t, models.HasCode(err, models.CodeConflict), "got %v", err)
	assert.Equal(t, before+1, promtest.ToFloat64(conflicts))
}
