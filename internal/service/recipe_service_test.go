package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"foodgram/internal/models"
	"foodgram/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recipeFixture struct {
	recipes   *recipeRepoStub
	catalog   *catalogStub
	favorites *markSetStub
	cart      *markSetStub
	subs      *markSetStub
	images    *imageStorerStub
	events    *recipeEventsStub
	svc       *RecipeService
}

func newRecipeFixture(rnd []byte) *recipeFixture {
	f := &recipeFixture{
		recipes: &recipeRepoStub{},
		catalog: &catalogStub{
			tags: []models.Tag{
				{ID: 1, Name: "Breakfast", Color: "#E26C2D", Slug: "breakfast"},
				{ID: 2, Name: "Dinner", Color: "#49B64E", Slug: "dinner"},
			},
			ingredients: []models.Ingredient{
				{ID: 10, Name: "sugar", MeasurementUnit: "g"},
				{ID: 11, Name: "eggs", MeasurementUnit: "pcs"},
			},
		},
		favorites: newMarkSet(),
		cart:      newMarkSet(),
		subs:      newMarkSet(),
		images:    &imageStorerStub{},
		events:    &recipeEventsStub{},
	}
	deps := RecipeDeps{
		Recipes:         f.recipes,
		Ingredients:     ingredientRepoStub{f.catalog},
		Tags:            tagRepoStub{f.catalog},
		Favorites:       f.favorites,
		Cart:            f.cart,
		Subscriptions:   f.subs,
		Images:          f.images,
		Events:          f.events,
		ShortLinkDomain: testDomain,
	}
	if rnd != nil {
		deps.Random = bytes.NewReader(rnd)
	}
	f.svc = NewRecipeService(deps)
	return f
}

func validRecipeInput() RecipeInput {
	return RecipeInput{
		Ingredients: []RecipeIngredientInput{{ID: 10, Amount: 100}, {ID: 11, Amount: 2}},
		Tags:        []uint{1},
		Image:       "data:image/png;base64,AAAA",
		Name:        "Pancakes",
		Text:        "Mix and fry.",
		CookingTime: 15,
	}
}

// storeRecipes wires GetByID and Create to an in-memory map.
func (f *recipeFixture) storeRecipes(author models.User) map[uint]*models.Recipe {
	rows := map[uint]*models.Recipe{}
	f.recipes.getByIDFn = func(_ context.Context, id uint) (*models.Recipe, error) {
		r, ok := rows[id]
		if !ok {
			return nil, models.NewNotFoundError("Recipe", id)
		}
		cp := *r
		return &cp, nil
	}
	f.recipes.createFn = func(_ context.Context, r *models.Recipe, ing []models.RecipeIngredient, tags []uint) error {
		r.ID = uint(len(rows) + 1)
		r.Author = author
		for _, line := range ing {
			line.RecipeID = r.ID
			line.Ingredient = f.catalog.ingredients[line.IngredientID-10]
			r.Ingredients = append(r.Ingredients, line)
		}
		for _, id := range tags {
			r.Tags = append(r.Tags, f.catalog.tags[id-1])
		}
		rows[r.ID] = r
		return nil
	}
	return rows
}

func TestRecipeService_CreateRecipe(t *testing.T) {
	t.Parallel()

	src := make([]byte, 16)
	for i := range src {
		src[i] = byte(i)
	}
	f := newRecipeFixture(src)
	author := models.User{ID: 7, Username: "chef"}
	f.storeRecipes(author)
	f.subs.pairs[markPair{user: 9, target: 7}] = true

	view, err := f.svc.CreateRecipe(context.Background(), 7, validRecipeInput())
	require.NoError(t, err)

	assert.Equal(t, uint(1), view.ID)
	assert.Equal(t, "Pancakes", view.Name)
	assert.Equal(t, "/media/recipes/stub.jpg", view.Image)
	assert.Equal(t, "chef", view.Author.Username)
	assert.False(t, view.IsFavorited)
	assert.False(t, view.IsInShoppingCart)
	require.Len(t, view.Ingredients, 2)
	assert.Equal(t, IngredientAmountView{ID: 10, Name: "sugar", MeasurementUnit: "g", Amount: 100}, view.Ingredients[0])
	require.Len(t, view.Tags, 1)
	assert.Equal(t, "breakfast", view.Tags[0].Slug)

	assert.Equal(t, 1, f.events.calls)
	assert.Equal(t, []uint{9}, f.events.subscriberIDs)
	require.NotNil(t, f.events.recipe.ShortLink)
	assert.Equal(t, testDomain+"ABCDEFGH", *f.events.recipe.ShortLink)
}

func TestRecipeService_CreateRecipeValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*RecipeInput)
		field  string
		msg    string
	}{
		{
			name:   "zero amount",
			mutate: func(in *RecipeInput) { in.Ingredients[0].Amount = 0 },
			field:  "ingredients",
			msg:    "amount must be > 0",
		},
		{
			name:   "duplicate ingredient",
			mutate: func(in *RecipeInput) { in.Ingredients[1].ID = 10 },
			field:  "ingredients",
			msg:    "duplicate ingredient",
		},
		{
			name:   "duplicate tag",
			mutate: func(in *RecipeInput) { in.Tags = []uint{1, 1} },
			field:  "tags",
			msg:    "duplicate tag",
		},
		{
			name:   "unknown ingredient",
			mutate: func(in *RecipeInput) { in.Ingredients[1].ID = 99 },
			field:  "ingredients",
			msg:    "ingredient 99 does not exist",
		},
		{
			name:   "unknown tag",
			mutate: func(in *RecipeInput) { in.Tags = []uint{1, 42} },
			field:  "tags",
			msg:    "tag 42 does not exist",
		},
		{
			name:   "missing image",
			mutate: func(in *RecipeInput) { in.Image = "" },
			field:  "image",
			msg:    "image is required",
		},
		{
			name:   "no ingredients",
			mutate: func(in *RecipeInput) { in.Ingredients = nil },
			field:  "ingredients",
		},
		{
			name:   "no tags",
			mutate: func(in *RecipeInput) { in.Tags = []uint{} },
			field:  "tags",
		},
		{
			name:   "zero cooking time",
			mutate: func(in *RecipeInput) { in.CookingTime = 0 },
			field:  "cooking_time",
		},
		{
			name:   "blank name",
			mutate: func(in *RecipeInput) { in.Name = "" },
			field:  "name",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newRecipeFixture(nil)
			created := false
			f.recipes.createFn = func(context.Context, *models.Recipe, []models.RecipeIngredient, []uint) error {
				created = true
				return nil
			}

			in := validRecipeInput()
			tt.mutate(&in)
			_, err := f.svc.CreateRecipe(context.Background(), 1, in)

			appErr := assertAppErrorCode(t, err, models.CodeValidation)
			require.Contains(t, appErr.Fields, tt.field)
			if tt.msg != "" {
				assert.Equal(t, tt.msg, appErr.Fields[tt.field])
			}
			assert.False(t, created)
			assert.Empty(t, f.images.stored)
		})
	}
}

func TestRecipeService_CreateRecipeRemovesImageOnFailure(t *testing.T) {
	t.Parallel()

	f := newRecipeFixture(nil)
	f.recipes.createFn = func(context.Context, *models.Recipe, []models.RecipeIngredient, []uint) error {
		return models.NewInternalError(errors.New("insert failed"))
	}

	_, err := f.svc.CreateRecipe(context.Background(), 1, validRecipeInput())
	assertAppErrorCode(t, err, models.CodeInternal)
	assert.Equal(t, f.images.stored, f.images.removed)
}

func TestRecipeService_CreateRecipeShortLinkExhausted(t *testing.T) {
	t.Parallel()

	f := newRecipeFixture(nil)
	f.recipes.shortLinkExistsFn = func(context.Context, string) (bool, error) { return true, nil }

	_, err := f.svc.CreateRecipe(context.Background(), 1, validRecipeInput())
	appErr := assertAppErrorCode(t, err, models.CodeInternal)
	assert.ErrorIs(t, appErr, ErrShortLinkExhausted)
	assert.Len(t, f.images.removed, 1)
}

func TestRecipeService_UpdateRecipe(t *testing.T) {
	t.Parallel()

	existing := &models.Recipe{ID: 3, AuthorID: 7, Name: "Old", Image: "/media/recipes/old.jpg", Text: "t", CookingTime: 5}

	t.Run("non author forbidden", func(t *testing.T) {
		f := newRecipeFixture(nil)
		f.recipes.getByIDFn = func(context.Context, uint) (*models.Recipe, error) { cp := *existing; return &cp, nil }

		_, err := f.svc.UpdateRecipe(context.Background(), 8, 3, validRecipeInput())
		assertAppErrorCode(t, err, models.CodeForbidden)
	})

	t.Run("missing recipe", func(t *testing.T) {
		f := newRecipeFixture(nil)
		_, err := f.svc.UpdateRecipe(context.Background(), 7, 3, validRecipeInput())
		assertAppErrorCode(t, err, models.CodeNotFound)
	})

	t.Run("keeps image when omitted", func(t *testing.T) {
		f := newRecipeFixture(nil)
		f.recipes.getByIDFn = func(context.Context, uint) (*models.Recipe, error) { cp := *existing; return &cp, nil }
		var written *models.Recipe
		var writtenTags []uint
		f.recipes.updateFn = func(_ context.Context, r *models.Recipe, _ []models.RecipeIngredient, tags []uint) error {
			written, writtenTags = r, tags
			return nil
		}

		in := validRecipeInput()
		in.Image = ""
		in.Name = "New"
		in.Tags = []uint{2}
		_, err := f.svc.UpdateRecipe(context.Background(), 7, 3, in)
		require.NoError(t, err)
		require.NotNil(t, written)
		assert.Equal(t, "New", written.Name)
		assert.Equal(t, existing.Image, written.Image)
		assert.Equal(t, []uint{2}, writtenTags)
		assert.Empty(t, f.images.removed)
	})

	t.Run("replaces image", func(t *testing.T) {
		f := newRecipeFixture(nil)
		f.recipes.getByIDFn = func(context.Context, uint) (*models.Recipe, error) { cp := *existing; return &cp, nil }
		f.images.next = "/media/recipes/new.jpg"

		_, err := f.svc.UpdateRecipe(context.Background(), 7, 3, validRecipeInput())
		require.NoError(t, err)
		assert.Equal(t, []string{existing.Image}, f.images.removed)
	})
}

func TestRecipeService_DeleteRecipe(t *testing.T) {
	t.Parallel()

	existing := &models.Recipe{ID: 3, AuthorID: 7, Image: "/media/recipes/old.jpg"}
	f := newRecipeFixture(nil)
	f.recipes.getByIDFn = func(context.Context, uint) (*models.Recipe, error) { cp := *existing; return &cp, nil }
	deleted := uint(0)
	f.recipes.deleteFn = func(_ context.Context, id uint) error { deleted = id; return nil }

	err := f.svc.DeleteRecipe(context.Background(), 8, 3)
	assertAppErrorCode(t, err, models.CodeForbidden)
	assert.Zero(t, deleted)

	require.NoError(t, f.svc.DeleteRecipe(context.Background(), 7, 3))
	assert.Equal(t, uint(3), deleted)
	assert.Equal(t, []string{existing.Image}, f.images.removed)
}

func TestRecipeService_GetShortLink(t *testing.T) {
	t.Parallel()

	t.Run("returns stored link", func(t *testing.T) {
		f := newRecipeFixture(nil)
		link := testDomain + "Zz9Yy8Xx"
		f.recipes.getByIDFn = func(context.Context, uint) (*models.Recipe, error) {
			return &models.Recipe{ID: 1, ShortLink: &link}, nil
		}
		f.recipes.setShortLinkIfEmptyFn = func(context.Context, uint, string) (bool, error) {
			t.Fatal("stored link must not be replaced")
			return false, nil
		}

		first, err := f.svc.GetShortLink(context.Background(), 1)
		require.NoError(t, err)
		second, err := f.svc.GetShortLink(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, link, first)
		assert.Equal(t, first, second)
	})

	t.Run("backfills missing link once", func(t *testing.T) {
		f := newRecipeFixture(nil)
		var stored *string
		f.recipes.getByIDFn = func(context.Context, uint) (*models.Recipe, error) {
			return &models.Recipe{ID: 1, ShortLink: stored}, nil
		}
		f.recipes.setShortLinkIfEmptyFn = func(_ context.Context, _ uint, link string) (bool, error) {
			if stored != nil {
				return false, nil
			}
			stored = &link
			return true, nil
		}

		first, err := f.svc.GetShortLink(context.Background(), 1)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(first, testDomain))
		second, err := f.svc.GetShortLink(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("loses race to concurrent writer", func(t *testing.T) {
		f := newRecipeFixture(nil)
		winner := testDomain + "Winner01"
		reads := 0
		f.recipes.getByIDFn = func(context.Context, uint) (*models.Recipe, error) {
			reads++
			if reads == 1 {
				return &models.Recipe{ID: 1}, nil
			}
			return &models.Recipe{ID: 1, ShortLink: &winner}, nil
		}
		f.recipes.setShortLinkIfEmptyFn = func(context.Context, uint, string) (bool, error) { return false, nil }

		link, err := f.svc.GetShortLink(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, winner, link)
	})

	t.Run("missing recipe", func(t *testing.T) {
		f := newRecipeFixture(nil)
		_, err := f.svc.GetShortLink(context.Background(), 404)
		assertAppErrorCode(t, err, models.CodeNotFound)
	})
}

func TestRecipeService_ResolveShortCode(t *testing.T) {
	t.Parallel()

	f := newRecipeFixture(nil)
	f.recipes.getByShortLinkFn = func(_ context.Context, link string) (*models.Recipe, error) {
		if link == testDomain+"Ab3dE9xZ" {
			return &models.Recipe{ID: 42}, nil
		}
		return nil, models.NewNotFoundError("Short link", link)
	}

	id, err := f.svc.ResolveShortCode(context.Background(), "Ab3dE9xZ")
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)

	_, err = f.svc.ResolveShortCode(context.Background(), "Zz9Yy8Xx")
	assertAppErrorCode(t, err, models.CodeNotFound)

	_, err = f.svc.ResolveShortCode(context.Background(), "../etc")
	assertAppErrorCode(t, err, models.CodeNotFound)
}

func TestRecipeService_ListRecipesFlags(t *testing.T) {
	t.Parallel()

	f := newRecipeFixture(nil)
	var gotFilter repository.RecipeFilter
	f.recipes.listFn = func(_ context.Context, filter repository.RecipeFilter, limit, offset int) ([]models.Recipe, int64, error) {
		gotFilter = filter
		return []models.Recipe{
			{ID: 1, AuthorID: 7, Author: models.User{ID: 7}},
			{ID: 2, AuthorID: 8, Author: models.User{ID: 8}},
		}, 12, nil
	}
	f.favorites.pairs[markPair{user: 5, target: 2}] = true
	f.cart.pairs[markPair{user: 5, target: 1}] = true
	f.subs.pairs[markPair{user: 5, target: 8}] = true

	favorited := true
	views, total, err := f.svc.ListRecipes(context.Background(), ListRecipesInput{
		Filter:   repository.RecipeFilter{Favorited: &favorited},
		ViewerID: 5,
		Limit:    6,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(12), total)
	assert.Equal(t, uint(5), gotFilter.ViewerID)
	require.Len(t, views, 2)

	assert.False(t, views[0].IsFavorited)
	assert.True(t, views[0].IsInShoppingCart)
	assert.False(t, views[0].Author.IsSubscribed)
	assert.True(t, views[1].IsFavorited)
	assert.False(t, views[1].IsInShoppingCart)
	assert.True(t, views[1].Author.IsSubscribed)
	assert.NotNil(t, views[0].Tags)

	anon, _, err := f.svc.ListRecipes(context.Background(), ListRecipesInput{Limit: 6})
	require.NoError(t, err)
	for _, v := range anon {
		assert.False(t, v.IsFavorited || v.IsInShoppingCart || v.Author.IsSubscribed)
	}
}
