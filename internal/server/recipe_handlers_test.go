package server

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"foodgram/internal/models"
	"foodgram/internal/service"
	"foodgram/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var shortLinkPattern = regexp.MustCompile(`^http://fg\.test/[A-Za-z0-9]{8}$`)

func recipePayload(t *testing.T, fx recipeFixture) map[string]any {
	t.Helper()
	return map[string]any{
		"ingredients": []map[string]any{
			{"id": fx.sugar.ID, "amount": 100},
			{"id": fx.eggs.ID, "amount": 2},
		},
		"tags":         []uint{fx.lunch.ID},
		"image":        pngDataURI(t),
		"name":         "Pancakes",
		"text":         "Mix and fry.",
		"cooking_time": 15,
	}
}

func TestCreateRecipe_ReturnsFullView(t *testing.T) {
	env := newTestEnv(t)
	fx := newRecipeFixture(t, env.db)
	author := testutil.CreateUser(t, env.db)

	resp := env.do(t, http.MethodPost, "/api/recipes/", env.login(t, author), recipePayload(t, fx))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	view := decodeBody[service.RecipeView](t, resp)
	assert.NotZero(t, view.ID)
	assert.Equal(t, "Pancakes", view.Name)
	assert.Equal(t, author.ID, view.Author.ID)
	assert.Len(t, view.Ingredients, 2)
	require.Len(t, view.Tags, 1)
	assert.Equal(t, "lunch", view.Tags[0].Slug)
	assert.True(t, strings.HasPrefix(view.Image, "/media/recipes/"), view.Image)
	assert.False(t, view.IsFavorited)
	assert.False(t, view.IsInShoppingCart)
}

func TestCreateRecipe_Validation(t *testing.T) {
	env := newTestEnv(t)
	fx := newRecipeFixture(t, env.db)
	token := env.login(t, testutil.CreateUser(t, env.db))

	tests := []struct {
		name   string
		mutate func(p map[string]any)
	}{
		{"no ingredients", func(p map[string]any) { p["ingredients"] = []map[string]any{} }},
		{"no tags", func(p map[string]any) { p["tags"] = []uint{} }},
		{"zero amount", func(p map[string]any) {
			p["ingredients"] = []map[string]any{{"id": fx.sugar.ID, "amount": 0}}
		}},
		{"duplicate ingredient", func(p map[string]any) {
			p["ingredients"] = []map[string]any{{"id": fx.sugar.ID, "amount": 1}, {"id": fx.sugar.ID, "amount": 2}}
		}},
		{"unknown tag", func(p map[string]any) { p["tags"] = []uint{9999} }},
		{"zero cooking time", func(p map[string]any) { p["cooking_time"] = 0 }},
		{"missing image", func(p map[string]any) { delete(p, "image") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := recipePayload(t, fx)
			tt.mutate(p)
			resp := env.do(t, http.MethodPost, "/api/recipes/", token, p)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}

	resp := env.do(t, http.MethodPost, "/api/recipes/", "", recipePayload(t, fx))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCreateRecipe_Multipart(t *testing.T) {
	env := newTestEnv(t)
	fx := newRecipeFixture(t, env.db)
	author := testutil.CreateUser(t, env.db)

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	require.NoError(t, w.WriteField("name", "Omelette"))
	require.NoError(t, w.WriteField("text", "Whisk and cook."))
	require.NoError(t, w.WriteField("cooking_time", "10"))
	require.NoError(t, w.WriteField("ingredients", `[{"id":`+itoa(fx.eggs.ID)+`,"amount":3}]`))
	require.NoError(t, w.WriteField("tags", `[`+itoa(fx.lunch.ID)+`]`))
	part, err := w.CreateFormFile("image", "omelette.png")
	require.NoError(t, err)
	_, err = part.Write(testutil.TinyPNG(t, 20, 20))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/recipes/", body)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+env.login(t, author))
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	view := decodeBody[service.RecipeView](t, resp)
	assert.Equal(t, "Omelette", view.Name)
	require.Len(t, view.Ingredients, 1)
	assert.Equal(t, 3, view.Ingredients[0].Amount)
}

func TestUpdateAndDeleteRecipe_AuthorOnly(t *testing.T) {
	env := newTestEnv(t)
	fx := newRecipeFixture(t, env.db)
	author := testutil.CreateUser(t, env.db)
	other := testutil.CreateUser(t, env.db)
	recipe := testutil.CreateRecipe(t, env.db, author, []testutil.RecipeLine{{Ingredient: fx.milk, Amount: 200}}, fx.sweet)
	path := "/api/recipes/" + itoa(recipe.ID) + "/"

	update := recipePayload(t, fx)
	delete(update, "image")
	update["name"] = "Renamed"

	resp := env.do(t, http.MethodPatch, path, env.login(t, other), update)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp = env.do(t, http.MethodDelete, path, env.login(t, other), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, http.MethodPatch, path, env.login(t, author), update)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decodeBody[service.RecipeView](t, resp)
	assert.Equal(t, "Renamed", view.Name)
	assert.Equal(t, recipe.Image, view.Image)
	assert.Len(t, view.Ingredients, 2)
	require.Len(t, view.Tags, 1)
	assert.Equal(t, fx.lunch.ID, view.Tags[0].ID)

	resp = env.do(t, http.MethodDelete, path, env.login(t, author), nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = env.do(t, http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetRecipeLink_StableAndResolvable(t *testing.T) {
	env := newTestEnv(t)
	fx := newRecipeFixture(t, env.db)
	author := testutil.CreateUser(t, env.db)
	recipe := testutil.CreateRecipe(t, env.db, author, []testutil.RecipeLine{{Ingredient: fx.sugar, Amount: 5}}, fx.lunch)

	resp := env.do(t, http.MethodGet, "/api/recipes/"+itoa(recipe.ID)+"/get-link/", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	first := decodeBody[map[string]string](t, resp)["short_link"]
	assert.Regexp(t, shortLinkPattern, first)

	resp = env.do(t, http.MethodGet, "/api/recipes/"+itoa(recipe.ID)+"/get-link/", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, first, decodeBody[map[string]string](t, resp)["short_link"])

	code := strings.TrimPrefix(first, testShortLinkDomain)
	resp = env.do(t, http.MethodGet, "/s/"+code, "", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/recipes/"+itoa(recipe.ID), resp.Header.Get(fiber.HeaderLocation))

	resp = env.do(t, http.MethodGet, "/s/ZZZZZZZZ", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = env.do(t, http.MethodGet, "/api/recipes/9999/get-link/", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListRecipes_PaginationAndFilters(t *testing.T) {
	env := newTestEnv(t)
	fx := newRecipeFixture(t, env.db)
	alice := testutil.CreateUser(t, env.db)
	bob := testutil.CreateUser(t, env.db)
	line := []testutil.RecipeLine{{Ingredient: fx.sugar, Amount: 1}}

	r1 := testutil.CreateRecipe(t, env.db, alice, line, fx.lunch)
	testutil.CreateRecipe(t, env.db, alice, line, fx.sweet)
	testutil.CreateRecipe(t, env.db, bob, line, fx.lunch, fx.sweet)

	resp := env.do(t, http.MethodGet, "/api/recipes/?limit=2", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := decodeBody[Page[service.RecipeView]](t, resp)
	assert.EqualValues(t, 3, page.Count)
	assert.Len(t, page.Results, 2)
	require.NotNil(t, page.Next)
	assert.Contains(t, *page.Next, "page=2")
	assert.Nil(t, page.Previous)

	resp = env.do(t, http.MethodGet, "/api/recipes/?author="+itoa(alice.ID), "", nil)
	page = decodeBody[Page[service.RecipeView]](t, resp)
	assert.EqualValues(t, 2, page.Count)

	resp = env.do(t, http.MethodGet, "/api/recipes/?tags=lunch&tags=sweet", "", nil)
	page = decodeBody[Page[service.RecipeView]](t, resp)
	assert.EqualValues(t, 3, page.Count)

	resp = env.do(t, http.MethodGet, "/api/recipes/?author=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	token := env.login(t, bob)
	resp = env.do(t, http.MethodPost, "/api/recipes/"+itoa(r1.ID)+"/favorite/", token, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/recipes/?is_favorited=1", token, nil)
	page = decodeBody[Page[service.RecipeView]](t, resp)
	require.EqualValues(t, 1, page.Count)
	assert.Equal(t, r1.ID, page.Results[0].ID)
	assert.True(t, page.Results[0].IsFavorited)

	// Anonymous viewers cannot filter by personal flags.
	resp = env.do(t, http.MethodGet, "/api/recipes/?is_favorited=1", "", nil)
	page = decodeBody[Page[service.RecipeView]](t, resp)
	assert.EqualValues(t, 3, page.Count)
}

func TestFavoriteAndCartToggles(t *testing.T) {
	env := newTestEnv(t)
	fx := newRecipeFixture(t, env.db)
	author := testutil.CreateUser(t, env.db)
	user := testutil.CreateUser(t, env.db)
	recipe := testutil.CreateRecipe(t, env.db, author, []testutil.RecipeLine{{Ingredient: fx.eggs, Amount: 2}}, fx.lunch)
	token := env.login(t, user)

	for _, kind := range []string{"favorite", "shopping_cart"} {
		t.Run(kind, func(t *testing.T) {
			path := "/api/recipes/" + itoa(recipe.ID) + "/" + kind + "/"

			resp := env.do(t, http.MethodPost, path, token, nil)
			require.Equal(t, http.StatusCreated, resp.StatusCode)
			short := decodeBody[service.ShortRecipeView](t, resp)
			assert.Equal(t, recipe.ID, short.ID)
			assert.Equal(t, recipe.Name, short.Name)

			resp = env.do(t, http.MethodPost, path, token, nil)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			errBody := decodeBody[models.ErrorResponse](t, resp)
			assert.Equal(t, models.CodeConflict, errBody.Code)

			resp = env.do(t, http.MethodDelete, path, token, nil)
			assert.Equal(t, http.StatusNoContent, resp.StatusCode)
			resp = env.do(t, http.MethodDelete, path, token, nil)
			assert.Equal(t, http.StatusNotFound, resp.StatusCode)

			resp = env.do(t, http.MethodPost, "/api/recipes/9999/"+kind+"/", token, nil)
			assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		})
	}
}

func TestDownloadShoppingCart(t *testing.T) {
	env := newTestEnv(t)
	fx := newRecipeFixture(t, env.db)
	author := testutil.CreateUser(t, env.db)
	user := testutil.CreateUser(t, env.db)
	token := env.login(t, user)

	resp := env.do(t, http.MethodGet, "/api/recipes/download_shopping_cart/", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	cake := testutil.CreateRecipe(t, env.db, author, []testutil.RecipeLine{
		{Ingredient: fx.sugar, Amount: 100},
		{Ingredient: fx.eggs, Amount: 2},
	}, fx.sweet)
	pudding := testutil.CreateRecipe(t, env.db, author, []testutil.RecipeLine{
		{Ingredient: fx.sugar, Amount: 50},
		{Ingredient: fx.milk, Amount: 200},
	}, fx.sweet)
	for _, r := range []*models.Recipe{cake, pudding} {
		resp = env.do(t, http.MethodPost, "/api/recipes/"+itoa(r.ID)+"/shopping_cart/", token, nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp = env.do(t, http.MethodGet, "/api/recipes/download_shopping_cart/", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, fiber.MIMETextPlainCharsetUTF8, resp.Header.Get(fiber.HeaderContentType))
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), `filename="shopping_list.txt"`)

	buf := new(bytes.Buffer)
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "eggs — 2 pcs\nmilk — 200 ml\nsugar — 150 g\n", buf.String())

	resp = env.do(t, http.MethodGet, "/api/recipes/download_shopping_cart/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
