package server

import (
	"bytes"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"foodgram/internal/config"
	"foodgram/internal/models"
	"foodgram/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testShortLinkDomain = "http://fg.test/"

type testEnv struct {
	server *Server
	app    *fiber.App
	db     *gorm.DB
	mr     *miniredis.Miniredis
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		JWTSecret:            "handler-test-secret-with-32-characters",
		JWTTTLHours:          1,
		Port:                 "0",
		Env:                  "test",
		PageSize:             6,
		ShortLinkDomain:      testShortLinkDomain,
		MediaRoot:            t.TempDir(),
		MediaURL:             "/media/",
		ImageMaxUploadSizeMB: 5,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewTestDB(t)
	mr, rdb := testutil.NewTestRedis(t)

	s, err := NewServerWithDeps(testConfig(t), db, rdb)
	require.NoError(t, err)
	return &testEnv{server: s, app: s.NewApp(), db: db, mr: mr}
}

// login issues a token for u without going through the login endpoint.
func (e *testEnv) login(t *testing.T, u *models.User) string {
	t.Helper()
	token, err := e.server.generateToken(u.ID, u.Username)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func pngDataURI(t *testing.T) string {
	t.Helper()
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(testutil.TinyPNG(t, 16, 16))
}

// recipeFixture holds catalog rows shared by recipe tests.
type recipeFixture struct {
	sugar *models.Ingredient
	eggs  *models.Ingredient
	milk  *models.Ingredient
	lunch *models.Tag
	sweet *models.Tag
}

func newRecipeFixture(t *testing.T, db *gorm.DB) recipeFixture {
	t.Helper()
	return recipeFixture{
		sugar: testutil.CreateIngredient(t, db, "sugar", "g"),
		eggs:  testutil.CreateIngredient(t, db, "eggs", "pcs"),
		milk:  testutil.CreateIngredient(t, db, "milk", "ml"),
		lunch: testutil.CreateTag(t, db, "lunch"),
		sweet: testutil.CreateTag(t, db, "sweet"),
	}
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
