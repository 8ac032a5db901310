package service

import (
	"context"
	"errors"
	"testing"

	"foodgram/internal/models"
	"foodgram/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// userRepoStub is a stub for repository.UserRepository. Nil funcs return zero values.
type userRepoStub struct {
	getByIDFn        func(context.Context, uint) (*models.User, error)
	getForUpdateFn   func(context.Context, uint) (*models.User, error)
	getByEmailFn     func(context.Context, string) (*models.User, error)
	getByUsernameFn  func(context.Context, string) (*models.User, error)
	createFn         func(context.Context, *models.User) error
	updatePasswordFn func(context.Context, uint, string) error
	updateAvatarFn   func(context.Context, uint, string) error
	listFn           func(context.Context, int, int) ([]models.User, int64, error)
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	if s.getByIDFn == nil {
		return &models.User{ID: id}, nil
	}
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetForUpdate(ctx context.Context, id uint) (*models.User, error) {
	if s.getForUpdateFn == nil {
		return &models.User{ID: id}, nil
	}
	return s.getForUpdateFn(ctx, id)
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if s.getByEmailFn == nil {
		return nil, nil
	}
	return s.getByEmailFn(ctx, email)
}
func (s *userRepoStub) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if s.getByUsernameFn == nil {
		return nil, nil
	}
	return s.getByUsernameFn(ctx, username)
}
func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, user)
}
func (s *userRepoStub) UpdatePassword(ctx context.Context, id uint, hash string) error {
	if s.updatePasswordFn == nil {
		return nil
	}
	return s.updatePasswordFn(ctx, id, hash)
}
func (s *userRepoStub) UpdateAvatar(ctx context.Context, id uint, avatar string) error {
	if s.updateAvatarFn == nil {
		return nil
	}
	return s.updateAvatarFn(ctx, id, avatar)
}
func (s *userRepoStub) List(ctx context.Context, limit, offset int) ([]models.User, int64, error) {
	if s.listFn == nil {
		return nil, 0, nil
	}
	return s.listFn(ctx, limit, offset)
}

// recipeRepoStub is a stub for repository.RecipeRepository.
type recipeRepoStub struct {
	listFn                func(context.Context, repository.RecipeFilter, int, int) ([]models.Recipe, int64, error)
	getByIDFn             func(context.Context, uint) (*models.Recipe, error)
	createFn              func(context.Context, *models.Recipe, []models.RecipeIngredient, []uint) error
	updateFn              func(context.Context, *models.Recipe, []models.RecipeIngredient, []uint) error
	deleteFn              func(context.Context, uint) error
	shortLinkExistsFn     func(context.Context, string) (bool, error)
	setShortLinkIfEmptyFn func(context.Context, uint, string) (bool, error)
	getByShortLinkFn      func(context.Context, string) (*models.Recipe, error)
	listByAuthorFn        func(context.Context, uint, int) ([]models.Recipe, error)
	countByAuthorsFn      func(context.Context, []uint) (map[uint]int64, error)
}

func (s *recipeRepoStub) List(ctx context.Context, f repository.RecipeFilter, limit, offset int) ([]models.Recipe, int64, error) {
	if s.listFn == nil {
		return nil, 0, nil
	}
	return s.listFn(ctx, f, limit, offset)
}
func (s *recipeRepoStub) GetByID(ctx context.Context, id uint) (*models.Recipe, error) {
	if s.getByIDFn == nil {
		return nil, models.NewNotFoundError("Recipe", id)
	}
	return s.getByIDFn(ctx, id)
}
func (s *recipeRepoStub) Create(ctx context.Context, r *models.Recipe, ing []models.RecipeIngredient, tags []uint) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, r, ing, tags)
}
func (s *recipeRepoStub) Update(ctx context.Context, r *models.Recipe, ing []models.RecipeIngredient, tags []uint) error {
	if s.updateFn == nil {
		return nil
	}
	return s.updateFn(ctx, r, ing, tags)
}
func (s *recipeRepoStub) Delete(ctx context.Context, id uint) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, id)
}
func (s *recipeRepoStub) ShortLinkExists(ctx context.Context, link string) (bool, error) {
	if s.shortLinkExistsFn == nil {
		return false, nil
	}
	return s.shortLinkExistsFn(ctx, link)
}
func (s *recipeRepoStub) SetShortLinkIfEmpty(ctx context.Context, id uint, link string) (bool, error) {
	if s.setShortLinkIfEmptyFn == nil {
		return true, nil
	}
	return s.setShortLinkIfEmptyFn(ctx, id, link)
}
func (s *recipeRepoStub) GetByShortLink(ctx context.Context, link string) (*models.Recipe, error) {
	if s.getByShortLinkFn == nil {
		return nil, models.NewNotFoundError("Short link", link)
	}
	return s.getByShortLinkFn(ctx, link)
}
func (s *recipeRepoStub) ListByAuthor(ctx context.Context, authorID uint, limit int) ([]models.Recipe, error) {
	if s.listByAuthorFn == nil {
		return nil, nil
	}
	return s.listByAuthorFn(ctx, authorID, limit)
}
func (s *recipeRepoStub) CountByAuthors(ctx context.Context, ids []uint) (map[uint]int64, error) {
	if s.countByAuthorsFn == nil {
		return map[uint]int64{}, nil
	}
	return s.countByAuthorsFn(ctx, ids)
}

// catalogStub serves both repository.TagRepository and repository.IngredientRepository
// from fixed slices.
type catalogStub struct {
	tags        []models.Tag
	ingredients []models.Ingredient
	err         error
}

type tagRepoStub struct{ *catalogStub }
type ingredientRepoStub struct{ *catalogStub }

func (s tagRepoStub) List(context.Context) ([]models.Tag, error) { return s.tags, s.err }
func (s tagRepoStub) GetByID(_ context.Context, id uint) (*models.Tag, error) {
	for i := range s.tags {
		if s.tags[i].ID == id {
			return &s.tags[i], nil
		}
	}
	return nil, models.NewNotFoundError("Tag", id)
}
func (s tagRepoStub) GetByIDs(_ context.Context, ids []uint) ([]models.Tag, error) {
	var out []models.Tag
	for _, id := range ids {
		for _, t := range s.tags {
			if t.ID == id {
				out = append(out, t)
			}
		}
	}
	return out, s.err
}
func (s tagRepoStub) Upsert(_ context.Context, tags []models.Tag) (int64, error) {
	return int64(len(tags)), s.err
}

func (s ingredientRepoStub) SearchByPrefix(context.Context, string) ([]models.Ingredient, error) {
	return s.ingredients, s.err
}
func (s ingredientRepoStub) GetByID(_ context.Context, id uint) (*models.Ingredient, error) {
	for i := range s.ingredients {
		if s.ingredients[i].ID == id {
			return &s.ingredients[i], nil
		}
	}
	return nil, models.NewNotFoundError("Ingredient", id)
}
func (s ingredientRepoStub) GetByIDs(_ context.Context, ids []uint) ([]models.Ingredient, error) {
	var out []models.Ingredient
	for _, id := range ids {
		for _, ing := range s.ingredients {
			if ing.ID == id {
				out = append(out, ing)
			}
		}
	}
	return out, s.err
}
func (s ingredientRepoStub) Upsert(_ context.Context, ingredients []models.Ingredient) (int64, error) {
	return int64(len(ingredients)), s.err
}

type markPair struct{ user, target uint }

// markSetStub is an in-memory pair set standing in for the favorite, cart
// and subscription repositories.
type markSetStub struct {
	pairs   map[markPair]bool
	lines   []models.ShoppingListLine
	authors []models.User
	err     error
	// staleExists makes Exists miss rows that Add still rejects, as when a
	// concurrent request inserts between the check and the write.
	staleExists bool
}

func newMarkSet() *markSetStub {
	return &markSetStub{pairs: map[markPair]bool{}}
}

func (s *markSetStub) Add(_ context.Context, user, target uint) error {
	if s.err != nil {
		return s.err
	}
	k := markPair{user, target}
	if s.pairs[k] {
		return models.NewConflictError("duplicate")
	}
	s.pairs[k] = true
	return nil
}
func (s *markSetStub) Remove(_ context.Context, user, target uint) error {
	if s.err != nil {
		return s.err
	}
	k := markPair{user, target}
	if !s.pairs[k] {
		return models.NewNotFoundError("Mark", target)
	}
	delete(s.pairs, k)
	return nil
}
func (s *markSetStub) Exists(_ context.Context, user, target uint) (bool, error) {
	if s.staleExists {
		return false, s.err
	}
	return s.pairs[markPair{user, target}], s.err
}
func (s *markSetStub) marked(user uint, ids []uint) ([]uint, error) {
	var out []uint
	for _, id := range ids {
		if s.pairs[markPair{user, id}] {
			out = append(out, id)
		}
	}
	return out, s.err
}
func (s *markSetStub) MarkedRecipeIDs(_ context.Context, user uint, ids []uint) ([]uint, error) {
	return s.marked(user, ids)
}
func (s *markSetStub) SubscribedAuthorIDs(_ context.Context, user uint, ids []uint) ([]uint, error) {
	return s.marked(user, ids)
}
func (s *markSetStub) SubscriberIDs(_ context.Context, target uint) ([]uint, error) {
	var out []uint
	for k := range s.pairs {
		if k.target == target {
			out = append(out, k.user)
		}
	}
	return out, s.err
}
func (s *markSetStub) ListAuthors(_ context.Context, _ uint, _, _ int) ([]models.User, int64, error) {
	return s.authors, int64(len(s.authors)), s.err
}
func (s *markSetStub) Lines(context.Context, uint) ([]models.ShoppingListLine, error) {
	return s.lines, s.err
}

var (
	_ repository.UserRepository         = (*userRepoStub)(nil)
	_ repository.RecipeRepository       = (*recipeRepoStub)(nil)
	_ repository.TagRepository          = tagRepoStub{}
	_ repository.IngredientRepository   = ingredientRepoStub{}
	_ repository.ShoppingCartRepository = (*markSetStub)(nil)
	_ repository.SubscriptionRepository = (*markSetStub)(nil)
)

// imageStorerStub records stored and removed URLs without touching disk.
type imageStorerStub struct {
	next    string
	err     error
	stored  []string
	removed []string
}

func (s *imageStorerStub) Store(_ context.Context, kind string, _ ImageUpload) (string, error) {
	return s.store(kind)
}
func (s *imageStorerStub) StoreDataURI(_ context.Context, kind, _ string) (string, error) {
	return s.store(kind)
}
func (s *imageStorerStub) store(kind string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	url := s.next
	if url == "" {
		url = "/media/" + kind + "/stub.jpg"
	}
	s.stored = append(s.stored, url)
	return url, nil
}
func (s *imageStorerStub) Remove(publicURL string) {
	s.removed = append(s.removed, publicURL)
}

type recipeEventsStub struct {
	subscriberIDs []uint
	recipe        *models.Recipe
	calls         int
}

func (s *recipeEventsStub) PublishRecipeCreated(_ context.Context, ids []uint, recipe *models.Recipe, _ *models.User) error {
	s.calls++
	s.subscriberIDs = ids
	s.recipe = recipe
	return nil
}

func assertAppErrorCode(t *testing.T, err error, code string) *models.AppError {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
	return appErr
}

// assertValidationError asserts that err is an AppError with code VALIDATION_ERROR.
func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertAppErrorCode(t, err, models.CodeValidation)
}
