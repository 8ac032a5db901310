package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"foodgram/internal/middleware"
	"foodgram/internal/models"
	"foodgram/internal/observability"
	"foodgram/internal/repository"
	"foodgram/internal/validation"
)

// RecipeIngredientInput references a catalog ingredient with an amount.
type RecipeIngredientInput struct {
	ID     uint `json:"id"`
	Amount int  `json:"amount"`
}

// RecipeInput is the create/update payload. Image is a base64 data URI;
// ImageFile carries a multipart upload instead.
type RecipeInput struct {
	Ingredients []RecipeIngredientInput `json:"ingredients" validate:"min=1"`
	Tags        []uint                  `json:"tags" validate:"min=1"`
	Image       string                  `json:"image"`
	Name        string                  `json:"name" validate:"required,max=256"`
	Text        string                  `json:"text" validate:"required"`
	CookingTime int                     `json:"cooking_time" validate:"gte=1"`
	ImageFile   *ImageUpload            `json:"-"`
}

func (in *RecipeInput) hasImage() bool {
	return in.Image != "" || (in.ImageFile != nil && len(in.ImageFile.Content) > 0)
}

// ListRecipesInput selects a page of recipes for a viewer (0 for anonymous).
type ListRecipesInput struct {
	Filter   repository.RecipeFilter
	ViewerID uint
	Limit    int
	Offset   int
}

// RecipeEventPublisher fans out recipe events to subscribers.
type RecipeEventPublisher interface {
	PublishRecipeCreated(ctx context.Context, subscriberIDs []uint, recipe *models.Recipe, author *models.User) error
}

// RecipeDeps groups the collaborators of RecipeService.
type RecipeDeps struct {
	Recipes         repository.RecipeRepository
	Ingredients     repository.IngredientRepository
	Tags            repository.TagRepository
	Favorites       repository.RecipeMarkRepository
	Cart            repository.RecipeMarkRepository
	Subscriptions   repository.SubscriptionRepository
	Images          ImageStorer
	Events          RecipeEventPublisher
	ShortLinkDomain string
	Random          io.Reader
}

type RecipeService struct {
	recipes         repository.RecipeRepository
	ingredients     repository.IngredientRepository
	tags            repository.TagRepository
	favorites       repository.RecipeMarkRepository
	cart            repository.RecipeMarkRepository
	subscriptions   repository.SubscriptionRepository
	images          ImageStorer
	events          RecipeEventPublisher
	shortLinkDomain string
	random          io.Reader
}

func NewRecipeService(deps RecipeDeps) *RecipeService {
	random := deps.Random
	if random == nil {
		random = rand.Reader
	}
	return &RecipeService{
		recipes:         deps.Recipes,
		ingredients:     deps.Ingredients,
		tags:            deps.Tags,
		favorites:       deps.Favorites,
		cart:            deps.Cart,
		subscriptions:   deps.Subscriptions,
		images:          deps.Images,
		events:          deps.Events,
		shortLinkDomain: deps.ShortLinkDomain,
		random:          random,
	}
}

func (s *RecipeService) ListRecipes(ctx context.Context, in ListRecipesInput) ([]RecipeView, int64, error) {
	filter := in.Filter
	filter.ViewerID = in.ViewerID

	recipes, total, err := s.recipes.List(ctx, filter, in.Limit, in.Offset)
	if err != nil {
		return nil, 0, err
	}
	views, err := s.buildViews(ctx, recipes, in.ViewerID)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

func (s *RecipeService) GetRecipe(ctx context.Context, id, viewerID uint) (*RecipeView, error) {
	recipe, err := s.recipes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	views, err := s.buildViews(ctx, []models.Recipe{*recipe}, viewerID)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// buildViews resolves the per-viewer flags with one membership query per relation.
func (s *RecipeService) buildViews(ctx context.Context, recipes []models.Recipe, viewerID uint) ([]RecipeView, error) {
	views := make([]RecipeView, 0, len(recipes))
	if len(recipes) == 0 {
		return views, nil
	}

	var favorited, inCart, subscribed map[uint]bool
	if viewerID != 0 {
		recipeIDs := make([]uint, len(recipes))
		authorIDs := make([]uint, len(recipes))
		for i := range recipes {
			recipeIDs[i] = recipes[i].ID
			authorIDs[i] = recipes[i].AuthorID
		}

		favIDs, err := s.favorites.MarkedRecipeIDs(ctx, viewerID, recipeIDs)
		if err != nil {
			return nil, err
		}
		cartIDs, err := s.cart.MarkedRecipeIDs(ctx, viewerID, recipeIDs)
		if err != nil {
			return nil, err
		}
		subIDs, err := s.subscriptions.SubscribedAuthorIDs(ctx, viewerID, authorIDs)
		if err != nil {
			return nil, err
		}
		favorited, inCart, subscribed = idSet(favIDs), idSet(cartIDs), idSet(subIDs)
	}

	for i := range recipes {
		r := &recipes[i]
		views = append(views, NewRecipeView(r, subscribed[r.AuthorID], favorited[r.ID], inCart[r.ID]))
	}
	return views, nil
}

func (s *RecipeService) CreateRecipe(ctx context.Context, authorID uint, in RecipeInput) (*RecipeView, error) {
	ctx, span := observability.StartServiceSpan(ctx, "RecipeService", "CreateRecipe")
	defer span.End()

	if err := s.validateInput(ctx, &in, true); err != nil {
		return nil, err
	}

	imageURL, err := s.storeImage(ctx, &in)
	if err != nil {
		return nil, err
	}

	link, err := GenerateShortLink(ctx, s.shortLinkDomain, s.recipes.ShortLinkExists, ShortLinkMaxAttempts, s.random)
	if err != nil {
		s.images.Remove(imageURL)
		observability.RecordErrorInContext(ctx, err)
		if errors.Is(err, ErrShortLinkExhausted) {
			middleware.Logger.ErrorContext(ctx, "short link space exhausted", slog.Int("attempts", ShortLinkMaxAttempts))
		}
		return nil, models.NewInternalError(err)
	}

	recipe := &models.Recipe{
		AuthorID:    authorID,
		Name:        in.Name,
		Image:       imageURL,
		Text:        in.Text,
		CookingTime: in.CookingTime,
		ShortLink:   &link,
	}
	if err := s.recipes.Create(ctx, recipe, ingredientRows(in.Ingredients), in.Tags); err != nil {
		s.images.Remove(imageURL)
		return nil, err
	}

	view, err := s.GetRecipe(ctx, recipe.ID, authorID)
	if err != nil {
		return nil, err
	}
	s.publishCreated(ctx, recipe.ID, authorID)
	return view, nil
}

// publishCreated notifies the author's subscribers. Failures are logged only.
func (s *RecipeService) publishCreated(ctx context.Context, recipeID, authorID uint) {
	if s.events == nil {
		return
	}
	subscriberIDs, err := s.subscriptions.SubscriberIDs(ctx, authorID)
	if err != nil || len(subscriberIDs) == 0 {
		return
	}
	recipe, err := s.recipes.GetByID(ctx, recipeID)
	if err != nil {
		return
	}
	if err := s.events.PublishRecipeCreated(ctx, subscriberIDs, recipe, &recipe.Author); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish recipe_created",
			slog.Uint64("recipe_id", uint64(recipeID)), slog.String("error", err.Error()))
	}
}

func (s *RecipeService) UpdateRecipe(ctx context.Context, userID, recipeID uint, in RecipeInput) (*RecipeView, error) {
	existing, err := s.recipes.GetByID(ctx, recipeID)
	if err != nil {
		return nil, err
	}
	if existing.AuthorID != userID {
		return nil, models.NewForbiddenError("Only the author can change this recipe")
	}
	if err := s.validateInput(ctx, &in, false); err != nil {
		return nil, err
	}

	imageURL := existing.Image
	if in.hasImage() {
		if imageURL, err = s.storeImage(ctx, &in); err != nil {
			return nil, err
		}
	}

	updated := &models.Recipe{
		ID:          recipeID,
		Name:        in.Name,
		Image:       imageURL,
		Text:        in.Text,
		CookingTime: in.CookingTime,
	}
	if err := s.recipes.Update(ctx, updated, ingredientRows(in.Ingredients), in.Tags); err != nil {
		if imageURL != existing.Image {
			s.images.Remove(imageURL)
		}
		return nil, err
	}
	if imageURL != existing.Image {
		s.images.Remove(existing.Image)
	}

	return s.GetRecipe(ctx, recipeID, userID)
}

func (s *RecipeService) DeleteRecipe(ctx context.Context, userID, recipeID uint) error {
	existing, err := s.recipes.GetByID(ctx, recipeID)
	if err != nil {
		return err
	}
	if existing.AuthorID != userID {
		return models.NewForbiddenError("Only the author can delete this recipe")
	}
	if err := s.recipes.Delete(ctx, recipeID); err != nil {
		return err
	}
	s.images.Remove(existing.Image)
	return nil
}

// GetShortLink returns the recipe's short link, generating and storing one
// for rows created before links existed. A stored link is never replaced.
func (s *RecipeService) GetShortLink(ctx context.Context, recipeID uint) (string, error) {
	recipe, err := s.recipes.GetByID(ctx, recipeID)
	if err != nil {
		return "", err
	}
	if recipe.ShortLink != nil && *recipe.ShortLink != "" {
		return *recipe.ShortLink, nil
	}

	link, err := GenerateShortLink(ctx, s.shortLinkDomain, s.recipes.ShortLinkExists, ShortLinkMaxAttempts, s.random)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	stored, err := s.recipes.SetShortLinkIfEmpty(ctx, recipeID, link)
	if err != nil {
		return "", err
	}
	if stored {
		return link, nil
	}

	// A concurrent request stored its link first.
	recipe, err = s.recipes.GetByID(ctx, recipeID)
	if err != nil {
		return "", err
	}
	if recipe.ShortLink == nil {
		return "", models.NewInternalError(fmt.Errorf("short link for recipe %d was not stored", recipeID))
	}
	return *recipe.ShortLink, nil
}

// ResolveShortCode maps a code from a short link back to its recipe ID.
func (s *RecipeService) ResolveShortCode(ctx context.Context, code string) (uint, error) {
	if !IsShortLinkCode(code) {
		return 0, models.NewNotFoundError("Short link", code)
	}
	recipe, err := s.recipes.GetByShortLink(ctx, s.shortLinkDomain+code)
	if err != nil {
		return 0, err
	}
	return recipe.ID, nil
}

func (s *RecipeService) storeImage(ctx context.Context, in *RecipeInput) (string, error) {
	if in.ImageFile != nil && len(in.ImageFile.Content) > 0 {
		return s.images.Store(ctx, ImageKindRecipe, *in.ImageFile)
	}
	return s.images.StoreDataURI(ctx, ImageKindRecipe, in.Image)
}

// validateInput reports every field problem at once.
func (s *RecipeService) validateInput(ctx context.Context, in *RecipeInput, requireImage bool) error {
	fields := map[string]string{}
	if err := validation.ValidateStruct(in); err != nil {
		var appErr *models.AppError
		if !errors.As(err, &appErr) {
			return err
		}
		for k, v := range appErr.Fields {
			fields[k] = v
		}
	}

	if requireImage && !in.hasImage() {
		fields["image"] = "image is required"
	}

	seenIngredients := make(map[uint]bool, len(in.Ingredients))
	ingredientIDs := make([]uint, 0, len(in.Ingredients))
	for _, ing := range in.Ingredients {
		switch {
		case ing.Amount < 1:
			fields["ingredients"] = "amount must be > 0"
		case seenIngredients[ing.ID]:
			fields["ingredients"] = "duplicate ingredient"
		}
		if !seenIngredients[ing.ID] {
			seenIngredients[ing.ID] = true
			ingredientIDs = append(ingredientIDs, ing.ID)
		}
	}

	seenTags := make(map[uint]bool, len(in.Tags))
	tagIDs := make([]uint, 0, len(in.Tags))
	for _, id := range in.Tags {
		if seenTags[id] {
			fields["tags"] = "duplicate tag"
			continue
		}
		seenTags[id] = true
		tagIDs = append(tagIDs, id)
	}

	if len(fields) > 0 {
		return models.NewFieldValidationError(fields)
	}

	found, err := s.ingredients.GetByIDs(ctx, ingredientIDs)
	if err != nil {
		return err
	}
	if missing := firstMissingIngredient(ingredientIDs, found); missing != 0 {
		fields["ingredients"] = fmt.Sprintf("ingredient %d does not exist", missing)
	}
	tags, err := s.tags.GetByIDs(ctx, tagIDs)
	if err != nil {
		return err
	}
	if missing := firstMissingTag(tagIDs, tags); missing != 0 {
		fields["tags"] = fmt.Sprintf("tag %d does not exist", missing)
	}

	if len(fields) > 0 {
		return models.NewFieldValidationError(fields)
	}
	return nil
}

func firstMissingIngredient(ids []uint, found []models.Ingredient) uint {
	have := make(map[uint]bool, len(found))
	for _, f := range found {
		have[f.ID] = true
	}
	for _, id := range ids {
		if !have[id] {
			return id
		}
	}
	return 0
}

func firstMissingTag(ids []uint, found []models.Tag) uint {
	have := make(map[uint]bool, len(found))
	for _, f := range found {
		have[f.ID] = true
	}
	for _, id := range ids {
		if !have[id] {
			return id
		}
	}
	return 0
}

func ingredientRows(in []RecipeIngredientInput) []models.RecipeIngredient {
	rows := make([]models.RecipeIngredient, len(in))
	for i, ing := range in {
		rows[i] = models.RecipeIngredient{IngredientID: ing.ID, Amount: ing.Amount}
	}
	return rows
}
