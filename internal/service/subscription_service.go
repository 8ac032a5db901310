package service

import (
	"context"

	"foodgram/internal/models"
	"foodgram/internal/observability"
	"foodgram/internal/repository"
)

const subscriptionKind = "subscription"

type SubscriptionService struct {
	subscriptions repository.SubscriptionRepository
	users         repository.UserRepository
	recipes       repository.RecipeRepository
}

func NewSubscriptionService(
	subscriptions repository.SubscriptionRepository,
	users repository.UserRepository,
	recipes repository.RecipeRepository,
) *SubscriptionService {
	return &SubscriptionService{subscriptions: subscriptions, users: users, recipes: recipes}
}

// Subscribe makes userID follow authorID. recipesLimit bounds the recipe
// preview in the returned view; 0 means all.
func (s *SubscriptionService) Subscribe(ctx context.Context, userID, authorID uint, recipesLimit int) (*AuthorWithRecipesView, error) {
	if userID == authorID {
		s.record("add", "self")
		return nil, models.NewValidationError("You cannot subscribe to yourself")
	}
	author, err := s.users.GetByID(ctx, authorID)
	if err != nil {
		return nil, err
	}

	exists, err := s.subscriptions.Exists(ctx, userID, authorID)
	if err != nil {
		return nil, err
	}
	if exists {
		s.record("add", "conflict")
		return nil, models.NewConflictError("You are already subscribed to this author")
	}
	if err := s.subscriptions.Add(ctx, userID, authorID); err != nil {
		if models.HasCode(err, models.CodeConflict) {
			s.record("add", "conflict")
			return nil, models.NewConflictError("You are already subscribed to this author")
		}
		s.record("add", "error")
		return nil, err
	}
	s.record("add", "ok")

	views, err := s.withRecipes(ctx, []models.User{*author}, recipesLimit)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *SubscriptionService) Unsubscribe(ctx context.Context, userID, authorID uint) error {
	if userID == authorID {
		s.record("remove", "self")
		return models.NewValidationError("You cannot unsubscribe from yourself")
	}
	if _, err := s.users.GetByID(ctx, authorID); err != nil {
		return err
	}
	if err := s.subscriptions.Remove(ctx, userID, authorID); err != nil {
		if models.HasCode(err, models.CodeNotFound) {
			s.record("remove", "not_found")
			return models.NewNotFoundError("Subscription to author", authorID)
		}
		s.record("remove", "error")
		return err
	}
	s.record("remove", "ok")
	return nil
}

// ListSubscriptions pages through the authors userID follows.
func (s *SubscriptionService) ListSubscriptions(ctx context.Context, userID uint, limit, offset, recipesLimit int) ([]AuthorWithRecipesView, int64, error) {
	authors, total, err := s.subscriptions.ListAuthors(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	views, err := s.withRecipes(ctx, authors, recipesLimit)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

// withRecipes builds views for authors the caller follows.
func (s *SubscriptionService) withRecipes(ctx context.Context, authors []models.User, recipesLimit int) ([]AuthorWithRecipesView, error) {
	views := make([]AuthorWithRecipesView, 0, len(authors))
	if len(authors) == 0 {
		return views, nil
	}

	ids := make([]uint, len(authors))
	for i := range authors {
		ids[i] = authors[i].ID
	}
	counts, err := s.recipes.CountByAuthors(ctx, ids)
	if err != nil {
		return nil, err
	}

	for i := range authors {
		a := &authors[i]
		recipes, err := s.recipes.ListByAuthor(ctx, a.ID, recipesLimit)
		if err != nil {
			return nil, err
		}
		short := make([]ShortRecipeView, 0, len(recipes))
		for j := range recipes {
			short = append(short, NewShortRecipeView(&recipes[j]))
		}
		views = append(views, AuthorWithRecipesView{
			UserView:     NewUserView(a, true),
			Recipes:      short,
			RecipesCount: counts[a.ID],
		})
	}
	return views, nil
}

func (s *SubscriptionService) record(action, result string) {
	observability.ToggleOperations.WithLabelValues(subscriptionKind, action, result).Inc()
}
