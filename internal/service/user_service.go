package service

import (
	"context"
	"strings"

	"foodgram/internal/models"
	"foodgram/internal/repository"
	"foodgram/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

// RegisterInput is the sign-up payload.
type RegisterInput struct {
	Email     string `json:"email" validate:"required,max=254,email"`
	Username  string `json:"username" validate:"required,max=150,username"`
	FirstName string `json:"first_name" validate:"required,max=150"`
	LastName  string `json:"last_name" validate:"required,max=150"`
	Password  string `json:"password" validate:"required,password"`
}

// SetPasswordInput changes the caller's password.
type SetPasswordInput struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,password"`
}

type UserService struct {
	users         repository.UserRepository
	subscriptions repository.SubscriptionRepository
	images        ImageStorer
	bcryptCost    int
}

func NewUserService(users repository.UserRepository, subscriptions repository.SubscriptionRepository, images ImageStorer) *UserService {
	return &UserService{
		users:         users,
		subscriptions: subscriptions,
		images:        images,
		bcryptCost:    bcrypt.DefaultCost,
	}
}

// WithBcryptCost overrides the hashing cost; tests use bcrypt.MinCost.
func (s *UserService) WithBcryptCost(cost int) *UserService {
	s.bcryptCost = cost
	return s
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	if err := validation.ValidateStruct(&in); err != nil {
		return nil, err
	}

	fields := map[string]string{}
	byEmail, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if byEmail != nil {
		fields["email"] = "A user with that email already exists"
	}
	byUsername, err := s.users.GetByUsername(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if byUsername != nil {
		fields["username"] = "A user with that username already exists"
	}
	if len(fields) > 0 {
		return nil, models.NewFieldValidationError(fields)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Email:     in.Email,
		Username:  in.Username,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Password:  string(hash),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate checks credentials. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	invalid := models.NewValidationError("Unable to log in with provided credentials")
	email = strings.TrimSpace(email)
	if password == "" || validation.ValidateEmail(email) != nil {
		return nil, invalid
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, invalid
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, invalid
	}
	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, id, viewerID uint) (*UserView, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	subscribed := false
	if viewerID != 0 && viewerID != id {
		subscribed, err = s.subscriptions.Exists(ctx, viewerID, id)
		if err != nil {
			return nil, err
		}
	}
	view := NewUserView(user, subscribed)
	return &view, nil
}

func (s *UserService) ListUsers(ctx context.Context, viewerID uint, limit, offset int) ([]UserView, int64, error) {
	users, total, err := s.users.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	var subscribed map[uint]bool
	if viewerID != 0 && len(users) > 0 {
		ids := make([]uint, len(users))
		for i := range users {
			ids[i] = users[i].ID
		}
		subIDs, err := s.subscriptions.SubscribedAuthorIDs(ctx, viewerID, ids)
		if err != nil {
			return nil, 0, err
		}
		subscribed = idSet(subIDs)
	}

	views := make([]UserView, 0, len(users))
	for i := range users {
		views = append(views, NewUserView(&users[i], subscribed[users[i].ID]))
	}
	return views, total, nil
}

func (s *UserService) SetPassword(ctx context.Context, userID uint, in SetPasswordInput) error {
	if err := validation.ValidateStruct(&in); err != nil {
		return err
	}
	user, err := s.users.GetForUpdate(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.CurrentPassword)) != nil {
		return models.NewFieldValidationError(map[string]string{"current_password": "Invalid password"})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), s.bcryptCost)
	if err != nil {
		return models.NewInternalError(err)
	}
	return s.users.UpdatePassword(ctx, userID, string(hash))
}

// SetAvatar stores a base64 data-URI avatar and returns its URL.
func (s *UserService) SetAvatar(ctx context.Context, userID uint, dataURI string) (string, error) {
	if strings.TrimSpace(dataURI) == "" {
		return "", models.NewFieldValidationError(map[string]string{"avatar": "avatar is required"})
	}
	user, err := s.users.GetForUpdate(ctx, userID)
	if err != nil {
		return "", err
	}

	url, err := s.images.StoreDataURI(ctx, ImageKindAvatar, dataURI)
	if err != nil {
		return "", err
	}
	if err := s.users.UpdateAvatar(ctx, userID, url); err != nil {
		s.images.Remove(url)
		return "", err
	}
	if user.Avatar != "" && user.Avatar != url {
		s.images.Remove(user.Avatar)
	}
	return url, nil
}

func (s *UserService) DeleteAvatar(ctx context.Context, userID uint) error {
	user, err := s.users.GetForUpdate(ctx, userID)
	if err != nil {
		return err
	}
	if user.Avatar == "" {
		return nil
	}
	if err := s.users.UpdateAvatar(ctx, userID, ""); err != nil {
		return err
	}
	s.images.Remove(user.Avatar)
	return nil
}
