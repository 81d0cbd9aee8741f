package services

import (
	"context"
	"errors"
	"strings"

	"github.com/contesthub/contesthub-gobackend/internal/apperr"
	"github.com/contesthub/contesthub-gobackend/internal/logging"
	"github.com/contesthub/contesthub-gobackend/internal/models"
	"github.com/contesthub/contesthub-gobackend/internal/store"
)

type UserService struct {
	users store.UserStore
	now   Clock
}

func NewUserService(users store.UserStore) *UserService {
	return &UserService{users: users, now: utcNow}
}

// Upsert registers a user on first sign-in. Calling it again for the same
// email returns the stored document unchanged. The role of a new user is
// always "user"; roles only change through UpdateRole.
func (s *UserService) Upsert(ctx context.Context, in models.User) (*models.User, bool, error) {
	email := normalizeEmail(in.Email)
	if email == "" {
		return nil, false, apperr.New(apperr.CodeValidation, "email is required")
	}

	now := s.now()
	u := &models.User{
		Email:     email,
		Name:      strings.TrimSpace(in.Name),
		Photo:     strings.TrimSpace(in.Photo),
		Role:      models.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}

	inserted, err := s.users.Upsert(ctx, u)
	if err != nil {
		return nil, false, storeErr(err, "user not found")
	}
	if inserted {
		logging.FromContext(ctx).InfoContext(ctx, "user registered", "email", maskEmail(email))
	}
	return u, inserted, nil
}

func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, storeErr(err, "")
	}
	return users, nil
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, apperr.New(apperr.CodeValidation, "email is required")
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, storeErr(err, "user not found")
	}
	return u, nil
}

// Role returns the stored role, defaulting to user when there is no document.
func (s *UserService) Role(ctx context.Context, email string) (models.Role, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return models.RoleUser, nil
	}
	if err != nil {
		return "", storeErr(err, "")
	}
	if u.Role == "" {
		return models.RoleUser, nil
	}
	return u.Role, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, email string, p models.ProfileUpdate) (models.UpdateResult, error) {
	email = normalizeEmail(email)
	if email == "" {
		return models.UpdateResult{}, apperr.New(apperr.CodeValidation, "email is required")
	}
	if p.Name == nil && p.Photo == nil {
		return models.UpdateResult{}, apperr.New(apperr.CodeValidation, "nothing to update")
	}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return models.UpdateResult{}, apperr.New(apperr.CodeValidation, "name cannot be empty")
		}
		p.Name = &name
	}

	res, err := s.users.UpdateProfile(ctx, email, p, s.now())
	if err != nil {
		return models.UpdateResult{}, storeErr(err, "")
	}
	return res, nil
}

func (s *UserService) UpdateRole(ctx context.Context, id, role string) (models.UpdateResult, error) {
	objID, err := parseID(id, "user id")
	if err != nil {
		return models.UpdateResult{}, err
	}
	r, ok := models.ParseRole(strings.TrimSpace(role))
	if !ok {
		return models.UpdateResult{}, apperr.New(apperr.CodeValidation, "role must be one of user, creator, admin")
	}

	res, err := s.users.UpdateRole(ctx, objID, r, s.now())
	if err != nil {
		return models.UpdateResult{}, storeErr(err, "")
	}
	logging.FromContext(ctx).InfoContext(ctx, "user role updated", "user_id", id, "role", r, "matched", res.Matched)
	return res, nil
}
