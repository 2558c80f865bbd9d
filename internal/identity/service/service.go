package service

import (
	"context"
	"strings"

	"workorders_backend/internal/identity/repository"
	"workorders_backend/internal/orders/domain"
	"workorders_backend/platform/apperr"
	"workorders_backend/platform/sanitize"
)

// Store is the persistence surface the service needs.
type Store interface {
	GetUser(ctx context.Context, userID string) (repository.User, error)
	ListUsers(ctx context.Context, role string) ([]repository.User, error)
	UpsertUser(ctx context.Context, p repository.UpsertParams) (repository.User, error)
	DeleteUser(ctx context.Context, userID string) error
}

// User is the directory view of a user.
type User struct {
	ID    string
	Name  string
	Email string
	Role  string
}

type Service struct {
	repo Store
}

func New(repo Store) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetUser(ctx context.Context, userID string) (User, error) {
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return User{}, err
	}
	return toUser(u), nil
}

func (s *Service) ListUsers(ctx context.Context, role string) ([]User, error) {
	if role != "" {
		r, ok := domain.ParseRole(role)
		if !ok {
			return nil, apperr.Validation("unknown role")
		}
		role = string(r)
	}

	users, err := s.repo.ListUsers(ctx, role)
	if err != nil {
		return nil, err
	}
	out := make([]User, 0, len(users))
	for _, u := range users {
		out = append(out, toUser(u))
	}
	return out, nil
}

type UpsertInput struct {
	ID    string
	Name  string
	Email string
	Role  string
}

func (s *Service) UpsertUser(ctx context.Context, in UpsertInput) (User, error) {
	id := strings.TrimSpace(in.ID)
	if id == "" {
		return User{}, apperr.Validation("user id is required")
	}
	name := sanitize.Line(in.Name, 200)
	if name == "" {
		return User{}, apperr.Validation("name is required")
	}
	role := domain.RoleWorker
	if in.Role != "" {
		r, ok := domain.ParseRole(in.Role)
		if !ok {
			return User{}, apperr.Validation("unknown role")
		}
		role = r
	}

	var email *string
	if trimmed := strings.TrimSpace(in.Email); trimmed != "" {
		lowered := strings.ToLower(trimmed)
		email = &lowered
	}

	u, err := s.repo.UpsertUser(ctx, repository.UpsertParams{
		ID:    id,
		Name:  name,
		Email: email,
		Role:  string(role),
	})
	if err != nil {
		return User{}, err
	}
	return toUser(u), nil
}

func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	return s.repo.DeleteUser(ctx, userID)
}

func toUser(u repository.User) User {
	out := User{ID: u.ID, Name: u.Name, Role: u.Role}
	if u.Email != nil {
		out.Email = *u.Email
	}
	return out
}
