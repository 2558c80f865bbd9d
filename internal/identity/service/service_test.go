package service

import (
	"context"
	"testing"
	"time"

	"workorders_backend/internal/identity/repository"
	"workorders_backend/platform/apperr"
)

type memoryUsers struct {
	users map[string]repository.User
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{users: map[string]repository.User{}}
}

func (m *memoryUsers) GetUser(_ context.Context, id string) (repository.User, error) {
	u, ok := m.users[id]
	if !ok {
		return repository.User{}, apperr.NotFound("user not found")
	}
	return u, nil
}

func (m *memoryUsers) ListUsers(_ context.Context, role string) ([]repository.User, error) {
	var out []repository.User
	for _, u := range m.users {
		if role == "" || u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memoryUsers) UpsertUser(_ context.Context, p repository.UpsertParams) (repository.User, error) {
	u := repository.User{ID: p.ID, Name: p.Name, Email: p.Email, Role: p.Role, CreatedAt: time.Now()}
	m.users[p.ID] = u
	return u, nil
}

func (m *memoryUsers) DeleteUser(_ context.Context, id string) error {
	if _, ok := m.users[id]; !ok {
		return apperr.NotFound("user not found")
	}
	delete(m.users, id)
	return nil
}

func TestUpsertUserNormalizesInput(t *testing.T) {
	svc := New(newMemoryUsers())

	u, err := svc.UpsertUser(context.Background(), UpsertInput{
		ID:    "u1",
		Name:  "  Ann \n Smith ",
		Email: " Ann@Example.COM ",
		Role:  "Manager",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Name != "Ann Smith" {
		t.Fatalf("expected collapsed name, got %q", u.Name)
	}
	if u.Email != "ann@example.com" {
		t.Fatalf("expected lowered email, got %q", u.Email)
	}
	if u.Role != "manager" {
		t.Fatalf("expected manager role, got %q", u.Role)
	}
}

func TestUpsertUserDefaultsToWorker(t *testing.T) {
	svc := New(newMemoryUsers())

	u, err := svc.UpsertUser(context.Background(), UpsertInput{ID: "u1", Name: "Bob"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Role != "worker" || u.Email != "" {
		t.Fatalf("unexpected user %+v", u)
	}
}

func TestUpsertUserRejectsUnknownRole(t *testing.T) {
	svc := New(newMemoryUsers())

	_, err := svc.UpsertUser(context.Background(), UpsertInput{ID: "u1", Name: "Bob", Role: "owner"})
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGetUserNotFound(t *testing.T) {
	svc := New(newMemoryUsers())

	_, err := svc.GetUser(context.Background(), "missing")
	if apperr.GetKind(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
