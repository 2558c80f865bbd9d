package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"workorders_backend/platform/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const msgUserNotFound = "user not found"

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type User struct {
	ID        string
	Name      string
	Email     *string
	Role      string
	CreatedAt time.Time
}

type UpsertParams struct {
	ID    string
	Name  string
	Email *string
	Role  string
}

func (r *Repository) GetUser(ctx context.Context, userID string) (User, error) {
	var u User
	err := r.pool.QueryRow(ctx, `
    SELECT id, name, email, role, created_at
    FROM users
    WHERE id = $1
  `, userID).Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, apperr.NotFound(msgUserNotFound)
	}
	if err != nil {
		return User{}, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (r *Repository) ListUsers(ctx context.Context, role string) ([]User, error) {
	rows, err := r.pool.Query(ctx, `
    SELECT id, name, email, role, created_at
    FROM users
    WHERE ($1 = '' OR role = $1)
    ORDER BY name ASC
  `, role)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *Repository) UpsertUser(ctx context.Context, p UpsertParams) (User, error) {
	var u User
	err := r.pool.QueryRow(ctx, `
    INSERT INTO users (id, name, email, role)
    VALUES ($1, $2, $3, $4)
    ON CONFLICT (id) DO UPDATE
    SET name = EXCLUDED.name, email = EXCLUDED.email, role = EXCLUDED.role
    RETURNING id, name, email, role, created_at
  `, p.ID, p.Name, p.Email, p.Role).Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.CreatedAt)
	if err != nil {
		return User{}, fmt.Errorf("failed to upsert user: %w", err)
	}
	return u, nil
}

func (r *Repository) DeleteUser(ctx context.Context, userID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(msgUserNotFound)
	}
	return nil
}
