package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mixtape-app/mixtape/internal/models"
	"github.com/mixtape-app/mixtape/internal/shared"
)

// UserRepository handles user account persistence.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new UserRepository with the given database connection
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user with a generated ID when none is set.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = shared.GenerateID()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO users (id, username, email, avatar_url, created_at, updated_at)
		VALUES (:id, :username, :email, :avatar_url, :created_at, :updated_at)
	`

	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// Get retrieves a user by ID.
func (r *UserRepository) Get(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

// GetByUsername retrieves a user by their unique username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE username = ?`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

// List retrieves all users ordered by username.
func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, `SELECT * FROM users ORDER BY username ASC`); err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	return users, nil
}
