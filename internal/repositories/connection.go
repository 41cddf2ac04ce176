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

// ConnectionRepository persists per-user provider credentials. It satisfies
// providers.ConnectionStore so the token manager can read and refresh through
// it.
type ConnectionRepository struct {
	db *sqlx.DB
}

// NewConnectionRepository creates a new ConnectionRepository with the given database connection
func NewConnectionRepository(db *sqlx.DB) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

// Get retrieves the connection for one user and provider.
func (r *ConnectionRepository) Get(ctx context.Context, userID string, provider models.Provider) (*models.Connection, error) {
	var conn models.Connection
	err := r.db.GetContext(ctx, &conn,
		`SELECT * FROM connections WHERE user_id = ? AND provider = ?`, userID, string(provider))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrServiceNotConnected
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query connection: %w", err)
	}
	return &conn, nil
}

// Save upserts the connection in a single write so callers never observe a
// half-updated credential row.
func (r *ConnectionRepository) Save(ctx context.Context, conn *models.Connection) error {
	if err := conn.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	if conn.CreatedAt.IsZero() {
		conn.CreatedAt = now
	}
	conn.UpdatedAt = now

	query := `
		INSERT INTO connections (user_id, provider, connected, access_token, refresh_token, provider_user_id, expires_at, created_at, updated_at)
		VALUES (:user_id, :provider, :connected, :access_token, :refresh_token, :provider_user_id, :expires_at, :created_at, :updated_at)
		ON CONFLICT (user_id, provider) DO UPDATE SET
			connected = excluded.connected,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			provider_user_id = excluded.provider_user_id,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`
	if _, err := r.db.NamedExecContext(ctx, query, conn); err != nil {
		return fmt.Errorf("failed to save connection: %w", err)
	}
	return nil
}

// List retrieves every connection for one user.
func (r *ConnectionRepository) List(ctx context.Context, userID string) ([]models.Connection, error) {
	var conns []models.Connection
	err := r.db.SelectContext(ctx, &conns,
		`SELECT * FROM connections WHERE user_id = ? ORDER BY provider ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query connections: %w", err)
	}
	return conns, nil
}

// Delete removes the stored connection entirely.
func (r *ConnectionRepository) Delete(ctx context.Context, userID string, provider models.Provider) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM connections WHERE user_id = ? AND provider = ?`, userID, string(provider))
	if err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}
	return requireRows(result, shared.ErrServiceNotConnected)
}
