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

// PlaylistRepository handles playlist persistence including songs and shares.
//
// Playlists are soft deleted. Songs are stored denormalized per playlist with
// one column per provider id so a learned match survives restarts.
type PlaylistRepository struct {
	db *sqlx.DB
}

// NewPlaylistRepository creates a new PlaylistRepository with the given database connection
func NewPlaylistRepository(db *sqlx.DB) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

// playlistRow maps the playlists table. SharedWith and Songs are loaded
// separately.
type playlistRow struct {
	ID             string       `db:"id"`
	Sequence       int          `db:"sequence"`
	Name           string       `db:"name"`
	Description    string       `db:"description"`
	CoverImageURL  string       `db:"cover_image_url"`
	CreatorID      string       `db:"creator_id"`
	IsPublic       bool         `db:"is_public"`
	SourceProvider string       `db:"source_provider"`
	OriginID       string       `db:"origin_id"`
	CreatedAt      time.Time    `db:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at"`
	DeletedAt      sql.NullTime `db:"deleted_at"`
}

func (row *playlistRow) toModel() *models.Playlist {
	return &models.Playlist{
		ID:             row.ID,
		Sequence:       row.Sequence,
		Name:           row.Name,
		Description:    row.Description,
		CoverImageURL:  row.CoverImageURL,
		CreatorID:      row.CreatorID,
		IsPublic:       row.IsPublic,
		SourceProvider: models.Provider(row.SourceProvider),
		OriginID:       row.OriginID,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
}

// songRow maps the playlist_songs table.
type songRow struct {
	ID              string    `db:"id"`
	PlaylistID      string    `db:"playlist_id"`
	Position        int       `db:"position"`
	Title           string    `db:"title"`
	Artist          string    `db:"artist"`
	Album           string    `db:"album"`
	DurationSeconds int       `db:"duration_seconds"`
	CoverImageURL   string    `db:"cover_image_url"`
	SpotifyID       string    `db:"spotify_id"`
	AppleMusicID    string    `db:"apple_music_id"`
	AmazonMusicID   string    `db:"amazon_music_id"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (row *songRow) toModel() models.Song {
	song := models.Song{
		ID:              row.ID,
		Title:           row.Title,
		Artist:          row.Artist,
		Album:           row.Album,
		DurationSeconds: row.DurationSeconds,
		CoverImageURL:   row.CoverImageURL,
	}
	song.SetProviderID(models.ProviderSpotify, row.SpotifyID)
	song.SetProviderID(models.ProviderAppleMusic, row.AppleMusicID)
	song.SetProviderID(models.ProviderAmazonMusic, row.AmazonMusicID)
	return song
}

func songToRow(playlistID string, position int, song *models.Song, now time.Time) songRow {
	spotifyID, _ := song.ProviderID(models.ProviderSpotify)
	appleID, _ := song.ProviderID(models.ProviderAppleMusic)
	amazonID, _ := song.ProviderID(models.ProviderAmazonMusic)
	return songRow{
		ID:              song.ID,
		PlaylistID:      playlistID,
		Position:        position,
		Title:           song.Title,
		Artist:          song.Artist,
		Album:           song.Album,
		DurationSeconds: song.DurationSeconds,
		CoverImageURL:   song.CoverImageURL,
		SpotifyID:       spotifyID,
		AppleMusicID:    appleID,
		AmazonMusicID:   amazonID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

const insertSongQuery = `
	INSERT INTO playlist_songs (id, playlist_id, position, title, artist, album, duration_seconds, cover_image_url, spotify_id, apple_music_id, amazon_music_id, created_at, updated_at)
	VALUES (:id, :playlist_id, :position, :title, :artist, :album, :duration_seconds, :cover_image_url, :spotify_id, :apple_music_id, :amazon_music_id, :created_at, :updated_at)
`

// Create inserts a playlist with its songs in one transaction.
func (r *PlaylistRepository) Create(ctx context.Context, playlist *models.Playlist) error {
	sequence, err := NextSequence(r.db, "playlists")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	if playlist.ID == "" {
		playlist.ID = shared.GenerateID()
	}
	playlist.Sequence = sequence
	now := time.Now().UTC()
	playlist.CreatedAt = now
	playlist.UpdatedAt = now

	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO playlists (id, sequence, name, description, cover_image_url, creator_id, is_public, source_provider, origin_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, query,
		playlist.ID,
		playlist.Sequence,
		playlist.Name,
		playlist.Description,
		playlist.CoverImageURL,
		playlist.CreatorID,
		playlist.IsPublic,
		string(playlist.SourceProvider),
		playlist.OriginID,
		playlist.CreatedAt,
		playlist.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert playlist: %w", err)
	}

	for i := range playlist.Songs {
		song := &playlist.Songs[i]
		if song.ID == "" {
			song.ID = shared.GenerateID()
		}
		row := songToRow(playlist.ID, i, song, now)
		if _, err := tx.NamedExecContext(ctx, insertSongQuery, row); err != nil {
			return fmt.Errorf("failed to insert song %d: %w", i, err)
		}
	}

	for _, userID := range playlist.SharedWith {
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO playlist_shares (playlist_id, user_id, created_at) VALUES (?, ?, ?)`,
			playlist.ID, userID, now)
		if err != nil {
			return fmt.Errorf("failed to insert share for %s: %w", userID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit playlist: %w", err)
	}

	return nil
}

// Get retrieves a playlist with songs and shares, excluding soft-deleted rows.
func (r *PlaylistRepository) Get(ctx context.Context, id string) (*models.Playlist, error) {
	var row playlistRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM playlists WHERE id = ? AND deleted_at IS NULL`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrPlaylistNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist: %w", err)
	}

	playlist := row.toModel()

	if err := r.loadSongs(ctx, playlist); err != nil {
		return nil, err
	}
	if err := r.loadShares(ctx, playlist); err != nil {
		return nil, err
	}

	return playlist, nil
}

func (r *PlaylistRepository) loadSongs(ctx context.Context, playlist *models.Playlist) error {
	var rows []songRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT * FROM playlist_songs WHERE playlist_id = ? ORDER BY position ASC`, playlist.ID)
	if err != nil {
		return fmt.Errorf("failed to query playlist songs: %w", err)
	}

	playlist.Songs = make([]models.Song, 0, len(rows))
	for i := range rows {
		playlist.Songs = append(playlist.Songs, rows[i].toModel())
	}
	return nil
}

func (r *PlaylistRepository) loadShares(ctx context.Context, playlist *models.Playlist) error {
	err := r.db.SelectContext(ctx, &playlist.SharedWith,
		`SELECT user_id FROM playlist_shares WHERE playlist_id = ? ORDER BY created_at ASC`, playlist.ID)
	if err != nil {
		return fmt.Errorf("failed to query playlist shares: %w", err)
	}
	return nil
}

// Update modifies playlist metadata. Songs are managed through ReplaceSongs.
func (r *PlaylistRepository) Update(ctx context.Context, playlist *models.Playlist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	playlist.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE playlists
		SET name = ?, description = ?, cover_image_url = ?, is_public = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query,
		playlist.Name,
		playlist.Description,
		playlist.CoverImageURL,
		playlist.IsPublic,
		playlist.UpdatedAt,
		playlist.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update playlist: %w", err)
	}

	return requireRows(result, shared.ErrPlaylistNotFound)
}

// ReplaceSongs swaps the playlist's complete song list in one transaction.
func (r *PlaylistRepository) ReplaceSongs(ctx context.Context, playlistID string, songs []models.Song) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM playlist_songs WHERE playlist_id = ?`, playlistID); err != nil {
		return fmt.Errorf("failed to clear playlist songs: %w", err)
	}

	now := time.Now().UTC()
	for i := range songs {
		song := &songs[i]
		if song.ID == "" {
			song.ID = shared.GenerateID()
		}
		row := songToRow(playlistID, i, song, now)
		if _, err := tx.NamedExecContext(ctx, insertSongQuery, row); err != nil {
			return fmt.Errorf("failed to insert song %d: %w", i, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE playlists SET updated_at = ? WHERE id = ?`, now, playlistID); err != nil {
		return fmt.Errorf("failed to touch playlist: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit songs: %w", err)
	}
	return nil
}

// SetSongProviderID persists a confirmed provider match for one song. An
// existing non-empty id is left alone so the first confirmed match wins.
func (r *PlaylistRepository) SetSongProviderID(ctx context.Context, songID string, provider models.Provider, trackID string) error {
	column, err := providerColumn(provider)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE playlist_songs SET %s = ?, updated_at = ? WHERE id = ? AND %s = ''`, column, column)
	if _, err := r.db.ExecContext(ctx, query, trackID, time.Now().UTC(), songID); err != nil {
		return fmt.Errorf("failed to record provider id: %w", err)
	}
	return nil
}

func providerColumn(p models.Provider) (string, error) {
	switch p {
	case models.ProviderSpotify:
		return "spotify_id", nil
	case models.ProviderAppleMusic:
		return "apple_music_id", nil
	case models.ProviderAmazonMusic:
		return "amazon_music_id", nil
	default:
		return "", fmt.Errorf("%w: %s", shared.ErrUnknownProvider, p)
	}
}

// Delete soft-deletes a playlist by ID.
func (r *PlaylistRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE playlists SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}
	return requireRows(result, shared.ErrPlaylistNotFound)
}

// ListByCreator retrieves all playlists owned by userID, newest first.
func (r *PlaylistRepository) ListByCreator(ctx context.Context, userID string) ([]models.Playlist, error) {
	var rows []playlistRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT * FROM playlists WHERE creator_id = ? AND deleted_at IS NULL ORDER BY sequence DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	return r.withSongs(ctx, rows)
}

// ListSharedWith retrieves playlists shared with userID, newest share first.
func (r *PlaylistRepository) ListSharedWith(ctx context.Context, userID string) ([]models.Playlist, error) {
	var rows []playlistRow
	query := `
		SELECT p.* FROM playlists p
		JOIN playlist_shares s ON s.playlist_id = p.id
		WHERE s.user_id = ? AND p.deleted_at IS NULL
		ORDER BY s.created_at DESC
	`
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("failed to query shared playlists: %w", err)
	}
	return r.withSongs(ctx, rows)
}

func (r *PlaylistRepository) withSongs(ctx context.Context, rows []playlistRow) ([]models.Playlist, error) {
	playlists := make([]models.Playlist, 0, len(rows))
	for i := range rows {
		playlist := rows[i].toModel()
		if err := r.loadSongs(ctx, playlist); err != nil {
			return nil, err
		}
		if err := r.loadShares(ctx, playlist); err != nil {
			return nil, err
		}
		playlists = append(playlists, *playlist)
	}
	return playlists, nil
}

// Share records that the playlist is visible to userID. Sharing twice is a
// no-op; the second call reports false.
func (r *PlaylistRepository) Share(ctx context.Context, playlistID, userID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO playlist_shares (playlist_id, user_id, created_at) VALUES (?, ?, ?)`,
		playlistID, userID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to share playlist: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows > 0, nil
}

func requireRows(result sql.Result, missing error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return missing
	}
	return nil
}
