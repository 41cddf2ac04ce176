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

// JobRepository persists reconciliation jobs and their per-song progress.
//
// Every song outcome lands in job_songs before the job's terminal status is
// written, so an interrupted run can resume from the rows instead of
// re-reading the target provider.
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository creates a new JobRepository with the given database connection
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a job and its initial song rows in one transaction.
func (r *JobRepository) Create(ctx context.Context, job *models.Job, songs []models.JobSong) error {
	if job.ID == "" {
		job.ID = shared.GenerateID()
	}
	if job.Status == "" {
		job.Status = models.JobPending
	}
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now
	job.SongsTotal = len(songs)

	if err := job.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO jobs (id, kind, user_id, source_provider, target_provider, playlist_id, provider_playlist_id, status, songs_total, songs_processed, created_at, updated_at)
		VALUES (:id, :kind, :user_id, :source_provider, :target_provider, :playlist_id, :provider_playlist_id, :status, :songs_total, :songs_processed, :created_at, :updated_at)
	`
	if _, err := tx.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}

	songQuery := `
		INSERT INTO job_songs (job_id, position, song_id, title, artist, state, provider_track_id, reason, updated_at)
		VALUES (:job_id, :position, :song_id, :title, :artist, :state, :provider_track_id, :reason, :updated_at)
	`
	for i := range songs {
		songs[i].JobID = job.ID
		if songs[i].State == "" {
			songs[i].State = models.SongPending
		}
		songs[i].UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, songQuery, &songs[i]); err != nil {
			return fmt.Errorf("failed to insert job song %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit job: %w", err)
	}
	return nil
}

// AddSongs inserts song rows for a job created before its song list was
// known (an import discovers the list only after fetching the source
// playlist) and bumps songs_total to match.
func (r *JobRepository) AddSongs(ctx context.Context, jobID string, songs []models.JobSong) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	songQuery := `
		INSERT INTO job_songs (job_id, position, song_id, title, artist, state, provider_track_id, reason, updated_at)
		VALUES (:job_id, :position, :song_id, :title, :artist, :state, :provider_track_id, :reason, :updated_at)
	`
	for i := range songs {
		songs[i].JobID = jobID
		if songs[i].State == "" {
			songs[i].State = models.SongPending
		}
		songs[i].UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, songQuery, &songs[i]); err != nil {
			return fmt.Errorf("failed to insert job song %d: %w", i, err)
		}
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE jobs SET songs_total = (SELECT COUNT(*) FROM job_songs WHERE job_id = ?), updated_at = ? WHERE id = ?`,
		jobID, now, jobID)
	if err != nil {
		return fmt.Errorf("failed to update song total: %w", err)
	}
	if err := requireRows(result, shared.ErrJobNotFound); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit job songs: %w", err)
	}
	return nil
}

// SetProviderPlaylistID records the target playlist created on the provider
// so a resumed job reuses it instead of creating a duplicate.
func (r *JobRepository) SetProviderPlaylistID(ctx context.Context, jobID, providerPlaylistID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET provider_playlist_id = ?, updated_at = ? WHERE id = ?`,
		providerPlaylistID, time.Now().UTC(), jobID)
	if err != nil {
		return fmt.Errorf("failed to update provider playlist id: %w", err)
	}
	return requireRows(result, shared.ErrJobNotFound)
}

// Get retrieves a job with its failed songs populated.
func (r *JobRepository) Get(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	err := r.db.GetContext(ctx, &job, `SELECT * FROM jobs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query job: %w", err)
	}

	err = r.db.SelectContext(ctx, &job.FailedSongs,
		`SELECT * FROM job_songs WHERE job_id = ? AND state IN (?, ?) ORDER BY position ASC`,
		id, string(models.SongFailed), string(models.SongCancelled))
	if err != nil {
		return nil, fmt.Errorf("failed to query failed songs: %w", err)
	}

	return &job, nil
}

// Songs retrieves every song row for a job in playlist order.
func (r *JobRepository) Songs(ctx context.Context, jobID string) ([]models.JobSong, error) {
	var songs []models.JobSong
	err := r.db.SelectContext(ctx, &songs,
		`SELECT * FROM job_songs WHERE job_id = ? ORDER BY position ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query job songs: %w", err)
	}
	return songs, nil
}

// UpdateStatus writes a status transition after validating it against the
// stored status.
func (r *JobRepository) UpdateStatus(ctx context.Context, jobID string, next models.JobStatus) error {
	job, err := r.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if err := job.Transition(next); err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?`,
		string(next), time.Now().UTC(), jobID)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}
	return requireRows(result, shared.ErrJobNotFound)
}

// SetProcessed updates the processed-song counter.
func (r *JobRepository) SetProcessed(ctx context.Context, jobID string, processed int) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET songs_processed = ?, updated_at = ? WHERE id = ?`,
		processed, time.Now().UTC(), jobID)
	if err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}
	return requireRows(result, shared.ErrJobNotFound)
}

// SaveSong records one song's outcome.
func (r *JobRepository) SaveSong(ctx context.Context, song *models.JobSong) error {
	song.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE job_songs
		SET state = :state, provider_track_id = :provider_track_id, reason = :reason, updated_at = :updated_at
		WHERE job_id = :job_id AND position = :position
	`
	result, err := r.db.NamedExecContext(ctx, query, song)
	if err != nil {
		return fmt.Errorf("failed to update job song: %w", err)
	}
	return requireRows(result, shared.ErrSongNotFound)
}

// ListByUser retrieves a user's jobs, newest first.
func (r *JobRepository) ListByUser(ctx context.Context, userID string) ([]models.Job, error) {
	var jobs []models.Job
	err := r.db.SelectContext(ctx, &jobs,
		`SELECT * FROM jobs WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	return jobs, nil
}
