package models

import (
	"fmt"
	"time"
)

// JobKind is the reconciliation operation a job performs.
type JobKind string

const (
	JobImport JobKind = "import"
	JobExport JobKind = "export"
)

// JobStatus is the lifecycle state of a reconciliation job.
//
// Transitions move only forward:
//
//	pending -> in_progress -> completed | partially_failed | failed
type JobStatus string

const (
	JobPending         JobStatus = "pending"
	JobInProgress      JobStatus = "in_progress"
	JobCompleted       JobStatus = "completed"
	JobPartiallyFailed JobStatus = "partially_failed"
	JobFailed          JobStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobCompleted, JobPartiallyFailed, JobFailed:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is a legal forward step.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case JobPending:
		return next == JobInProgress
	case JobInProgress:
		return next.Terminal()
	}
	return false
}

// SongState is the per-song outcome within a job.
type SongState string

const (
	SongPending   SongState = "pending"
	SongMatched   SongState = "matched"
	SongAdded     SongState = "added"
	SongFailed    SongState = "failed"
	SongCancelled SongState = "cancelled"
)

// Failure reasons recorded against individual songs.
const (
	ReasonNoMatchFound = "no_match_found"
	ReasonCancelled    = "cancelled"
)

// JobSong is one song's progress record inside a job. Persisting these rows is
// what makes a partially failed job resumable without re-reading the target
// provider's playlist.
type JobSong struct {
	JobID           string    `json:"-" db:"job_id"`
	Position        int       `json:"position" db:"position"`
	SongID          string    `json:"songId,omitempty" db:"song_id"`
	Title           string    `json:"title" db:"title"`
	Artist          string    `json:"artist" db:"artist"`
	State           SongState `json:"state" db:"state"`
	ProviderTrackID string    `json:"providerTrackId,omitempty" db:"provider_track_id"`
	Reason          string    `json:"reason,omitempty" db:"reason"`
	UpdatedAt       time.Time `json:"-" db:"updated_at"`
}

// Settled reports whether the song needs no further processing on resume.
func (js *JobSong) Settled() bool {
	return js.State == SongAdded || (js.State == SongMatched && js.ProviderTrackID != "")
}

// Job is one import or export operation with trackable progress.
type Job struct {
	ID                 string    `json:"id" db:"id"`
	Kind               JobKind   `json:"kind" db:"kind"`
	UserID             string    `json:"userId" db:"user_id"`
	SourceProvider     Provider  `json:"sourceProvider,omitempty" db:"source_provider"`
	TargetProvider     Provider  `json:"targetProvider,omitempty" db:"target_provider"`
	PlaylistID         string    `json:"playlistId,omitempty" db:"playlist_id"`
	ProviderPlaylistID string    `json:"providerPlaylistId,omitempty" db:"provider_playlist_id"`
	Status             JobStatus `json:"status" db:"status"`
	SongsTotal         int       `json:"songsTotal" db:"songs_total"`
	SongsProcessed     int       `json:"songsProcessed" db:"songs_processed"`
	CreatedAt          time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt          time.Time `json:"updatedAt" db:"updated_at"`

	// FailedSongs is populated from job_songs rows when the job is loaded.
	FailedSongs []JobSong `json:"failedSongs,omitempty"`
}

// Validate checks job invariants.
func (j *Job) Validate() error {
	if j.UserID == "" {
		return fmt.Errorf("job user is required")
	}
	switch j.Kind {
	case JobImport, JobExport:
	default:
		return fmt.Errorf("unknown job kind %q", j.Kind)
	}
	if j.SongsProcessed > j.SongsTotal {
		return fmt.Errorf("processed count %d exceeds total %d", j.SongsProcessed, j.SongsTotal)
	}
	return nil
}

// Transition advances the job status, rejecting illegal moves.
func (j *Job) Transition(next JobStatus) error {
	if !j.Status.CanTransition(next) {
		return fmt.Errorf("illegal job transition %s -> %s", j.Status, next)
	}
	j.Status = next
	return nil
}
