package models

import "testing"

func TestJobStatusTerminal(t *testing.T) {
	terminal := []JobStatus{JobCompleted, JobPartiallyFailed, JobFailed}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	for _, s := range []JobStatus{JobPending, JobInProgress} {
		if s.Terminal() {
			t.Errorf("expected %s to be non-terminal", s)
		}
	}
}

func TestJobStatusCanTransition(t *testing.T) {
	tests := []struct {
		from    JobStatus
		to      JobStatus
		allowed bool
	}{
		{JobPending, JobInProgress, true},
		{JobPending, JobCompleted, false},
		{JobPending, JobFailed, false},
		{JobInProgress, JobCompleted, true},
		{JobInProgress, JobPartiallyFailed, true},
		{JobInProgress, JobFailed, true},
		{JobInProgress, JobPending, false},
		{JobCompleted, JobInProgress, false},
		{JobFailed, JobPending, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.allowed {
			t.Errorf("%s -> %s: expected %v, got %v", tt.from, tt.to, tt.allowed, got)
		}
	}
}

func TestJobTransition(t *testing.T) {
	job := Job{Kind: JobImport, UserID: "alice", Status: JobPending}

	if err := job.Transition(JobInProgress); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Status != JobInProgress {
		t.Errorf("expected in_progress, got %s", job.Status)
	}

	if err := job.Transition(JobPending); err == nil {
		t.Error("expected backward transition to fail")
	}
	if job.Status != JobInProgress {
		t.Errorf("expected status unchanged after rejection, got %s", job.Status)
	}

	if err := job.Transition(JobCompleted); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := job.Transition(JobInProgress); err == nil {
		t.Error("expected transition out of terminal status to fail")
	}
}

func TestJobValidate(t *testing.T) {
	tests := []struct {
		name    string
		job     Job
		wantErr bool
	}{
		{"valid import", Job{Kind: JobImport, UserID: "alice"}, false},
		{"valid export", Job{Kind: JobExport, UserID: "alice", SongsTotal: 5, SongsProcessed: 3}, false},
		{"missing user", Job{Kind: JobImport}, true},
		{"unknown kind", Job{Kind: "sync", UserID: "alice"}, true},
		{"processed exceeds total", Job{Kind: JobExport, UserID: "alice", SongsTotal: 2, SongsProcessed: 3}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.job.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestJobSongSettled(t *testing.T) {
	tests := []struct {
		name    string
		song    JobSong
		settled bool
	}{
		{"added", JobSong{State: SongAdded}, true},
		{"matched with track id", JobSong{State: SongMatched, ProviderTrackID: "sp-1"}, true},
		{"matched without track id", JobSong{State: SongMatched}, false},
		{"pending", JobSong{State: SongPending}, false},
		{"failed", JobSong{State: SongFailed, Reason: ReasonNoMatchFound}, false},
		{"cancelled", JobSong{State: SongCancelled, Reason: ReasonCancelled}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.song.Settled(); got != tt.settled {
				t.Errorf("expected settled=%v, got %v", tt.settled, got)
			}
		})
	}
}
