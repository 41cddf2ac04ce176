package engine

import "fmt"

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchSource Phase = iota
	CreateDestination
	ResolveSongs
	PushSongs
	PersistPlaylist
	JobDone
)

func (p Phase) String() string {
	switch p {
	case FetchSource:
		return "fetch_source"
	case CreateDestination:
		return "create_destination"
	case ResolveSongs:
		return "resolve_songs"
	case PushSongs:
		return "push_songs"
	case PersistPlaylist:
		return "persist_playlist"
	case JobDone:
		return "job_done"
	default:
		return ""
	}
}

func fetchSourceUpdate(provider string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching playlist from %s...", provider),
	}
}

func createDestinationUpdate(provider string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreateDestination,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Creating playlist on %s...", provider),
	}
}

func resolveSongUpdate(step, total int, title, artist string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveSongs,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s - %s", step, total, artist, title),
	}
}

func pushSongsUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PushSongs,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Adding %d matched songs...", count),
	}
}

func persistPlaylistUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PersistPlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Saving playlist: %s", name),
	}
}

func jobDoneUpdate(status string, processed, total int, data any) ProgressUpdate {
	return ProgressUpdate{
		Phase:   JobDone,
		Step:    total,
		Total:   total,
		Message: fmt.Sprintf("Job %s (%d/%d songs)", status, processed, total),
		Data:    data,
	}
}
