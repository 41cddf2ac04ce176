package resolver

import (
	"context"
	"testing"

	"github.com/mixtape-app/mixtape/internal/models"
	mixtest "github.com/mixtape-app/mixtape/internal/testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "Bohemian Rhapsody", "bohemian rhapsody"},
		{"strips punctuation", "Don't Stop Me Now!", "don t stop me now"},
		{"collapses whitespace", "  The   Chain  ", "the chain"},
		{"keeps digits", "99 Luftballons", "99 luftballons"},
		{"strips diacritics", "Días Extraños", "dias extranos"},
		{"strips diacritics mixed", "Beyoncé / Björk", "beyonce bjork"},
		{"empty", "", ""},
		{"only punctuation", "?!...", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeTrackKey(t *testing.T) {
	a := NormalizeTrackKey("Song 1 (Remastered)", "Example Artist")
	b := NormalizeTrackKey("song 1 remastered", "example artist")

	if a != b {
		t.Errorf("keys differ: %q vs %q", a, b)
	}
}

func TestScoreDurationPreference(t *testing.T) {
	want := models.Song{Title: "Song 1", Artist: "Example Artist", DurationSeconds: 180}
	close := models.Song{Title: "Song 1", Artist: "Example Artist", DurationSeconds: 181}
	far := models.Song{Title: "Song 1", Artist: "Example Artist", DurationSeconds: 220}

	closeScore := Score(want, close)
	farScore := Score(want, far)

	if closeScore <= farScore {
		t.Errorf("expected close duration to outrank far: %.2f <= %.2f", closeScore, farScore)
	}
	if closeScore < MinConfidence {
		t.Errorf("exact title and artist with 1s duration gap should match, got %.2f", closeScore)
	}
}

func TestScoreAccentedTitlesMatch(t *testing.T) {
	want := models.Song{Title: "Días Extraños", Artist: "Ejemplo"}
	got := models.Song{Title: "Dias Extranos", Artist: "Ejemplo"}

	if score := Score(want, got); score < MinConfidence {
		t.Errorf("accent-only difference should still match, got %.2f", score)
	}
}

func TestScoreUnknownDurationNeutral(t *testing.T) {
	want := models.Song{Title: "Song 1", Artist: "Example Artist", DurationSeconds: 180}
	got := models.Song{Title: "Song 1", Artist: "Example Artist"}

	score := Score(want, got)
	if score < MinConfidence {
		t.Errorf("unknown duration should not defeat exact text match, got %.2f", score)
	}
	if score >= 0.95 {
		t.Errorf("unknown duration should not earn duration credit, got %.2f", score)
	}
}

func TestScoreDifferentSong(t *testing.T) {
	want := models.Song{Title: "Song 1", Artist: "Example Artist", DurationSeconds: 180}
	got := models.Song{Title: "Completely Unrelated", Artist: "Other Band", DurationSeconds: 300}

	if score := Score(want, got); score >= AlternativeConfidence {
		t.Errorf("unrelated song scored %.2f, want below %.2f", score, AlternativeConfidence)
	}
}

func TestResolveShortCircuitsKnownID(t *testing.T) {
	adapter := &mixtest.MockAdapter{Provider: models.ProviderSpotify}
	song := models.Song{
		Title:  "Song 1",
		Artist: "Example Artist",
		ProviderIDs: map[models.Provider]string{
			models.ProviderSpotify: "sp-123",
		},
	}

	result, err := New().Resolve(context.Background(), adapter, "tok", song)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ProviderID != "sp-123" {
		t.Errorf("expected cached id, got %q", result.ProviderID)
	}
	if result.Confidence != 1.0 {
		t.Errorf("expected confidence 1.0, got %.2f", result.Confidence)
	}
	if adapter.SearchCalls != 0 {
		t.Errorf("expected no search call, got %d", adapter.SearchCalls)
	}
}

func TestResolvePicksBestCandidate(t *testing.T) {
	adapter := &mixtest.MockAdapter{
		Provider: models.ProviderSpotify,
		SearchResults: []models.Song{
			{
				Title: "Song 1", Artist: "Example Artist", DurationSeconds: 220,
				ProviderIDs: map[models.Provider]string{models.ProviderSpotify: "far"},
			},
			{
				Title: "Song 1", Artist: "Example Artist", DurationSeconds: 181,
				ProviderIDs: map[models.Provider]string{models.ProviderSpotify: "close"},
			},
		},
	}
	song := models.Song{Title: "Song 1", Artist: "Example Artist", DurationSeconds: 180}

	result, err := New().Resolve(context.Background(), adapter, "tok", song)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ProviderID != "close" {
		t.Errorf("expected closest duration to win, got %q", result.ProviderID)
	}
	if len(result.Alternatives) != 2 {
		t.Errorf("expected both candidates as alternatives, got %d", len(result.Alternatives))
	}
}

func TestResolveNoMatch(t *testing.T) {
	adapter := &mixtest.MockAdapter{
		Provider: models.ProviderSpotify,
		SearchResults: []models.Song{
			{
				Title: "Some Other Track", Artist: "Nobody", DurationSeconds: 95,
				ProviderIDs: map[models.Provider]string{models.ProviderSpotify: "wrong"},
			},
		},
	}
	song := models.Song{Title: "Song 1", Artist: "Example Artist", DurationSeconds: 180}

	result, err := New().Resolve(context.Background(), adapter, "tok", song)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Matched() {
		t.Errorf("expected no match, got %q at %.2f", result.ProviderID, result.Confidence)
	}
}

func TestResolveTieBreaksByPosition(t *testing.T) {
	adapter := &mixtest.MockAdapter{
		Provider: models.ProviderSpotify,
		SearchResults: []models.Song{
			{
				Title: "Song 1", Artist: "Example Artist", DurationSeconds: 180,
				ProviderIDs: map[models.Provider]string{models.ProviderSpotify: "first"},
			},
			{
				Title: "Song 1", Artist: "Example Artist", DurationSeconds: 180,
				ProviderIDs: map[models.Provider]string{models.ProviderSpotify: "second"},
			},
		},
	}
	song := models.Song{Title: "Song 1", Artist: "Example Artist", DurationSeconds: 180}

	result, err := New().Resolve(context.Background(), adapter, "tok", song)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ProviderID != "first" {
		t.Errorf("expected earlier result to win the tie, got %q", result.ProviderID)
	}
}
