package formatter

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mixtape-app/mixtape/internal/models"
)

func samplePlaylist() *models.Playlist {
	return &models.Playlist{
		ID:          "pl-1",
		Name:        "Road Trip",
		Description: "Songs for the highway",
		CreatorID:   "alice",
		IsPublic:    true,
		Songs: []models.Song{
			{
				Title: "Song A", Artist: "Artist A", Album: "Album A", DurationSeconds: 181,
				ProviderIDs: map[models.Provider]string{models.ProviderSpotify: "sp-1"},
			},
			{
				Title: "Song B", Artist: "Artist B", DurationSeconds: 240,
				ProviderIDs: map[models.Provider]string{models.ProviderAppleMusic: "am-1"},
			},
		},
	}
}

func TestExportToCSV(t *testing.T) {
	data, err := ExportToCSV(samplePlaylist())
	if err != nil {
		t.Fatalf("ExportToCSV: %v", err)
	}

	records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	if err != nil {
		t.Fatalf("parse CSV: %v", err)
	}

	if len(records) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(records))
	}
	if records[0][0] != "Position" {
		t.Errorf("unexpected header row: %v", records[0])
	}
	if records[1][1] != "Song A" || records[1][5] != "sp-1" {
		t.Errorf("unexpected first row: %v", records[1])
	}
	if records[2][6] != "am-1" || records[2][5] != "" {
		t.Errorf("unexpected second row: %v", records[2])
	}
}

func TestExportToMarkdown(t *testing.T) {
	t.Run("with cover image", func(t *testing.T) {
		data, err := ExportToMarkdown(samplePlaylist(), "cover.jpg")
		if err != nil {
			t.Fatalf("ExportToMarkdown: %v", err)
		}

		md := string(data)
		for _, want := range []string{
			"# Road Trip",
			"![Cover](cover.jpg)",
			"**Description**: Songs for the highway",
			"**Visibility**: Public",
			"1. Artist A - Song A (Album A) [3:01]",
			"2. Artist B - Song B [4:00]",
		} {
			if !strings.Contains(md, want) {
				t.Errorf("expected markdown to contain %q", want)
			}
		}
	})

	t.Run("without cover image", func(t *testing.T) {
		data, err := ExportToMarkdown(samplePlaylist(), "")
		if err != nil {
			t.Fatalf("ExportToMarkdown: %v", err)
		}
		if strings.Contains(string(data), "![Cover]") {
			t.Error("expected no cover image reference")
		}
	})
}

func TestExportToText(t *testing.T) {
	data, err := ExportToText(samplePlaylist())
	if err != nil {
		t.Fatalf("ExportToText: %v", err)
	}

	text := string(data)
	if !strings.Contains(text, "Playlist: Road Trip") {
		t.Errorf("expected playlist name, got %q", text)
	}
	if !strings.Contains(text, "1. Artist A - Song A") {
		t.Errorf("expected numbered song line, got %q", text)
	}
}

func TestToMetadataJSON(t *testing.T) {
	data, err := ToMetadataJSON(*samplePlaylist())
	if err != nil {
		t.Fatalf("ToMetadataJSON: %v", err)
	}

	if strings.Contains(string(data), "Song A") {
		t.Error("expected metadata JSON to omit songs")
	}
	if !strings.Contains(string(data), "\"name\": \"Road Trip\"") {
		t.Errorf("expected playlist name in metadata, got %s", data)
	}
}

func TestWriteCSVExport(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "export")

	result, err := WriteCSVExport(samplePlaylist(), base)
	if err != nil {
		t.Fatalf("WriteCSVExport: %v", err)
	}

	if result.SongsFile != base+"_songs.csv" {
		t.Errorf("unexpected songs file: %s", result.SongsFile)
	}
	for _, path := range []string{result.SongsFile, result.MetadataFile} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected file %s to exist: %v", path, err)
		}
	}
}

func TestWriteTextExport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "playlist.txt")

	written, err := WriteTextExport(samplePlaylist(), path)
	if err != nil {
		t.Fatalf("WriteTextExport: %v", err)
	}
	if written != path {
		t.Errorf("expected path %s, got %s", path, written)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read exported file: %v", err)
	}
	if !strings.Contains(string(data), "Road Trip") {
		t.Error("expected playlist content in file")
	}
}

func TestWriteMarkdownExport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "md-export")

	result, err := WriteMarkdownExport(samplePlaylist(), dir, "")
	if err != nil {
		t.Fatalf("WriteMarkdownExport: %v", err)
	}

	readme := filepath.Join(dir, "README.md")
	if len(result.Files) != 1 || result.Files[0] != readme {
		t.Errorf("unexpected files: %v", result.Files)
	}
	if _, err := os.Stat(readme); err != nil {
		t.Errorf("expected README.md: %v", err)
	}
}
