// Apple Music implementation of [Adapter]
//
// Uses the Apple Music API with a developer token plus a per-user Music-User-Token.
// User tokens are issued by MusicKit on the client and cannot be refreshed
// server-side, so this adapter registers no refresh exchange.
package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mixtape-app/mixtape/internal/models"
	"github.com/mixtape-app/mixtape/internal/shared"
)

const (
	appleMusicBaseURL    = "https://api.music.apple.com/v1"
	appleMusicStorefront = "us"

	// Library modification requests accept at most 25 relationships.
	appleMusicAddBatchSize = 25
	appleMusicPageSize     = 100
)

type appleArtwork struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type appleSongAttributes struct {
	Name             string       `json:"name"`
	ArtistName       string       `json:"artistName"`
	AlbumName        string       `json:"albumName"`
	DurationInMillis int          `json:"durationInMillis"`
	Artwork          appleArtwork `json:"artwork"`
}

// AppleSong represents a song resource from the Apple Music catalog.
type AppleSong struct {
	ID         string              `json:"id"`
	Type       string              `json:"type"`
	Attributes appleSongAttributes `json:"attributes"`
}

type applePlaylistAttributes struct {
	Name        string `json:"name"`
	Description struct {
		Standard string `json:"standard"`
	} `json:"description"`
	Artwork appleArtwork `json:"artwork"`
}

// ApplePlaylist represents a library playlist resource.
type ApplePlaylist struct {
	ID         string                  `json:"id"`
	Attributes applePlaylistAttributes `json:"attributes"`
}

type applePage[T any] struct {
	Data []T     `json:"data"`
	Next *string `json:"next"`
}

type appleSearchResponse struct {
	Results struct {
		Songs struct {
			Data []AppleSong `json:"data"`
		} `json:"songs"`
	} `json:"results"`
}

// AppleMusicAdapter implements [Adapter] for the Apple Music API.
type AppleMusicAdapter struct {
	client         *Client
	developerToken string
}

// NewAppleMusicAdapter creates an Apple Music adapter. The developer token
// authenticates the application; per-user tokens arrive on each call.
func NewAppleMusicAdapter(cfg shared.AppleMusicConfig, opts ClientOpts) *AppleMusicAdapter {
	return &AppleMusicAdapter{
		client:         NewClient(appleMusicBaseURL, opts),
		developerToken: cfg.DeveloperToken,
	}
}

func (a *AppleMusicAdapter) Name() models.Provider {
	return models.ProviderAppleMusic
}

// headers builds the per-request header set: developer token as bearer, user
// token alongside.
func (a *AppleMusicAdapter) headers(userToken string) map[string]string {
	return map[string]string{"Music-User-Token": userToken}
}

// Search queries the catalog for songs, returning at most limit results.
func (a *AppleMusicAdapter) Search(ctx context.Context, token, query string, limit int) ([]models.Song, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 25 {
		limit = 25
	}

	endpoint := fmt.Sprintf("/catalog/%s/search?term=%s&types=songs&limit=%d",
		appleMusicStorefront, url.QueryEscape(query), limit)

	var response appleSearchResponse
	if err := a.client.Do(ctx, http.MethodGet, endpoint, a.developerToken, a.headers(token), nil, &response); err != nil {
		return nil, fmt.Errorf("apple music search failed: %w", err)
	}

	songs := make([]models.Song, 0, len(response.Results.Songs.Data))
	for _, item := range response.Results.Songs.Data {
		songs = append(songs, appleSongFromResource(item))
	}
	return songs, nil
}

// FetchPlaylist returns a library playlist with its full ordered track
// listing, following the next cursor until exhausted.
func (a *AppleMusicAdapter) FetchPlaylist(ctx context.Context, token, providerPlaylistID string) (*PlaylistData, error) {
	endpoint := fmt.Sprintf("/me/library/playlists/%s", providerPlaylistID)

	var playlists applePage[ApplePlaylist]
	if err := a.client.Do(ctx, http.MethodGet, endpoint, a.developerToken, a.headers(token), nil, &playlists); err != nil {
		return nil, fmt.Errorf("apple music playlist fetch failed: %w", err)
	}
	if len(playlists.Data) == 0 {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, providerPlaylistID)
	}

	attrs := playlists.Data[0].Attributes
	data := &PlaylistData{
		Name:          attrs.Name,
		Description:   attrs.Description.Standard,
		CoverImageURL: attrs.Artwork.URL,
	}

	tracksEndpoint := fmt.Sprintf("/me/library/playlists/%s/tracks?limit=%d", providerPlaylistID, appleMusicPageSize)
	for tracksEndpoint != "" {
		var page applePage[AppleSong]
		if err := a.client.Do(ctx, http.MethodGet, tracksEndpoint, a.developerToken, a.headers(token), nil, &page); err != nil {
			return nil, fmt.Errorf("apple music playlist page fetch failed: %w", err)
		}

		for _, item := range page.Data {
			data.Songs = append(data.Songs, appleSongFromResource(item))
		}

		if page.Next == nil {
			break
		}
		// next cursors come back rooted at /v1, which the client's base URL
		// already carries
		tracksEndpoint = strings.TrimPrefix(*page.Next, "/v1")
	}

	return data, nil
}

// CreatePlaylist creates a library playlist and returns its id.
func (a *AppleMusicAdapter) CreatePlaylist(ctx context.Context, token string, meta PlaylistMeta) (string, error) {
	body := map[string]any{
		"attributes": map[string]any{
			"name":        meta.Name,
			"description": meta.Description,
		},
	}

	var created applePage[ApplePlaylist]
	if err := a.client.Do(ctx, http.MethodPost, "/me/library/playlists", a.developerToken, a.headers(token), body, &created); err != nil {
		return "", fmt.Errorf("apple music playlist create failed: %w", err)
	}
	if len(created.Data) == 0 {
		return "", fmt.Errorf("apple music playlist create returned no resource")
	}

	return created.Data[0].ID, nil
}

// AddSongs appends catalog songs in batches of 25.
func (a *AppleMusicAdapter) AddSongs(ctx context.Context, token, providerPlaylistID string, trackIDs []string) error {
	endpoint := fmt.Sprintf("/me/library/playlists/%s/tracks", providerPlaylistID)

	added := 0
	for start := 0; start < len(trackIDs); start += appleMusicAddBatchSize {
		end := min(start+appleMusicAddBatchSize, len(trackIDs))

		refs := make([]map[string]string, 0, end-start)
		for _, id := range trackIDs[start:end] {
			refs = append(refs, map[string]string{"id": id, "type": "songs"})
		}

		body := map[string]any{"data": refs}
		if err := a.client.Do(ctx, http.MethodPost, endpoint, a.developerToken, a.headers(token), body, nil); err != nil {
			if added > 0 {
				return &shared.PartialWriteError{Added: added, Cause: err}
			}
			return fmt.Errorf("apple music add tracks failed: %w", err)
		}
		added = end
	}

	return nil
}

// appleSongFromResource maps a song resource onto the canonical shape.
// Artwork URLs carry {w}x{h} placeholders which are resolved to a usable size.
func appleSongFromResource(item AppleSong) models.Song {
	cover := item.Attributes.Artwork.URL
	cover = strings.ReplaceAll(cover, "{w}", "300")
	cover = strings.ReplaceAll(cover, "{h}", "300")

	return models.Song{
		Title:           item.Attributes.Name,
		Artist:          item.Attributes.ArtistName,
		Album:           item.Attributes.AlbumName,
		DurationSeconds: item.Attributes.DurationInMillis / 1000,
		CoverImageURL:   cover,
		ProviderIDs:     map[models.Provider]string{models.ProviderAppleMusic: item.ID},
	}
}
