// Spotify implementation of [Adapter]
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/
package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mixtape-app/mixtape/internal/models"
	"github.com/mixtape-app/mixtape/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// Documented per-request cap for POST /playlists/{id}/tracks.
	spotifyAddBatchSize = 100
	spotifyPageSize     = 100
)

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []SpotifyImage `json:"images"`
	URI    string         `json:"uri"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	URI        string          `json:"uri"`
}

type spotifyPlaylistTracks struct {
	Total int                    `json:"total"`
	Next  *string                `json:"next"`
	Items []SpotifyPlaylistTrack `json:"items"`
}

// SpotifyPlaylistTrack represents a track within a playlist context.
type SpotifyPlaylistTrack struct {
	AddedAt string       `json:"added_at"`
	Track   SpotifyTrack `json:"track"`
}

// SpotifyPlaylist represents a Spotify playlist.
type SpotifyPlaylist struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Public      bool                  `json:"public"`
	Tracks      spotifyPlaylistTracks `json:"tracks"`
	Images      []SpotifyImage        `json:"images"`
	URI         string                `json:"uri"`
}

type spotifySearchResponse struct {
	Tracks struct {
		Items []SpotifyTrack `json:"items"`
	} `json:"tracks"`
}

// SpotifyAdapter implements [Adapter] for the Spotify Web API.
type SpotifyAdapter struct {
	client *Client
}

// NewSpotifyAdapter creates a Spotify adapter with the shared client options.
func NewSpotifyAdapter(opts ClientOpts) *SpotifyAdapter {
	return &SpotifyAdapter{client: NewClient(spotifyBaseURL, opts)}
}

// SpotifyOAuthConfig builds the OAuth2 config used for the authorization code
// flow and for token refresh.
func SpotifyOAuthConfig(cfg shared.SpotifyConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes: []string{
			"user-read-private",
			"playlist-read-private",
			"playlist-read-collaborative",
			"playlist-modify-public",
			"playlist-modify-private",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}
}

func (s *SpotifyAdapter) Name() models.Provider {
	return models.ProviderSpotify
}

// Search queries the track catalog, returning at most limit canonical songs.
func (s *SpotifyAdapter) Search(ctx context.Context, token, query string, limit int) ([]models.Song, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}

	endpoint := fmt.Sprintf("/search?q=%s&type=track&limit=%d", url.QueryEscape(query), limit)

	var response spotifySearchResponse
	if err := s.client.Do(ctx, http.MethodGet, endpoint, token, nil, nil, &response); err != nil {
		return nil, fmt.Errorf("spotify search failed: %w", err)
	}

	songs := make([]models.Song, 0, len(response.Tracks.Items))
	for _, track := range response.Tracks.Items {
		songs = append(songs, spotifySongFromTrack(track))
	}
	return songs, nil
}

// FetchPlaylist returns the playlist with its complete ordered track listing,
// following pagination until the provider reports no next page.
func (s *SpotifyAdapter) FetchPlaylist(ctx context.Context, token, providerPlaylistID string) (*PlaylistData, error) {
	endpoint := fmt.Sprintf("/playlists/%s", providerPlaylistID)

	var playlist SpotifyPlaylist
	if err := s.client.Do(ctx, http.MethodGet, endpoint, token, nil, nil, &playlist); err != nil {
		return nil, fmt.Errorf("spotify playlist fetch failed: %w", err)
	}

	data := &PlaylistData{
		Name:        playlist.Name,
		Description: playlist.Description,
	}
	if len(playlist.Images) > 0 {
		data.CoverImageURL = playlist.Images[0].URL
	}

	for _, item := range playlist.Tracks.Items {
		data.Songs = append(data.Songs, spotifySongFromTrack(item.Track))
	}

	next := playlist.Tracks.Next
	offset := len(playlist.Tracks.Items)
	for next != nil {
		page := fmt.Sprintf("/playlists/%s/tracks?limit=%d&offset=%d", providerPlaylistID, spotifyPageSize, offset)

		var tracks spotifyPlaylistTracks
		if err := s.client.Do(ctx, http.MethodGet, page, token, nil, nil, &tracks); err != nil {
			return nil, fmt.Errorf("spotify playlist page fetch failed: %w", err)
		}

		for _, item := range tracks.Items {
			data.Songs = append(data.Songs, spotifySongFromTrack(item.Track))
		}
		offset += len(tracks.Items)
		next = tracks.Next
	}

	return data, nil
}

// CreatePlaylist creates an empty playlist for the current user and returns
// its Spotify id.
func (s *SpotifyAdapter) CreatePlaylist(ctx context.Context, token string, meta PlaylistMeta) (string, error) {
	var me struct {
		ID string `json:"id"`
	}
	if err := s.client.Do(ctx, http.MethodGet, "/me", token, nil, nil, &me); err != nil {
		return "", fmt.Errorf("spotify profile fetch failed: %w", err)
	}

	body := map[string]any{
		"name":        meta.Name,
		"description": meta.Description,
		"public":      meta.Public,
	}

	var created struct {
		ID string `json:"id"`
	}
	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(me.ID))
	if err := s.client.Do(ctx, http.MethodPost, endpoint, token, nil, body, &created); err != nil {
		return "", fmt.Errorf("spotify playlist create failed: %w", err)
	}

	return created.ID, nil
}

// AddSongs appends tracks in batches of 100, the provider's per-request cap.
func (s *SpotifyAdapter) AddSongs(ctx context.Context, token, providerPlaylistID string, trackIDs []string) error {
	endpoint := fmt.Sprintf("/playlists/%s/tracks", providerPlaylistID)

	added := 0
	for start := 0; start < len(trackIDs); start += spotifyAddBatchSize {
		end := min(start+spotifyAddBatchSize, len(trackIDs))

		uris := make([]string, 0, end-start)
		for _, id := range trackIDs[start:end] {
			uris = append(uris, "spotify:track:"+id)
		}

		body := map[string]any{"uris": uris}
		if err := s.client.Do(ctx, http.MethodPost, endpoint, token, nil, body, nil); err != nil {
			if added > 0 {
				return &shared.PartialWriteError{Added: added, Cause: err}
			}
			return fmt.Errorf("spotify add tracks failed: %w", err)
		}
		added = end
	}

	return nil
}

// spotifySongFromTrack maps a Spotify track onto the canonical shape.
// Multiple artists collapse into one comma-joined credit.
func spotifySongFromTrack(track SpotifyTrack) models.Song {
	names := make([]string, 0, len(track.Artists))
	for _, artist := range track.Artists {
		names = append(names, artist.Name)
	}

	song := models.Song{
		Title:           track.Name,
		Artist:          strings.Join(names, ", "),
		Album:           track.Album.Name,
		DurationSeconds: track.DurationMS / 1000,
		ProviderIDs:     map[models.Provider]string{models.ProviderSpotify: track.ID},
	}
	if len(track.Album.Images) > 0 {
		song.CoverImageURL = track.Album.Images[0].URL
	}
	return song
}
