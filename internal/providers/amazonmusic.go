// Amazon Music implementation of [Adapter]
//
// Uses the Amazon Music open API with Login-with-Amazon OAuth tokens.
package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/mixtape-app/mixtape/internal/models"
	"github.com/mixtape-app/mixtape/internal/shared"
	"golang.org/x/oauth2"
)

const (
	amazonAuthURL      = "https://www.amazon.com/ap/oa"
	amazonTokenURL     = "https://api.amazon.com/auth/o2/token"
	amazonMusicBaseURL = "https://api.music.amazon.dev/v1"

	amazonAddBatchSize = 50
	amazonPageSize     = 100
)

type amazonImage struct {
	URL string `json:"url"`
}

// AmazonTrack represents a track resource from Amazon Music.
type AmazonTrack struct {
	ID              string        `json:"id"`
	Title           string        `json:"title"`
	ArtistName      string        `json:"artistName"`
	AlbumName       string        `json:"albumName"`
	DurationSeconds int           `json:"durationSeconds"`
	Images          []amazonImage `json:"images"`
}

// AmazonPlaylist represents a playlist resource from Amazon Music.
type AmazonPlaylist struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Images      []amazonImage `json:"images"`
}

type amazonTrackPage struct {
	Tracks    []AmazonTrack `json:"tracks"`
	NextToken string        `json:"nextToken"`
}

// AmazonMusicAdapter implements [Adapter] for the Amazon Music API.
type AmazonMusicAdapter struct {
	client *Client
}

// NewAmazonMusicAdapter creates an Amazon Music adapter.
func NewAmazonMusicAdapter(opts ClientOpts) *AmazonMusicAdapter {
	return &AmazonMusicAdapter{client: NewClient(amazonMusicBaseURL, opts)}
}

// AmazonOAuthConfig builds the Login-with-Amazon OAuth2 config used for the
// authorization code flow and token refresh.
func AmazonOAuthConfig(cfg shared.AmazonMusicConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       []string{"profile", "music::playlists"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  amazonAuthURL,
			TokenURL: amazonTokenURL,
		},
	}
}

func (a *AmazonMusicAdapter) Name() models.Provider {
	return models.ProviderAmazonMusic
}

// Search queries the track catalog, returning at most limit canonical songs.
func (a *AmazonMusicAdapter) Search(ctx context.Context, token, query string, limit int) ([]models.Song, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}

	endpoint := fmt.Sprintf("/search/tracks?keywords=%s&limit=%d", url.QueryEscape(query), limit)

	var response struct {
		Tracks []AmazonTrack `json:"tracks"`
	}
	if err := a.client.Do(ctx, http.MethodGet, endpoint, token, nil, nil, &response); err != nil {
		return nil, fmt.Errorf("amazon music search failed: %w", err)
	}

	songs := make([]models.Song, 0, len(response.Tracks))
	for _, track := range response.Tracks {
		songs = append(songs, amazonSongFromTrack(track))
	}
	return songs, nil
}

// FetchPlaylist returns the playlist with its complete ordered track listing,
// following the next token until exhausted.
func (a *AmazonMusicAdapter) FetchPlaylist(ctx context.Context, token, providerPlaylistID string) (*PlaylistData, error) {
	endpoint := fmt.Sprintf("/playlists/%s", providerPlaylistID)

	var playlist AmazonPlaylist
	if err := a.client.Do(ctx, http.MethodGet, endpoint, token, nil, nil, &playlist); err != nil {
		return nil, fmt.Errorf("amazon music playlist fetch failed: %w", err)
	}

	data := &PlaylistData{
		Name:        playlist.Title,
		Description: playlist.Description,
	}
	if len(playlist.Images) > 0 {
		data.CoverImageURL = playlist.Images[0].URL
	}

	nextToken := ""
	for {
		page := fmt.Sprintf("/playlists/%s/tracks?limit=%d", providerPlaylistID, amazonPageSize)
		if nextToken != "" {
			page += "&nextToken=" + url.QueryEscape(nextToken)
		}

		var tracks amazonTrackPage
		if err := a.client.Do(ctx, http.MethodGet, page, token, nil, nil, &tracks); err != nil {
			return nil, fmt.Errorf("amazon music playlist page fetch failed: %w", err)
		}

		for _, track := range tracks.Tracks {
			data.Songs = append(data.Songs, amazonSongFromTrack(track))
		}

		if tracks.NextToken == "" {
			break
		}
		nextToken = tracks.NextToken
	}

	return data, nil
}

// CreatePlaylist creates an empty playlist and returns its id.
func (a *AmazonMusicAdapter) CreatePlaylist(ctx context.Context, token string, meta PlaylistMeta) (string, error) {
	body := map[string]any{
		"title":       meta.Name,
		"description": meta.Description,
		"visibility":  amazonVisibility(meta.Public),
	}

	var created AmazonPlaylist
	if err := a.client.Do(ctx, http.MethodPost, "/playlists", token, nil, body, &created); err != nil {
		return "", fmt.Errorf("amazon music playlist create failed: %w", err)
	}

	return created.ID, nil
}

// AddSongs appends tracks in batches of 50.
func (a *AmazonMusicAdapter) AddSongs(ctx context.Context, token, providerPlaylistID string, trackIDs []string) error {
	endpoint := fmt.Sprintf("/playlists/%s/tracks", providerPlaylistID)

	added := 0
	for start := 0; start < len(trackIDs); start += amazonAddBatchSize {
		end := min(start+amazonAddBatchSize, len(trackIDs))

		body := map[string]any{"trackIds": trackIDs[start:end]}
		if err := a.client.Do(ctx, http.MethodPost, endpoint, token, nil, body, nil); err != nil {
			if added > 0 {
				return &shared.PartialWriteError{Added: added, Cause: err}
			}
			return fmt.Errorf("amazon music add tracks failed: %w", err)
		}
		added = end
	}

	return nil
}

func amazonVisibility(public bool) string {
	if public {
		return "PUBLIC"
	}
	return "PRIVATE"
}

// amazonSongFromTrack maps a track resource onto the canonical shape.
func amazonSongFromTrack(track AmazonTrack) models.Song {
	song := models.Song{
		Title:           track.Title,
		Artist:          track.ArtistName,
		Album:           track.AlbumName,
		DurationSeconds: track.DurationSeconds,
		ProviderIDs:     map[models.Provider]string{models.ProviderAmazonMusic: track.ID},
	}
	if len(track.Images) > 0 {
		song.CoverImageURL = track.Images[0].URL
	}
	return song
}
