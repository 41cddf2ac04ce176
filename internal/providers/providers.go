// package providers defines the adapter contract for external music services
//
// Spotify, Apple Music, Amazon Music
package providers

import (
	"context"
	"fmt"

	"github.com/mixtape-app/mixtape/internal/models"
	"github.com/mixtape-app/mixtape/internal/shared"
)

// Adapter translates one provider's track and playlist representations into
// the canonical shape and back. Implementations are stateless apart from
// configuration; credentials arrive as the token argument on every call.
type Adapter interface {
	// Name returns the provider this adapter speaks to.
	Name() models.Provider

	// Search queries the provider catalog, returning at most limit canonical
	// songs ordered by the provider's own relevance ranking. Each result
	// carries its provider-native id in ProviderIDs.
	Search(ctx context.Context, token, query string, limit int) ([]models.Song, error)

	// FetchPlaylist returns playlist metadata plus the complete ordered song
	// sequence, paginating internally as needed.
	FetchPlaylist(ctx context.Context, token, providerPlaylistID string) (*PlaylistData, error)

	// CreatePlaylist creates an empty playlist on the provider and returns
	// its provider-native id.
	CreatePlaylist(ctx context.Context, token string, meta PlaylistMeta) (string, error)

	// AddSongs appends tracks to a provider playlist, batching to the
	// provider's documented per-request limit. Either every batch succeeds or
	// the call fails with a [shared.PartialWriteError] carrying the count of
	// songs added before the failing batch.
	AddSongs(ctx context.Context, token, providerPlaylistID string, trackIDs []string) error
}

// PlaylistMeta is the creation payload for CreatePlaylist.
type PlaylistMeta struct {
	Name        string
	Description string
	Public      bool
}

// PlaylistData is a fetched provider playlist with its full track listing.
type PlaylistData struct {
	Name          string
	Description   string
	CoverImageURL string
	Songs         []models.Song
}

// Registry holds the configured adapter for each provider.
type Registry struct {
	adapters map[models.Provider]Adapter
}

// NewRegistry builds a registry from the given adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[models.Provider]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
	}
	return r
}

// Get returns the adapter for provider p.
func (r *Registry) Get(p models.Provider) (Adapter, error) {
	a, ok := r.adapters[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrUnknownProvider, p)
	}
	return a, nil
}

// Names lists the registered providers.
func (r *Registry) Names() []models.Provider {
	names := make([]models.Provider, 0, len(r.adapters))
	for p := range r.adapters {
		names = append(names, p)
	}
	return names
}
