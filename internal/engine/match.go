package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/mixtape-app/mixtape/internal/models"
	"github.com/mixtape-app/mixtape/internal/resolver"
	"github.com/mixtape-app/mixtape/internal/shared"
)

// Match resolves a single song against the target provider's catalog. It is
// stateless: no job is created and nothing is persisted.
func (e *Engine) Match(ctx context.Context, userID string, song models.Song, target models.Provider) (resolver.MatchResult, error) {
	adapter, err := e.registry.Get(target)
	if err != nil {
		return resolver.MatchResult{}, err
	}

	token, err := e.tokens.EnsureValidToken(ctx, userID, target)
	if err != nil {
		return resolver.MatchResult{}, err
	}

	return e.resolver.Resolve(ctx, adapter, token, song)
}

// Search queries one connected provider's catalog and returns canonical
// songs in the provider's relevance order.
func (e *Engine) Search(ctx context.Context, userID, query string, target models.Provider, limit int) ([]models.Song, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: empty search query", shared.ErrInvalidInput)
	}

	adapter, err := e.registry.Get(target)
	if err != nil {
		return nil, err
	}

	token, err := e.tokens.EnsureValidToken(ctx, userID, target)
	if err != nil {
		return nil, err
	}

	return adapter.Search(ctx, token, query, limit)
}

// SearchAll fans the query out to every provider the user has connected,
// skipping disconnected ones. A provider failing mid-search is reported in
// the error while the other providers' results still come back.
func (e *Engine) SearchAll(ctx context.Context, userID, query string, limit int) (map[models.Provider][]models.Song, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: empty search query", shared.ErrInvalidInput)
	}

	names := e.registry.Names()
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	results := make(map[models.Provider][]models.Song)
	var failures []error

	for _, name := range names {
		songs, err := e.Search(ctx, userID, query, name, limit)
		if errors.Is(err, shared.ErrServiceNotConnected) {
			continue
		}
		if err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", name, err))
			continue
		}
		results[name] = songs
	}

	return results, errors.Join(failures...)
}
