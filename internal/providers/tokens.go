package providers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mixtape-app/mixtape/internal/models"
	"github.com/mixtape-app/mixtape/internal/shared"
	"golang.org/x/oauth2"
)

// ConnectionStore persists per-user per-provider credential state. Implemented
// by repositories.ConnectionRepository.
type ConnectionStore interface {
	Get(ctx context.Context, userID string, provider models.Provider) (*models.Connection, error)
	Save(ctx context.Context, conn *models.Connection) error
}

// Refresher performs one provider's refresh-token exchange. Providers that do
// not support server-side refresh (Apple Music) register no Refresher.
type Refresher interface {
	Refresh(ctx context.Context, conn *models.Connection) (*oauth2.Token, error)
}

// OAuthRefresher refreshes through a standard [oauth2.Config] endpoint.
type OAuthRefresher struct {
	Config *oauth2.Config
}

func (r *OAuthRefresher) Refresh(ctx context.Context, conn *models.Connection) (*oauth2.Token, error) {
	src := r.Config.TokenSource(ctx, &oauth2.Token{RefreshToken: conn.RefreshToken})
	token, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	return token, nil
}

// TokenManager hands out usable access tokens, refreshing expired ones
// through the provider's refresh exchange and persisting the updated
// connection.
//
// Refreshes for the same (user, provider) pair are mutually exclusive:
// concurrent callers serialize on a keyed lock so a connection is refreshed
// at most once per expiry, never racing an in-flight token.
type TokenManager struct {
	store      ConnectionStore
	refreshers map[models.Provider]Refresher
	now        func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewTokenManager creates a TokenManager over the given store.
func NewTokenManager(store ConnectionStore) *TokenManager {
	return &TokenManager{
		store:      store,
		refreshers: make(map[models.Provider]Refresher),
		now:        time.Now,
		locks:      make(map[string]*sync.Mutex),
	}
}

// RegisterRefresher installs the refresh exchange for provider p.
func (m *TokenManager) RegisterRefresher(p models.Provider, r Refresher) {
	m.refreshers[p] = r
}

// Locker returns the mutex serializing provider calls for one (user, provider)
// pair. The engine holds it across a job's sequence of provider calls.
func (m *TokenManager) Locker(userID string, p models.Provider) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := userID + "|" + string(p)
	lock, ok := m.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[key] = lock
	}
	return lock
}

// EnsureValidToken returns a usable access token for the user's connection to
// provider p, refreshing first when the stored token has expired.
//
// Fails with [shared.ErrServiceNotConnected] when no active connection exists
// and [shared.ErrTokenExpired] when the token is stale and no refresh path is
// available or the provider rejects the exchange.
func (m *TokenManager) EnsureValidToken(ctx context.Context, userID string, p models.Provider) (string, error) {
	lock := m.Locker(userID, p)
	lock.Lock()
	defer lock.Unlock()

	return m.ensureValidTokenLocked(ctx, userID, p)
}

// EnsureValidTokenLocked is EnsureValidToken for callers already holding the
// pair's Locker, typically the engine mid-job.
func (m *TokenManager) EnsureValidTokenLocked(ctx context.Context, userID string, p models.Provider) (string, error) {
	return m.ensureValidTokenLocked(ctx, userID, p)
}

func (m *TokenManager) ensureValidTokenLocked(ctx context.Context, userID string, p models.Provider) (string, error) {
	conn, err := m.store.Get(ctx, userID, p)
	if err != nil {
		return "", fmt.Errorf("failed to load connection: %w", err)
	}
	if conn == nil || !conn.Connected || conn.AccessToken == "" {
		return "", fmt.Errorf("%w: %s", shared.ErrServiceNotConnected, p)
	}

	if !conn.Expired(m.now()) {
		return conn.AccessToken, nil
	}

	if conn.RefreshToken == "" {
		return "", fmt.Errorf("%w: %s: %w", shared.ErrTokenExpired, p, shared.ErrNoRefreshToken)
	}

	refresher, ok := m.refreshers[p]
	if !ok {
		return "", fmt.Errorf("%w: %s: no refresh exchange", shared.ErrTokenExpired, p)
	}

	token, err := refresher.Refresh(ctx, conn)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", shared.ErrTokenExpired, p, err)
	}

	conn.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		conn.RefreshToken = token.RefreshToken
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		conn.ExpiresAt = &expiry
	}
	conn.UpdatedAt = m.now()

	if err := m.store.Save(ctx, conn); err != nil {
		return "", fmt.Errorf("failed to persist refreshed connection: %w", err)
	}

	return conn.AccessToken, nil
}

// Disconnect clears every token field on the connection in one persisted
// write.
func (m *TokenManager) Disconnect(ctx context.Context, userID string, p models.Provider) error {
	lock := m.Locker(userID, p)
	lock.Lock()
	defer lock.Unlock()

	conn, err := m.store.Get(ctx, userID, p)
	if err != nil {
		return fmt.Errorf("failed to load connection: %w", err)
	}
	if conn == nil {
		return fmt.Errorf("%w: %s", shared.ErrServiceNotConnected, p)
	}

	conn.Clear()
	conn.UpdatedAt = m.now()

	if err := m.store.Save(ctx, conn); err != nil {
		return fmt.Errorf("failed to persist disconnect: %w", err)
	}
	return nil
}
