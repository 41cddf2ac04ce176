package providers_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mixtape-app/mixtape/internal/models"
	"github.com/mixtape-app/mixtape/internal/providers"
	"github.com/mixtape-app/mixtape/internal/shared"
	mixtest "github.com/mixtape-app/mixtape/internal/testing"
	"golang.org/x/oauth2"
)

type countingRefresher struct {
	calls int32
	err   error
}

func (r *countingRefresher) Refresh(ctx context.Context, conn *models.Connection) (*oauth2.Token, error) {
	atomic.AddInt32(&r.calls, 1)
	if r.err != nil {
		return nil, r.err
	}
	return &oauth2.Token{
		AccessToken:  "refreshed-token",
		RefreshToken: "new-refresh-token",
		Expiry:       time.Now().Add(time.Hour),
	}, nil
}

func expiredConnection(userID string) *models.Connection {
	past := time.Now().Add(-time.Hour)
	return &models.Connection{
		UserID:       userID,
		Provider:     models.ProviderSpotify,
		Connected:    true,
		AccessToken:  "stale-token",
		RefreshToken: "refresh-token",
		ExpiresAt:    &past,
	}
}

func TestEnsureValidToken(t *testing.T) {
	t.Run("returns stored token when not expired", func(t *testing.T) {
		store := mixtest.NewMockConnectionStore(&models.Connection{
			UserID:      "alice",
			Provider:    models.ProviderSpotify,
			Connected:   true,
			AccessToken: "live-token",
		})
		manager := providers.NewTokenManager(store)

		token, err := manager.EnsureValidToken(context.Background(), "alice", models.ProviderSpotify)
		if err != nil {
			t.Fatalf("EnsureValidToken: %v", err)
		}
		if token != "live-token" {
			t.Errorf("expected live-token, got %s", token)
		}
		if store.SaveCalls != 0 {
			t.Errorf("expected no save for valid token, got %d", store.SaveCalls)
		}
	})

	t.Run("not connected", func(t *testing.T) {
		manager := providers.NewTokenManager(mixtest.NewMockConnectionStore())

		_, err := manager.EnsureValidToken(context.Background(), "alice", models.ProviderSpotify)
		if !errors.Is(err, shared.ErrServiceNotConnected) {
			t.Errorf("expected ErrServiceNotConnected, got %v", err)
		}
	})

	t.Run("refreshes expired token and persists", func(t *testing.T) {
		store := mixtest.NewMockConnectionStore(expiredConnection("alice"))
		manager := providers.NewTokenManager(store)
		refresher := &countingRefresher{}
		manager.RegisterRefresher(models.ProviderSpotify, refresher)

		token, err := manager.EnsureValidToken(context.Background(), "alice", models.ProviderSpotify)
		if err != nil {
			t.Fatalf("EnsureValidToken: %v", err)
		}
		if token != "refreshed-token" {
			t.Errorf("expected refreshed-token, got %s", token)
		}
		if store.SaveCalls != 1 {
			t.Errorf("expected refreshed connection persisted once, got %d saves", store.SaveCalls)
		}

		saved := store.Connections["alice|spotify"]
		if saved.RefreshToken != "new-refresh-token" {
			t.Errorf("expected rotated refresh token, got %s", saved.RefreshToken)
		}
	})

	t.Run("expired without refresh token", func(t *testing.T) {
		conn := expiredConnection("alice")
		conn.RefreshToken = ""
		manager := providers.NewTokenManager(mixtest.NewMockConnectionStore(conn))

		_, err := manager.EnsureValidToken(context.Background(), "alice", models.ProviderSpotify)
		if !errors.Is(err, shared.ErrTokenExpired) {
			t.Errorf("expected ErrTokenExpired, got %v", err)
		}
		if !errors.Is(err, shared.ErrNoRefreshToken) {
			t.Errorf("expected ErrNoRefreshToken cause, got %v", err)
		}
	})

	t.Run("refresh failure surfaces as expired", func(t *testing.T) {
		store := mixtest.NewMockConnectionStore(expiredConnection("alice"))
		manager := providers.NewTokenManager(store)
		manager.RegisterRefresher(models.ProviderSpotify, &countingRefresher{err: errors.New("exchange rejected")})

		_, err := manager.EnsureValidToken(context.Background(), "alice", models.ProviderSpotify)
		if !errors.Is(err, shared.ErrTokenExpired) {
			t.Errorf("expected ErrTokenExpired, got %v", err)
		}
	})

	t.Run("concurrent callers refresh once", func(t *testing.T) {
		store := mixtest.NewMockConnectionStore(expiredConnection("alice"))
		manager := providers.NewTokenManager(store)
		refresher := &countingRefresher{}
		manager.RegisterRefresher(models.ProviderSpotify, refresher)

		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				token, err := manager.EnsureValidToken(context.Background(), "alice", models.ProviderSpotify)
				if err != nil {
					t.Errorf("EnsureValidToken: %v", err)
					return
				}
				if token != "refreshed-token" {
					t.Errorf("expected refreshed-token, got %s", token)
				}
			}()
		}
		wg.Wait()

		if got := atomic.LoadInt32(&refresher.calls); got != 1 {
			t.Errorf("expected exactly one refresh, got %d", got)
		}
	})
}

func TestDisconnect(t *testing.T) {
	store := mixtest.NewMockConnectionStore(&models.Connection{
		UserID:       "alice",
		Provider:     models.ProviderSpotify,
		Connected:    true,
		AccessToken:  "live-token",
		RefreshToken: "refresh-token",
	})
	manager := providers.NewTokenManager(store)

	if err := manager.Disconnect(context.Background(), "alice", models.ProviderSpotify); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}

	saved := store.Connections["alice|spotify"]
	if saved.Connected || saved.AccessToken != "" || saved.RefreshToken != "" {
		t.Errorf("expected cleared connection, got %+v", saved)
	}

	if _, err := manager.EnsureValidToken(context.Background(), "alice", models.ProviderSpotify); !errors.Is(err, shared.ErrServiceNotConnected) {
		t.Errorf("expected ErrServiceNotConnected after disconnect, got %v", err)
	}
}

func TestLocker(t *testing.T) {
	manager := providers.NewTokenManager(mixtest.NewMockConnectionStore())

	a := manager.Locker("alice", models.ProviderSpotify)
	b := manager.Locker("alice", models.ProviderSpotify)
	if a != b {
		t.Error("expected the same lock for the same (user, provider) pair")
	}

	c := manager.Locker("alice", models.ProviderAppleMusic)
	if a == c {
		t.Error("expected distinct locks per provider")
	}
}
