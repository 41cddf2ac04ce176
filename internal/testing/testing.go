// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/mixtape-app/mixtape/internal/models"
	"github.com/mixtape-app/mixtape/internal/providers"
	"github.com/mixtape-app/mixtape/internal/shared"
)

// MockAdapter is a test double for [providers.Adapter]. Every call is
// recorded so tests can assert on request counts and payloads.
type MockAdapter struct {
	mu sync.Mutex

	Provider models.Provider

	SearchResults []models.Song
	SearchErr     error
	SearchCalls   int
	SearchQueries []string

	Playlist   *providers.PlaylistData
	FetchErr   error
	FetchCalls int
	FetchedIDs []string

	CreatedID   string
	CreateErr   error
	CreateCalls int
	CreatedMeta []providers.PlaylistMeta

	AddErr      error
	AddCalls    int
	AddedTracks [][]string
}

func (m *MockAdapter) Name() models.Provider {
	if m.Provider == "" {
		return models.ProviderSpotify
	}
	return m.Provider
}

func (m *MockAdapter) Search(ctx context.Context, token, query string, limit int) ([]models.Song, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SearchCalls++
	m.SearchQueries = append(m.SearchQueries, query)
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	return m.SearchResults, nil
}

func (m *MockAdapter) FetchPlaylist(ctx context.Context, token, providerPlaylistID string) (*providers.PlaylistData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FetchCalls++
	m.FetchedIDs = append(m.FetchedIDs, providerPlaylistID)
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	if m.Playlist == nil {
		return nil, shared.ErrPlaylistNotFound
	}
	return m.Playlist, nil
}

func (m *MockAdapter) CreatePlaylist(ctx context.Context, token string, meta providers.PlaylistMeta) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls++
	m.CreatedMeta = append(m.CreatedMeta, meta)
	if m.CreateErr != nil {
		return "", m.CreateErr
	}
	if m.CreatedID == "" {
		return "mock-playlist", nil
	}
	return m.CreatedID, nil
}

func (m *MockAdapter) AddSongs(ctx context.Context, token, providerPlaylistID string, trackIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AddCalls++
	batch := make([]string, len(trackIDs))
	copy(batch, trackIDs)
	m.AddedTracks = append(m.AddedTracks, batch)
	return m.AddErr
}

// AllAddedTracks flattens every AddSongs batch in call order.
func (m *MockAdapter) AllAddedTracks() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []string
	for _, batch := range m.AddedTracks {
		all = append(all, batch...)
	}
	return all
}

// MockConnectionStore is an in-memory [providers.ConnectionStore].
type MockConnectionStore struct {
	mu          sync.Mutex
	Connections map[string]*models.Connection
	SaveCalls   int
	GetErr      error
	SaveErr     error
}

func NewMockConnectionStore(conns ...*models.Connection) *MockConnectionStore {
	s := &MockConnectionStore{Connections: make(map[string]*models.Connection)}
	for _, c := range conns {
		s.Connections[c.UserID+"|"+string(c.Provider)] = c
	}
	return s
}

func (s *MockConnectionStore) Get(ctx context.Context, userID string, provider models.Provider) (*models.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	conn, ok := s.Connections[userID+"|"+string(provider)]
	if !ok {
		return nil, shared.ErrServiceNotConnected
	}
	clone := *conn
	return &clone, nil
}

func (s *MockConnectionStore) Save(ctx context.Context, conn *models.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SaveCalls++
	if s.SaveErr != nil {
		return s.SaveErr
	}
	clone := *conn
	s.Connections[conn.UserID+"|"+string(conn.Provider)] = &clone
	return nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
