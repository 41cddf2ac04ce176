package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mixtape-app/mixtape/internal/engine"
	"github.com/mixtape-app/mixtape/internal/models"
	"github.com/mixtape-app/mixtape/internal/notify"
	"github.com/mixtape-app/mixtape/internal/providers"
	"github.com/mixtape-app/mixtape/internal/repositories"
	"github.com/mixtape-app/mixtape/internal/shared"
	mixtest "github.com/mixtape-app/mixtape/internal/testing"
)

type testServer struct {
	server    *Server
	handler   http.Handler
	adapter   *mixtest.MockAdapter
	playlists *repositories.PlaylistRepository
	users     *repositories.UserRepository
	conns     *repositories.ConnectionRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	shared.ConfigureDatabase(db, 1, 1)

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	playlists := repositories.NewPlaylistRepository(db)
	users := repositories.NewUserRepository(db)
	jobs := repositories.NewJobRepository(db)
	notifications := repositories.NewNotificationRepository(db)
	conns := repositories.NewConnectionRepository(db)

	adapter := &mixtest.MockAdapter{Provider: models.ProviderSpotify}
	registry := providers.NewRegistry(adapter)
	tokens := providers.NewTokenManager(conns)
	fanout := notify.NewFanout(notifications, nil)

	eng := engine.New(registry, tokens, playlists, jobs, fanout, nil, engine.Opts{
		SongConcurrency: 2,
		RetryAttempts:   1,
		BackoffBase:     time.Millisecond,
	})

	srv := New(eng, playlists, users, jobs, notifications, fanout, nil)

	return &testServer{
		server:    srv,
		handler:   srv.Handler(),
		adapter:   adapter,
		playlists: playlists,
		users:     users,
		conns:     conns,
	}
}

func (ts *testServer) request(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if user != "" {
		req.Header.Set(userIDHeader, user)
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) createUser(t *testing.T, id, username string) {
	t.Helper()
	user := &models.User{ID: id, Username: username, Email: username + "@example.com"}
	if err := ts.users.Create(t.Context(), user); err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
}

func (ts *testServer) connect(t *testing.T, userID string) {
	t.Helper()
	err := ts.conns.Save(t.Context(), &models.Connection{
		UserID:      userID,
		Provider:    models.ProviderSpotify,
		Connected:   true,
		AccessToken: "token-" + userID,
	})
	if err != nil {
		t.Fatalf("connect %s: %v", userID, err)
	}
}

func (ts *testServer) createPlaylist(t *testing.T, playlist *models.Playlist) {
	t.Helper()
	if err := ts.playlists.Create(t.Context(), playlist); err != nil {
		t.Fatalf("create playlist: %v", err)
	}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRequiresUserHeader(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodGet, "/playlists", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	var resp errorResponse
	decodeBody(t, rec, &resp)
	if resp.Error == "" {
		t.Error("expected error message in body")
	}
}

func TestGetPlaylistAccess(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "alice", "alice")
	ts.createUser(t, "bob", "bob")

	playlist := &models.Playlist{Name: "Road Trip", CreatorID: "alice"}
	ts.createPlaylist(t, playlist)

	rec := ts.request(t, http.MethodGet, "/playlists/"+playlist.ID, "alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("creator read: expected 200, got %d", rec.Code)
	}

	rec = ts.request(t, http.MethodGet, "/playlists/"+playlist.ID, "bob", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("stranger read: expected 403, got %d", rec.Code)
	}

	rec = ts.request(t, http.MethodGet, "/playlists/missing", "alice", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing playlist: expected 404, got %d", rec.Code)
	}
}

func TestShareFanout(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "alice", "alice")
	ts.createUser(t, "bob", "bob")

	playlist := &models.Playlist{Name: "Mix", CreatorID: "alice"}
	ts.createPlaylist(t, playlist)

	body := map[string]any{"userIds": []string{"bob", "ghost", "alice"}}
	rec := ts.request(t, http.MethodPost, "/playlists/"+playlist.ID+"/share", "alice", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("share: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Shared []string `json:"shared"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Shared) != 1 || resp.Shared[0] != "bob" {
		t.Fatalf("expected shared=[bob], got %v", resp.Shared)
	}

	rec = ts.request(t, http.MethodGet, "/playlists/shared", "bob", nil)
	var listResp struct {
		Playlists []models.Playlist `json:"playlists"`
	}
	decodeBody(t, rec, &listResp)
	if len(listResp.Playlists) != 1 {
		t.Fatalf("expected 1 shared playlist for bob, got %d", len(listResp.Playlists))
	}

	rec = ts.request(t, http.MethodGet, "/notifications", "bob", nil)
	var noteResp struct {
		Notifications []models.Notification `json:"notifications"`
	}
	decodeBody(t, rec, &noteResp)
	if len(noteResp.Notifications) != 1 {
		t.Fatalf("expected 1 notification for bob, got %d", len(noteResp.Notifications))
	}
	note := noteResp.Notifications[0]
	if note.Kind != models.NotifyPlaylistShared {
		t.Errorf("expected playlist_shared kind, got %s", note.Kind)
	}
	if note.ActorID != "alice" {
		t.Errorf("expected actor alice, got %s", note.ActorID)
	}

	rec = ts.request(t, http.MethodPost, "/notifications/"+note.ID+"/read", "bob", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("mark read: expected 200, got %d", rec.Code)
	}

	rec = ts.request(t, http.MethodGet, "/notifications?unread=true", "bob", nil)
	decodeBody(t, rec, &noteResp)
	if len(noteResp.Notifications) != 0 {
		t.Fatalf("expected no unread notifications, got %d", len(noteResp.Notifications))
	}
}

func TestShareRequiresCreator(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "alice", "alice")
	ts.createUser(t, "bob", "bob")

	playlist := &models.Playlist{Name: "Mix", CreatorID: "alice", SharedWith: []string{"bob"}}
	ts.createPlaylist(t, playlist)

	body := map[string]any{"userIds": []string{"bob"}}
	rec := ts.request(t, http.MethodPost, "/playlists/"+playlist.ID+"/share", "bob", body)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestSearchValidatesProvider(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "alice", "alice")

	rec := ts.request(t, http.MethodGet, "/music/search?q=test&provider=tidal", "alice", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSearchNotConnected(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "alice", "alice")

	rec := ts.request(t, http.MethodGet, "/music/search?q=test&provider=spotify", "alice", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unconnected provider, got %d", rec.Code)
	}
}

func TestImportEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "alice", "alice")
	ts.connect(t, "alice")

	ts.adapter.Playlist = &providers.PlaylistData{
		Name: "Summer Hits",
		Songs: []models.Song{
			{Title: "Song A", Artist: "Artist A", DurationSeconds: 200,
				ProviderIDs: map[models.Provider]string{models.ProviderSpotify: "sp-1"}},
			{Title: "Song B", Artist: "Artist B", DurationSeconds: 180,
				ProviderIDs: map[models.Provider]string{models.ProviderSpotify: "sp-2"}},
		},
	}

	body := map[string]string{"provider": "spotify", "playlistId": "sp-source"}
	rec := ts.request(t, http.MethodPost, "/music/import", "alice", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Job      models.Job      `json:"job"`
		Playlist models.Playlist `json:"playlist"`
	}
	decodeBody(t, rec, &resp)
	if resp.Job.Status != models.JobCompleted {
		t.Errorf("expected completed job, got %s", resp.Job.Status)
	}
	if len(resp.Playlist.Songs) != 2 {
		t.Errorf("expected 2 imported songs, got %d", len(resp.Playlist.Songs))
	}

	rec = ts.request(t, http.MethodGet, "/playlists", "alice", nil)
	var listResp struct {
		Playlists []models.Playlist `json:"playlists"`
	}
	decodeBody(t, rec, &listResp)
	if len(listResp.Playlists) != 1 {
		t.Fatalf("expected imported playlist to be persisted, got %d", len(listResp.Playlists))
	}
}

func TestImportRequiresConnection(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "alice", "alice")

	body := map[string]string{"provider": "spotify", "playlistId": "sp-source"}
	rec := ts.request(t, http.MethodPost, "/music/import", "alice", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}

	// The failed job record is still returned so callers can inspect it.
	var resp struct {
		Job models.Job `json:"job"`
	}
	decodeBody(t, rec, &resp)
	if resp.Job.Status != models.JobFailed {
		t.Errorf("expected failed job in response, got %s", resp.Job.Status)
	}
}

func TestMatchEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "alice", "alice")
	ts.connect(t, "alice")

	body := map[string]any{
		"provider": "spotify",
		"song": models.Song{
			Title: "Known", Artist: "Artist", DurationSeconds: 100,
			ProviderIDs: map[models.Provider]string{models.ProviderSpotify: "sp-known"},
		},
	}
	rec := ts.request(t, http.MethodPost, "/music/match", "alice", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Matched    bool    `json:"matched"`
		ProviderID string  `json:"providerId"`
		Confidence float64 `json:"confidence"`
	}
	decodeBody(t, rec, &resp)
	if !resp.Matched || resp.ProviderID != "sp-known" || resp.Confidence != 1.0 {
		t.Errorf("unexpected match response: %+v", resp)
	}
}

func TestExportEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "alice", "alice")
	ts.connect(t, "alice")

	playlist := &models.Playlist{
		Name:      "Mix",
		CreatorID: "alice",
		Songs: []models.Song{
			{Title: "Song A", Artist: "Artist A", DurationSeconds: 200,
				ProviderIDs: map[models.Provider]string{models.ProviderSpotify: "sp-1"}},
		},
	}
	ts.createPlaylist(t, playlist)
	ts.adapter.CreatedID = "sp-new"

	body := map[string]string{"provider": "spotify"}
	rec := ts.request(t, http.MethodPost, "/playlists/"+playlist.ID+"/export", "alice", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Job models.Job `json:"job"`
	}
	decodeBody(t, rec, &resp)
	if resp.Job.Status != models.JobCompleted {
		t.Errorf("expected completed job, got %s", resp.Job.Status)
	}
	if resp.Job.ProviderPlaylistID != "sp-new" {
		t.Errorf("expected provider playlist id sp-new, got %s", resp.Job.ProviderPlaylistID)
	}

	rec = ts.request(t, http.MethodGet, "/jobs/"+resp.Job.ID, "alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("job lookup: expected 200, got %d", rec.Code)
	}

	rec = ts.request(t, http.MethodGet, "/jobs/"+resp.Job.ID, "bob", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign job lookup: expected 404, got %d", rec.Code)
	}
}

func TestExportForbiddenForPublicViewer(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "alice", "alice")
	ts.createUser(t, "bob", "bob")
	ts.connect(t, "bob")

	playlist := &models.Playlist{Name: "Mix", CreatorID: "alice", IsPublic: true}
	ts.createPlaylist(t, playlist)

	body := map[string]string{"provider": "spotify"}
	rec := ts.request(t, http.MethodPost, "/playlists/"+playlist.ID+"/export", "bob", body)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestMarkAllRead(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "alice", "alice")
	ts.createUser(t, "bob", "bob")

	for _, name := range []string{"One", "Two"} {
		playlist := &models.Playlist{Name: name, CreatorID: "alice"}
		ts.createPlaylist(t, playlist)
		body := map[string]any{"userIds": []string{"bob"}}
		rec := ts.request(t, http.MethodPost, "/playlists/"+playlist.ID+"/share", "alice", body)
		if rec.Code != http.StatusOK {
			t.Fatalf("share %s: got %d", name, rec.Code)
		}
	}

	rec := ts.request(t, http.MethodPost, "/notifications/read-all", "bob", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Updated int `json:"updated"`
	}
	decodeBody(t, rec, &resp)
	if resp.Updated != 2 {
		t.Fatalf("expected 2 updated, got %d", resp.Updated)
	}
}
