package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"TrackTalk/config"
	"TrackTalk/core/catalog"
	"TrackTalk/core/comment"
	"TrackTalk/core/identity"
	"TrackTalk/core/playlist"
	"TrackTalk/core/share"
	"TrackTalk/model"
	"TrackTalk/repository"
)

// ---- in-memory repositories ----

type memUserRepo struct {
	users      map[string]*model.User
	watermarks map[int64]map[string]time.Time
	nextID     int64
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{
		users:      make(map[string]*model.User),
		watermarks: make(map[int64]map[string]time.Time),
		nextID:     1,
	}
}

func (m *memUserRepo) UpsertByProviderID(_ context.Context, u *model.User) (*model.User, error) {
	if existing, ok := m.users[u.ProviderID]; ok {
		existing.DisplayName = u.DisplayName
		existing.Email = u.Email
		existing.AccessToken = u.AccessToken
		copied := *existing
		return &copied, nil
	}
	created := *u
	created.ID = m.nextID
	m.nextID++
	m.users[u.ProviderID] = &created
	copied := created
	return &copied, nil
}

func (m *memUserRepo) GetByID(_ context.Context, id int64) (*model.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memUserRepo) GetByProviderID(_ context.Context, providerID string) (*model.User, error) {
	return m.users[providerID], nil
}

func (m *memUserRepo) MarkPlaylistViewed(_ context.Context, userID int64, playlistExternalID string, viewedAt time.Time) error {
	if m.watermarks[userID] == nil {
		m.watermarks[userID] = make(map[string]time.Time)
	}
	if existing, ok := m.watermarks[userID][playlistExternalID]; !ok || viewedAt.After(existing) {
		m.watermarks[userID][playlistExternalID] = viewedAt
	}
	return nil
}

func (m *memUserRepo) LastViewed(_ context.Context, userID int64, playlistExternalID string) (*time.Time, error) {
	if t, ok := m.watermarks[userID][playlistExternalID]; ok {
		return &t, nil
	}
	return nil, nil
}

func (m *memUserRepo) LastViewedMap(_ context.Context, userID int64) (map[string]time.Time, error) {
	out := make(map[string]time.Time, len(m.watermarks[userID]))
	for k, v := range m.watermarks[userID] {
		out[k] = v
	}
	return out, nil
}

type memPlaylistRepo struct {
	playlists map[int64]*model.Playlist
	nextID    int64
}

func newMemPlaylistRepo() *memPlaylistRepo {
	return &memPlaylistRepo{playlists: make(map[int64]*model.Playlist), nextID: 1}
}

func (m *memPlaylistRepo) Create(_ context.Context, p *model.Playlist) (int64, error) {
	p.ID = m.nextID
	m.nextID++
	m.playlists[p.ID] = p
	return p.ID, nil
}

func (m *memPlaylistRepo) GetByID(_ context.Context, id int64) (*model.Playlist, error) {
	return m.playlists[id], nil
}

func (m *memPlaylistRepo) GetByExternalID(_ context.Context, externalID string) (*model.Playlist, error) {
	for _, p := range m.playlists {
		if p.ExternalID == externalID {
			return p, nil
		}
	}
	return nil, nil
}

func (m *memPlaylistRepo) GetOwned(_ context.Context, externalID string, ownerID int64) (*model.Playlist, error) {
	for _, p := range m.playlists {
		if p.ExternalID == externalID && p.OwnerID == ownerID {
			return p, nil
		}
	}
	return nil, nil
}

func (m *memPlaylistRepo) EnsureExists(_ context.Context, externalID, name string, ownerID int64) (*model.Playlist, error) {
	for _, p := range m.playlists {
		if p.ExternalID == externalID {
			return p, nil
		}
	}
	p := &model.Playlist{ID: m.nextID, ExternalID: externalID, Name: name, OwnerID: ownerID}
	m.nextID++
	m.playlists[p.ID] = p
	return p, nil
}

func (m *memPlaylistRepo) SyncShareState(_ context.Context, playlistID int64, token *string, settings *model.ShareSettings) error {
	p, ok := m.playlists[playlistID]
	if !ok {
		return nil
	}
	p.ShareToken = token
	p.ShareSettings = settings
	p.IsPublic = token != nil
	return nil
}

type memShareRepo struct {
	shares  map[int64]*model.Share
	entries map[int64][]model.AccessEntry
	nextID  int64
}

func newMemShareRepo() *memShareRepo {
	return &memShareRepo{
		shares:  make(map[int64]*model.Share),
		entries: make(map[int64][]model.AccessEntry),
		nextID:  1,
	}
}

func (m *memShareRepo) UpsertActive(_ context.Context, s *model.Share) (*model.Share, error) {
	for _, existing := range m.shares {
		if existing.PlaylistID == s.PlaylistID && existing.IsActive {
			existing.AllowComments = s.AllowComments
			existing.RequireAuth = s.RequireAuth
			existing.ExpiresAt = s.ExpiresAt
			copied := *existing
			return &copied, nil
		}
	}
	for _, existing := range m.shares {
		if existing.Token == s.Token {
			return nil, repository.ErrTokenCollision
		}
	}
	created := *s
	created.ID = m.nextID
	created.IsActive = true
	m.nextID++
	m.shares[created.ID] = &created
	copied := created
	return &copied, nil
}

func (m *memShareRepo) GetActiveByPlaylist(_ context.Context, playlistID int64) (*model.Share, error) {
	for _, s := range m.shares {
		if s.PlaylistID == playlistID && s.IsActive {
			copied := *s
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memShareRepo) GetByToken(_ context.Context, token string) (*model.Share, error) {
	for _, s := range m.shares {
		if s.Token == token {
			copied := *s
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memShareRepo) DeactivateAll(_ context.Context, playlistID int64) error {
	for _, s := range m.shares {
		if s.PlaylistID == playlistID {
			s.IsActive = false
		}
	}
	return nil
}

func (m *memShareRepo) LogAccess(_ context.Context, shareID int64, entry *model.AccessEntry) error {
	s, ok := m.shares[shareID]
	if !ok {
		return nil
	}
	s.AccessCount++
	t := entry.AccessedAt
	s.LastAccessed = &t
	m.entries[shareID] = append(m.entries[shareID], *entry)
	if len(m.entries[shareID]) > model.AccessLogLimit {
		m.entries[shareID] = m.entries[shareID][len(m.entries[shareID])-model.AccessLogLimit:]
	}
	return nil
}

func (m *memShareRepo) AccessLog(_ context.Context, shareID int64) ([]model.AccessEntry, error) {
	return m.entries[shareID], nil
}

type memCommentRepo struct {
	comments map[int64]*model.Comment
	users    *memUserRepo
	nextID   int64
}

func newMemCommentRepo(users *memUserRepo) *memCommentRepo {
	return &memCommentRepo{comments: make(map[int64]*model.Comment), users: users, nextID: 1}
}

func (m *memCommentRepo) Create(_ context.Context, c *model.Comment) error {
	c.ID = m.nextID
	m.nextID++
	copied := *c
	m.comments[c.ID] = &copied
	return nil
}

func (m *memCommentRepo) GetByID(ctx context.Context, id int64) (*model.Comment, error) {
	c, ok := m.comments[id]
	if !ok {
		return nil, nil
	}
	copied := *c
	if copied.UserID != nil {
		copied.User, _ = m.users.GetByID(ctx, *copied.UserID)
	}
	return &copied, nil
}

func (m *memCommentRepo) list(ctx context.Context, keep func(*model.Comment) bool) []*model.Comment {
	var out []*model.Comment
	for id := range m.comments {
		if keep(m.comments[id]) {
			c, _ := m.GetByID(ctx, id)
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (m *memCommentRepo) ListPlaylistLevel(ctx context.Context, playlistID int64) ([]*model.Comment, error) {
	return m.list(ctx, func(c *model.Comment) bool {
		return c.PlaylistID == playlistID && c.TrackID == nil
	}), nil
}

func (m *memCommentRepo) ListByTrack(ctx context.Context, playlistID int64, trackID string) ([]*model.Comment, error) {
	return m.list(ctx, func(c *model.Comment) bool {
		return c.PlaylistID == playlistID && c.TrackID != nil && *c.TrackID == trackID
	}), nil
}

func (m *memCommentRepo) ListTrackLevel(ctx context.Context, playlistID int64) ([]*model.Comment, error) {
	return m.list(ctx, func(c *model.Comment) bool {
		return c.PlaylistID == playlistID && c.TrackID != nil
	}), nil
}

func (m *memCommentRepo) ListAll(ctx context.Context, playlistID int64) ([]*model.Comment, error) {
	return m.list(ctx, func(c *model.Comment) bool {
		return c.PlaylistID == playlistID
	}), nil
}

func (m *memCommentRepo) Update(_ context.Context, c *model.Comment) error {
	copied := *c
	copied.User = nil
	m.comments[c.ID] = &copied
	return nil
}

func (m *memCommentRepo) Delete(_ context.Context, id int64) error {
	delete(m.comments, id)
	return nil
}

func (m *memCommentRepo) NewCommentCount(_ context.Context, playlistID int64, since *time.Time) (int64, error) {
	var n int64
	for _, c := range m.comments {
		if c.PlaylistID != playlistID {
			continue
		}
		if since == nil || c.CreatedAt.After(*since) {
			n++
		}
	}
	return n, nil
}

// ---- stub catalog ----

// stubCatalog serves the minimal catalog API surface: /me keyed by bearer
// token, plus playlist metadata and tracks.
type stubCatalog struct {
	profiles  map[string]catalog.Profile
	playlists map[string]catalog.Playlist
	tracks    map[string][]catalog.Track
}

func newStubCatalog() *stubCatalog {
	return &stubCatalog{
		profiles:  make(map[string]catalog.Profile),
		playlists: make(map[string]catalog.Playlist),
		tracks:    make(map[string][]catalog.Track),
	}
}

func (s *stubCatalog) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		profile, ok := s.profiles[bearerOf(r)]
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(profile)
	})
	mux.HandleFunc("/me/playlists", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.profiles[bearerOf(r)]; !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		items := make([]catalog.Playlist, 0, len(s.playlists))
		for _, p := range s.playlists {
			items = append(items, p)
		}
		sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
		json.NewEncoder(w).Encode(map[string]any{"items": items})
	})
	mux.HandleFunc("/playlists/", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.profiles[bearerOf(r)]; !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		rest := strings.TrimPrefix(r.URL.Path, "/playlists/")
		if id, found := strings.CutSuffix(rest, "/tracks"); found {
			items := make([]map[string]catalog.Track, 0)
			for _, track := range s.tracks[id] {
				items = append(items, map[string]catalog.Track{"track": track})
			}
			json.NewEncoder(w).Encode(map[string]any{"items": items, "next": nil})
			return
		}
		p, ok := s.playlists[rest]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(p)
	})
	return mux
}

func bearerOf(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

// ---- test environment ----

type testEnv struct {
	router    http.Handler
	catalog   *stubCatalog
	userRepo  *memUserRepo
	plRepo    *memPlaylistRepo
	shareRepo *memShareRepo
	comments  *memCommentRepo
	shares    *share.Service
	playlists *playlist.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	stub := newStubCatalog()
	upstream := httptest.NewServer(stub.handler())
	t.Cleanup(upstream.Close)

	userRepo := newMemUserRepo()
	plRepo := newMemPlaylistRepo()
	shareRepo := newMemShareRepo()
	commentRepo := newMemCommentRepo(userRepo)

	catalogClient := catalog.NewClient(upstream.URL)
	identityResolver := identity.NewResolver(catalogClient, userRepo)
	shareService := share.NewService(shareRepo, plRepo, nil)
	commentService := comment.NewService(commentRepo, plRepo)
	playlistService := playlist.NewService(plRepo, commentRepo, userRepo)

	cfg := &config.Config{ShareURLBase: "http://localhost:8080/shared"}
	apiHandler := NewAPIHandler(cfg, catalogClient, identityResolver, shareService, commentService, playlistService, userRepo, plRepo)

	return &testEnv{
		router:    newRouter(apiHandler),
		catalog:   stub,
		userRepo:  userRepo,
		plRepo:    plRepo,
		shareRepo: shareRepo,
		comments:  commentRepo,
		shares:    shareService,
		playlists: playlistService,
	}
}

// addUser registers a catalog profile reachable with the given bearer token.
func (e *testEnv) addUser(token, providerID, displayName string) {
	e.catalog.profiles[token] = catalog.Profile{ID: providerID, DisplayName: displayName}
}

func (e *testEnv) addCatalogPlaylist(id, name string, tracks ...catalog.Track) {
	p := catalog.Playlist{ID: id, Name: name}
	p.Tracks.Total = len(tracks)
	e.catalog.playlists[id] = p
	e.catalog.tracks[id] = tracks
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	decodeBody(t, rec, &body)
	return body.Error
}

func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, want, rec.Body.String())
	}
}
