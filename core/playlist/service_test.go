package playlist

import (
	"context"
	"testing"
	"time"

	"TrackTalk/apperr"
	"TrackTalk/model"
)

type fakePlaylistRepo struct {
	playlists map[int64]*model.Playlist
	nextID    int64
}

func newFakePlaylistRepo(playlists ...*model.Playlist) *fakePlaylistRepo {
	f := &fakePlaylistRepo{playlists: make(map[int64]*model.Playlist), nextID: 100}
	for _, p := range playlists {
		f.playlists[p.ID] = p
	}
	return f
}

func (f *fakePlaylistRepo) Create(_ context.Context, p *model.Playlist) (int64, error) {
	f.playlists[p.ID] = p
	return p.ID, nil
}

func (f *fakePlaylistRepo) GetByID(_ context.Context, id int64) (*model.Playlist, error) {
	return f.playlists[id], nil
}

func (f *fakePlaylistRepo) GetByExternalID(_ context.Context, externalID string) (*model.Playlist, error) {
	for _, p := range f.playlists {
		if p.ExternalID == externalID {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakePlaylistRepo) GetOwned(_ context.Context, externalID string, ownerID int64) (*model.Playlist, error) {
	for _, p := range f.playlists {
		if p.ExternalID == externalID && p.OwnerID == ownerID {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakePlaylistRepo) EnsureExists(_ context.Context, externalID, name string, ownerID int64) (*model.Playlist, error) {
	for _, p := range f.playlists {
		if p.ExternalID == externalID {
			return p, nil
		}
	}
	p := &model.Playlist{ID: f.nextID, ExternalID: externalID, Name: name, OwnerID: ownerID}
	f.nextID++
	f.playlists[p.ID] = p
	return p, nil
}

func (f *fakePlaylistRepo) SyncShareState(_ context.Context, playlistID int64, token *string, settings *model.ShareSettings) error {
	return nil
}

// fakeCommentCounter only needs NewCommentCount; the rest of the repository
// interface is inert for badge computation.
type fakeCommentCounter struct {
	created map[int64][]time.Time
}

func (f *fakeCommentCounter) Create(_ context.Context, c *model.Comment) error { return nil }
func (f *fakeCommentCounter) GetByID(_ context.Context, id int64) (*model.Comment, error) {
	return nil, nil
}
func (f *fakeCommentCounter) ListPlaylistLevel(_ context.Context, playlistID int64) ([]*model.Comment, error) {
	return nil, nil
}
func (f *fakeCommentCounter) ListByTrack(_ context.Context, playlistID int64, trackID string) ([]*model.Comment, error) {
	return nil, nil
}
func (f *fakeCommentCounter) ListTrackLevel(_ context.Context, playlistID int64) ([]*model.Comment, error) {
	return nil, nil
}
func (f *fakeCommentCounter) ListAll(_ context.Context, playlistID int64) ([]*model.Comment, error) {
	return nil, nil
}
func (f *fakeCommentCounter) Update(_ context.Context, c *model.Comment) error { return nil }
func (f *fakeCommentCounter) Delete(_ context.Context, id int64) error         { return nil }

func (f *fakeCommentCounter) NewCommentCount(_ context.Context, playlistID int64, since *time.Time) (int64, error) {
	var n int64
	for _, createdAt := range f.created[playlistID] {
		if since == nil || createdAt.After(*since) {
			n++
		}
	}
	return n, nil
}

type fakeUserRepo struct {
	watermarks map[int64]map[string]time.Time
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{watermarks: make(map[int64]map[string]time.Time)}
}

func (f *fakeUserRepo) UpsertByProviderID(_ context.Context, u *model.User) (*model.User, error) {
	return u, nil
}
func (f *fakeUserRepo) GetByID(_ context.Context, id int64) (*model.User, error) { return nil, nil }
func (f *fakeUserRepo) GetByProviderID(_ context.Context, providerID string) (*model.User, error) {
	return nil, nil
}

func (f *fakeUserRepo) MarkPlaylistViewed(_ context.Context, userID int64, playlistExternalID string, viewedAt time.Time) error {
	if f.watermarks[userID] == nil {
		f.watermarks[userID] = make(map[string]time.Time)
	}
	if existing, ok := f.watermarks[userID][playlistExternalID]; !ok || viewedAt.After(existing) {
		f.watermarks[userID][playlistExternalID] = viewedAt
	}
	return nil
}

func (f *fakeUserRepo) LastViewed(_ context.Context, userID int64, playlistExternalID string) (*time.Time, error) {
	if t, ok := f.watermarks[userID][playlistExternalID]; ok {
		return &t, nil
	}
	return nil, nil
}

func (f *fakeUserRepo) LastViewedMap(_ context.Context, userID int64) (map[string]time.Time, error) {
	out := make(map[string]time.Time, len(f.watermarks[userID]))
	for k, v := range f.watermarks[userID] {
		out[k] = v
	}
	return out, nil
}

func TestEnsureValidation(t *testing.T) {
	svc := NewService(newFakePlaylistRepo(), &fakeCommentCounter{}, newFakeUserRepo())
	user := &model.User{ID: 10}

	if _, err := svc.Ensure(context.Background(), user, "   ", "x"); !apperr.Is(err, apperr.Validation) {
		t.Errorf("Ensure(blank) error = %v, want Validation", err)
	}

	p, err := svc.Ensure(context.Background(), user, "spotify123", "Road Trip")
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if p.ExternalID != "spotify123" || p.OwnerID != 10 {
		t.Errorf("playlist = (%q, %d), want (spotify123, 10)", p.ExternalID, p.OwnerID)
	}
}

func TestMarkViewedNeverRegresses(t *testing.T) {
	users := newFakeUserRepo()
	svc := NewService(newFakePlaylistRepo(), &fakeCommentCounter{}, users)
	user := &model.User{ID: 10}

	later := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	earlier := later.Add(-time.Hour)

	svc.now = func() time.Time { return later }
	if err := svc.MarkViewed(context.Background(), user, "spotify123"); err != nil {
		t.Fatalf("MarkViewed() error = %v", err)
	}

	svc.now = func() time.Time { return earlier }
	if err := svc.MarkViewed(context.Background(), user, "spotify123"); err != nil {
		t.Fatalf("MarkViewed() error = %v", err)
	}

	got, _ := users.LastViewed(context.Background(), 10, "spotify123")
	if got == nil || !got.Equal(later) {
		t.Errorf("watermark = %v, want %v (no regression)", got, later)
	}
}

func TestBadges(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	playlists := newFakePlaylistRepo(
		&model.Playlist{ID: 1, ExternalID: "viewed-playlist", OwnerID: 10},
		&model.Playlist{ID: 2, ExternalID: "never-viewed", OwnerID: 10},
	)
	comments := &fakeCommentCounter{created: map[int64][]time.Time{
		1: {base.Add(-time.Hour), base.Add(time.Hour), base.Add(2 * time.Hour)},
		2: {base.Add(-time.Hour)},
	}}
	users := newFakeUserRepo()
	users.MarkPlaylistViewed(context.Background(), 10, "viewed-playlist", base)

	svc := NewService(playlists, comments, users)
	viewer := &model.User{ID: 10}

	badges, err := svc.Badges(context.Background(), viewer, []string{"viewed-playlist", "never-viewed", "no-shadow"})
	if err != nil {
		t.Fatalf("Badges() error = %v", err)
	}

	cases := []struct {
		playlist  string
		wantNew   bool
		wantCount int
	}{
		// Only the two comments after the watermark count.
		{"viewed-playlist", true, 2},
		// Never viewed means every comment is new.
		{"never-viewed", true, 1},
		// No shadow record, nothing to count.
		{"no-shadow", false, 0},
	}
	for _, tc := range cases {
		badge := badges[tc.playlist]
		if badge.HasNewComments != tc.wantNew || badge.NewCommentCount != tc.wantCount {
			t.Errorf("%s badge = (%v, %d), want (%v, %d)",
				tc.playlist, badge.HasNewComments, badge.NewCommentCount, tc.wantNew, tc.wantCount)
		}
	}
}

func TestBadgesResetAfterViewing(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	playlists := newFakePlaylistRepo(&model.Playlist{ID: 1, ExternalID: "spotify123", OwnerID: 10})
	comments := &fakeCommentCounter{created: map[int64][]time.Time{
		1: {base.Add(-time.Hour), base.Add(-time.Minute)},
	}}
	users := newFakeUserRepo()

	svc := NewService(playlists, comments, users)
	svc.now = func() time.Time { return base }
	viewer := &model.User{ID: 10}

	badges, err := svc.Badges(context.Background(), viewer, []string{"spotify123"})
	if err != nil {
		t.Fatalf("Badges() error = %v", err)
	}
	if got := badges["spotify123"].NewCommentCount; got != 2 {
		t.Fatalf("before viewing: count = %d, want 2", got)
	}

	if err := svc.MarkViewed(context.Background(), viewer, "spotify123"); err != nil {
		t.Fatalf("MarkViewed() error = %v", err)
	}

	badges, err = svc.Badges(context.Background(), viewer, []string{"spotify123"})
	if err != nil {
		t.Fatalf("Badges() error = %v", err)
	}
	if badge := badges["spotify123"]; badge.HasNewComments || badge.NewCommentCount != 0 {
		t.Errorf("after viewing: badge = (%v, %d), want (false, 0)", badge.HasNewComments, badge.NewCommentCount)
	}
}
