package server

import (
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

// APIHandler bundles the services and repositories behind the HTTP surface.
type APIHandler struct {
	cfg       *config.Config
	catalog   *catalog.Client
	identity  *identity.Resolver
	shares    *share.Service
	comments  *comment.Service
	playlists *playlist.Service
	userRepo  repository.UserRepository
	plRepo    repository.PlaylistRepository
}

// NewAPIHandler creates an APIHandler.
func NewAPIHandler(
	cfg *config.Config,
	catalogClient *catalog.Client,
	identityResolver *identity.Resolver,
	shareService *share.Service,
	commentService *comment.Service,
	playlistService *playlist.Service,
	userRepo repository.UserRepository,
	playlistRepo repository.PlaylistRepository,
) *APIHandler {
	return &APIHandler{
		cfg:       cfg,
		catalog:   catalogClient,
		identity:  identityResolver,
		shares:    shareService,
		comments:  commentService,
		playlists: playlistService,
		userRepo:  userRepo,
		plRepo:    playlistRepo,
	}
}

// commentView is the wire shape of a comment. The author is either the
// registered user's display name or the stored anonymous name.
type commentView struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	TrackID   *string   `json:"trackId,omitempty"`
	Rating    *int      `json:"rating,omitempty"`
	Author    string    `json:"author"`
	Anonymous bool      `json:"isAnonymous"`
	Edited    bool      `json:"edited"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func newCommentView(c *model.Comment) commentView {
	return commentView{
		ID:        c.ID,
		Content:   c.Content,
		TrackID:   c.TrackID,
		Rating:    c.Rating,
		Author:    c.AuthorDisplayName(),
		Anonymous: c.IsAnonymous,
		Edited:    c.Edited,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func newCommentViews(comments []*model.Comment) []commentView {
	views := make([]commentView, 0, len(comments))
	for _, c := range comments {
		views = append(views, newCommentView(c))
	}
	return views
}

// shareView is the wire shape of a share grant.
type shareView struct {
	ShareToken  string `json:"shareToken"`
	ShareURL    string `json:"shareUrl"`
	Permissions struct {
		AllowComments bool `json:"allowComments"`
		RequireAuth   bool `json:"requireAuth"`
	} `json:"permissions"`
	ExpiresAt    *time.Time `json:"expiresAt"`
	AccessCount  int64      `json:"accessCount"`
	LastAccessed *time.Time `json:"lastAccessed,omitempty"`
}

func (h *APIHandler) newShareView(s *model.Share) shareView {
	view := shareView{
		ShareToken:   s.Token,
		ShareURL:     h.cfg.ShareURLBase + "/" + s.Token,
		ExpiresAt:    s.ExpiresAt,
		AccessCount:  s.AccessCount,
		LastAccessed: s.LastAccessed,
	}
	view.Permissions.AllowComments = s.AllowComments
	view.Permissions.RequireAuth = s.RequireAuth
	return view
}
