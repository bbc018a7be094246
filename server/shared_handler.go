package server

import (
	"encoding/json"
	"net/http"
	"time"

	"TrackTalk/apperr"
	"TrackTalk/core/catalog"
	"TrackTalk/core/comment"
	"TrackTalk/core/share"
	"TrackTalk/logger"
	"TrackTalk/model"

	"github.com/gorilla/mux"
)

// sharedPlaylistView is the public shared-playlist page payload. Catalog
// metadata is served best-effort; the share info and comments always come
// from local storage.
type sharedPlaylistView struct {
	Playlist  sharedPlaylistMeta `json:"playlist"`
	Tracks    []catalog.Track    `json:"tracks"`
	Comments  []commentView      `json:"comments"`
	ShareInfo sharedInfoView     `json:"shareInfo"`
}

type sharedPlaylistMeta struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	TrackCount  int    `json:"trackCount"`
}

type sharedInfoView struct {
	AllowComments bool       `json:"allowComments"`
	RequireAuth   bool       `json:"requireAuth"`
	ExpiresAt     *time.Time `json:"expiresAt"`
}

// gate runs the access-gate steps shared by every public handler: token
// lookup, validity, then the authorize callback. It also resolves the
// playlist the grant points at.
func (h *APIHandler) gate(r *http.Request, authorize func(*model.Share, *model.User) error) (*model.Share, *model.Playlist, error) {
	token := mux.Vars(r)["shareToken"]

	grant, err := h.shares.ResolveToken(r.Context(), token)
	if err != nil {
		return nil, nil, err
	}
	if err := authorize(grant, UserFromContext(r.Context())); err != nil {
		return nil, nil, err
	}

	playlist, err := h.plRepo.GetByID(r.Context(), grant.PlaylistID)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.Internal, "failed to load playlist", err)
	}
	if playlist == nil {
		// The grant points at a deleted playlist; treat as a dead link.
		return nil, nil, apperr.New(apperr.NotFound, share.MsgNotFoundOrExpired)
	}
	return grant, playlist, nil
}

// SharedPlaylistHandler handles GET /api/shared/{shareToken}: the shared
// playlist page for visitors. Each successful view bumps the access ledger.
func (h *APIHandler) SharedPlaylistHandler(w http.ResponseWriter, r *http.Request) {
	grant, playlist, err := h.gate(r, h.shares.AuthorizeView)
	if err != nil {
		writeError(w, err)
		return
	}
	user := UserFromContext(r.Context())

	// The ledger is bookkeeping; a failed write never blocks the view.
	if err := h.shares.RecordAccess(r.Context(), grant, clientIP(r), r.UserAgent(), user); err != nil {
		logger.Warn("failed to record share access",
			logger.Int64("share", grant.ID),
			logger.ErrorField(err))
	}

	view := sharedPlaylistView{
		Playlist: sharedPlaylistMeta{
			ID:   playlist.ExternalID,
			Name: playlist.Name,
		},
		Tracks: []catalog.Track{},
		ShareInfo: sharedInfoView{
			AllowComments: grant.AllowComments,
			RequireAuth:   grant.RequireAuth,
			ExpiresAt:     grant.ExpiresAt,
		},
	}

	// Catalog metadata is fetched with the owner's stored credential so
	// anonymous visitors still see the track list. Upstream failures degrade
	// to the local shadow name instead of killing the page.
	if owner, err := h.userRepo.GetByID(r.Context(), playlist.OwnerID); err == nil && owner != nil && owner.AccessToken != "" {
		if meta, err := h.catalog.Playlist(r.Context(), owner.AccessToken, playlist.ExternalID); err == nil {
			view.Playlist.Name = meta.Name
			view.Playlist.Description = meta.Description
			view.Playlist.TrackCount = meta.Tracks.Total
		} else {
			logger.Warn("catalog metadata unavailable for shared view",
				logger.String("playlist", playlist.ExternalID),
				logger.ErrorField(err))
		}
		if tracks, err := h.catalog.PlaylistTracks(r.Context(), owner.AccessToken, playlist.ExternalID); err == nil {
			view.Tracks = tracks
		}
	}

	comments, err := h.comments.ListAllByPlaylistID(r.Context(), playlist.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	view.Comments = newCommentViews(comments)

	writeJSON(w, http.StatusOK, view)
}

// SharedCommentsHandler handles GET /api/shared/{shareToken}/comments.
// Listing is a read but not a page view, so the ledger is not bumped.
func (h *APIHandler) SharedCommentsHandler(w http.ResponseWriter, r *http.Request) {
	_, playlist, err := h.gate(r, h.shares.AuthorizeView)
	if err != nil {
		writeError(w, err)
		return
	}

	comments, err := h.comments.ListAllByPlaylistID(r.Context(), playlist.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": newCommentViews(comments)})
}

// AddSharedCommentHandler handles POST /api/shared/{shareToken}/comments.
// Signed-in visitors comment under their identity; everyone else under the
// supplied display name, defaulting to Anonymous.
func (h *APIHandler) AddSharedCommentHandler(w http.ResponseWriter, r *http.Request) {
	grant, playlist, err := h.gate(r, h.shares.AuthorizeComment)
	if err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		Content    string  `json:"content"`
		AuthorName string  `json:"authorName"`
		TrackID    *string `json:"trackId"`
		Rating     *int    `json:"rating"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	author := model.AnonymousAuthor(req.AuthorName)
	if user := UserFromContext(r.Context()); user != nil {
		author = model.IdentifiedAuthor(user.ID)
	}

	saved, err := h.comments.AddToShared(r.Context(), playlist.ID, comment.AddInput{
		TrackID: req.TrackID,
		Author:  author,
		Content: req.Content,
		Rating:  req.Rating,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	logger.Info("shared comment added",
		logger.Int64("share", grant.ID),
		logger.Int64("playlist", playlist.ID),
		logger.Bool("anonymous", saved.IsAnonymous))
	writeJSON(w, http.StatusCreated, newCommentView(saved))
}
