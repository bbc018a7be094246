package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"TrackTalk/apperr"
	"TrackTalk/core/catalog"
	"TrackTalk/logger"
	"TrackTalk/model"

	"github.com/gorilla/mux"
)

// playlistListItem decorates the catalog's playlist metadata with the local
// notification badge.
type playlistListItem struct {
	catalog.Playlist
	HasNewComments  bool `json:"hasNewComments"`
	NewCommentCount int  `json:"newCommentCount"`
}

// GetPlaylistsHandler handles GET /api/playlists: the caller's catalog
// playlists, each decorated with its new-comment badge.
func (h *APIHandler) GetPlaylistsHandler(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	bearer := BearerFromContext(r.Context())

	playlists, err := h.catalog.MyPlaylists(r.Context(), bearer)
	if err != nil {
		writeError(w, mapCatalogError(err))
		return
	}

	externalIDs := make([]string, 0, len(playlists))
	for _, p := range playlists {
		externalIDs = append(externalIDs, p.ID)
	}

	badges, err := h.playlists.Badges(r.Context(), user, externalIDs)
	if err != nil {
		writeError(w, err)
		return
	}

	items := make([]playlistListItem, 0, len(playlists))
	for _, p := range playlists {
		badge := badges[p.ID]
		items = append(items, playlistListItem{
			Playlist:        p,
			HasNewComments:  badge.HasNewComments,
			NewCommentCount: badge.NewCommentCount,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"playlists": items})
}

// CreatePlaylistHandler handles POST /api/playlists: registers the local
// shadow record for a catalog playlist.
func (h *APIHandler) CreatePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	var req struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	playlist, err := h.playlists.Ensure(r.Context(), user, req.ID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}

	logger.Info("playlist registered",
		logger.String("playlist", playlist.ExternalID),
		logger.Int64("user", user.ID))
	writeJSON(w, http.StatusCreated, playlist)
}

// playlistDetailView is the owner-facing playlist page payload.
type playlistDetailView struct {
	Playlist *catalog.Playlist    `json:"playlist"`
	Tracks   []catalog.Track      `json:"tracks"`
	Comments []commentView        `json:"comments"`
	Share    *model.ShareSettings `json:"shareSettings,omitempty"`
}

// GetPlaylistDetailHandler handles GET /api/playlists/{playlistId}: catalog
// metadata, the full track list and every local comment. The shadow record is
// created on first visit so comments can attach right away.
func (h *APIHandler) GetPlaylistDetailHandler(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	bearer := BearerFromContext(r.Context())
	playlistID := mux.Vars(r)["playlistId"]

	meta, err := h.catalog.Playlist(r.Context(), bearer, playlistID)
	if err != nil {
		writeError(w, mapCatalogError(err))
		return
	}

	tracks, err := h.catalog.PlaylistTracks(r.Context(), bearer, playlistID)
	if err != nil {
		writeError(w, mapCatalogError(err))
		return
	}

	shadow, err := h.playlists.Ensure(r.Context(), user, playlistID, meta.Name)
	if err != nil {
		writeError(w, err)
		return
	}

	comments, err := h.comments.ListAllByPlaylistID(r.Context(), shadow.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, playlistDetailView{
		Playlist: meta,
		Tracks:   tracks,
		Comments: newCommentViews(comments),
		Share:    shadow.ShareSettings,
	})
}

// MarkPlaylistViewedHandler handles POST /api/playlists/{playlistId}/viewed:
// advances the caller's watermark so the badge resets. Idempotent.
func (h *APIHandler) MarkPlaylistViewedHandler(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	playlistID := mux.Vars(r)["playlistId"]

	if err := h.playlists.MarkViewed(r.Context(), user, playlistID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Playlist marked as viewed"})
}

// mapCatalogError translates catalog sentinels for the response writer.
func mapCatalogError(err error) error {
	switch {
	case errors.Is(err, catalog.ErrUnauthorized):
		return apperr.Wrap(apperr.Unauthenticated, "invalid or expired token", err)
	case errors.Is(err, catalog.ErrNotFound):
		return apperr.Wrap(apperr.NotFound, "playlist not found", err)
	default:
		return apperr.Wrap(apperr.Upstream, "music catalog unavailable", err)
	}
}
