package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"TrackTalk/core/comment"
	"TrackTalk/logger"
	"TrackTalk/model"

	"github.com/gorilla/mux"
)

// GetPlaylistCommentsHandler handles GET /api/playlists/{playlistId}/comments:
// the playlist-level comments, newest first.
func (h *APIHandler) GetPlaylistCommentsHandler(w http.ResponseWriter, r *http.Request) {
	playlistID := mux.Vars(r)["playlistId"]

	comments, err := h.comments.ListPlaylistLevel(r.Context(), playlistID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": newCommentViews(comments)})
}

// AddPlaylistCommentHandler handles POST /api/playlists/{playlistId}/comments.
func (h *APIHandler) AddPlaylistCommentHandler(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	playlistID := mux.Vars(r)["playlistId"]

	var req struct {
		Content string `json:"content"`
		Rating  *int   `json:"rating"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	saved, err := h.comments.AddForOwner(r.Context(), user, playlistID, comment.AddInput{
		Author:  model.IdentifiedAuthor(user.ID),
		Content: req.Content,
		Rating:  req.Rating,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	logger.Info("comment added",
		logger.String("playlist", playlistID),
		logger.Int64("user", user.ID))
	writeJSON(w, http.StatusCreated, newCommentView(saved))
}

// GetTrackCommentsHandler handles
// GET /api/playlists/{playlistId}/tracks/{trackId}/comments.
func (h *APIHandler) GetTrackCommentsHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	comments, err := h.comments.ListByTrack(r.Context(), vars["playlistId"], vars["trackId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": newCommentViews(comments)})
}

// AddTrackCommentHandler handles
// POST /api/playlists/{playlistId}/tracks/{trackId}/comments.
func (h *APIHandler) AddTrackCommentHandler(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	vars := mux.Vars(r)
	trackID := vars["trackId"]

	var req struct {
		Content string `json:"content"`
		Rating  *int   `json:"rating"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	saved, err := h.comments.AddForOwner(r.Context(), user, vars["playlistId"], comment.AddInput{
		TrackID: &trackID,
		Author:  model.IdentifiedAuthor(user.ID),
		Content: req.Content,
		Rating:  req.Rating,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newCommentView(saved))
}

// GetGroupedTrackCommentsHandler handles
// GET /api/playlists/{playlistId}/comments/tracks: every track comment of the
// playlist keyed by track id, for rendering per-song counts in one call.
func (h *APIHandler) GetGroupedTrackCommentsHandler(w http.ResponseWriter, r *http.Request) {
	playlistID := mux.Vars(r)["playlistId"]

	grouped, err := h.comments.GroupedByTrack(r.Context(), playlistID)
	if err != nil {
		writeError(w, err)
		return
	}

	views := make(map[string][]commentView, len(grouped))
	for trackID, comments := range grouped {
		views[trackID] = newCommentViews(comments)
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": views})
}

func commentIDFromRequest(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["commentId"], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// UpdateCommentHandler handles PUT /api/comments/{commentId}; author-only.
func (h *APIHandler) UpdateCommentHandler(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	commentID, ok := commentIDFromRequest(r)
	if !ok {
		http.Error(w, "Invalid comment ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	updated, err := h.comments.Edit(r.Context(), user, commentID, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCommentView(updated))
}

// DeleteCommentHandler handles DELETE /api/comments/{commentId}; author-only.
func (h *APIHandler) DeleteCommentHandler(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	commentID, ok := commentIDFromRequest(r)
	if !ok {
		http.Error(w, "Invalid comment ID", http.StatusBadRequest)
		return
	}

	if err := h.comments.Delete(r.Context(), user, commentID); err != nil {
		writeError(w, err)
		return
	}

	logger.Info("comment deleted",
		logger.Int64("comment", commentID),
		logger.Int64("user", user.ID))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Comment deleted successfully"})
}
