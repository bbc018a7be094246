package server

import (
	"encoding/json"
	"net/http"

	"TrackTalk/core/share"
	"TrackTalk/logger"

	"github.com/gorilla/mux"
)

// CreateShareHandler handles POST /api/playlists/{playlistId}/share.
// Create-or-update semantics: a second call for the same playlist updates the
// active share in place and keeps its token.
func (h *APIHandler) CreateShareHandler(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	playlistID := mux.Vars(r)["playlistId"]

	req := struct {
		AllowComments *bool `json:"allowComments"`
		RequireAuth   bool  `json:"requireAuth"`
		ExpiresIn     int   `json:"expiresIn"`
	}{}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	// Comments default to allowed, matching the share settings UI.
	allowComments := true
	if req.AllowComments != nil {
		allowComments = *req.AllowComments
	}

	result, err := h.shares.Upsert(r.Context(), user, playlistID, share.UpsertInput{
		AllowComments: allowComments,
		RequireAuth:   req.RequireAuth,
		ExpiresInDays: req.ExpiresIn,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	logger.Info("share upserted",
		logger.String("playlist", playlistID),
		logger.Int64("user", user.ID))
	writeJSON(w, http.StatusOK, h.newShareView(result))
}

// GetShareHandler handles GET /api/playlists/{playlistId}/share.
func (h *APIHandler) GetShareHandler(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	playlistID := mux.Vars(r)["playlistId"]

	result, err := h.shares.Get(r.Context(), user, playlistID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.newShareView(result))
}

// UpdateShareHandler handles PUT /api/playlists/{playlistId}/share. Omitted
// fields are left unchanged; an explicit null expiresIn clears the expiry.
func (h *APIHandler) UpdateShareHandler(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	playlistID := mux.Vars(r)["playlistId"]

	var req struct {
		AllowComments *bool           `json:"allowComments"`
		RequireAuth   *bool           `json:"requireAuth"`
		ExpiresIn     json.RawMessage `json:"expiresIn"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	in := share.UpdateInput{
		AllowComments: req.AllowComments,
		RequireAuth:   req.RequireAuth,
	}
	if len(req.ExpiresIn) > 0 {
		if string(req.ExpiresIn) == "null" {
			in.ClearExpiry = true
		} else {
			var days int
			if err := json.Unmarshal(req.ExpiresIn, &days); err != nil {
				http.Error(w, "Invalid expiresIn value", http.StatusBadRequest)
				return
			}
			in.ExpiresInDays = &days
		}
	}

	result, err := h.shares.UpdatePermissions(r.Context(), user, playlistID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.newShareView(result))
}

// RevokeShareHandler handles DELETE /api/playlists/{playlistId}/share.
// Every share of the playlist is deactivated, not just the current one.
func (h *APIHandler) RevokeShareHandler(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	playlistID := mux.Vars(r)["playlistId"]

	if err := h.shares.Revoke(r.Context(), user, playlistID); err != nil {
		writeError(w, err)
		return
	}

	logger.Info("share revoked",
		logger.String("playlist", playlistID),
		logger.Int64("user", user.ID))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Share access revoked successfully"})
}
