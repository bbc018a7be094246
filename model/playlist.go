package model

import "time"

// Collaborator permission levels. Declared on the schema for parity with the
// sharing UI; nothing in the core enforces them yet.
const (
	PermissionView    = "view"
	PermissionComment = "comment"
	PermissionAdmin   = "admin"
)

// Playlist is the local shadow record for an externally hosted playlist.
// The service never owns playlist content, only the comments and sharing
// metadata anchored to it.
type Playlist struct {
	ID         int64     `json:"id"`
	ExternalID string    `json:"externalId"`
	Name       string    `json:"name"`
	OwnerID    int64     `json:"ownerId"`
	IsPublic   bool      `json:"isPublic"`
	// ShareToken and ShareSettings are a denormalized snapshot of the active
	// share, re-synced by the share registry on every share mutation. The
	// Share record stays the source of truth for validity.
	ShareToken    *string        `json:"shareToken,omitempty"`
	ShareSettings *ShareSettings `json:"shareSettings,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// ShareSettings is the permission snapshot mirrored onto the playlist record.
type ShareSettings struct {
	AllowComments bool       `json:"allowComments"`
	RequireAuth   bool       `json:"requireAuth"`
	ExpiresAt     *time.Time `json:"expiresAt"`
}

// PlaylistBadge carries the per-playlist new-comment notification state
// computed against the viewer's last-viewed watermark.
type PlaylistBadge struct {
	HasNewComments  bool `json:"hasNewComments"`
	NewCommentCount int  `json:"newCommentCount"`
}
