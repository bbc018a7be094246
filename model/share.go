package model

import "time"

// Share is a revocable, tokenized public-access grant for one playlist.
// At most one active share exists per playlist; the shares table enforces
// this with a unique index over IF(is_active, playlist_id, NULL).
type Share struct {
	ID            int64      `json:"id"`
	PlaylistID    int64      `json:"playlistId"`
	Token         string     `json:"shareToken"`
	CreatedBy     int64      `json:"createdBy"`
	AllowComments bool       `json:"allowComments"`
	RequireAuth   bool       `json:"requireAuth"`
	ExpiresAt     *time.Time `json:"expiresAt"`
	IsActive      bool       `json:"isActive"`
	AccessCount   int64      `json:"accessCount"`
	LastAccessed  *time.Time `json:"lastAccessed"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// IsValid reports whether the share grants access at the given instant.
// A share exactly at its expiry instant is already expired.
func (s *Share) IsValid(now time.Time) bool {
	if !s.IsActive {
		return false
	}
	if s.ExpiresAt != nil && !s.ExpiresAt.After(now) {
		return false
	}
	return true
}

// Settings returns the snapshot mirrored onto the playlist record.
func (s *Share) Settings() *ShareSettings {
	return &ShareSettings{
		AllowComments: s.AllowComments,
		RequireAuth:   s.RequireAuth,
		ExpiresAt:     s.ExpiresAt,
	}
}

// AccessEntry is one row of a share's bounded access log. UserID is nil for
// anonymous visits.
type AccessEntry struct {
	ID         int64     `json:"id"`
	ShareID    int64     `json:"shareId"`
	IP         string    `json:"ip"`
	UserAgent  string    `json:"userAgent"`
	UserID     *int64    `json:"userId"`
	AccessedAt time.Time `json:"accessedAt"`
}

// AccessLogLimit caps the number of retained access log entries per share.
// It bounds storage, not recency.
const AccessLogLimit = 100
