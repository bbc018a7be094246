package model

import "time"

// AnonymousFallbackName is used when an anonymous commenter supplies no name.
const AnonymousFallbackName = "Anonymous"

// Author identifies who wrote a comment: either a registered user or an
// anonymous display name, never both. Build one with IdentifiedAuthor or
// AnonymousAuthor so the invariant holds by construction.
type Author struct {
	userID        *int64
	anonymousName string
}

// IdentifiedAuthor builds an Author backed by a registered user.
func IdentifiedAuthor(userID int64) Author {
	return Author{userID: &userID}
}

// AnonymousAuthor builds an anonymous Author, falling back to the fixed
// default label when the supplied name is blank.
func AnonymousAuthor(name string) Author {
	if name == "" {
		name = AnonymousFallbackName
	}
	return Author{anonymousName: name}
}

// UserID returns the backing user id, or nil for anonymous authors.
func (a Author) UserID() *int64 {
	return a.userID
}

// IsAnonymous reports whether the author is anonymous.
func (a Author) IsAnonymous() bool {
	return a.userID == nil
}

// AnonymousName returns the anonymous display name, empty for identified authors.
func (a Author) AnonymousName() string {
	return a.anonymousName
}

// Comment is a remark attached to a playlist, optionally scoped to one track.
// TrackID nil means a playlist-level comment.
type Comment struct {
	ID            int64     `json:"id" gorm:"column:id;primaryKey"`
	PlaylistID    int64     `json:"playlistId" gorm:"column:playlist_id"`
	TrackID       *string   `json:"trackId,omitempty" gorm:"column:track_id"`
	UserID        *int64    `json:"userId,omitempty" gorm:"column:user_id"`
	IsAnonymous   bool      `json:"isAnonymous" gorm:"column:is_anonymous"`
	AnonymousName *string   `json:"anonymousName,omitempty" gorm:"column:anonymous_name"`
	Content       string    `json:"content" gorm:"column:content"`
	Rating        *int      `json:"rating,omitempty" gorm:"column:rating"`
	Edited        bool      `json:"edited" gorm:"column:edited"`
	CreatedAt     time.Time `json:"createdAt" gorm:"column:created_at"`
	UpdatedAt     time.Time `json:"updatedAt" gorm:"column:updated_at"`

	// User is the identified author, preloaded for display. Nil for
	// anonymous comments.
	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// TableName keeps GORM on the table created by db.InitDB.
func (Comment) TableName() string {
	return "comments"
}

// AuthorDisplayName resolves the name shown next to the comment.
func (c *Comment) AuthorDisplayName() string {
	if c.User != nil {
		return c.User.DisplayName
	}
	if c.AnonymousName != nil && *c.AnonymousName != "" {
		return *c.AnonymousName
	}
	return AnonymousFallbackName
}
