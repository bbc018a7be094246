package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"TrackTalk/model"

	"github.com/go-sql-driver/mysql"
)

// ErrDuplicatePlaylist is returned when the external playlist id is already
// registered.
var ErrDuplicatePlaylist = errors.New("playlist already exists")

// PlaylistRepository defines the interface for playlist shadow records.
type PlaylistRepository interface {
	Create(ctx context.Context, playlist *model.Playlist) (int64, error)
	GetByID(ctx context.Context, id int64) (*model.Playlist, error)
	GetByExternalID(ctx context.Context, externalID string) (*model.Playlist, error)
	// GetOwned returns the playlist only when it exists AND belongs to ownerID;
	// both misses look identical to the caller.
	GetOwned(ctx context.Context, externalID string, ownerID int64) (*model.Playlist, error)
	// EnsureExists returns the shadow record for externalID, creating it with
	// the given owner and name if this is the first reference.
	EnsureExists(ctx context.Context, externalID, name string, ownerID int64) (*model.Playlist, error)
	// SyncShareState re-syncs the denormalized share snapshot onto the
	// playlist row. A nil token clears the snapshot and public flag.
	SyncShareState(ctx context.Context, playlistID int64, token *string, settings *model.ShareSettings) error
}

// mysqlPlaylistRepository implements PlaylistRepository for MySQL.
type mysqlPlaylistRepository struct {
	db *sql.DB
}

// NewMySQLPlaylistRepository creates a new mysqlPlaylistRepository.
func NewMySQLPlaylistRepository(db *sql.DB) PlaylistRepository {
	return &mysqlPlaylistRepository{db: db}
}

const playlistColumns = `id, external_id, name, owner_id, is_public, share_token,
	share_allow_comments, share_require_auth, share_expires_at, created_at, updated_at`

func scanPlaylist(row interface{ Scan(...any) error }) (*model.Playlist, error) {
	p := &model.Playlist{}
	var token sql.NullString
	var allowComments, requireAuth bool
	var expiresAt sql.NullTime
	err := row.Scan(&p.ID, &p.ExternalID, &p.Name, &p.OwnerID, &p.IsPublic, &token,
		&allowComments, &requireAuth, &expiresAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if token.Valid {
		t := token.String
		p.ShareToken = &t
		settings := &model.ShareSettings{AllowComments: allowComments, RequireAuth: requireAuth}
		if expiresAt.Valid {
			e := expiresAt.Time
			settings.ExpiresAt = &e
		}
		p.ShareSettings = settings
	}
	return p, nil
}

// Create adds a new playlist shadow record.
func (r *mysqlPlaylistRepository) Create(ctx context.Context, playlist *model.Playlist) (int64, error) {
	query := "INSERT INTO playlists (external_id, name, owner_id) VALUES (?, ?, ?)"
	res, err := r.db.ExecContext(ctx, query, playlist.ExternalID, playlist.Name, playlist.OwnerID)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return 0, ErrDuplicatePlaylist
		}
		return 0, fmt.Errorf("failed to create playlist %s: %w", playlist.ExternalID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for playlist: %w", err)
	}
	return id, nil
}

// GetByID retrieves a playlist by its local id.
func (r *mysqlPlaylistRepository) GetByID(ctx context.Context, id int64) (*model.Playlist, error) {
	query := "SELECT " + playlistColumns + " FROM playlists WHERE id = ?"
	p, err := scanPlaylist(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan playlist row for ID %d: %w", id, err)
	}
	return p, nil
}

// GetByExternalID retrieves a playlist by its external id.
func (r *mysqlPlaylistRepository) GetByExternalID(ctx context.Context, externalID string) (*model.Playlist, error) {
	query := "SELECT " + playlistColumns + " FROM playlists WHERE external_id = ?"
	p, err := scanPlaylist(r.db.QueryRowContext(ctx, query, externalID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan playlist row for external id %s: %w", externalID, err)
	}
	return p, nil
}

// GetOwned retrieves a playlist by external id and owner.
func (r *mysqlPlaylistRepository) GetOwned(ctx context.Context, externalID string, ownerID int64) (*model.Playlist, error) {
	query := "SELECT " + playlistColumns + " FROM playlists WHERE external_id = ? AND owner_id = ?"
	p, err := scanPlaylist(r.db.QueryRowContext(ctx, query, externalID, ownerID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan playlist row for external id %s: %w", externalID, err)
	}
	return p, nil
}

// EnsureExists lazily creates the shadow record on first reference.
func (r *mysqlPlaylistRepository) EnsureExists(ctx context.Context, externalID, name string, ownerID int64) (*model.Playlist, error) {
	existing, err := r.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	_, err = r.Create(ctx, &model.Playlist{ExternalID: externalID, Name: name, OwnerID: ownerID})
	if err != nil && !errors.Is(err, ErrDuplicatePlaylist) {
		// Duplicate means a concurrent request created it first; re-read below.
		return nil, err
	}
	return r.GetByExternalID(ctx, externalID)
}

// SyncShareState mirrors the active share onto the playlist row.
func (r *mysqlPlaylistRepository) SyncShareState(ctx context.Context, playlistID int64, token *string, settings *model.ShareSettings) error {
	if token == nil || settings == nil {
		query := `UPDATE playlists SET share_token = NULL, is_public = FALSE, updated_at = NOW() WHERE id = ?`
		if _, err := r.db.ExecContext(ctx, query, playlistID); err != nil {
			return fmt.Errorf("failed to clear share state for playlist %d: %w", playlistID, err)
		}
		return nil
	}

	query := `UPDATE playlists SET share_token = ?, is_public = TRUE,
		share_allow_comments = ?, share_require_auth = ?, share_expires_at = ?, updated_at = NOW()
		WHERE id = ?`
	var expiresAt sql.NullTime
	if settings.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *settings.ExpiresAt, Valid: true}
	}
	if _, err := r.db.ExecContext(ctx, query, *token, settings.AllowComments, settings.RequireAuth, expiresAt, playlistID); err != nil {
		return fmt.Errorf("failed to sync share state for playlist %d: %w", playlistID, err)
	}
	return nil
}
