package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"TrackTalk/model"

	"github.com/go-sql-driver/mysql"
)

// ErrTokenCollision is returned when a freshly generated share token already
// exists. With 128-bit random tokens this is effectively unreachable; it is
// surfaced rather than retried.
var ErrTokenCollision = errors.New("share token collision")

// ShareRepository defines the interface for share grants and their bounded
// access log.
type ShareRepository interface {
	// UpsertActive creates a share for the playlist, or updates the settings
	// of the existing active share in place, keeping its original token. The
	// whole operation is serialized on the playlist row so two concurrent
	// calls can never produce two active shares.
	UpsertActive(ctx context.Context, share *model.Share) (*model.Share, error)
	GetActiveByPlaylist(ctx context.Context, playlistID int64) (*model.Share, error)
	GetByToken(ctx context.Context, token string) (*model.Share, error)
	// DeactivateAll flips every share for the playlist inactive, not just the
	// current one, as a guard against duplicate-share bugs.
	DeactivateAll(ctx context.Context, playlistID int64) error
	// LogAccess bumps the counters and appends an access entry in one
	// transaction, trimming the log to the newest model.AccessLogLimit rows.
	LogAccess(ctx context.Context, shareID int64, entry *model.AccessEntry) error
	AccessLog(ctx context.Context, shareID int64) ([]model.AccessEntry, error)
}

// mysqlShareRepository implements ShareRepository for MySQL.
type mysqlShareRepository struct {
	db *sql.DB
}

// NewMySQLShareRepository creates a new mysqlShareRepository.
func NewMySQLShareRepository(db *sql.DB) ShareRepository {
	return &mysqlShareRepository{db: db}
}

const shareColumns = `id, playlist_id, share_token, created_by, allow_comments, require_auth,
	expires_at, is_active, access_count, last_accessed, created_at, updated_at`

func scanShare(row interface{ Scan(...any) error }) (*model.Share, error) {
	s := &model.Share{}
	var expiresAt, lastAccessed sql.NullTime
	err := row.Scan(&s.ID, &s.PlaylistID, &s.Token, &s.CreatedBy, &s.AllowComments,
		&s.RequireAuth, &expiresAt, &s.IsActive, &s.AccessCount, &lastAccessed,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		s.ExpiresAt = &t
	}
	if lastAccessed.Valid {
		t := lastAccessed.Time
		s.LastAccessed = &t
	}
	return s, nil
}

// UpsertActive implements the idempotent create-or-update keyed by playlist.
func (r *mysqlShareRepository) UpsertActive(ctx context.Context, share *model.Share) (*model.Share, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin share upsert transaction: %w", err)
	}
	defer tx.Rollback()

	// Lock the playlist row to serialize concurrent upserts for the same
	// playlist; the unique index on active_playlist_id backs this up.
	var playlistID int64
	err = tx.QueryRowContext(ctx, "SELECT id FROM playlists WHERE id = ? FOR UPDATE", share.PlaylistID).Scan(&playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock playlist %d: %w", share.PlaylistID, err)
	}

	existing, err := scanShare(tx.QueryRowContext(ctx,
		"SELECT "+shareColumns+" FROM shares WHERE playlist_id = ? AND is_active = TRUE", share.PlaylistID))
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to read active share for playlist %d: %w", share.PlaylistID, err)
	}

	var shareID int64
	if existing != nil {
		// Update the existing active share in place; the token is preserved.
		_, err = tx.ExecContext(ctx,
			`UPDATE shares SET allow_comments = ?, require_auth = ?, expires_at = ?, updated_at = NOW() WHERE id = ?`,
			share.AllowComments, share.RequireAuth, sqlNullTime(share.ExpiresAt), existing.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to update share %d: %w", existing.ID, err)
		}
		shareID = existing.ID
	} else {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO shares (playlist_id, share_token, created_by, allow_comments, require_auth, expires_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			share.PlaylistID, share.Token, share.CreatedBy, share.AllowComments,
			share.RequireAuth, sqlNullTime(share.ExpiresAt))
		if err != nil {
			var mysqlErr *mysql.MySQLError
			if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
				return nil, ErrTokenCollision
			}
			return nil, fmt.Errorf("failed to insert share for playlist %d: %w", share.PlaylistID, err)
		}
		shareID, err = res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("failed to get last insert ID for share: %w", err)
		}
	}

	result, err := scanShare(tx.QueryRowContext(ctx, "SELECT "+shareColumns+" FROM shares WHERE id = ?", shareID))
	if err != nil {
		return nil, fmt.Errorf("failed to re-read share %d: %w", shareID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit share upsert: %w", err)
	}
	return result, nil
}

// GetActiveByPlaylist returns the playlist's active share, nil when none.
func (r *mysqlShareRepository) GetActiveByPlaylist(ctx context.Context, playlistID int64) (*model.Share, error) {
	query := "SELECT " + shareColumns + " FROM shares WHERE playlist_id = ? AND is_active = TRUE"
	s, err := scanShare(r.db.QueryRowContext(ctx, query, playlistID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan share row for playlist %d: %w", playlistID, err)
	}
	return s, nil
}

// GetByToken returns the share with the given token regardless of state; the
// access gate evaluates validity.
func (r *mysqlShareRepository) GetByToken(ctx context.Context, token string) (*model.Share, error) {
	query := "SELECT " + shareColumns + " FROM shares WHERE share_token = ?"
	s, err := scanShare(r.db.QueryRowContext(ctx, query, token))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan share row for token: %w", err)
	}
	return s, nil
}

// DeactivateAll revokes every share belonging to the playlist.
func (r *mysqlShareRepository) DeactivateAll(ctx context.Context, playlistID int64) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE shares SET is_active = FALSE, updated_at = NOW() WHERE playlist_id = ?", playlistID)
	if err != nil {
		return fmt.Errorf("failed to deactivate shares for playlist %d: %w", playlistID, err)
	}
	return nil
}

// LogAccess records one public access atomically with the counter bump.
func (r *mysqlShareRepository) LogAccess(ctx context.Context, shareID int64, entry *model.AccessEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin access log transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"UPDATE shares SET access_count = access_count + 1, last_accessed = ? WHERE id = ?",
		entry.AccessedAt, shareID)
	if err != nil {
		return fmt.Errorf("failed to bump access count for share %d: %w", shareID, err)
	}

	var userID sql.NullInt64
	if entry.UserID != nil {
		userID = sql.NullInt64{Int64: *entry.UserID, Valid: true}
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO share_access_log (share_id, ip, user_agent, user_id, accessed_at) VALUES (?, ?, ?, ?, ?)",
		shareID, entry.IP, entry.UserAgent, userID, entry.AccessedAt)
	if err != nil {
		return fmt.Errorf("failed to append access log for share %d: %w", shareID, err)
	}

	// Trim to the newest AccessLogLimit rows. The subquery selects the id of
	// the (limit+1)-th newest entry; everything at or below it goes.
	_, err = tx.ExecContext(ctx, `
		DELETE FROM share_access_log WHERE share_id = ? AND id <= COALESCE(
			(SELECT id FROM (
				SELECT id FROM share_access_log WHERE share_id = ?
				ORDER BY id DESC LIMIT 1 OFFSET ?
			) cutoff), 0)`,
		shareID, shareID, model.AccessLogLimit)
	if err != nil {
		return fmt.Errorf("failed to trim access log for share %d: %w", shareID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit access log for share %d: %w", shareID, err)
	}
	return nil
}

// AccessLog returns the retained access entries, newest first.
func (r *mysqlShareRepository) AccessLog(ctx context.Context, shareID int64) ([]model.AccessEntry, error) {
	query := `SELECT id, share_id, ip, user_agent, user_id, accessed_at
		FROM share_access_log WHERE share_id = ? ORDER BY id DESC`
	rows, err := r.db.QueryContext(ctx, query, shareID)
	if err != nil {
		return nil, fmt.Errorf("failed to query access log for share %d: %w", shareID, err)
	}
	defer rows.Close()

	var entries []model.AccessEntry
	for rows.Next() {
		var e model.AccessEntry
		var userID sql.NullInt64
		if err := rows.Scan(&e.ID, &e.ShareID, &e.IP, &e.UserAgent, &userID, &e.AccessedAt); err != nil {
			return nil, err
		}
		if userID.Valid {
			id := userID.Int64
			e.UserID = &id
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func sqlNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
