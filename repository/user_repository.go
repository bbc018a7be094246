package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"TrackTalk/model"
)

// UserRepository defines the interface for user data operations, including
// the per-user playlist "last viewed" watermarks.
type UserRepository interface {
	UpsertByProviderID(ctx context.Context, user *model.User) (*model.User, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByProviderID(ctx context.Context, providerID string) (*model.User, error)

	MarkPlaylistViewed(ctx context.Context, userID int64, playlistExternalID string, viewedAt time.Time) error
	LastViewed(ctx context.Context, userID int64, playlistExternalID string) (*time.Time, error)
	LastViewedMap(ctx context.Context, userID int64) (map[string]time.Time, error)
}

// mysqlUserRepository implements UserRepository for MySQL.
type mysqlUserRepository struct {
	db *sql.DB
}

// NewMySQLUserRepository creates a new mysqlUserRepository.
func NewMySQLUserRepository(db *sql.DB) UserRepository {
	return &mysqlUserRepository{db: db}
}

const userColumns = "id, provider_id, display_name, email, access_token, refresh_token, token_expiry, created_at, updated_at"

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	user := &model.User{}
	var email, accessToken, refreshToken sql.NullString
	var tokenExpiry sql.NullTime
	err := row.Scan(&user.ID, &user.ProviderID, &user.DisplayName, &email,
		&accessToken, &refreshToken, &tokenExpiry, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	user.Email = email.String
	user.AccessToken = accessToken.String
	user.RefreshToken = refreshToken.String
	if tokenExpiry.Valid {
		t := tokenExpiry.Time
		user.TokenExpiry = &t
	}
	return user, nil
}

// UpsertByProviderID creates the user on first sight keyed by provider id,
// otherwise refreshes the stored profile and credential fields. Returns the
// stored record.
func (r *mysqlUserRepository) UpsertByProviderID(ctx context.Context, user *model.User) (*model.User, error) {
	query := `INSERT INTO users (provider_id, display_name, email, access_token)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			display_name = VALUES(display_name),
			email = VALUES(email),
			access_token = VALUES(access_token),
			updated_at = NOW()`

	_, err := r.db.ExecContext(ctx, query, user.ProviderID, user.DisplayName,
		sqlNullString(user.Email), user.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user %s: %w", user.ProviderID, err)
	}

	return r.GetByProviderID(ctx, user.ProviderID)
}

// GetByID retrieves a user by their ID.
func (r *mysqlUserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE id = ?"
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to scan user row for ID %d: %w", id, err)
	}
	return user, nil
}

// GetByProviderID retrieves a user by their external provider id.
func (r *mysqlUserRepository) GetByProviderID(ctx context.Context, providerID string) (*model.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE provider_id = ?"
	user, err := scanUser(r.db.QueryRowContext(ctx, query, providerID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to scan user row for provider id %s: %w", providerID, err)
	}
	return user, nil
}

// MarkPlaylistViewed upserts the watermark for (user, playlist). The stored
// timestamp only ever advances, never regresses.
func (r *mysqlUserRepository) MarkPlaylistViewed(ctx context.Context, userID int64, playlistExternalID string, viewedAt time.Time) error {
	query := `INSERT INTO user_playlist_views (user_id, playlist_external_id, viewed_at)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE viewed_at = GREATEST(viewed_at, VALUES(viewed_at))`

	_, err := r.db.ExecContext(ctx, query, userID, playlistExternalID, viewedAt)
	if err != nil {
		return fmt.Errorf("failed to mark playlist %s viewed for user %d: %w", playlistExternalID, userID, err)
	}
	return nil
}

// LastViewed returns the watermark for one playlist, nil if never viewed.
func (r *mysqlUserRepository) LastViewed(ctx context.Context, userID int64, playlistExternalID string) (*time.Time, error) {
	query := "SELECT viewed_at FROM user_playlist_views WHERE user_id = ? AND playlist_external_id = ?"
	var viewedAt time.Time
	err := r.db.QueryRowContext(ctx, query, userID, playlistExternalID).Scan(&viewedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan watermark for user %d: %w", userID, err)
	}
	return &viewedAt, nil
}

// LastViewedMap returns all watermarks for a user keyed by playlist external id.
func (r *mysqlUserRepository) LastViewedMap(ctx context.Context, userID int64) (map[string]time.Time, error) {
	query := "SELECT playlist_external_id, viewed_at FROM user_playlist_views WHERE user_id = ?"
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query watermarks for user %d: %w", userID, err)
	}
	defer rows.Close()

	viewed := make(map[string]time.Time)
	for rows.Next() {
		var externalID string
		var viewedAt time.Time
		if err := rows.Scan(&externalID, &viewedAt); err != nil {
			return nil, err
		}
		viewed[externalID] = viewedAt
	}
	return viewed, rows.Err()
}

func sqlNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
