package db

import (
	"database/sql"
	"fmt"
	"log"

	"TrackTalk/config"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

var DB *sql.DB

// ConnectDB establishes a connection to the database.
func ConnectDB(cfg *config.Config) error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	var err error
	DB, err = sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	if err = DB.Ping(); err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Successfully connected to the database.")
	return nil
}

// InitDB initializes the database schema, creating tables if they don't exist.
// Tables are created in dependency order so foreign keys resolve.
func InitDB() error {
	for _, t := range schema() {
		if _, err := DB.Exec(t.query); err != nil {
			return fmt.Errorf("failed to create %s table: %w", t.name, err)
		}
	}
	log.Println("Database schema initialized successfully (or already exists).")
	return nil
}

type tableDef struct {
	name  string
	query string
}

// schema returns the CREATE TABLE statements in creation order. Comment and
// watermark timestamps use DATETIME(6) so bursts of writes in one request
// still sort deterministically.
func schema() []tableDef {
	return []tableDef{
		{"users", `
		CREATE TABLE IF NOT EXISTS users (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			provider_id VARCHAR(128) NOT NULL UNIQUE,
			display_name VARCHAR(255) NOT NULL,
			email VARCHAR(255),
			access_token TEXT,
			refresh_token TEXT,
			token_expiry TIMESTAMP NULL DEFAULT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		);
		`},
		{"user_playlist_views", `
		CREATE TABLE IF NOT EXISTS user_playlist_views (
			user_id BIGINT NOT NULL,
			playlist_external_id VARCHAR(128) NOT NULL,
			viewed_at DATETIME(6) NOT NULL,
			PRIMARY KEY (user_id, playlist_external_id),
			CONSTRAINT fk_view_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		);
		`},
		{"playlists", `
		CREATE TABLE IF NOT EXISTS playlists (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			external_id VARCHAR(128) NOT NULL UNIQUE,
			name VARCHAR(255) NOT NULL DEFAULT '',
			owner_id BIGINT NOT NULL,
			is_public BOOLEAN NOT NULL DEFAULT FALSE,
			share_token CHAR(36) NULL,
			share_allow_comments BOOLEAN NOT NULL DEFAULT TRUE,
			share_require_auth BOOLEAN NOT NULL DEFAULT FALSE,
			share_expires_at TIMESTAMP NULL DEFAULT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			CONSTRAINT uq_playlist_share_token UNIQUE (share_token),
			CONSTRAINT fk_playlist_owner FOREIGN KEY (owner_id) REFERENCES users(id)
		);
		`},
		{"playlist_collaborators", `
		CREATE TABLE IF NOT EXISTS playlist_collaborators (
			playlist_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			permission ENUM('view', 'comment', 'admin') NOT NULL DEFAULT 'view',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (playlist_id, user_id),
			CONSTRAINT fk_collab_playlist FOREIGN KEY (playlist_id) REFERENCES playlists(id) ON DELETE CASCADE,
			CONSTRAINT fk_collab_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		);
		`},
		{"shares", `
		CREATE TABLE IF NOT EXISTS shares (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			playlist_id BIGINT NOT NULL,
			share_token CHAR(36) NOT NULL,
			created_by BIGINT NOT NULL,
			allow_comments BOOLEAN NOT NULL DEFAULT TRUE,
			require_auth BOOLEAN NOT NULL DEFAULT FALSE,
			expires_at TIMESTAMP NULL DEFAULT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			access_count BIGINT NOT NULL DEFAULT 0,
			last_accessed TIMESTAMP NULL DEFAULT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			active_playlist_id BIGINT AS (IF(is_active, playlist_id, NULL)) STORED,
			CONSTRAINT uq_share_token UNIQUE (share_token),
			CONSTRAINT uq_active_share_playlist UNIQUE (active_playlist_id),
			CONSTRAINT fk_share_playlist FOREIGN KEY (playlist_id) REFERENCES playlists(id) ON DELETE CASCADE,
			CONSTRAINT fk_share_creator FOREIGN KEY (created_by) REFERENCES users(id)
		);
		`},
		{"share_access_log", `
		CREATE TABLE IF NOT EXISTS share_access_log (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			share_id BIGINT NOT NULL,
			ip VARCHAR(64) NOT NULL DEFAULT '',
			user_agent VARCHAR(512) NOT NULL DEFAULT '',
			user_id BIGINT NULL,
			accessed_at DATETIME(6) NOT NULL,
			CONSTRAINT fk_access_share FOREIGN KEY (share_id) REFERENCES shares(id) ON DELETE CASCADE,
			INDEX idx_access_share (share_id, id)
		);
		`},
		{"comments", `
		CREATE TABLE IF NOT EXISTS comments (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			playlist_id BIGINT NOT NULL,
			track_id VARCHAR(128) NULL,
			user_id BIGINT NULL,
			is_anonymous BOOLEAN NOT NULL DEFAULT FALSE,
			anonymous_name VARCHAR(255) NULL,
			content TEXT NOT NULL,
			rating INT NULL,
			edited BOOLEAN NOT NULL DEFAULT FALSE,
			created_at DATETIME(6) NOT NULL,
			updated_at DATETIME(6) NOT NULL,
			CONSTRAINT fk_comment_playlist FOREIGN KEY (playlist_id) REFERENCES playlists(id) ON DELETE CASCADE,
			CONSTRAINT fk_comment_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE SET NULL,
			INDEX idx_comment_playlist_track (playlist_id, track_id),
			INDEX idx_comment_playlist_created (playlist_id, created_at)
		);
		`},
	}
}
