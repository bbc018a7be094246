package repository

import (
	"context"
	"time"

	"TrackTalk/model"

	"gorm.io/gorm"
)

// CommentRepository defines the interface for comment data operations.
type CommentRepository interface {
	Create(ctx context.Context, comment *model.Comment) error
	GetByID(ctx context.Context, id int64) (*model.Comment, error)
	// ListPlaylistLevel returns comments with no track id, newest first.
	ListPlaylistLevel(ctx context.Context, playlistID int64) ([]*model.Comment, error)
	// ListByTrack returns comments for one track, newest first.
	ListByTrack(ctx context.Context, playlistID int64, trackID string) ([]*model.Comment, error)
	// ListTrackLevel returns every track-scoped comment of the playlist,
	// newest first, for the grouped per-track view.
	ListTrackLevel(ctx context.Context, playlistID int64) ([]*model.Comment, error)
	// ListAll returns every comment of the playlist, newest first.
	ListAll(ctx context.Context, playlistID int64) ([]*model.Comment, error)
	Update(ctx context.Context, comment *model.Comment) error
	Delete(ctx context.Context, id int64) error
	// NewCommentCount counts comments created strictly after since; a nil
	// since counts everything.
	NewCommentCount(ctx context.Context, playlistID int64, since *time.Time) (int64, error)
}

// gormCommentRepository is the GORM implementation.
type gormCommentRepository struct {
	db *gorm.DB
}

// NewGormCommentRepository creates a GORM comment repository.
func NewGormCommentRepository(db *gorm.DB) CommentRepository {
	return &gormCommentRepository{db: db}
}

// newestFirst orders by creation time with the row id as insertion-order
// tie-break, so bursts within one request sort deterministically.
func newestFirst(db *gorm.DB) *gorm.DB {
	return db.Order("created_at DESC, id DESC")
}

func (r *gormCommentRepository) Create(ctx context.Context, comment *model.Comment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

func (r *gormCommentRepository) GetByID(ctx context.Context, id int64) (*model.Comment, error) {
	var comment model.Comment
	err := r.db.WithContext(ctx).Preload("User").First(&comment, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &comment, nil
}

func (r *gormCommentRepository) ListPlaylistLevel(ctx context.Context, playlistID int64) ([]*model.Comment, error) {
	var comments []*model.Comment
	err := newestFirst(r.db.WithContext(ctx).Preload("User")).
		Where("playlist_id = ? AND track_id IS NULL", playlistID).
		Find(&comments).Error
	return comments, err
}

func (r *gormCommentRepository) ListByTrack(ctx context.Context, playlistID int64, trackID string) ([]*model.Comment, error) {
	var comments []*model.Comment
	err := newestFirst(r.db.WithContext(ctx).Preload("User")).
		Where("playlist_id = ? AND track_id = ?", playlistID, trackID).
		Find(&comments).Error
	return comments, err
}

func (r *gormCommentRepository) ListTrackLevel(ctx context.Context, playlistID int64) ([]*model.Comment, error) {
	var comments []*model.Comment
	err := newestFirst(r.db.WithContext(ctx).Preload("User")).
		Where("playlist_id = ? AND track_id IS NOT NULL", playlistID).
		Find(&comments).Error
	return comments, err
}

func (r *gormCommentRepository) ListAll(ctx context.Context, playlistID int64) ([]*model.Comment, error) {
	var comments []*model.Comment
	err := newestFirst(r.db.WithContext(ctx).Preload("User")).
		Where("playlist_id = ?", playlistID).
		Find(&comments).Error
	return comments, err
}

func (r *gormCommentRepository) Update(ctx context.Context, comment *model.Comment) error {
	return r.db.WithContext(ctx).Save(comment).Error
}

func (r *gormCommentRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.Comment{}, id).Error
}

func (r *gormCommentRepository) NewCommentCount(ctx context.Context, playlistID int64, since *time.Time) (int64, error) {
	query := r.db.WithContext(ctx).Model(&model.Comment{}).Where("playlist_id = ?", playlistID)
	if since != nil {
		query = query.Where("created_at > ?", *since)
	}
	var count int64
	err := query.Count(&count).Error
	return count, err
}
