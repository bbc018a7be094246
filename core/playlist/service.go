// Package playlist manages the local playlist shadow records, the per-user
// viewed-state watermarks and the derived new-comment notification badges.
package playlist

import (
	"context"
	"strings"
	"time"

	"TrackTalk/apperr"
	"TrackTalk/model"
	"TrackTalk/repository"
)

// Service manages playlist shadow records and viewed state.
type Service struct {
	playlists repository.PlaylistRepository
	comments  repository.CommentRepository
	users     repository.UserRepository

	now func() time.Time
}

// NewService creates a playlist Service.
func NewService(playlists repository.PlaylistRepository, comments repository.CommentRepository, users repository.UserRepository) *Service {
	return &Service{
		playlists: playlists,
		comments:  comments,
		users:     users,
		now:       time.Now,
	}
}

// Ensure returns the shadow record for an external playlist id, creating it
// owned by the caller on first reference.
func (s *Service) Ensure(ctx context.Context, owner *model.User, externalID, name string) (*model.Playlist, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, apperr.New(apperr.Validation, "playlist id is required")
	}

	playlist, err := s.playlists.EnsureExists(ctx, externalID, name, owner.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to resolve playlist", err)
	}
	return playlist, nil
}

// MarkViewed advances the caller's watermark for the playlist to now. The
// watermark never regresses, so repeated calls are idempotent.
func (s *Service) MarkViewed(ctx context.Context, user *model.User, externalID string) error {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return apperr.New(apperr.Validation, "playlist id is required")
	}
	if err := s.users.MarkPlaylistViewed(ctx, user.ID, externalID, s.now()); err != nil {
		return apperr.Wrap(apperr.Internal, "failed to record view", err)
	}
	return nil
}

// Badges computes the per-playlist new-comment notification state for a
// viewer: comments newer than the watermark count as new, every comment
// counts when the playlist was never viewed, and playlists without a shadow
// record have zero. Purely for notification display, never access control.
func (s *Service) Badges(ctx context.Context, viewer *model.User, externalIDs []string) (map[string]model.PlaylistBadge, error) {
	watermarks, err := s.users.LastViewedMap(ctx, viewer.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to load view state", err)
	}

	badges := make(map[string]model.PlaylistBadge, len(externalIDs))
	for _, externalID := range externalIDs {
		badges[externalID] = model.PlaylistBadge{}

		playlist, err := s.playlists.GetByExternalID(ctx, externalID)
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, "failed to load playlist", err)
		}
		if playlist == nil {
			continue
		}

		var since *time.Time
		if viewedAt, ok := watermarks[externalID]; ok {
			t := viewedAt
			since = &t
		}

		count, err := s.comments.NewCommentCount(ctx, playlist.ID, since)
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, "failed to count comments", err)
		}
		badges[externalID] = model.PlaylistBadge{
			HasNewComments:  count > 0,
			NewCommentCount: int(count),
		}
	}
	return badges, nil
}
