// Package comment implements the comment store: create, list, edit and
// delete comments scoped to a playlist and optionally one track.
package comment

import (
	"context"
	"strings"
	"time"

	"TrackTalk/apperr"
	"TrackTalk/model"
	"TrackTalk/repository"
)

const (
	// RatingMin and RatingMax bound the optional numeric rating. The sharing
	// logic never reads it; it is part of the schema.
	RatingMin = 0
	RatingMax = 10
)

// Service is the comment store.
type Service struct {
	comments  repository.CommentRepository
	playlists repository.PlaylistRepository

	now func() time.Time
}

// NewService creates a comment Service.
func NewService(comments repository.CommentRepository, playlists repository.PlaylistRepository) *Service {
	return &Service{
		comments:  comments,
		playlists: playlists,
		now:       time.Now,
	}
}

// AddInput describes a comment to create. TrackID nil means a
// playlist-level comment.
type AddInput struct {
	TrackID *string
	Author  model.Author
	Content string
	Rating  *int
}

func (s *Service) validate(in *AddInput) error {
	in.Content = strings.TrimSpace(in.Content)
	if in.Content == "" {
		return apperr.New(apperr.Validation, "comment content is required")
	}
	if in.Rating != nil && (*in.Rating < RatingMin || *in.Rating > RatingMax) {
		return apperr.New(apperr.Validation, "rating must be between 0 and 10")
	}
	return nil
}

func (s *Service) create(ctx context.Context, playlistID int64, in AddInput) (*model.Comment, error) {
	now := s.now()
	comment := &model.Comment{
		PlaylistID:  playlistID,
		TrackID:     in.TrackID,
		UserID:      in.Author.UserID(),
		IsAnonymous: in.Author.IsAnonymous(),
		Content:     in.Content,
		Rating:      in.Rating,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.Author.IsAnonymous() {
		name := in.Author.AnonymousName()
		comment.AnonymousName = &name
	}

	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to save comment", err)
	}

	// Re-read to preload the identified author for the response.
	saved, err := s.comments.GetByID(ctx, comment.ID)
	if err != nil || saved == nil {
		return comment, nil
	}
	return saved, nil
}

// AddForOwner creates a comment through the owner-authenticated surface,
// lazily creating the playlist shadow record on first reference.
func (s *Service) AddForOwner(ctx context.Context, caller *model.User, playlistExternalID string, in AddInput) (*model.Comment, error) {
	if err := s.validate(&in); err != nil {
		return nil, err
	}

	playlist, err := s.playlists.EnsureExists(ctx, playlistExternalID, "", caller.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to resolve playlist", err)
	}
	return s.create(ctx, playlist.ID, in)
}

// AddToShared creates a comment through the public shared surface. The
// playlist already exists because a share references it; authorization has
// already been decided by the access gate.
func (s *Service) AddToShared(ctx context.Context, playlistID int64, in AddInput) (*model.Comment, error) {
	if err := s.validate(&in); err != nil {
		return nil, err
	}
	return s.create(ctx, playlistID, in)
}

// resolvePlaylist maps an external id to the shadow record.
func (s *Service) resolvePlaylist(ctx context.Context, playlistExternalID string) (*model.Playlist, error) {
	playlist, err := s.playlists.GetByExternalID(ctx, playlistExternalID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to load playlist", err)
	}
	if playlist == nil {
		return nil, apperr.New(apperr.NotFound, "playlist not found")
	}
	return playlist, nil
}

// ListPlaylistLevel returns the playlist's own comments (no track id),
// newest first.
func (s *Service) ListPlaylistLevel(ctx context.Context, playlistExternalID string) ([]*model.Comment, error) {
	playlist, err := s.resolvePlaylist(ctx, playlistExternalID)
	if err != nil {
		return nil, err
	}
	comments, err := s.comments.ListPlaylistLevel(ctx, playlist.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to load comments", err)
	}
	return comments, nil
}

// ListByTrack returns comments for one track of the playlist, newest first.
func (s *Service) ListByTrack(ctx context.Context, playlistExternalID, trackID string) ([]*model.Comment, error) {
	playlist, err := s.resolvePlaylist(ctx, playlistExternalID)
	if err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByTrack(ctx, playlist.ID, trackID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to load comments", err)
	}
	return comments, nil
}

// GroupedByTrack returns every track-scoped comment of the playlist keyed by
// track id, each group newest first. Used to render per-song comment counts
// in one call.
func (s *Service) GroupedByTrack(ctx context.Context, playlistExternalID string) (map[string][]*model.Comment, error) {
	playlist, err := s.resolvePlaylist(ctx, playlistExternalID)
	if err != nil {
		return nil, err
	}
	comments, err := s.comments.ListTrackLevel(ctx, playlist.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to load comments", err)
	}

	grouped := make(map[string][]*model.Comment)
	for _, c := range comments {
		if c.TrackID == nil {
			continue
		}
		grouped[*c.TrackID] = append(grouped[*c.TrackID], c)
	}
	return grouped, nil
}

// ListAllByPlaylistID returns every comment for a playlist by local id,
// newest first. Used by the detail and shared views.
func (s *Service) ListAllByPlaylistID(ctx context.Context, playlistID int64) ([]*model.Comment, error) {
	comments, err := s.comments.ListAll(ctx, playlistID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to load comments", err)
	}
	return comments, nil
}

// authored loads the comment and checks the caller is its authenticated
// author. Anonymous comments have no author to check against, so they can
// never pass; that makes them immutable through this interface by design
// of the identity model, not by accident.
func (s *Service) authored(ctx context.Context, caller *model.User, commentID int64, action string) (*model.Comment, error) {
	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to load comment", err)
	}
	if comment == nil {
		return nil, apperr.New(apperr.NotFound, "comment not found")
	}
	if comment.UserID == nil || *comment.UserID != caller.ID {
		return nil, apperr.New(apperr.Forbidden, "not authorized to "+action+" this comment")
	}
	return comment, nil
}

// Edit replaces the comment body; author-only. The edited flag sticks.
func (s *Service) Edit(ctx context.Context, caller *model.User, commentID int64, content string) (*model.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.New(apperr.Validation, "comment content is required")
	}

	comment, err := s.authored(ctx, caller, commentID, "edit")
	if err != nil {
		return nil, err
	}

	comment.Content = content
	comment.Edited = true
	comment.UpdatedAt = s.now()
	if err := s.comments.Update(ctx, comment); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to save comment", err)
	}
	return comment, nil
}

// Delete removes the comment; author-only.
func (s *Service) Delete(ctx context.Context, caller *model.User, commentID int64) error {
	comment, err := s.authored(ctx, caller, commentID, "delete")
	if err != nil {
		return err
	}
	if err := s.comments.Delete(ctx, comment.ID); err != nil {
		return apperr.Wrap(apperr.Internal, "failed to delete comment", err)
	}
	return nil
}
