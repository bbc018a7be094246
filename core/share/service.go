// Package share implements the share registry, the access gate evaluated on
// every public request, and the bounded access ledger.
package share

import (
	"context"
	"errors"
	"time"

	"TrackTalk/apperr"
	"TrackTalk/model"
	"TrackTalk/repository"

	"github.com/google/uuid"
)

// Caller-visible messages. Lookup and validity failures share one message so
// an outside observer cannot tell a nonexistent token from an expired one,
// and ownership misses read the same as missing playlists.
const (
	MsgNotFoundOrExpired  = "shared playlist not found or expired"
	MsgPlaylistNotFound   = "playlist not found or access denied"
	MsgCommentsNotAllowed = "comments not allowed for this shared playlist"
	MsgSignInRequired     = "sign-in required for this shared playlist"
	MsgNoActiveShare      = "no active share link found"
)

// TokenCache caches shares by token on the public lookup path. Implemented by
// cache.ShareCache; nil disables caching.
type TokenCache interface {
	Get(ctx context.Context, token string) (*model.Share, error)
	Set(ctx context.Context, share *model.Share) error
	Invalidate(ctx context.Context, token string) error
}

// Service is the share registry.
type Service struct {
	shares    repository.ShareRepository
	playlists repository.PlaylistRepository
	cache     TokenCache

	now      func() time.Time
	newToken func() string
}

// NewService creates a share Service. cache may be nil.
func NewService(shares repository.ShareRepository, playlists repository.PlaylistRepository, cache TokenCache) *Service {
	return &Service{
		shares:    shares,
		playlists: playlists,
		cache:     cache,
		now:       time.Now,
		newToken:  uuid.NewString,
	}
}

// UpsertInput are the settings for create-or-update share.
type UpsertInput struct {
	AllowComments bool
	RequireAuth   bool
	// ExpiresInDays is whole days from now; 0 means the share never expires.
	ExpiresInDays int
}

// UpdateInput is a partial permission update. Nil fields stay unchanged;
// ClearExpiry reflects an explicit null for expiresIn.
type UpdateInput struct {
	AllowComments *bool
	RequireAuth   *bool
	ExpiresInDays *int
	ClearExpiry   bool
}

// ownedPlaylist resolves the playlist and checks ownership. A missing
// playlist and a not-owned playlist are deliberately indistinguishable.
func (s *Service) ownedPlaylist(ctx context.Context, owner *model.User, playlistExternalID string) (*model.Playlist, error) {
	playlist, err := s.playlists.GetOwned(ctx, playlistExternalID, owner.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to load playlist", err)
	}
	if playlist == nil {
		return nil, apperr.New(apperr.NotFound, MsgPlaylistNotFound)
	}
	return playlist, nil
}

// expiryFrom derives the absolute expiry from a relative day count, always
// anchored at the current time: re-issuing a share recomputes expiry, it does
// not extend the original.
func (s *Service) expiryFrom(days int) *time.Time {
	if days <= 0 {
		return nil
	}
	t := s.now().AddDate(0, 0, days)
	return &t
}

// Upsert creates the playlist's share, or updates the active one in place
// (same token) with the given settings. The playlist's denormalized snapshot
// is re-synced on every call.
func (s *Service) Upsert(ctx context.Context, owner *model.User, playlistExternalID string, in UpsertInput) (*model.Share, error) {
	playlist, err := s.ownedPlaylist(ctx, owner, playlistExternalID)
	if err != nil {
		return nil, err
	}

	result, err := s.shares.UpsertActive(ctx, &model.Share{
		PlaylistID:    playlist.ID,
		Token:         s.newToken(),
		CreatedBy:     owner.ID,
		AllowComments: in.AllowComments,
		RequireAuth:   in.RequireAuth,
		ExpiresAt:     s.expiryFrom(in.ExpiresInDays),
	})
	if err != nil {
		if errors.Is(err, repository.ErrTokenCollision) {
			return nil, apperr.Wrap(apperr.Conflict, "share token collision", err)
		}
		return nil, apperr.Wrap(apperr.Internal, "failed to save share", err)
	}

	if err := s.syncPlaylist(ctx, playlist.ID, result); err != nil {
		return nil, err
	}
	return result, nil
}

// Get returns the playlist's active share for its owner.
func (s *Service) Get(ctx context.Context, owner *model.User, playlistExternalID string) (*model.Share, error) {
	playlist, err := s.ownedPlaylist(ctx, owner, playlistExternalID)
	if err != nil {
		return nil, err
	}

	share, err := s.shares.GetActiveByPlaylist(ctx, playlist.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to load share", err)
	}
	if share == nil || !share.IsValid(s.now()) {
		return nil, apperr.New(apperr.NotFound, MsgNoActiveShare)
	}
	return share, nil
}

// UpdatePermissions applies a partial update to the active share and re-syncs
// the playlist snapshot.
func (s *Service) UpdatePermissions(ctx context.Context, owner *model.User, playlistExternalID string, in UpdateInput) (*model.Share, error) {
	playlist, err := s.ownedPlaylist(ctx, owner, playlistExternalID)
	if err != nil {
		return nil, err
	}

	existing, err := s.shares.GetActiveByPlaylist(ctx, playlist.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to load share", err)
	}
	if existing == nil {
		return nil, apperr.New(apperr.NotFound, MsgNoActiveShare)
	}

	if in.AllowComments != nil {
		existing.AllowComments = *in.AllowComments
	}
	if in.RequireAuth != nil {
		existing.RequireAuth = *in.RequireAuth
	}
	if in.ClearExpiry {
		existing.ExpiresAt = nil
	} else if in.ExpiresInDays != nil {
		existing.ExpiresAt = s.expiryFrom(*in.ExpiresInDays)
	}

	result, err := s.shares.UpsertActive(ctx, existing)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to save share", err)
	}

	if err := s.syncPlaylist(ctx, playlist.ID, result); err != nil {
		return nil, err
	}
	return result, nil
}

// Revoke deactivates every share for the playlist and clears the playlist's
// public state. The tokens stop validating immediately.
func (s *Service) Revoke(ctx context.Context, owner *model.User, playlistExternalID string) error {
	playlist, err := s.ownedPlaylist(ctx, owner, playlistExternalID)
	if err != nil {
		return err
	}

	active, err := s.shares.GetActiveByPlaylist(ctx, playlist.ID)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "failed to load share", err)
	}

	if err := s.shares.DeactivateAll(ctx, playlist.ID); err != nil {
		return apperr.Wrap(apperr.Internal, "failed to revoke shares", err)
	}
	if err := s.playlists.SyncShareState(ctx, playlist.ID, nil, nil); err != nil {
		return apperr.Wrap(apperr.Internal, "failed to update playlist", err)
	}
	if active != nil {
		s.invalidate(ctx, active.Token)
	}
	return nil
}

// ResolveToken is steps 1 and 2 of the access gate: look the share up by
// token and evaluate validity at the current instant. Both failures return
// the identical NotFound so the two cases cannot be told apart.
func (s *Service) ResolveToken(ctx context.Context, token string) (*model.Share, error) {
	var share *model.Share
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, token)
		if err == nil {
			share = cached
		}
	}

	if share == nil {
		var err error
		share, err = s.shares.GetByToken(ctx, token)
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, "failed to load share", err)
		}
		if share != nil && s.cache != nil {
			_ = s.cache.Set(ctx, share)
		}
	}

	if share == nil || !share.IsValid(s.now()) {
		return nil, apperr.New(apperr.NotFound, MsgNotFoundOrExpired)
	}
	return share, nil
}

// AuthorizeView is step 4 of the access gate for read requests: a share that
// requires auth rejects anonymous callers server-side.
func (s *Service) AuthorizeView(share *model.Share, user *model.User) error {
	if share.RequireAuth && user == nil {
		return apperr.New(apperr.Unauthenticated, MsgSignInRequired)
	}
	return nil
}

// AuthorizeComment is steps 3 and 4 for comment posts. The allowComments
// check comes first and surfaces its own Forbidden message: the share itself
// is valid, only the action is disallowed.
func (s *Service) AuthorizeComment(share *model.Share, user *model.User) error {
	if !share.AllowComments {
		return apperr.New(apperr.Forbidden, MsgCommentsNotAllowed)
	}
	return s.AuthorizeView(share, user)
}

// RecordAccess appends to the access ledger. Only view requests are logged;
// comment posts never call this.
func (s *Service) RecordAccess(ctx context.Context, share *model.Share, ip, userAgent string, user *model.User) error {
	entry := &model.AccessEntry{
		ShareID:    share.ID,
		IP:         ip,
		UserAgent:  userAgent,
		AccessedAt: s.now(),
	}
	if user != nil {
		entry.UserID = &user.ID
	}
	if err := s.shares.LogAccess(ctx, share.ID, entry); err != nil {
		return apperr.Wrap(apperr.Internal, "failed to record access", err)
	}
	s.invalidate(ctx, share.Token)
	return nil
}

// syncPlaylist mirrors the share onto the playlist row and drops the cached
// token entry.
func (s *Service) syncPlaylist(ctx context.Context, playlistID int64, share *model.Share) error {
	if err := s.playlists.SyncShareState(ctx, playlistID, &share.Token, share.Settings()); err != nil {
		return apperr.Wrap(apperr.Internal, "failed to update playlist", err)
	}
	s.invalidate(ctx, share.Token)
	return nil
}

func (s *Service) invalidate(ctx context.Context, token string) {
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, token)
	}
}
