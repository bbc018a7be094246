// Package identity maps externally issued bearer credentials to local user
// records.
package identity

import (
	"context"
	"errors"

	"TrackTalk/apperr"
	"TrackTalk/core/catalog"
	"TrackTalk/model"
	"TrackTalk/repository"
)

// Provider validates a bearer credential against the external identity
// provider and returns the subject's profile. *catalog.Client satisfies it.
type Provider interface {
	Me(ctx context.Context, bearer string) (*catalog.Profile, error)
}

// Resolver resolves bearer credentials to local users, creating the record on
// first sight and refreshing the stored credential on every call.
type Resolver struct {
	provider Provider
	users    repository.UserRepository
}

// NewResolver creates a Resolver.
func NewResolver(provider Provider, users repository.UserRepository) *Resolver {
	return &Resolver{provider: provider, users: users}
}

// Resolve validates the credential with one synchronous provider call, then
// upserts the User keyed by provider id. Credential refresh (exchanging a
// refresh token) is a separate flow and never happens here.
func (r *Resolver) Resolve(ctx context.Context, bearer string) (*model.User, error) {
	if bearer == "" {
		return nil, apperr.New(apperr.Unauthenticated, "no token provided")
	}

	profile, err := r.provider.Me(ctx, bearer)
	if err != nil {
		if errors.Is(err, catalog.ErrUnauthorized) {
			return nil, apperr.Wrap(apperr.Unauthenticated, "invalid or expired token", err)
		}
		return nil, apperr.Wrap(apperr.Upstream, "identity provider unavailable", err)
	}

	user, err := r.users.UpsertByProviderID(ctx, &model.User{
		ProviderID:  profile.ID,
		DisplayName: profile.DisplayName,
		Email:       profile.Email,
		AccessToken: bearer,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to store user", err)
	}
	return user, nil
}
