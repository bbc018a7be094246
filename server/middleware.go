package server

import (
	"context"
	"net"
	"net/http"
	"strings"

	"TrackTalk/apperr"
	"TrackTalk/logger"
	"TrackTalk/model"
)

type contextKey int

const (
	contextKeyUser contextKey = iota
	contextKeyBearer
)

// bearerFromRequest extracts the bearer credential from the Authorization
// header, empty when absent or malformed.
func bearerFromRequest(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

// RequireAuth resolves the bearer credential to a user; absence or
// invalidity aborts the request.
func (h *APIHandler) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bearer := bearerFromRequest(r)
		user, err := h.identity.Resolve(r.Context(), bearer)
		if err != nil {
			writeError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), contextKeyUser, user)
		ctx = context.WithValue(ctx, contextKeyBearer, bearer)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// OptionalAuth resolves the credential when present but degrades to an
// anonymous identity instead of aborting, so public share endpoints serve
// logged-in and anonymous visitors through the same handler. Provider
// outages also degrade to anonymous here.
func (h *APIHandler) OptionalAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if bearer := bearerFromRequest(r); bearer != "" {
			user, err := h.identity.Resolve(ctx, bearer)
			if err == nil {
				ctx = context.WithValue(ctx, contextKeyUser, user)
				ctx = context.WithValue(ctx, contextKeyBearer, bearer)
			} else if !apperr.Is(err, apperr.Unauthenticated) {
				logger.Warn("optional auth degraded to anonymous", logger.ErrorField(err))
			}
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// UserFromContext returns the resolved user, nil for anonymous callers.
func UserFromContext(ctx context.Context) *model.User {
	user, _ := ctx.Value(contextKeyUser).(*model.User)
	return user
}

// BearerFromContext returns the validated bearer credential.
func BearerFromContext(ctx context.Context) string {
	bearer, _ := ctx.Value(contextKeyBearer).(string)
	return bearer
}

// clientIP extracts the caller address for the access ledger.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if idx := strings.Index(forwarded, ","); idx > 0 {
			return strings.TrimSpace(forwarded[:idx])
		}
		return strings.TrimSpace(forwarded)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
