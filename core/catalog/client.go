// Package catalog is the HTTP client for the external music catalog and
// identity provider. It is read-only: the service only consumes playlist
// metadata and track ids, and validates bearer credentials against /me.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Sentinel errors for the two upstream cases callers branch on.
var (
	ErrUnauthorized = errors.New("catalog: invalid or expired credential")
	ErrNotFound     = errors.New("catalog: resource not found")
)

// Client talks to the catalog API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new catalog API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: time.Second * 10,
		},
	}
}

// SetTimeout sets the request timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.httpClient.Timeout = timeout
}

// Profile is the identity subject behind a bearer credential.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// Playlist is the catalog's playlist metadata, trimmed to what the service reads.
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Tracks      struct {
		Total int `json:"total"`
	} `json:"tracks"`
}

// Track is one playlist entry.
type Track struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	DurationMS int    `json:"duration_ms"`
	Artists    []struct {
		Name string `json:"name"`
	} `json:"artists"`
}

// Me validates a bearer credential and returns the subject's profile.
func (c *Client) Me(ctx context.Context, bearer string) (*Profile, error) {
	var profile Profile
	if err := c.get(ctx, c.baseURL+"/me", bearer, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Playlist fetches playlist metadata by external id.
func (c *Client) Playlist(ctx context.Context, bearer, playlistID string) (*Playlist, error) {
	var playlist Playlist
	url := fmt.Sprintf("%s/playlists/%s", c.baseURL, playlistID)
	if err := c.get(ctx, url, bearer, &playlist); err != nil {
		return nil, err
	}
	return &playlist, nil
}

// MyPlaylists fetches the credential subject's playlists, one page.
func (c *Client) MyPlaylists(ctx context.Context, bearer string) ([]Playlist, error) {
	var page struct {
		Items []Playlist `json:"items"`
	}
	if err := c.get(ctx, c.baseURL+"/me/playlists", bearer, &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}

// PlaylistTracks fetches the full track list, following pagination links with
// a 50-item page size until the catalog reports no next page.
func (c *Client) PlaylistTracks(ctx context.Context, bearer, playlistID string) ([]Track, error) {
	type page struct {
		Items []struct {
			Track Track `json:"track"`
		} `json:"items"`
		Next *string `json:"next"`
	}

	var tracks []Track
	next := fmt.Sprintf("%s/playlists/%s/tracks?limit=50", c.baseURL, playlistID)
	for next != "" {
		var p page
		if err := c.get(ctx, next, bearer, &p); err != nil {
			return nil, err
		}
		for _, item := range p.Items {
			tracks = append(tracks, item.Track)
		}
		if p.Next == nil {
			break
		}
		next = *p.Next
	}
	return tracks, nil
}

func (c *Client) get(ctx context.Context, url, bearer string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build catalog request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("catalog returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode catalog response: %w", err)
	}
	return nil
}
