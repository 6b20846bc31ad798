package spotify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mixdeck/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

// Endpoints locate the accounts service and the Web API.
type Endpoints struct {
	AuthURL  string
	TokenURL string
	APIURL   string
}

// DefaultEndpoints are Spotify's production endpoints.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		AuthURL:  "https://accounts.spotify.com/authorize",
		TokenURL: "https://accounts.spotify.com/api/token",
		APIURL:   "https://api.spotify.com/v1",
	}
}

// Scopes requested by the authorization code flow.
var Scopes = []string{
	"user-read-private",
	"playlist-read-private",
	"playlist-read-collaborative",
	"playlist-modify-public",
	"playlist-modify-private",
}

const maxPageSize = 50

// APIError is a non-2xx response from the Web API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("spotify API error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("spotify API error: status %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return shared.ErrNotAuthenticated
	}
	return shared.ErrAPIRequest
}

func isNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusNotFound || apiErr.StatusCode == http.StatusBadRequest)
}

// OAuthConfig builds the authorization code flow configuration for s.
func OAuthConfig(s Settings, e Endpoints) *oauth2.Config {
	redirect := s.RedirectURI
	if redirect == "" {
		redirect = DefaultRedirectURI
	}
	return &oauth2.Config{
		ClientID:     s.ClientID,
		ClientSecret: s.ClientSecret,
		RedirectURL:  redirect,
		Scopes:       Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  e.AuthURL,
			TokenURL: e.TokenURL,
		},
	}
}

// Client calls the Spotify Web API. Every request waits for the rate limiter.
type Client struct {
	apiURL     string
	httpClient *http.Client
	limiter    *rate.Limiter
	market     string
	userAuth   bool
	verify     func(ctx context.Context) error
	logger     *log.Logger
}

// NewClient authenticates with the stored refresh token, or with client credentials when there is none.
// base is used for token and API traffic; nil means [http.DefaultClient].
func NewClient(s Settings, e Endpoints, base *http.Client, logger *log.Logger) (*Client, error) {
	if !s.HasCredentials() {
		return nil, fmt.Errorf("%w: client_id and client_secret are required", shared.ErrMissingCredentials)
	}
	if base == nil {
		base = http.DefaultClient
	}

	limit := rate.Inf
	if s.RequestsPerSecond > 0 {
		limit = rate.Limit(s.RequestsPerSecond)
	}

	// Token refreshes outlive any single request, so they use a background context.
	authCtx := context.WithValue(context.Background(), oauth2.HTTPClient, base)

	c := &Client{
		apiURL:  e.APIURL,
		limiter: rate.NewLimiter(limit, 1),
		market:  s.Market,
		logger:  shared.WithLogger(logger),
	}

	if s.RefreshToken != "" {
		cfg := OAuthConfig(s, e)
		c.httpClient = cfg.Client(authCtx, &oauth2.Token{RefreshToken: s.RefreshToken})
		c.userAuth = true
		c.verify = func(ctx context.Context) error {
			_, err := c.Me(ctx)
			return err
		}
		return c, nil
	}

	cc := &clientcredentials.Config{ClientID: s.ClientID, ClientSecret: s.ClientSecret, TokenURL: e.TokenURL}
	c.httpClient = cc.Client(authCtx)
	c.verify = func(ctx context.Context) error {
		_, err := cc.Token(context.WithValue(ctx, oauth2.HTTPClient, base))
		return err
	}
	return c, nil
}

// Verify proves the credentials work.
func (c *Client) Verify(ctx context.Context) error {
	if err := c.verify(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, shared.ErrAPIRequest) || errors.Is(err, shared.ErrNotAuthenticated) {
			return err
		}
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}
	return nil
}

// UserAuthenticated reports whether the client acts on behalf of a user.
func (c *Client) UserAuthenticated() bool { return c.userAuth }

// doRequest performs an authenticated request. body, when set, is sent as JSON; result, when set, is decoded
// from the JSON response.
func (c *Client) doRequest(ctx context.Context, method, endpoint string, query url.Values, body, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	apiURL := c.apiURL + endpoint
	if len(query) > 0 {
		apiURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("spotify request", "method", method, "endpoint", endpoint)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return fmt.Errorf("%w: %v", shared.ErrAuthFailed, retrieveErr)
		}
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var payload apiErrorBody
		if json.NewDecoder(resp.Body).Decode(&payload) == nil {
			apiErr.Message = payload.Error.Message
		}
		return apiErr
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err)
		}
	}
	return nil
}

func (c *Client) marketQuery() url.Values {
	q := url.Values{}
	if c.market != "" {
		q.Set("market", c.market)
	}
	return q
}

// Me retrieves the current user's profile.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.doRequest(ctx, http.MethodGet, "/me", nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Track retrieves a single track by ID.
func (c *Client) Track(ctx context.Context, id string) (*Track, error) {
	var track Track
	if err := c.doRequest(ctx, http.MethodGet, "/tracks/"+url.PathEscape(id), c.marketQuery(), nil, &track); err != nil {
		return nil, err
	}
	return &track, nil
}

func (c *Client) search(ctx context.Context, query, kind string, limit int) (*searchResponse, error) {
	q := c.marketQuery()
	q.Set("q", query)
	q.Set("type", kind)
	q.Set("limit", strconv.Itoa(clampLimit(limit)))

	var resp searchResponse
	if err := c.doRequest(ctx, http.MethodGet, "/search", q, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SearchTracks returns up to limit tracks matching query.
func (c *Client) SearchTracks(ctx context.Context, query string, limit int) ([]Track, error) {
	resp, err := c.search(ctx, query, "track", limit)
	if err != nil {
		return nil, err
	}
	var tracks []Track
	if resp.Tracks != nil {
		for _, t := range resp.Tracks.Items {
			if t != nil {
				tracks = append(tracks, *t)
			}
		}
	}
	return tracks, nil
}

// SearchPlaylists returns up to limit playlists matching query.
func (c *Client) SearchPlaylists(ctx context.Context, query string, limit int) ([]Playlist, error) {
	resp, err := c.search(ctx, query, "playlist", limit)
	if err != nil {
		return nil, err
	}
	var playlists []Playlist
	if resp.Playlists != nil {
		for _, p := range resp.Playlists.Items {
			if p != nil {
				playlists = append(playlists, *p)
			}
		}
	}
	return playlists, nil
}

// Playlist retrieves a playlist by ID without its items.
func (c *Client) Playlist(ctx context.Context, id string) (*Playlist, error) {
	q := c.marketQuery()
	q.Set("fields", "id,name,description,owner,public,tracks.total,images,uri")

	var playlist Playlist
	if err := c.doRequest(ctx, http.MethodGet, "/playlists/"+url.PathEscape(id), q, nil, &playlist); err != nil {
		return nil, err
	}
	return &playlist, nil
}

// PlaylistTracks retrieves up to limit tracks of a playlist, following pagination. limit <= 0 retrieves all.
func (c *Client) PlaylistTracks(ctx context.Context, id string, limit int) ([]Track, error) {
	var tracks []Track
	offset := 0
	for {
		q := c.marketQuery()
		q.Set("limit", strconv.Itoa(maxPageSize))
		q.Set("offset", strconv.Itoa(offset))

		var page Page[PlaylistItem]
		if err := c.doRequest(ctx, http.MethodGet, "/playlists/"+url.PathEscape(id)+"/tracks", q, nil, &page); err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			if item.Track == nil || item.Track.ID == "" {
				continue
			}
			tracks = append(tracks, *item.Track)
			if limit > 0 && len(tracks) == limit {
				return tracks, nil
			}
		}

		if page.Next == nil || len(page.Items) == 0 {
			return tracks, nil
		}
		offset += len(page.Items)
	}
}

// UserPlaylists retrieves every playlist of the current user.
func (c *Client) UserPlaylists(ctx context.Context) ([]Playlist, error) {
	var playlists []Playlist
	offset := 0
	for {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(maxPageSize))
		q.Set("offset", strconv.Itoa(offset))

		var page Page[Playlist]
		if err := c.doRequest(ctx, http.MethodGet, "/me/playlists", q, nil, &page); err != nil {
			return nil, err
		}
		playlists = append(playlists, page.Items...)

		if page.Next == nil || len(page.Items) == 0 {
			return playlists, nil
		}
		offset += len(page.Items)
	}
}

type playlistDetails struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Public      bool   `json:"public"`
}

// CreatePlaylist creates a playlist owned by userID.
func (c *Client) CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (*Playlist, error) {
	var playlist Playlist
	body := playlistDetails{Name: name, Description: description, Public: public}
	if err := c.doRequest(ctx, http.MethodPost, "/users/"+url.PathEscape(userID)+"/playlists", nil, body, &playlist); err != nil {
		return nil, err
	}
	return &playlist, nil
}

// UpdatePlaylist changes a playlist's details.
func (c *Client) UpdatePlaylist(ctx context.Context, id, name, description string, public bool) error {
	body := playlistDetails{Name: name, Description: description, Public: public}
	return c.doRequest(ctx, http.MethodPut, "/playlists/"+url.PathEscape(id), nil, body, nil)
}

// AddTracks appends track URIs to a playlist.
func (c *Client) AddTracks(ctx context.Context, id string, uris []string) error {
	body := map[string]any{"uris": uris}
	return c.doRequest(ctx, http.MethodPost, "/playlists/"+url.PathEscape(id)+"/tracks", nil, body, &snapshot{})
}

// RemoveTracks removes every occurrence of the track URIs from a playlist.
func (c *Client) RemoveTracks(ctx context.Context, id string, uris []string) error {
	refs := make([]map[string]string, len(uris))
	for i, uri := range uris {
		refs[i] = map[string]string{"uri": uri}
	}
	body := map[string]any{"tracks": refs}
	return c.doRequest(ctx, http.MethodDelete, "/playlists/"+url.PathEscape(id)+"/tracks", nil, body, &snapshot{})
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return 20
	case n > maxPageSize:
		return maxPageSize
	default:
		return n
	}
}
