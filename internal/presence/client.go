// Package presence talks to the presence gateway: the external service that
// knows which identities are currently present in each tracked scope and
// which named activities each of them is running. The tracking engine treats
// it as a black box and does not validate entries beyond deduplication.
package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

// ErrIdentityNotFound marks an identity the gateway cannot resolve right now.
// This is a transient absence, not a failure: the caller skips the identity
// for the tick and its ongoing sessions finalize naturally once the grace
// window lapses.
var ErrIdentityNotFound = errors.New("presence: identity not found")

// Source supplies, per scope and identity, the current set of activity names
// flagged as actively running.
type Source interface {
	Scopes(ctx context.Context) ([]string, error)
	Identities(ctx context.Context, scopeID string) ([]string, error)
	Activities(ctx context.Context, scopeID, identityID string) ([]string, error)
}

// Config holds presence gateway client settings.
type Config struct {
	GatewayURL string
	Token      string
	Timeout    time.Duration
	Retries    int
}

// Client is an HTTP Source backed by the presence gateway's REST API.
type Client struct {
	http    *retryablehttp.Client
	baseURL string
	token   string
	logger  zerolog.Logger
}

// NewClient creates a presence gateway client with retrying transport.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.Retries
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.Logger = nil

	return &Client{
		http:    rc,
		baseURL: cfg.GatewayURL,
		token:   cfg.Token,
		logger:  logger.With().Str("component", "presence").Logger(),
	}
}

// Scopes returns the ids of all communities the gateway currently serves.
func (c *Client) Scopes(ctx context.Context) ([]string, error) {
	return c.getList(ctx, "/scopes")
}

// Identities returns the ids of identities currently present in the scope.
func (c *Client) Identities(ctx context.Context, scopeID string) ([]string, error) {
	return c.getList(ctx, fmt.Sprintf("/scopes/%s/identities", url.PathEscape(scopeID)))
}

// Activities returns the activity names currently running for the identity.
// A gateway 404 maps to ErrIdentityNotFound.
func (c *Client) Activities(ctx context.Context, scopeID, identityID string) ([]string, error) {
	return c.getList(ctx, fmt.Sprintf("/scopes/%s/identities/%s/activities",
		url.PathEscape(scopeID), url.PathEscape(identityID)))
}

func (c *Client) getList(ctx context.Context, path string) ([]string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build presence request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("presence gateway request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrIdentityNotFound
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("presence gateway returned %d: %s", resp.StatusCode, body)
	}

	var list []string
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode presence response: %w", err)
	}
	return list, nil
}
