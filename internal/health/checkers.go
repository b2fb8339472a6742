package health

import (
	"context"
	"net/http"
	"time"

	"github.com/fisherman-publications/fisherman/internal/credstore"
	"github.com/fisherman-publications/fisherman/internal/session"
)

// APIChecker reports whether the backend answers HTTP at all. Any response,
// including 404, means the server is reachable.
type APIChecker struct {
	baseURL string
	client  *http.Client
}

// NewAPIChecker checks baseURL with hc, or http.DefaultClient when hc is nil.
func NewAPIChecker(baseURL string, hc *http.Client) *APIChecker {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &APIChecker{baseURL: baseURL, client: hc}
}

func (c *APIChecker) Name() string { return "api" }

func (c *APIChecker) Check(ctx context.Context) *Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return Unhealthy("invalid API URL").WithDetail("error", err.Error())
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Unhealthy("backend unreachable").
			WithDetail("url", c.baseURL).
			WithDetail("error", err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return Degraded("backend answers with server errors").
			WithDetail("url", c.baseURL).
			WithDetail("status", resp.StatusCode)
	}
	return Healthy("backend reachable").
		WithDetail("url", c.baseURL).
		WithDetail("status", resp.StatusCode)
}

// StoreChecker reads the persisted token to prove the credential store is
// readable and intact.
type StoreChecker struct {
	storage credstore.Storage
}

func NewStoreChecker(storage credstore.Storage) *StoreChecker {
	return &StoreChecker{storage: storage}
}

func (c *StoreChecker) Name() string { return "credential-store" }

func (c *StoreChecker) Check(ctx context.Context) *Result {
	if _, err := credstore.LoadToken(ctx, c.storage); err != nil {
		if credstore.IsCorrupt(err) {
			return Unhealthy("stored credentials are corrupt; log in again")
		}
		return Unhealthy("credential store unreadable").WithDetail("error", err.Error())
	}
	if _, err := credstore.LoadUser(ctx, c.storage); err != nil {
		if credstore.IsCorrupt(err) {
			return Unhealthy("stored user snapshot is corrupt; log in again")
		}
		return Unhealthy("credential store unreadable").WithDetail("error", err.Error())
	}
	if fs, ok := c.storage.(*credstore.FileStore); ok {
		return Healthy("credential store readable").WithDetail("path", fs.Path())
	}
	return Healthy("credential store readable")
}

// TokenChecker looks at the stored token's expiry without contacting the server.
type TokenChecker struct {
	storage credstore.Storage
	now     func() time.Time
}

func NewTokenChecker(storage credstore.Storage) *TokenChecker {
	return &TokenChecker{storage: storage, now: time.Now}
}

func (c *TokenChecker) Name() string { return "session-token" }

func (c *TokenChecker) Check(ctx context.Context) *Result {
	token, err := credstore.LoadToken(ctx, c.storage)
	if err != nil {
		return Degraded("stored token unavailable")
	}
	if token == "" {
		return Degraded("not logged in")
	}

	exp, ok := session.TokenExpiry(token)
	if !ok {
		return Healthy("token has no expiry")
	}
	if !exp.After(c.now()) {
		return Degraded("stored token has expired").WithDetail("expired_at", exp.Format(time.RFC3339))
	}
	return Healthy("stored token is valid").WithDetail("expires_at", exp.Format(time.RFC3339))
}
