package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fisherman-publications/fisherman/internal/errors"
	"github.com/fisherman-publications/fisherman/internal/log"
	"github.com/fisherman-publications/fisherman/internal/metrics"
	"github.com/fisherman-publications/fisherman/internal/telemetry"
)

// DefaultTimeout is applied to the HTTP client when none is supplied
const DefaultTimeout = 30 * time.Second

// TokenSource supplies the bearer token for a request at call time.
// The session store implements it, so requests never read a shared header.
type TokenSource interface {
	Token(ctx context.Context) string
}

// TokenFunc adapts an ordinary function to TokenSource
type TokenFunc func(ctx context.Context) string

// Token implements TokenSource
func (f TokenFunc) Token(ctx context.Context) string {
	return f(ctx)
}

// UnauthorizedHandler is invoked after a 401 with the token the request carried
type UnauthorizedHandler func(ctx context.Context, token string)

type tokenKey struct{}

// WithToken pins the bearer token for requests made with ctx, overriding the
// client's TokenSource. An empty token sends the request unauthenticated.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext returns the token pinned with WithToken, if any
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey{}).(string)
	return token, ok
}

// Client is the Fisherman Publications REST API client
type Client struct {
	baseURL        string
	httpClient     *http.Client
	tokens         TokenSource
	onUnauthorized UnauthorizedHandler
	validator      *Validator
	logger         *log.Logger
	metrics        *metrics.Metrics
	userAgent      string

	maxRetries   uint64
	retryInitial time.Duration
	retryMax     time.Duration
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the HTTP client timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithTokenSource sets where bearer tokens come from
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

// WithUnauthorizedHandler registers the 401 callback
func WithUnauthorizedHandler(h UnauthorizedHandler) Option {
	return func(c *Client) {
		c.onUnauthorized = h
	}
}

// WithRetry retries GET requests that fail at the transport level.
// initial is the first backoff interval; zero keeps the default of 200ms.
func WithRetry(maxRetries uint64, initial time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		if initial > 0 {
			c.retryInitial = initial
		}
	}
}

// WithValidator checks successful responses against the embedded OpenAPI document
func WithValidator(v *Validator) Option {
	return func(c *Client) {
		c.validator = v
	}
}

// WithLogger sets the diagnostic logger
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithMetrics records request counts and latency
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a new API client. baseURL includes the /api prefix,
// e.g. http://localhost:8000/api.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger:       log.DefaultLogger(),
		userAgent:    "fisherman",
		retryInitial: 200 * time.Millisecond,
		retryMax:     5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetTokenSource replaces the token source after construction.
// The session store and the client reference each other, so one side is wired late.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.tokens = ts
}

// SetUnauthorizedHandler replaces the 401 callback after construction
func (c *Client) SetUnauthorizedHandler(h UnauthorizedHandler) {
	c.onUnauthorized = h
}

func (c *Client) token(ctx context.Context) string {
	if token, ok := TokenFromContext(ctx); ok {
		return token
	}
	if c.tokens != nil {
		return c.tokens.Token(ctx)
	}
	return ""
}

// endpoint identifies an API operation by method and route template
type endpoint struct {
	method string
	route  string
}

// do performs a request and decodes a successful JSON body into target
func (c *Client) do(ctx context.Context, ep endpoint, path string, body, target interface{}) error {
	ctx, span := telemetry.StartAPISpan(ctx, ep.method, ep.route)
	defer span.End()

	start := time.Now()
	status := "error"
	defer func() {
		c.metrics.ObserveAPIRequest(ep.route, status, time.Since(start))
	}()

	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		payload = data
	}

	token := c.token(ctx)

	resp, err := c.send(ctx, ep, path, payload, token)
	if err != nil {
		telemetry.RecordError(span, err)
		c.logger.WithError(err).DebugContext(ctx, "api request failed", "method", ep.method, "route", ep.route)
		return errors.NewNetworkError(c.baseURL+path, err)
	}
	status = strconv.Itoa(resp.StatusCode)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if err := c.handleResponse(ctx, ep, token, resp, target); err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	telemetry.RecordSuccess(span)
	return nil
}

// send performs the HTTP exchange, retrying idempotent requests on transport errors
func (c *Client) send(ctx context.Context, ep endpoint, path string, payload []byte, token string) (*http.Response, error) {
	attempt := func() (*http.Response, error) {
		req, err := c.newRequest(ctx, ep.method, path, payload, token)
		if err != nil {
			return nil, err
		}
		return c.httpClient.Do(req)
	}

	if ep.method != http.MethodGet || c.maxRetries == 0 {
		return attempt()
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryInitial
	bo.MaxInterval = c.retryMax

	var resp *http.Response
	op := func() error {
		r, err := attempt()
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		resp = r
		return nil
	}

	err := backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(bo, c.maxRetries), ctx), func(err error, wait time.Duration) {
		c.logger.DebugContext(ctx, "retrying api request", "route", ep.route, "wait", wait, "error", err.Error())
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, payload []byte, token string) (*http.Request, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req, nil
}

// handleResponse maps status codes to errors and decodes the body
func (c *Client) handleResponse(ctx context.Context, ep endpoint, token string, resp *http.Response, target interface{}) error {
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(errors.ErrCodeAPIRequest, "failed to read response", err)
	}

	if resp.StatusCode == http.StatusUnauthorized && token != "" && c.onUnauthorized != nil {
		c.logger.InfoContext(ctx, "authentication error, token might be expired", "route", ep.route)
		c.onUnauthorized(ctx, token)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newError(resp.StatusCode, data)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	if c.validator != nil {
		if err := c.validator.Validate(ep.method, ep.route, resp.StatusCode, data); err != nil {
			return err
		}
	}

	if target != nil {
		if err := json.Unmarshal(data, target); err != nil {
			return malformed(ep.route, err)
		}
	}

	return nil
}
