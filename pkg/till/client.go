package till

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tillcache/till_sdk_go/internal/httpx"
)

// Backend performs the raw exchanges with a Till server. Status is the HTTP
// status the server answered with; err is reserved for failures where no
// status was obtained (connection refused, DNS, cancelled context, ...).
type Backend interface {
	Get(ctx context.Context, key string) (value string, status int, err error)
	Set(ctx context.Context, key, value, lifespan string) (status int, err error)
}

// Option configures a Client.
type Option func(*options)

type options struct {
	httpClient *http.Client
	log        logrus.FieldLogger
}

// WithHTTPClient overrides the *http.Client used by the HTTP backend. The
// client is copied with redirect following disabled; the caller's value is
// not modified.
func WithHTTPClient(h *http.Client) Option {
	return func(o *options) {
		if h != nil {
			o.httpClient = h
		}
	}
}

// WithLogger sets the logger that records swallowed failures at debug level.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// Client talks to a single Till server. It holds no mutable state and is
// safe for concurrent use.
type Client struct {
	cfg     Config
	backend Backend
	log     logrus.FieldLogger
}

// New constructs a Client for host and port. Empty values fall back to
// DefaultHost and DefaultPort; nothing else is validated.
func New(host, port string, opts ...Option) *Client {
	cfg := Config{Host: host, Port: port}.withDefaults()
	o := buildOptions(opts)

	httpOpts := []httpx.Option{httpx.WithLogger(o.log)}
	if o.httpClient != nil {
		httpOpts = append(httpOpts, httpx.WithHTTPClient(o.httpClient))
	}
	backend := &httpBackend{client: httpx.NewClient(cfg.BaseURL(), httpOpts...)}
	return &Client{cfg: cfg, backend: backend, log: o.log}
}

// NewWithBackend allows callers to supply a custom backend (e.g., mocks).
func NewWithBackend(cfg Config, b Backend, opts ...Option) *Client {
	o := buildOptions(opts)
	return &Client{cfg: cfg.withDefaults(), backend: b, log: o.log}
}

func buildOptions(opts []Option) options {
	o := options{log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Config returns the host and port the client targets.
func (c *Client) Config() Config { return c.cfg }

// Host returns the configured host.
func (c *Client) Host() string { return c.cfg.Host }

// Port returns the configured port.
func (c *Client) Port() string { return c.cfg.Port }

// Get fetches the value stored under key. The boolean is true only when the
// server answered 200; any other status, or a transport failure, yields
// ("", false).
func (c *Client) Get(ctx context.Context, key string) (string, bool) {
	if c == nil || c.backend == nil {
		return "", false
	}
	value, status, err := c.backend.Get(ctx, key)
	if err != nil {
		c.logFailure("get", key, err)
		return "", false
	}
	if status != http.StatusOK {
		return "", false
	}
	return value, true
}

// Set stores value under key with the default lifespan. The response status
// is not inspected and failures are dropped, so callers cannot tell whether
// the write landed.
func (c *Client) Set(ctx context.Context, key, value string) {
	if c == nil || c.backend == nil {
		return
	}
	if _, err := c.backend.Set(ctx, key, value, DefaultLifespan); err != nil {
		c.logFailure("set", key, err)
	}
}

// Exists reports whether Get returns a non-empty value for key. It performs a
// full GET; Till has no lightweight existence check.
func (c *Client) Exists(ctx context.Context, key string) bool {
	value, ok := c.Get(ctx, key)
	return ok && value != ""
}

// IsActive calls the object endpoint with an empty key. Till rejects that
// request with 400, which is the only answer treated as a live server.
func (c *Client) IsActive(ctx context.Context) bool {
	if c == nil || c.backend == nil {
		return false
	}
	_, status, err := c.backend.Get(ctx, "")
	if err != nil {
		c.logFailure("is_active", "", err)
		return false
	}
	return status == http.StatusBadRequest
}

func (c *Client) logFailure(op, key string, err error) {
	c.log.WithFields(logrus.Fields{
		"op":   op,
		"key":  key,
		"addr": net.JoinHostPort(c.cfg.Host, c.cfg.Port),
	}).WithError(err).Debug("till: request failed")
}

type httpBackend struct {
	client *httpx.Client
}

func (b *httpBackend) Get(ctx context.Context, key string) (string, int, error) {
	if b == nil || b.client == nil {
		return "", 0, fmt.Errorf("till: http backend not configured")
	}
	resp, err := b.client.Do(ctx, &httpx.Request{
		Method: http.MethodGet,
		Path:   ObjectPath(key),
	})
	if err != nil {
		if status := httpx.StatusCode(err); status != 0 {
			return "", status, nil
		}
		return "", 0, err
	}
	data, err := httpx.ReadAllAndClose(resp.Body)
	if err != nil {
		return "", 0, fmt.Errorf("till: read body: %w", err)
	}
	return string(data), resp.StatusCode, nil
}

func (b *httpBackend) Set(ctx context.Context, key, value, lifespan string) (int, error) {
	if b == nil || b.client == nil {
		return 0, fmt.Errorf("till: http backend not configured")
	}
	resp, err := b.client.Do(ctx, &httpx.Request{
		Method: http.MethodPost,
		Path:   ObjectPath(key),
		Header: http.Header{LifespanHeader: {lifespan}},
		// strings.Reader lets net/http set Content-Length to the byte length.
		Body: strings.NewReader(value),
	})
	if err != nil {
		if status := httpx.StatusCode(err); status != 0 {
			return status, nil
		}
		return 0, err
	}
	httpx.DrainAndClose(resp.Body)
	return resp.StatusCode, nil
}
