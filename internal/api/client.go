package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/rickgao/rainwave-sync/internal/connection"
)

// Caller issues one request through the session engine.
// *connection.Manager satisfies it.
type Caller interface {
	Call(ctx context.Context, action string, params connection.Params) (*connection.Message, error)
}

var _ Caller = (*connection.Manager)(nil)

// Client is the per-endpoint catalog on top of a Caller.
type Client struct {
	caller Caller
	logger *slog.Logger

	maxRetries   int
	retryBackoff time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a catalog client over caller.
func NewClient(caller Caller, opts ...ClientOption) *Client {
	c := &Client{
		caller:       caller,
		logger:       slog.Default(),
		maxRetries:   2,
		retryBackoff: 250 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithRetries sets the retry configuration for read-only requests.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}
