package api

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rickgao/rainwave-sync/internal/connection"
	"github.com/rickgao/rainwave-sync/internal/events"
)

// ErrMissingKey is returned when a reply lacks the key a shim decodes.
var ErrMissingKey = errors.New("response key missing")

// IsRetryable reports whether a failed read-only request may be reissued.
// Application errors are answers, not failures, and are never retried.
func IsRetryable(err error) bool {
	switch connection.KindOf(err) {
	case connection.KindTimeout, connection.KindDisconnected, connection.KindTransport:
		return true
	}
	return false
}

// Do issues action and decodes the payload under key into a T.
func Do[T any](ctx context.Context, c *Client, action string, key events.Key, params connection.Params) (T, error) {
	var zero T
	msg, err := c.caller.Call(ctx, action, params)
	if err != nil {
		return zero, err
	}
	return decodeKey[T](msg, action, key)
}

// doKeys is Do for replies that may carry the payload under one of several
// keys. The first key present wins.
func doKeys[T any](ctx context.Context, c *Client, action string, params connection.Params, keys ...events.Key) (T, error) {
	var zero T
	msg, err := c.caller.Call(ctx, action, params)
	if err != nil {
		return zero, err
	}
	return decodeKey[T](msg, action, keys...)
}

// Raw issues action and returns the whole reply.
func (c *Client) Raw(ctx context.Context, action string, params connection.Params) (*connection.Message, error) {
	return c.caller.Call(ctx, action, params)
}

// doWithRetry issues an idempotent request, retrying retryable failures
// with jittered exponential backoff.
func doWithRetry[T any](ctx context.Context, c *Client, action string, key events.Key, params connection.Params) (T, error) {
	var zero T
	var lastErr error
	backoff := c.retryBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Add jitter: backoff * (0.5 to 1.5)
			jitter := backoff/2 + time.Duration(rand.Int63n(int64(backoff)+1))
			c.logger.Debug("retrying request",
				"attempt", attempt,
				"backoff", jitter,
				"action", action,
			)

			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(jitter):
			}

			backoff *= 2
		}

		v, err := Do[T](ctx, c, action, key, params)
		if err == nil {
			return v, nil
		}

		lastErr = err
		if !IsRetryable(err) || ctx.Err() != nil {
			return zero, err
		}
	}

	return zero, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func decodeKey[T any](msg *connection.Message, action string, keys ...events.Key) (T, error) {
	var v T
	for _, key := range keys {
		if !msg.Has(string(key)) {
			continue
		}
		if err := msg.Decode(string(key), &v); err != nil {
			return v, fmt.Errorf("decode %s: %w", key, err)
		}
		return v, nil
	}
	return v, fmt.Errorf("%s reply: %w: %s", action, ErrMissingKey, keys[0])
}

// paged adds the optional paging fields to params.
func paged(params connection.Params, p Page) connection.Params {
	if params == nil {
		params = connection.Params{}
	}
	if p.PerPage > 0 {
		params["per_page"] = p.PerPage
	}
	if p.PageStart > 0 {
		params["page_start"] = p.PageStart
	}
	return params
}
