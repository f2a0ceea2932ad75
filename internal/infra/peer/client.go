// Package peer notifies the services that keep their own copy of product
// data (cart, user favorites) about product mutations.
package peer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// Policy bounds the retries of one notification. With the defaults a call
// makes 4 attempts separated by 1s, 2s and 4s.
type Policy struct {
	MaxRetries      int
	InitialInterval time.Duration
	Multiplier      float64
	MaxInterval     time.Duration
	AttemptTimeout  time.Duration // 0 means no per-attempt timeout
}

func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:      3,
		InitialInterval: time.Second,
		Multiplier:      2,
		MaxInterval:     30 * time.Second,
		AttemptTimeout:  5 * time.Second,
	}
}

// MetricsRecorder is implemented by obs.Metrics.
type MetricsRecorder interface {
	RecordPeerRetry(ctx context.Context, peer, method string)
	RecordPeerCall(ctx context.Context, peer, method, outcome string)
}

type nopMetrics struct{}

func (nopMetrics) RecordPeerRetry(context.Context, string, string)         {}
func (nopMetrics) RecordPeerCall(context.Context, string, string, string) {}

type Client struct {
	name    string
	baseURL string
	http    *http.Client
	policy  Policy
	logger  *zap.Logger
	metrics MetricsRecorder
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithPolicy(p Policy) Option {
	return func(c *Client) { c.policy = p }
}

func WithMetrics(m MetricsRecorder) Option {
	return func(c *Client) {
		if m != nil {
			c.metrics = m
		}
	}
}

func NewClient(name, baseURL string, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		policy:  DefaultPolicy(),
		logger:  logger.With(zap.String("peer", name)),
		metrics: nopMetrics{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.policy.MaxRetries < 0 {
		c.policy.MaxRetries = 0
	}
	if c.policy.Multiplier < 1 {
		c.policy.Multiplier = 1
	}
	if c.policy.MaxInterval < c.policy.InitialInterval {
		c.policy.MaxInterval = c.policy.InitialInterval
	}
	return c
}

func (c *Client) Name() string {
	return c.name
}

// Notify sends the request on its own goroutine and returns at once. The
// call is detached from ctx cancellation; only ctx values are kept.
func (c *Client) Notify(ctx context.Context, method, path string, payload any) *Call {
	call := newCall(c.name, method, path)

	var body []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			call.resolve(Response{}, fmt.Errorf("%s: encode payload: %w", c.name, err))
			return call
		}
		body = b
	}

	ctx = context.WithoutCancel(ctx)
	go func() {
		resp, err := c.send(ctx, method, path, body)
		call.resolve(resp, err)
	}()
	return call
}

func (c *Client) send(ctx context.Context, method, path string, body []byte) (Response, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.policy.InitialInterval
	b.Multiplier = c.policy.Multiplier
	b.MaxInterval = c.policy.MaxInterval
	b.RandomizationFactor = 0

	attempts := 0
	resp, err := backoff.Retry(ctx,
		func() (Response, error) {
			attempts++
			return c.attempt(ctx, method, path, body)
		},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.policy.MaxRetries+1)),
		backoff.WithNotify(func(err error, delay time.Duration) {
			c.logger.Info("peer call failed, retrying",
				zap.String("method", method),
				zap.String("path", path),
				zap.Int("retry_count", attempts),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
			c.metrics.RecordPeerRetry(ctx, c.name, method)
		}),
	)
	if err != nil {
		c.logger.Error("peer call failed, giving up",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		c.metrics.RecordPeerCall(ctx, c.name, method, StateUnreachable.String())
		return Response{}, &UnreachableError{Peer: c.name, Method: method, Path: path, Attempts: attempts, Err: err}
	}

	c.metrics.RecordPeerCall(ctx, c.name, method, StateSucceeded.String())
	return resp, nil
}

func (c *Client) attempt(ctx context.Context, method, path string, body []byte) (Response, error) {
	if c.policy.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.policy.AttemptTimeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return Response{}, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer func() { _ = res.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return Response{}, err
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return Response{}, &StatusError{Status: res.StatusCode, Body: truncate(string(data), 200)}
	}

	out := Response{Status: res.StatusCode}
	if res.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(data)) == 0 {
		return out, nil
	}
	if !strings.Contains(res.Header.Get("Content-Type"), "json") {
		out.Payload = string(data)
		return out, nil
	}
	if err := json.Unmarshal(data, &out.Payload); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
