// Package monime is a client for the Monime payment gateway: checkout
// sessions, payment codes and mobile-money payouts.
package monime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sosseats/src/monitoring"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultBaseURL = "https://api.monime.io"
	DefaultVersion = "caph.2025-08-23"

	maxAttempts  = 3
	metadataFrom = "sos_seats"
)

var tracer = otel.Tracer("sosseats/monime")

type Client struct {
	baseURL   string
	apiKey    string
	payoutKey string
	spaceID   string
	version   string
	mock      bool

	hc     *http.Client
	newKey func() string
	sleep  func(ctx context.Context, d time.Duration) error
}

type Option func(*Client)

// WithPayoutKey sets a separate API key for payout endpoints.
func WithPayoutKey(key string) Option {
	return func(c *Client) {
		if key != "" {
			c.payoutKey = key
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

func WithVersion(v string) Option {
	return func(c *Client) {
		if v != "" {
			c.version = v
		}
	}
}

// WithMockCheckout answers checkout sessions locally with a mock redirect.
func WithMockCheckout() Option {
	return func(c *Client) { c.mock = true }
}

// WithSleep replaces the backoff wait.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

func NewClient(baseURL, apiKey, spaceID string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		payoutKey: apiKey,
		spaceID:   spaceID,
		version:   DefaultVersion,
		hc:        &http.Client{Timeout: 30 * time.Second},
		newKey:    uuid.NewString,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type envelope struct {
	Success  bool            `json:"success"`
	Messages []any           `json:"messages"`
	Result   json.RawMessage `json:"result"`
}

type call struct {
	op     string
	method string
	path   string
	key    string
	body   any
}

func (c call) mutating() bool {
	return c.method == http.MethodPost || c.method == http.MethodDelete
}

// do sends the call, retrying only transient gateway errors. Each attempt
// carries its own idempotency key.
func (c *Client) do(ctx context.Context, cl call, out any) error {
	ctx, span := tracer.Start(ctx, "monime."+cl.op)
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", cl.method),
		attribute.String("monime.path", cl.path),
	)

	var payload []byte
	if cl.body != nil {
		b, err := json.Marshal(cl.body)
		if err != nil {
			return fmt.Errorf("monime %s: encode body: %w", cl.op, err)
		}
		payload = b
	}

	var lastErr *APIError
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			monitoring.GatewayRetries.WithLabelValues(cl.op).Inc()
			log.Printf("[monime] %s: transient error, retrying (attempt %d of %d)\n", cl.op, attempt+1, maxAttempts)
			if err := c.sleep(ctx, time.Duration(attempt)*time.Second); err != nil {
				return fmt.Errorf("monime %s: %w", cl.op, err)
			}
		}
		start := time.Now()
		status, body, err := c.send(ctx, cl, payload)
		if err != nil {
			monitoring.ObserveGatewayCall(cl.op, "network_error", time.Since(start))
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if ctx.Err() != nil {
				return fmt.Errorf("monime %s: %w", cl.op, err)
			}
			log.Printf("[monime] %s: transport error: %s\n", cl.op, err.Error())
			return fmt.Errorf("monime %s: %w", cl.op, transportError(err))
		}
		if status >= 200 && status < 300 {
			monitoring.ObserveGatewayCall(cl.op, "ok", time.Since(start))
			return decodeResult(cl.op, body, out)
		}
		lastErr = parseError(status, body)
		if lastErr.Infrastructure {
			monitoring.ObserveGatewayCall(cl.op, "infrastructure_error", time.Since(start))
			continue
		}
		monitoring.ObserveGatewayCall(cl.op, "rejected", time.Since(start))
		break
	}
	span.RecordError(lastErr)
	span.SetStatus(codes.Error, lastErr.Message)
	log.Printf("[monime] %s failed: %s\n", cl.op, lastErr.Error())
	return lastErr
}

func (c *Client) send(ctx context.Context, cl call, payload []byte) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+cl.key)
	req.Header.Set("Monime-Space-Id", c.spaceID)
	req.Header.Set("Monime-Version", c.version)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cl.mutating() {
		req.Header.Set("Idempotency-Key", c.newKey())
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, nil, fmt.Errorf("read body: %w", err)
	}
	return res.StatusCode, b, nil
}

func decodeResult(op string, body []byte, out any) error {
	if out == nil || len(body) == 0 {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("monime %s: decode response: %w", op, err)
	}
	if len(env.Result) == 0 || string(env.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("monime %s: decode result: %w", op, err)
	}
	return nil
}
