// SPDX-License-Identifier: MIT

// Package upstream is the client for the agent server (an opencode-style
// HTTP API). It covers the synchronous session and agent endpoints, the
// asynchronous prompt submission, and the global server-sent event feed.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	rlog "github.com/chatrelay/chatrelay/internal/log"
	"github.com/chatrelay/chatrelay/internal/metrics"
	"github.com/chatrelay/chatrelay/internal/platform/httpx"
	"github.com/chatrelay/chatrelay/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// maxResponseBytes bounds synchronous response bodies.
	maxResponseBytes = 8 << 20

	defaultTimeout          = 30 * time.Second
	defaultBreakerThreshold = 5
	defaultBreakerReset     = 30 * time.Second
)

// Options configures a Client.
type Options struct {
	BaseURL string
	// Username and Password enable HTTP basic auth. Auth is sent only when
	// Password is non-empty.
	Username string
	Password string

	Timeout          time.Duration
	BreakerThreshold int
	BreakerReset     time.Duration

	// HTTPClient and StreamClient override the default clients (tests).
	HTTPClient   *http.Client
	StreamClient *http.Client
}

// Client talks to one agent server. It is safe for concurrent use.
type Client struct {
	base     *url.URL
	username string
	password string

	http    *http.Client
	stream  *http.Client
	breaker *CircuitBreaker
	tracer  trace.Tracer
	logger  zerolog.Logger
}

// New creates a client for the agent server at opts.BaseURL.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", opts.BaseURL)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("base url %q: missing host", opts.BaseURL)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	threshold := opts.BreakerThreshold
	if threshold <= 0 {
		threshold = defaultBreakerThreshold
	}
	reset := opts.BreakerReset
	if reset <= 0 {
		reset = defaultBreakerReset
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = httpx.NewClient(timeout)
	}
	sc := opts.StreamClient
	if sc == nil {
		sc = httpx.NewStreamingClient()
	}

	return &Client{
		base:     base,
		username: opts.Username,
		password: opts.Password,
		http:     instrument(hc),
		stream:   instrument(sc),
		breaker:  NewCircuitBreaker("upstream", threshold, reset),
		tracer:   telemetry.Tracer("chatrelay/upstream"),
		logger:   rlog.WithComponent("upstream"),
	}, nil
}

// instrument returns a shallow copy of hc whose transport emits client spans
// and propagates trace context to the agent server.
func instrument(hc *http.Client) *http.Client {
	cp := *hc
	rt := cp.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	cp.Transport = otelhttp.NewTransport(rt)
	return &cp
}

// BaseURL returns the agent server base URL.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// BreakerState exposes the circuit breaker state for readiness checks.
func (c *Client) BreakerState() State {
	return c.breaker.State()
}

// CreateSession creates a new chat session.
func (c *Client) CreateSession(ctx context.Context, req CreateSessionRequest) (Session, error) {
	var s Session
	err := c.call(ctx, "create_session", http.MethodPost, "/session", req, &s)
	return s, err
}

// ListSessions returns all sessions known to the agent server.
func (c *Client) ListSessions(ctx context.Context) ([]Session, error) {
	var out []Session
	if err := c.call(ctx, "list_sessions", http.MethodGet, "/session", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Session{}
	}
	return out, nil
}

// GetSession fetches one session by id.
func (c *Client) GetSession(ctx context.Context, id string) (Session, error) {
	var s Session
	err := c.call(ctx, "get_session", http.MethodGet, "/session/"+url.PathEscape(id), nil, &s)
	return s, err
}

// ListMessages returns the transcript of a session.
func (c *Client) ListMessages(ctx context.Context, id string) ([]Message, error) {
	var out []Message
	if err := c.call(ctx, "list_messages", http.MethodGet, "/session/"+url.PathEscape(id)+"/message", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Message{}
	}
	return out, nil
}

// ListAgents returns the agent profiles offered by the agent server.
func (c *Client) ListAgents(ctx context.Context) ([]Agent, error) {
	var out []Agent
	if err := c.call(ctx, "list_agents", http.MethodGet, "/agent", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Agent{}
	}
	return out, nil
}

// Health queries the agent server's health endpoint. A reachable server that
// reports itself unhealthy is an ErrUpstreamError.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health
	if err := c.call(ctx, "health", http.MethodGet, "/global/health", nil, &h); err != nil {
		return Health{}, err
	}
	if !h.Healthy {
		return h, &Error{Sentinel: ErrUpstreamError, Operation: "health", Body: "agent server reports unhealthy"}
	}
	return h, nil
}

// SendPrompt submits a prompt without waiting for the answer. The agent
// server acknowledges receipt; output arrives on the event feed.
func (c *Client) SendPrompt(ctx context.Context, sessionID string, req PromptRequest) error {
	return c.call(ctx, "send_prompt", http.MethodPost, "/session/"+url.PathEscape(sessionID)+"/prompt_async", req, nil)
}

// call runs one synchronous request through the circuit breaker.
func (c *Client) call(ctx context.Context, op, method, path string, in, out any) error {
	ctx, span := c.tracer.Start(ctx, "upstream."+op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	start := time.Now()
	var status int
	err := c.breaker.Execute(func() error {
		var err error
		status, err = c.do(ctx, op, method, path, in, out)
		return err
	}, isBreakerFailure)

	metrics.ObserveUpstreamRequest(op, Class(err), time.Since(start))
	span.SetAttributes(telemetry.UpstreamAttributes(op, status)...)

	logger := rlog.WithContext(ctx, c.logger)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, Class(err))
		logger.Debug().
			Err(err).
			Str(rlog.FieldOperation, op).
			Int(rlog.FieldStatus, status).
			Int64(rlog.FieldDurationMS, time.Since(start).Milliseconds()).
			Msg("upstream call failed")
		return err
	}
	logger.Debug().
		Str(rlog.FieldOperation, op).
		Int(rlog.FieldStatus, status).
		Int64(rlog.FieldDurationMS, time.Since(start).Milliseconds()).
		Msg("upstream call")
	return nil
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return 0, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return 0, wrapError(op, 0, "", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return res.StatusCode, wrapError(op, res.StatusCode, strings.TrimSpace(string(b)), nil)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, maxResponseBytes))
		return res.StatusCode, nil
	}

	dec := json.NewDecoder(io.LimitReader(res.Body, maxResponseBytes))
	if err := dec.Decode(out); err != nil {
		if err == io.EOF {
			err = fmt.Errorf("%w: empty body", ErrUpstreamBadResponse)
		}
		return res.StatusCode, wrapError(op, res.StatusCode, "", fmt.Errorf("%w: %v", ErrUpstreamBadResponse, err))
	}
	return res.StatusCode, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	return req, nil
}
