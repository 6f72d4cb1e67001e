// SPDX-License-Identifier: MIT

// Package relay streams the agent server's progress on one prompt to a
// browser as server-sent events.
//
// A relay session subscribes to the global event feed, submits the prompt,
// forwards every event that belongs to the session (or to no session) in
// feed order, and ends with exactly one terminal signal: "done" a grace
// interval after the session goes idle, "error" on upstream failure, or
// "timeout" when the safety ceiling expires. A client disconnect ends the
// session silently. All paths converge on one idempotent teardown.
package relay

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	rlog "github.com/chatrelay/chatrelay/internal/log"
	"github.com/chatrelay/chatrelay/internal/metrics"
	"github.com/chatrelay/chatrelay/internal/telemetry"
	"github.com/chatrelay/chatrelay/internal/upstream"
)

var (
	// ErrEmptyContent is returned before anything is written when the prompt
	// text is blank.
	ErrEmptyContent = errors.New("relay: prompt content is empty")
	// ErrStreamingUnsupported is returned when the response writer cannot flush.
	ErrStreamingUnsupported = errors.New("relay: streaming unsupported by response writer")
)

const (
	DefaultTimeout       = 5 * time.Minute
	DefaultGraceInterval = time.Second
	DefaultHeartbeat     = 15 * time.Second
)

// Upstream is the part of the agent server client a relay needs.
type Upstream interface {
	Subscribe(ctx context.Context) (upstream.Subscription, error)
	SendPrompt(ctx context.Context, sessionID string, req upstream.PromptRequest) error
}

// Options tunes relay timing. Zero Timeout selects the default; zero
// Heartbeat disables keepalive comments.
type Options struct {
	Timeout       time.Duration
	GraceInterval time.Duration
	Heartbeat     time.Duration
}

// DefaultOptions returns the production timings.
func DefaultOptions() Options {
	return Options{
		Timeout:       DefaultTimeout,
		GraceInterval: DefaultGraceInterval,
		Heartbeat:     DefaultHeartbeat,
	}
}

func (o Options) normalize() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.GraceInterval < 0 {
		o.GraceInterval = DefaultGraceInterval
	}
	if o.Heartbeat < 0 {
		o.Heartbeat = 0
	}
	return o
}

// Request is one prompt submitted by a browser.
type Request struct {
	SessionID string
	Content   string
	Agent     string
}

// Outcome is how a relay session ended.
type Outcome string

const (
	OutcomeDone       Outcome = "done"
	OutcomeError      Outcome = "error"
	OutcomeTimeout    Outcome = "timeout"
	OutcomeClientGone Outcome = "client_gone"
)

// Result summarises a finished relay session.
type Result struct {
	Outcome Outcome
	// Message is the text of the terminal error or timeout signal.
	Message   string
	Forwarded int
	Dropped   int
	// Text is the assembled response text from part updates.
	Text     string
	Duration time.Duration
}

// Relay serves prompt streams. It is safe for concurrent use; every call to
// Serve runs an independent session.
type Relay struct {
	upstream Upstream
	tracer   trace.Tracer
	logger   zerolog.Logger

	mu   sync.RWMutex
	opts Options
}

// New creates a relay over up.
func New(up Upstream, opts Options) *Relay {
	return &Relay{
		upstream: up,
		opts:     opts.normalize(),
		tracer:   telemetry.Tracer("chatrelay/relay"),
		logger:   rlog.WithComponent("relay"),
	}
}

// SetOptions replaces the timings used by sessions started afterwards.
func (r *Relay) SetOptions(opts Options) {
	r.mu.Lock()
	r.opts = opts.normalize()
	r.mu.Unlock()
}

// Options returns the current timings.
func (r *Relay) Options() Options {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.opts
}

// Serve runs one relay session on w. It returns an error only when nothing
// has been written yet (ErrEmptyContent, ErrStreamingUnsupported); once the
// stream is open every failure is reported in-band and in Result.
//
// Serve blocks until the session ends and must be called from the handler
// goroutine that owns w.
func (r *Relay) Serve(w http.ResponseWriter, req *http.Request, in Request) (Result, error) {
	if strings.TrimSpace(in.Content) == "" {
		return Result{}, ErrEmptyContent
	}
	sw, ok := newSSEWriter(w)
	if !ok {
		return Result{}, ErrStreamingUnsupported
	}

	ctx := rlog.ContextWithSessionID(req.Context(), in.SessionID)
	ctx, span := r.tracer.Start(ctx, "relay.session",
		trace.WithAttributes(telemetry.SessionAttributes(in.SessionID, in.Agent)...))
	defer span.End()

	logger := rlog.WithContext(ctx, r.logger)
	opts := r.Options()

	sw.open()
	metrics.RelaySessionsActive.Inc()
	defer metrics.RelaySessionsActive.Dec()

	logger.Info().
		Str(rlog.FieldEvent, "relay.start").
		Str("agent", in.Agent).
		Dur("timeout", opts.Timeout).
		Msg("prompt relay started")

	s := newSession(ctx, r.upstream, in, opts, sw, logger)
	stop := context.AfterFunc(req.Context(), s.clientGone)
	res := s.run(in.Content)
	stop()

	metrics.RecordRelayEnd(string(res.Outcome), res.Forwarded, res.Dropped, res.Duration)
	span.SetAttributes(telemetry.RelayAttributes(string(res.Outcome), res.Forwarded, res.Dropped, res.Duration.Milliseconds())...)
	if res.Outcome == OutcomeError || res.Outcome == OutcomeTimeout {
		span.SetStatus(codes.Error, res.Message)
	}

	ev := logger.Info()
	if res.Outcome == OutcomeError {
		ev = logger.Warn().Str("reason", res.Message)
	}
	ev.Str(rlog.FieldEvent, "relay.end").
		Str(rlog.FieldOutcome, string(res.Outcome)).
		Int(rlog.FieldForwarded, res.Forwarded).
		Int(rlog.FieldDropped, res.Dropped).
		Int64(rlog.FieldDurationMS, res.Duration.Milliseconds()).
		Int("text_len", len(res.Text)).
		Msg("prompt relay finished")

	return res, nil
}
