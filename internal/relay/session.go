// SPDX-License-Identifier: MIT

package relay

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/chatrelay/chatrelay/internal/metrics"
	"github.com/chatrelay/chatrelay/internal/upstream"
)

// session is the state of one Serve call. Writes to sw happen only on the
// goroutine running run. teardown may be entered from any goroutine.
type session struct {
	id       string
	agent    string
	opts     Options
	upstream Upstream
	sw       *sseWriter
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// finished flips once, when the terminal outcome is decided.
	finished atomic.Bool
	outcome  atomic.Value // Outcome
	message  string

	teardownOnce sync.Once
	mu           sync.Mutex
	torn         bool
	sub          upstream.Subscription
	safety       *time.Timer
	grace        *time.Timer
	heartbeat    *time.Ticker

	acc        *Accumulator
	forwarded  int
	dropped    int
	started    time.Time
	firstEvent bool
}

func newSession(parent context.Context, up Upstream, in Request, opts Options, sw *sseWriter, logger zerolog.Logger) *session {
	ctx, cancel := context.WithCancel(parent)
	return &session{
		id:       in.SessionID,
		agent:    in.Agent,
		opts:     opts,
		upstream: up,
		sw:       sw,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		acc:      NewAccumulator(),
		started:  time.Now(),
	}
}

// run drives the session to its end and returns the summary. It always
// leaves the session torn down.
func (s *session) run(content string) Result {
	defer s.teardown()

	s.mu.Lock()
	if s.torn {
		s.mu.Unlock()
		return s.result()
	}
	s.safety = time.NewTimer(s.opts.Timeout)
	var heartbeatC <-chan time.Time
	if s.opts.Heartbeat > 0 {
		s.heartbeat = time.NewTicker(s.opts.Heartbeat)
		heartbeatC = s.heartbeat.C
	}
	safetyC := s.safety.C
	s.mu.Unlock()

	sub, err := s.upstream.Subscribe(s.ctx)
	if err != nil {
		if s.ctx.Err() != nil {
			s.finish(OutcomeClientGone, "", "")
		} else {
			s.finish(OutcomeError, TypeError, fmt.Sprintf("event feed unavailable: %v", err))
		}
		return s.result()
	}
	if !s.attach(sub) {
		return s.result()
	}

	sendErr := make(chan error, 1)
	go func() {
		sendErr <- s.upstream.SendPrompt(s.ctx, s.id, upstream.NewTextPrompt(content, s.agent))
	}()
	pending := sendErr
	defer func() {
		if pending != nil {
			<-pending
		}
	}()

	events := sub.Events()
	var graceC <-chan time.Time

	for {
		select {
		case <-s.ctx.Done():
			s.finish(OutcomeClientGone, "", "")
			return s.result()

		case err := <-pending:
			pending = nil
			if err != nil {
				s.finish(OutcomeError, TypeError, fmt.Sprintf("failed to submit prompt: %v", err))
				return s.result()
			}
			s.logger.Debug().Msg("prompt accepted by agent server")

		case ev, ok := <-events:
			if !ok {
				s.feedEnded(sub)
				return s.result()
			}
			if !s.handle(ev) {
				return s.result()
			}
			if ev.Kind == upstream.KindSessionIdle && ev.SessionID == s.id && graceC == nil {
				graceC = s.armGrace()
				// Completion was seen; only the grace interval ends it now.
				safetyC = nil
			}

		case <-graceC:
			s.finish(OutcomeDone, TypeDone, "")
			return s.result()

		case <-safetyC:
			s.finish(OutcomeTimeout, TypeTimeout,
				fmt.Sprintf("no response from agent within %s", s.opts.Timeout))
			return s.result()

		case <-heartbeatC:
			if err := s.sw.comment("keepalive"); err != nil {
				s.finish(OutcomeClientGone, "", "")
				return s.result()
			}
		}
	}
}

// handle forwards or drops one event. It returns false when the session
// has ended.
func (s *session) handle(ev upstream.Event) bool {
	if s.finished.Load() {
		return false
	}
	if ev.SessionID != "" && ev.SessionID != s.id {
		s.dropped++
		return true
	}
	if err := s.sw.data(ev.Raw); err != nil {
		s.finish(OutcomeClientGone, "", "")
		return false
	}
	s.forwarded++
	s.acc.Add(ev)
	if !s.firstEvent {
		s.firstEvent = true
		metrics.ObserveRelayFirstEvent(time.Since(s.started))
	}

	if ev.Kind == upstream.KindSessionError && ev.SessionID == s.id {
		msg := ev.ErrorMessage
		if msg == "" {
			msg = "agent reported a session error"
		}
		s.finish(OutcomeError, TypeError, msg)
		return false
	}
	return true
}

func (s *session) feedEnded(sub upstream.Subscription) {
	if s.ctx.Err() != nil {
		s.finish(OutcomeClientGone, "", "")
		return
	}
	msg := "event feed closed"
	if err := sub.Err(); err != nil {
		msg = fmt.Sprintf("event feed failed: %v", err)
	}
	s.finish(OutcomeError, TypeError, msg)
}

func (s *session) armGrace() <-chan time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.torn {
		return nil
	}
	s.grace = time.NewTimer(s.opts.GraceInterval)
	s.logger.Debug().Dur("grace", s.opts.GraceInterval).Msg("session idle, grace armed")
	return s.grace.C
}

// attach hands sub to the session. If teardown already ran, sub is closed
// and attach reports false.
func (s *session) attach(sub upstream.Subscription) bool {
	s.mu.Lock()
	if s.torn {
		s.mu.Unlock()
		_ = sub.Close()
		return false
	}
	s.sub = sub
	s.mu.Unlock()
	return true
}

// finish decides the outcome. Only the first caller wins; if eventType is
// set the winner writes the terminal signal before tearing down.
func (s *session) finish(outcome Outcome, eventType, message string) {
	if !s.finished.CompareAndSwap(false, true) {
		return
	}
	s.outcome.Store(outcome)
	s.message = message
	if eventType != "" {
		if err := s.sw.terminal(eventType, message); err != nil {
			s.logger.Debug().Err(err).Msg("terminal signal not delivered")
		}
	}
	s.teardown()
}

// clientGone runs on the AfterFunc goroutine when the browser disconnects.
func (s *session) clientGone() {
	if s.finished.CompareAndSwap(false, true) {
		s.outcome.Store(OutcomeClientGone)
	}
	s.teardown()
}

// teardown releases every per-session resource exactly once.
func (s *session) teardown() {
	s.teardownOnce.Do(func() {
		s.cancel()

		s.mu.Lock()
		s.torn = true
		sub := s.sub
		if s.safety != nil {
			s.safety.Stop()
		}
		if s.grace != nil {
			s.grace.Stop()
		}
		if s.heartbeat != nil {
			s.heartbeat.Stop()
		}
		s.mu.Unlock()

		if sub != nil {
			if err := sub.Close(); err != nil {
				s.logger.Debug().Err(err).Msg("closing event feed")
			}
		}
	})
}

func (s *session) result() Result {
	outcome, _ := s.outcome.Load().(Outcome)
	if outcome == "" {
		outcome = OutcomeClientGone
	}
	return Result{
		Outcome:   outcome,
		Message:   s.message,
		Forwarded: s.forwarded,
		Dropped:   s.dropped,
		Text:      s.acc.Text(),
		Duration:  time.Since(s.started),
	}
}
