// SPDX-License-Identifier: MIT

package upstream

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"

	rlog "github.com/chatrelay/chatrelay/internal/log"
	"github.com/chatrelay/chatrelay/internal/metrics"
	"github.com/rs/zerolog"
)

// ErrFeedClosed reports that the agent server ended the event feed.
var ErrFeedClosed = errors.New("upstream: event feed closed by server")

const (
	eventBuffer     = 64
	maxEventBytes   = 4 << 20
	initialScanSize = 64 << 10
)

// Subscription is a live handle on the global event feed.
//
// Events is closed when the feed ends for any reason. After that, Err
// reports why: nil when the subscriber called Close, otherwise the feed
// failure. Close is idempotent and waits for the reader goroutine to exit.
type Subscription interface {
	Events() <-chan Event
	Err() error
	Close() error
}

// Subscribe opens the global event feed. When it returns without error the
// agent server has accepted the stream, so any event emitted afterwards
// will be delivered.
func (c *Client) Subscribe(ctx context.Context) (Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)

	req, err := c.newRequest(ctx, http.MethodGet, "/event", nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	res, err := c.stream.Do(req)
	if err != nil {
		cancel()
		return nil, wrapError("subscribe", 0, "", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		_ = res.Body.Close()
		cancel()
		return nil, wrapError("subscribe", res.StatusCode, strings.TrimSpace(string(b)), nil)
	}
	if mt, _, _ := mime.ParseMediaType(res.Header.Get("Content-Type")); mt != "text/event-stream" {
		_ = res.Body.Close()
		cancel()
		return nil, wrapError("subscribe", res.StatusCode, "", fmt.Errorf("%w: content type %q", ErrUpstreamBadResponse, mt))
	}

	s := &feedSubscription{
		events: make(chan Event, eventBuffer),
		done:   make(chan struct{}),
		body:   res.Body,
		cancel: cancel,
		ctx:    ctx,
		logger: rlog.WithContext(ctx, c.logger),
	}
	metrics.IncFeedSubscriptions()
	go s.read()
	return s, nil
}

type feedSubscription struct {
	events chan Event
	done   chan struct{}
	body   io.ReadCloser
	cancel context.CancelFunc
	ctx    context.Context
	logger zerolog.Logger

	closeOnce sync.Once
	mu        sync.Mutex
	err       error
	closed    bool
}

func (s *feedSubscription) Events() <-chan Event { return s.events }

func (s *feedSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *feedSubscription) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.cancel()
		_ = s.body.Close()
	})
	<-s.done
	return nil
}

func (s *feedSubscription) read() {
	defer close(s.done)
	defer metrics.DecFeedSubscriptions()
	defer close(s.events)

	err := scanEvents(s.body, func(data []byte) bool {
		ev, err := ParseEvent(data)
		if err != nil {
			s.logger.Debug().Err(err).Msg("skipping malformed feed event")
			return true
		}
		metrics.IncFeedEvents()
		select {
		case s.events <- ev:
			return true
		case <-s.ctx.Done():
			return false
		}
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	switch {
	case s.ctx.Err() != nil:
		s.err = s.ctx.Err()
	case err == nil:
		s.err = ErrFeedClosed
	default:
		s.err = wrapError("event_feed", 0, "", err)
	}
}

// scanEvents reads a text/event-stream body and calls emit with the data of
// each complete event. Multi-line data fields are joined with "\n". Comment
// lines and the event/id/retry fields are ignored. It returns nil on a clean
// EOF and stops early when emit returns false.
func scanEvents(r io.Reader, emit func(data []byte) bool) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, initialScanSize), maxEventBytes)

	var data bytes.Buffer
	hasData := false
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			if hasData {
				if !emit(bytes.Clone(data.Bytes())) {
					return nil
				}
			}
			data.Reset()
			hasData = false
			continue
		}
		if line[0] == ':' {
			continue
		}

		field, value, _ := bytes.Cut(line, []byte(":"))
		value = bytes.TrimPrefix(value, []byte(" "))
		if string(field) != "data" {
			continue
		}
		if hasData {
			data.WriteByte('\n')
		}
		data.Write(value)
		hasData = true
	}
	return sc.Err()
}
