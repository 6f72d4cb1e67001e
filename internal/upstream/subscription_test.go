// SPDX-License-Identifier: MIT

package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func nextEvent(t *testing.T, sub Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "feed closed early: %v", sub.Err())
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func waitClosed(t *testing.T, sub Subscription) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-sub.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("feed did not close")
		}
	}
}

func TestSubscribe_DeliversInOrder(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()
	c := newTestClient(t, mock.URL)

	sub, err := c.Subscribe(context.Background())
	require.NoError(t, err)
	defer func() { _ = sub.Close() }()

	assert.Equal(t, "server.connected", nextEvent(t, sub).Type)
	require.True(t, mock.WaitSubscribed(time.Second))

	mock.PublishEvent(TypePartUpdated, map[string]any{"part": map[string]any{"sessionID": "s"}, "delta": "a"})
	mock.PublishEvent(TypePartUpdated, map[string]any{"part": map[string]any{"sessionID": "s"}, "delta": "b"})
	mock.PublishEvent(TypeSessionIdle, map[string]any{"sessionID": "s"})

	assert.Equal(t, "a", nextEvent(t, sub).Delta)
	assert.Equal(t, "b", nextEvent(t, sub).Delta)
	assert.Equal(t, KindSessionIdle, nextEvent(t, sub).Kind)
}

func TestSubscribe_SkipsMalformedEvents(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()
	c := newTestClient(t, mock.URL)

	sub, err := c.Subscribe(context.Background())
	require.NoError(t, err)
	defer func() { _ = sub.Close() }()
	nextEvent(t, sub)
	require.True(t, mock.WaitSubscribed(time.Second))

	mock.Publish(`{broken`)
	mock.Publish(`{"type":"after"}`)
	assert.Equal(t, "after", nextEvent(t, sub).Type)
}

func TestSubscribe_ServerDropReportsError(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()
	c := newTestClient(t, mock.URL)

	sub, err := c.Subscribe(context.Background())
	require.NoError(t, err)
	defer func() { _ = sub.Close() }()
	nextEvent(t, sub)
	require.True(t, mock.WaitSubscribed(time.Second))

	mock.DropFeeds()
	waitClosed(t, sub)
	assert.True(t, errors.Is(sub.Err(), ErrFeedClosed), "%v", sub.Err())
}

func TestSubscribe_CloseIsSilentAndIdempotent(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()
	c := newTestClient(t, mock.URL)

	sub, err := c.Subscribe(context.Background())
	require.NoError(t, err)
	nextEvent(t, sub)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	waitClosed(t, sub)
	assert.NoError(t, sub.Err())

	assert.Eventually(t, func() bool { return mock.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestSubscribe_ParentCancel(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()
	c := newTestClient(t, mock.URL)

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := c.Subscribe(ctx)
	require.NoError(t, err)
	defer func() { _ = sub.Close() }()
	nextEvent(t, sub)

	cancel()
	waitClosed(t, sub)
	assert.True(t, errors.Is(sub.Err(), context.Canceled), "%v", sub.Err())
}

func TestSubscribe_RejectsNonStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()
	c := newTestClient(t, srv.URL)

	_, err := c.Subscribe(context.Background())
	assert.True(t, errors.Is(err, ErrUpstreamBadResponse), "%v", err)
}

func TestSubscribe_HTTPError(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()
	mock.Fail(EndpointEvent, http.StatusServiceUnavailable)
	c := newTestClient(t, mock.URL)

	_, err := c.Subscribe(context.Background())
	assert.True(t, errors.Is(err, ErrUpstreamError), "%v", err)
}

func TestSubscribe_NoGoroutineLeak(t *testing.T) {
	mock := NewMockServer()
	hc := &http.Client{Transport: &http.Transport{}}
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	defer mock.Close()
	defer hc.CloseIdleConnections()

	c := newTestClient(t, mock.URL, func(o *Options) {
		o.HTTPClient = hc
		o.StreamClient = hc
	})

	for i := 0; i < 5; i++ {
		sub, err := c.Subscribe(context.Background())
		require.NoError(t, err)
		nextEvent(t, sub)
		require.NoError(t, sub.Close())
	}
}
