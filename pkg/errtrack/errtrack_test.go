package errtrack_test

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yusufsyaifudin/katalog/pkg/errtrack"
)

type captured struct {
	mu     sync.Mutex
	events []*sentry.Event
}

// beforeSend records the event and drops it so nothing leaves the test.
func (c *captured) beforeSend(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *captured) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func newTracker(t *testing.T) (*errtrack.Tracker, *captured) {
	t.Helper()

	c := &captured{}
	tracker, err := errtrack.New(errtrack.Config{
		DSN:         "https://public@sentry.example.com/1",
		Environment: "test",
		BeforeSend:  c.beforeSend,
	})
	require.NoError(t, err)
	require.True(t, tracker.Enabled())
	return tracker, c
}

func TestNew(t *testing.T) {
	t.Run("empty dsn disables reporting", func(t *testing.T) {
		tracker, err := errtrack.New(errtrack.Config{})
		require.NoError(t, err)
		assert.False(t, tracker.Enabled())

		tracker.Capture(context.Background(), errors.New("boom"), "ignored")
		assert.True(t, tracker.Flush(time.Millisecond))
	})

	t.Run("invalid dsn", func(t *testing.T) {
		_, err := errtrack.New(errtrack.Config{DSN: "not a dsn"})
		assert.Error(t, err)
	})
}

func TestTracker_Capture(t *testing.T) {
	tracker, c := newTracker(t)

	tracker.Capture(context.Background(), errors.New("db down"), "list apps failed")
	tracker.Capture(context.Background(), nil, "nothing")
	tracker.Capture(context.Background(), fmt.Errorf("wrap: %w", context.Canceled), "client left")
	tracker.Capture(context.Background(), errors.New("write: broken pipe"), "client left")

	assert.Equal(t, 1, c.len())
}

func TestTracker_CaptureRequest(t *testing.T) {
	tracker, c := newTracker(t)

	req := httptest.NewRequest("GET", "/api/apps?search=x", nil)
	tracker.CaptureRequest(req, errors.New("db down"), "list apps failed")

	require.Equal(t, 1, c.len())
	assert.Equal(t, "/api/apps", c.events[0].Tags["http.path"])
	assert.Equal(t, "GET", c.events[0].Tags["http.method"])
}
