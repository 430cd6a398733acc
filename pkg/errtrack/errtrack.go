// Package errtrack reports unexpected errors to Sentry.
package errtrack

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/yusufsyaifudin/ylog"
)

// ignoredErrors are logged but never sent, they come from clients going away.
var ignoredErrors = []string{
	"connection reset by peer",
	"broken pipe",
	"use of closed network connection",
}

type Config struct {
	// DSN empty disables reporting, errors are still logged.
	DSN         string  `yaml:"dsn"`
	Environment string  `yaml:"environment"`
	Release     string  `yaml:"release"`
	SampleRate  float64 `yaml:"sample_rate" validate:"min=0,max=1"`

	BeforeSend func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event `yaml:"-" validate:"-"`
}

type Tracker struct {
	hub *sentry.Hub
}

func New(cfg Config) (*Tracker, error) {
	if cfg.DSN == "" {
		return &Tracker{}, nil
	}

	sampleRate := cfg.SampleRate
	if sampleRate == 0 {
		sampleRate = 1
	}

	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     cfg.Release,
		SampleRate:  sampleRate,
		BeforeSend:  cfg.BeforeSend,
	})
	if err != nil {
		return nil, fmt.Errorf("sentry init failed: %w", err)
	}

	return &Tracker{
		hub: sentry.NewHub(client, sentry.NewScope()),
	}, nil
}

func (t *Tracker) Enabled() bool {
	return t != nil && t.hub != nil
}

// Capture logs err and reports it outside of an HTTP request (startup, background jobs).
func (t *Tracker) Capture(ctx context.Context, err error, message string) {
	if err == nil {
		return
	}

	ylog.Error(ctx, message, ylog.KV("error", err))
	if !t.Enabled() || shouldIgnore(err) {
		return
	}

	t.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetExtra("message", message)
		t.hub.CaptureException(err)
	})
}

// CaptureRequest is like Capture but attaches request data without sensitive headers.
func (t *Tracker) CaptureRequest(r *http.Request, err error, message string) {
	if err == nil || r == nil {
		return
	}

	ctx := r.Context()
	ylog.Error(ctx, message, ylog.KV("error", err))
	if !t.Enabled() || shouldIgnore(err) {
		return
	}

	t.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetExtra("message", message)
		scope.SetTag("http.method", r.Method)
		scope.SetTag("http.path", r.URL.Path)
		scope.SetExtra("http.query", r.URL.RawQuery)
		scope.SetExtra("http.remote_addr", r.RemoteAddr)
		scope.SetExtra("http.user_agent", r.UserAgent())
		t.hub.CaptureException(err)
	})
}

// Flush waits until buffered events are sent or timeout passes.
func (t *Tracker) Flush(timeout time.Duration) bool {
	if !t.Enabled() {
		return true
	}

	return t.hub.Flush(timeout)
}

func shouldIgnore(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}

	errStr := err.Error()
	for _, ignored := range ignoredErrors {
		if strings.Contains(errStr, ignored) {
			return true
		}
	}

	return false
}
