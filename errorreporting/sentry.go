// Package errorreporting forwards recovered panics and unexpected errors to
// Sentry. Every function is a no-op until [Init] is called with a DSN.
package errorreporting

import (
	"context"
	"fmt"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/Keksclan/linkSquirrel/contextx"
)

var enabled atomic.Bool

var piiPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._-]{16,}`),
	regexp.MustCompile(`(?i)(api[_-]?key|token|secret)["\s:=]+[a-zA-Z0-9._-]{16,}`),
	regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
}

// Init configures the Sentry client. An empty dsn leaves reporting disabled.
func Init(dsn, environment, release string) error {
	if dsn == "" {
		return nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          release,
		AttachStacktrace: true,
		BeforeSend:       beforeSend,
	})
	if err != nil {
		return fmt.Errorf("errorreporting: init sentry: %w", err)
	}
	enabled.Store(true)
	return nil
}

// Enabled reports whether Init configured a DSN.
func Enabled() bool { return enabled.Load() }

// CapturePanic reports a recovered panic value. where names the transport
// entry point (a gRPC method or an HTTP route).
func CapturePanic(ctx context.Context, recovered any, where string) {
	if !Enabled() {
		return
	}
	hub := sentry.CurrentHub().Clone()
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelFatal)
		scope.SetTag("where", where)
		if id := contextx.RequestIDFromContext(ctx); id != "" {
			scope.SetTag("request_id", id)
		}
		hub.Recover(recovered)
	})
}

// CaptureError reports err with the request ID of ctx attached.
func CaptureError(ctx context.Context, err error) {
	if err == nil || !Enabled() {
		return
	}
	hub := sentry.CurrentHub().Clone()
	hub.WithScope(func(scope *sentry.Scope) {
		if id := contextx.RequestIDFromContext(ctx); id != "" {
			scope.SetTag("request_id", id)
		}
		hub.CaptureException(err)
	})
}

// Flush waits up to timeout for buffered events to be delivered.
func Flush(timeout time.Duration) bool {
	if !Enabled() {
		return true
	}
	return sentry.Flush(timeout)
}

func beforeSend(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	for i := range event.Exception {
		event.Exception[i].Value = ScrubPII(event.Exception[i].Value)
	}
	event.Message = ScrubPII(event.Message)
	if event.Request != nil {
		delete(event.Request.Headers, "Authorization")
		delete(event.Request.Headers, "Cookie")
		delete(event.Request.Headers, "X-Admin-Token")
		event.Request.Cookies = ""
		event.Request.QueryString = ""
	}
	return event
}

// ScrubPII masks e-mail addresses, bearer tokens, secrets and IPv4 addresses.
func ScrubPII(text string) string {
	for _, p := range piiPatterns {
		text = p.ReplaceAllString(text, "[REDACTED]")
	}
	return text
}
