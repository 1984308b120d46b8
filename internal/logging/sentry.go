package logging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

// InitSentry configures the global Sentry client. An empty DSN leaves
// Sentry disabled and is not an error.
func InitSentry(dsn, environment, release string) error {
	if dsn == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          release,
		AttachStacktrace: true,
	})
}

// FlushSentry waits for buffered events to be delivered.
func FlushSentry() {
	sentry.Flush(2 * time.Second)
}

// SentryLogger forwards Error records to Sentry in addition to the wrapped
// Logger. Key/value pairs become event extras; a value implementing error
// under the "error" key is captured as an exception.
type SentryLogger struct {
	next  Logger
	hub   *sentry.Hub
	attrs []any
}

// NewSentryLogger wraps next. A nil hub means sentry.CurrentHub().
func NewSentryLogger(next Logger, hub *sentry.Hub) *SentryLogger {
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	return &SentryLogger{next: next, hub: hub}
}

func (s *SentryLogger) Debug(ctx context.Context, msg string, args ...any) {
	s.next.Debug(ctx, msg, args...)
}

func (s *SentryLogger) Info(ctx context.Context, msg string, args ...any) {
	s.next.Info(ctx, msg, args...)
}

func (s *SentryLogger) Warn(ctx context.Context, msg string, args ...any) {
	s.next.Warn(ctx, msg, args...)
}

func (s *SentryLogger) Error(ctx context.Context, msg string, args ...any) {
	s.next.Error(ctx, msg, args...)
	s.capture(msg, append(append([]any{}, s.attrs...), args...))
}

func (s *SentryLogger) With(args ...any) Logger {
	return &SentryLogger{
		next:  s.next.With(args...),
		hub:   s.hub,
		attrs: append(append([]any{}, s.attrs...), args...),
	}
}

func (s *SentryLogger) capture(msg string, args []any) {
	if s.hub.Client() == nil {
		return
	}

	extras, cause := splitArgs(args)

	// A clone has its own scope, so concurrent captures never share extras.
	hub := s.hub.Clone()
	hub.Scope().SetExtras(extras)
	if cause != nil {
		hub.CaptureException(fmt.Errorf("%s: %w", msg, cause))
		return
	}
	hub.CaptureMessage(msg)
}

// splitArgs turns slog-style key/value pairs into a map; a dangling key is
// stored under "!BADKEY" as slog does.
func splitArgs(args []any) (map[string]any, error) {
	extras := make(map[string]any, len(args)/2)
	var cause error

	for i := 0; i < len(args); i++ {
		key, ok := args[i].(string)
		if !ok || i+1 >= len(args) {
			extras["!BADKEY"] = args[i]
			continue
		}
		value := args[i+1]
		i++

		if err, isErr := value.(error); isErr {
			if key == "error" && cause == nil {
				cause = err
			}
			extras[key] = err.Error()
			continue
		}
		extras[key] = value
	}

	if cause == nil {
		if msg, ok := extras["error"].(string); ok && msg != "" {
			cause = errors.New(msg)
		}
	}

	return extras, cause
}
