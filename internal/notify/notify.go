// Package notify fans engine events out to the configured sinks. Sinks are
// best-effort: a failed delivery is logged and never blocks the cycle that
// produced the event.
package notify

import (
	"context"
	"log"

	"github.com/hasanaliduruk/2dWorkflowShipmentBot/internal/model"
)

type Notifier interface {
	Publish(ctx context.Context, n model.Notification) error
}

// Multi delivers to every sink and reports the first failure after all
// sinks were attempted.
type Multi []Notifier

func (m Multi) Publish(ctx context.Context, n model.Notification) error {
	var firstErr error
	for _, sink := range m {
		if err := sink.Publish(ctx, n); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Discard is the sink used when no delivery channel is configured.
type Discard struct{}

func (Discard) Publish(context.Context, model.Notification) error { return nil }

// LogFailures wraps a sink so delivery errors surface in the process log
// instead of propagating into engine cycles.
func LogFailures(inner Notifier, logger *log.Logger) Notifier {
	return &logged{inner: inner, logger: logger}
}

type logged struct {
	inner  Notifier
	logger *log.Logger
}

func (l *logged) Publish(ctx context.Context, n model.Notification) error {
	if err := l.inner.Publish(ctx, n); err != nil {
		if l.logger != nil {
			l.logger.Printf("notification dropped: %v", err)
		}
	}
	return nil
}
