package events

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"launchpad/internal/model"
)

// Publisher receives committed events.
type Publisher interface {
	Publish(ctx context.Context, e model.Event) error
}

// Fallback stands in for the broker when it is not configured or unreachable.
type Fallback struct {
	Logger *zap.Logger
}

func (f Fallback) Publish(_ context.Context, e model.Event) error {
	if f.Logger != nil {
		f.Logger.Debug("broker publish skipped",
			zap.String("event", e.Name),
			zap.String("routing_key", RoutingKey(e.Name)),
		)
	}
	return nil
}

// Multi delivers to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e model.Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BatchWriter appends events durably.
type BatchWriter interface {
	PutEventBatch(events []model.Event) error
}

// JournalSink appends each event to a journal.
type JournalSink struct {
	Writer BatchWriter
}

func (j JournalSink) Publish(_ context.Context, e model.Event) error {
	return j.Writer.PutEventBatch([]model.Event{e})
}
