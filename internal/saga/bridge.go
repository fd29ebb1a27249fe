package saga

import (
	"context"
	"fmt"
	"log/slog"

	"registrar/internal/event"
	"registrar/internal/observability"
	"registrar/internal/status"
)

// ResultBridge consumes the terminal rollback events and turns them
// into poller-visible outcomes: it records each one in the status
// store and wakes any caller blocked on that student.
type ResultBridge struct {
	waiter  *status.Waiter
	store   status.Store
	metrics *observability.Metrics
	logger  *slog.Logger
}

func NewResultBridge(waiter *status.Waiter, store status.Store, metrics *observability.Metrics, logger *slog.Logger) *ResultBridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResultBridge{
		waiter:  waiter,
		store:   store,
		metrics: metrics,
		logger:  logger,
	}
}

// HandleMessage settles one terminal event.
func (b *ResultBridge) HandleMessage(ctx context.Context, body []byte) error {
	eventType, err := event.PeekType(body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadMessage, err)
	}

	var outcome status.Outcome
	switch eventType {
	case event.StudentCreateSucess:
		outcome = status.Succeeded
	case event.StudentCreateFailed:
		outcome = status.Failed
	default:
		b.logger.Warn("unexpected event on result queue", "event_type", eventType)
		return nil
	}

	span := b.metrics.Start(eventType.String())
	err = b.settle(ctx, eventType, outcome, body)
	span.End(err)
	return err
}

func (b *ResultBridge) settle(ctx context.Context, eventType event.Type, outcome status.Outcome, body []byte) error {
	ev, err := decodePayload(body)
	if err != nil {
		return err
	}
	studentID := ev.Content.Student.StudentID

	if err := b.store.Record(ctx, studentID, outcome); err != nil {
		return fmt.Errorf("record outcome for student %d: %w", studentID, err)
	}

	woken := b.waiter.Resolve(studentID, outcome)
	b.logger.Info("saga outcome settled",
		"student_id", studentID, "event_type", eventType, "outcome", outcome, "woken_pollers", woken)
	return nil
}
