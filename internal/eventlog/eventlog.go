// internal/eventlog/eventlog.go
package eventlog

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"librarium/internal/domain"
	"librarium/internal/storage"
)

// Log appends domain events inside the caller's transaction, so an event exists
// exactly when the change it describes was committed.
type Log struct {
	clock  domain.Clock
	tracer trace.Tracer
}

// New creates an event log stamping events with clock.
func New(clock domain.Clock) *Log {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &Log{
		clock:  clock,
		tracer: otel.Tracer("librarium/eventlog"),
	}
}

// Record marshals data as the payload of a new event and appends it through tx.
func (l *Log) Record(ctx context.Context, tx storage.Tx, aggregateType string, aggregateID int64, eventType string, data any) error {
	ctx, span := l.tracer.Start(ctx, "eventlog.record",
		trace.WithAttributes(
			attribute.String("aggregate.type", aggregateType),
			attribute.Int64("aggregate.id", aggregateID),
			attribute.String("event.type", eventType),
		),
	)
	defer span.End()

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	event := &domain.Event{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     l.clock.Now(),
	}
	if err := tx.AppendEvent(ctx, event); err != nil {
		return fmt.Errorf("append event: %w", err)
	}

	span.AddEvent("event.appended", trace.WithAttributes(
		attribute.Int64("event.id", event.ID),
	))
	return nil
}

// History returns the events of one aggregate in the order they were recorded.
func (l *Log) History(ctx context.Context, tx storage.Tx, aggregateType string, aggregateID int64) ([]domain.Event, error) {
	ctx, span := l.tracer.Start(ctx, "eventlog.history",
		trace.WithAttributes(
			attribute.String("aggregate.type", aggregateType),
			attribute.Int64("aggregate.id", aggregateID),
		),
	)
	defer span.End()

	events, err := tx.ListEvents(ctx, aggregateType, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	if events == nil {
		events = []domain.Event{}
	}

	span.SetAttributes(attribute.Int("events.loaded", len(events)))
	return events, nil
}
