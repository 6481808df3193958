// internal/storage/postgres/events.go
package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/doug-martin/goqu/v9"

	"librarium/internal/domain"
)

const tableEvents = "events"

// eventRow scans payload as raw bytes; both drivers hand jsonb back as text.
type eventRow struct {
	ID            int64     `db:"id"`
	AggregateType string    `db:"aggregate_type"`
	AggregateID   int64     `db:"aggregate_id"`
	EventType     string    `db:"event_type"`
	Payload       []byte    `db:"payload"`
	CreatedAt     time.Time `db:"created_at"`
}

func (t *tx) AppendEvent(ctx context.Context, event *domain.Event) error {
	id, err := t.insertReturningID(ctx, dialect.Insert(tableEvents).Rows(goqu.Record{
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID,
		"event_type":     event.EventType,
		"payload":        string(event.Payload),
		"created_at":     event.CreatedAt,
	}))
	if err != nil {
		return err
	}
	event.ID = id
	return nil
}

func (t *tx) ListEvents(ctx context.Context, aggregateType string, aggregateID int64) ([]domain.Event, error) {
	var rows []eventRow
	ds := dialect.From(tableEvents).
		Select("id", "aggregate_type", "aggregate_id", "event_type", "payload", "created_at").
		Where(goqu.C("aggregate_type").Eq(aggregateType), goqu.C("aggregate_id").Eq(aggregateID)).
		Order(goqu.C("id").Asc())
	if err := t.selectAll(ctx, &rows, ds); err != nil {
		return nil, err
	}

	events := make([]domain.Event, 0, len(rows))
	for _, r := range rows {
		events = append(events, domain.Event{
			ID:            r.ID,
			AggregateType: r.AggregateType,
			AggregateID:   r.AggregateID,
			EventType:     r.EventType,
			Payload:       json.RawMessage(r.Payload),
			CreatedAt:     r.CreatedAt,
		})
	}
	return events, nil
}
