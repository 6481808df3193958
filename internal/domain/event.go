// internal/domain/event.go
package domain

import (
	"encoding/json"
	"time"
)

// Aggregate types recorded in the event log.
const (
	AggregateUser = "user"
	AggregateBook = "book"
	AggregateLoan = "loan"
)

// Event types recorded in the event log.
const (
	EventUserRegistered = "UserRegistered"
	EventUserUpdated    = "UserUpdated"
	EventBookAdded      = "BookAdded"
	EventBookUpdated    = "BookUpdated"
	EventLoanCreated    = "LoanCreated"
	EventLoanReturned   = "LoanReturned"
)

// Event is an audit record of a state change, written in the same transaction as the change.
type Event struct {
	ID            int64           `json:"id" db:"id"`
	AggregateType string          `json:"aggregate_type" db:"aggregate_type"`
	AggregateID   int64           `json:"aggregate_id" db:"aggregate_id"`
	EventType     string          `json:"event_type" db:"event_type"`
	Payload       json.RawMessage `json:"payload" db:"payload"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}
