// internal/audit/audit.go
package audit

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"librarium/internal/domain"
	"librarium/internal/inventory"
	"librarium/internal/storage"
)

// Violation reasons.
const (
	ReasonOutOfBounds = "available_out_of_bounds"
	ReasonMismatch    = "available_mismatch"
)

// Violation describes a book whose copy counts disagree with its outstanding loans.
type Violation struct {
	BookID            int64  `json:"book_id"`
	Title             string `json:"title"`
	TotalCopies       int    `json:"total_copies"`
	AvailableCopies   int    `json:"available_copies"`
	ActiveLoans       int    `json:"active_loans"`
	ExpectedAvailable int    `json:"expected_available"`
	Reason            string `json:"reason"`
}

// Report is the outcome of one audit run.
type Report struct {
	CheckedAt    time.Time   `json:"checked_at"`
	Duration     string      `json:"duration"`
	BooksChecked int         `json:"books_checked"`
	Healthy      bool        `json:"healthy"`
	Violations   []Violation `json:"violations"`
}

// Auditor verifies the inventory invariant against stored loans.
type Auditor struct {
	store  storage.Store
	clock  domain.Clock
	tracer trace.Tracer
}

func New(store storage.Store, clock domain.Clock) *Auditor {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &Auditor{
		store:  store,
		clock:  clock,
		tracer: otel.Tracer("librarium/audit"),
	}
}

// Check reads every book with its active loan count in one snapshot and reports each book
// where available_copies != max(total_copies - active_loans, 0) or lies outside [0, total].
func (a *Auditor) Check(ctx context.Context) (*Report, error) {
	ctx, span := a.tracer.Start(ctx, "audit.check")
	defer span.End()

	start := a.clock.Now()
	var stock []*domain.BookStock
	err := a.store.ReadOnly(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		stock, err = tx.ListBookStock(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read book stock: %w", err)
	}

	report := &Report{
		CheckedAt:    start,
		BooksChecked: len(stock),
		Violations:   make([]Violation, 0),
	}
	for _, s := range stock {
		if inventory.Consistent(&s.Book, s.ActiveLoans) {
			continue
		}
		reason := ReasonMismatch
		if s.AvailableCopies < 0 || s.AvailableCopies > s.TotalCopies {
			reason = ReasonOutOfBounds
		}
		report.Violations = append(report.Violations, Violation{
			BookID:            s.ID,
			Title:             s.Title,
			TotalCopies:       s.TotalCopies,
			AvailableCopies:   s.AvailableCopies,
			ActiveLoans:       s.ActiveLoans,
			ExpectedAvailable: max(s.TotalCopies-s.ActiveLoans, 0),
			Reason:            reason,
		})
	}
	report.Healthy = len(report.Violations) == 0
	report.Duration = a.clock.Now().Sub(start).String()

	span.SetAttributes(
		attribute.Int("books.checked", report.BooksChecked),
		attribute.Int("violations", len(report.Violations)),
	)
	return report, nil
}
