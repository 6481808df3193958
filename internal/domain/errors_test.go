package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Error_Is_MatchesWrappedSentinel(t *testing.T) {
	err := fmt.Errorf("borrow book 7: %w", ErrNoAvailableCopies)

	assert.ErrorIs(t, err, ErrNoAvailableCopies)
	assert.NotErrorIs(t, err, ErrMaxActiveLoansReached)
	assert.True(t, IsConflict(err))
	assert.False(t, IsNotFound(err))
}

func Test_KindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(ErrLoanNotFound))
	assert.Equal(t, KindInvalidArgument, KindOf(InvalidArgument("bad")))
	assert.Equal(t, Kind(""), KindOf(fmt.Errorf("plain")))
}

func Test_ParseLoanStatus(t *testing.T) {
	for in, want := range map[string]LoanStatus{
		"":        LoanStatusAll,
		"all":     LoanStatusAll,
		"active":  LoanStatusActive,
		"overdue": LoanStatusOverdue,
	} {
		got, err := ParseLoanStatus(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLoanStatus("lost")
	assert.Equal(t, KindInvalidArgument, KindOf(err))
}

func Test_Loan_Overdue(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	returned := now

	active := &Loan{DueDate: now.Add(-time.Minute)}
	notDue := &Loan{DueDate: now.Add(time.Minute)}
	closed := &Loan{DueDate: now.Add(-time.Hour), ReturnDate: &returned}

	assert.True(t, active.Overdue(now))
	assert.False(t, notDue.Overdue(now))
	assert.False(t, closed.Overdue(now))
	assert.False(t, closed.Active())
}
