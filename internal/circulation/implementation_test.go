package circulation

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"librarium/internal/domain"
	"librarium/internal/eventlog"
	"librarium/internal/storage"
	"librarium/internal/storage/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	svc   Service
	store *memory.Store
	clock *fakeClock
	hook  *logtest.Hook
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(t, nil)
}

func newFixtureWithStore(t *testing.T, wrap func(*memory.Store) storage.Store, extra ...Option) *fixture {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	mem := memory.NewStore()
	var store storage.Store = mem
	if wrap != nil {
		store = wrap(mem)
	}
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	opts := append([]Option{
		WithClock(clock),
		WithRetryOptions(storage.WithBaseDelay(time.Millisecond)),
	}, extra...)
	svc, err := NewService(store, eventlog.New(clock), logger, opts...)
	require.NoError(t, err)
	return &fixture{svc: svc, store: mem, clock: clock, hook: hook}
}

func (f *fixture) addUser(t *testing.T, email string) int64 {
	t.Helper()
	user := &domain.User{Name: email, Email: email, CreatedAt: f.clock.Now()}
	require.NoError(t, f.store.WithTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return tx.CreateUser(ctx, user)
	}))
	return user.ID
}

func (f *fixture) addBook(t *testing.T, copies int) int64 {
	t.Helper()
	book := &domain.Book{Title: "Dune", Author: "Herbert", TotalCopies: copies, AvailableCopies: copies}
	require.NoError(t, f.store.WithTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return tx.CreateBook(ctx, book)
	}))
	return book.ID
}

func (f *fixture) book(t *testing.T, id int64) *domain.Book {
	t.Helper()
	var book *domain.Book
	require.NoError(t, f.store.ReadOnly(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		var err error
		book, err = tx.GetBook(ctx, id)
		return err
	}))
	return book
}

func (f *fixture) setAvailable(t *testing.T, id int64, available int) {
	t.Helper()
	require.NoError(t, f.store.WithTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		b, err := tx.GetBook(ctx, id)
		if err != nil {
			return err
		}
		b.AvailableCopies = available
		return tx.UpdateBook(ctx, b)
	}))
}

func Test_BorrowBook_CreatesLoanAndDecrements(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := f.addUser(t, "ada@example.com")
	bookID := f.addBook(t, 2)

	loan, err := f.svc.BorrowBook(ctx, userID, bookID)
	require.NoError(t, err)

	assert.Equal(t, userID, loan.UserID)
	assert.Equal(t, bookID, loan.BookID)
	assert.Equal(t, f.clock.Now(), loan.LoanDate)
	assert.Equal(t, f.clock.Now().Add(14*24*time.Hour), loan.DueDate)
	assert.Nil(t, loan.ReturnDate)
	assert.Equal(t, 0, loan.FineAmount)
	assert.Equal(t, 1, f.book(t, bookID).AvailableCopies)

	events, err := f.svc.LoanHistory(ctx, loan.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventLoanCreated, events[0].EventType)

	var payload LoanCreatedEvent
	require.NoError(t, json.Unmarshal(events[0].Payload, &payload))
	assert.Equal(t, loan.ID, payload.LoanID)
}

func Test_BorrowBook_ErrorPrecedence(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := f.addUser(t, "ada@example.com")
	emptyBook := f.addBook(t, 0)

	_, err := f.svc.BorrowBook(ctx, 999, 999)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = f.svc.BorrowBook(ctx, userID, 999)
	assert.ErrorIs(t, err, domain.ErrBookNotFound)

	_, err = f.svc.BorrowBook(ctx, userID, emptyBook)
	assert.ErrorIs(t, err, domain.ErrNoAvailableCopies)
}

func Test_BorrowBook_NoCopiesCheckedBeforeCap(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := f.addUser(t, "ada@example.com")
	plenty := f.addBook(t, 5)
	for i := 0; i < domain.MaxActiveLoans; i++ {
		_, err := f.svc.BorrowBook(ctx, userID, plenty)
		require.NoError(t, err)
	}
	emptyBook := f.addBook(t, 0)

	_, err := f.svc.BorrowBook(ctx, userID, emptyBook)

	assert.ErrorIs(t, err, domain.ErrNoAvailableCopies)
}

func Test_BorrowBook_MaxActiveLoans(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := f.addUser(t, "ada@example.com")
	bookID := f.addBook(t, 10)

	for i := 0; i < 3; i++ {
		_, err := f.svc.BorrowBook(ctx, userID, bookID)
		require.NoError(t, err)
	}

	_, err := f.svc.BorrowBook(ctx, userID, bookID)
	assert.ErrorIs(t, err, domain.ErrMaxActiveLoansReached)
	assert.Equal(t, 7, f.book(t, bookID).AvailableCopies)

	count, err := f.svc.ActiveLoanCountForUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func Test_ReturnLoan_OnTimeHasNoFine(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := f.addUser(t, "ada@example.com")
	bookID := f.addBook(t, 1)
	loan, err := f.svc.BorrowBook(ctx, userID, bookID)
	require.NoError(t, err)

	f.clock.Set(loan.DueDate)
	returned, err := f.svc.ReturnLoan(ctx, loan.ID)
	require.NoError(t, err)

	require.NotNil(t, returned.ReturnDate)
	assert.Equal(t, loan.DueDate, *returned.ReturnDate)
	assert.Equal(t, 0, returned.FineAmount)
	assert.Equal(t, 1, f.book(t, bookID).AvailableCopies)
}

func Test_ReturnLoan_OverdueFine(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := f.addUser(t, "ada@example.com")
	bookID := f.addBook(t, 1)
	loan, err := f.svc.BorrowBook(ctx, userID, bookID)
	require.NoError(t, err)

	y, m, d := loan.DueDate.Date()
	f.clock.Set(time.Date(y, m, d+1, 0, 1, 0, 0, time.UTC))
	returned, err := f.svc.ReturnLoan(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, returned.FineAmount)

	stored, err := f.svc.GetLoan(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.FineAmount)
}

func Test_ReturnLoan_AlreadyReturned(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := f.addUser(t, "ada@example.com")
	bookID := f.addBook(t, 1)
	loan, err := f.svc.BorrowBook(ctx, userID, bookID)
	require.NoError(t, err)
	_, err = f.svc.ReturnLoan(ctx, loan.ID)
	require.NoError(t, err)

	_, err = f.svc.ReturnLoan(ctx, loan.ID)

	assert.ErrorIs(t, err, domain.ErrAlreadyReturned)
	assert.Equal(t, 1, f.book(t, bookID).AvailableCopies)
}

func Test_ReturnLoan_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ReturnLoan(context.Background(), 404)

	assert.ErrorIs(t, err, domain.ErrLoanNotFound)
}

func Test_ReturnLoan_ClampsAndWarns(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := f.addUser(t, "ada@example.com")
	bookID := f.addBook(t, 2)
	loan, err := f.svc.BorrowBook(ctx, userID, bookID)
	require.NoError(t, err)
	f.setAvailable(t, bookID, 2)

	_, err = f.svc.ReturnLoan(ctx, loan.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, f.book(t, bookID).AvailableCopies)
	var warned bool
	for _, e := range f.hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warned = true
			assert.Equal(t, loan.ID, e.Data["loan_id"])
		}
	}
	assert.True(t, warned)
}

func Test_BorrowBook_ConcurrentLastCopy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	bookID := f.addBook(t, 1)
	users := make([]int64, 10)
	for i := range users {
		users[i] = f.addUser(t, "user"+string(rune('a'+i))+"@example.com")
	}

	var wg sync.WaitGroup
	var successes, rejected atomic.Int32
	for _, userID := range users {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			_, err := f.svc.BorrowBook(ctx, userID, bookID)
			switch {
			case err == nil:
				successes.Add(1)
			case assert.ErrorIs(t, err, domain.ErrNoAvailableCopies):
				rejected.Add(1)
			}
		}(userID)
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(9), rejected.Load())
	assert.Equal(t, 0, f.book(t, bookID).AvailableCopies)
}

func Test_ListLoans_Status(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := f.addUser(t, "ada@example.com")
	bookID := f.addBook(t, 5)

	first, err := f.svc.BorrowBook(ctx, userID, bookID)
	require.NoError(t, err)
	f.clock.Set(f.clock.Now().Add(24 * time.Hour))
	second, err := f.svc.BorrowBook(ctx, userID, bookID)
	require.NoError(t, err)
	f.clock.Set(f.clock.Now().Add(24 * time.Hour))
	third, err := f.svc.BorrowBook(ctx, userID, bookID)
	require.NoError(t, err)
	_, err = f.svc.ReturnLoan(ctx, third.ID)
	require.NoError(t, err)

	// Past the first loan's due date only.
	f.clock.Set(first.DueDate.Add(time.Hour))

	all, err := f.svc.ListLoans(ctx, domain.LoanStatusAll, storage.NewPage(0, 20))
	require.NoError(t, err)
	assert.Equal(t, []int64{third.ID, second.ID, first.ID}, ids(all))

	active, err := f.svc.ListLoans(ctx, domain.LoanStatusActive, storage.NewPage(0, 20))
	require.NoError(t, err)
	assert.Equal(t, []int64{second.ID, first.ID}, ids(active))

	overdue, err := f.svc.ListLoans(ctx, domain.LoanStatusOverdue, storage.NewPage(0, 20))
	require.NoError(t, err)
	assert.Equal(t, []int64{first.ID}, ids(overdue))
}

func Test_ListUserLoans_ActiveOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := f.addUser(t, "ada@example.com")
	bookID := f.addBook(t, 5)

	open, err := f.svc.BorrowBook(ctx, userID, bookID)
	require.NoError(t, err)
	closed, err := f.svc.BorrowBook(ctx, userID, bookID)
	require.NoError(t, err)
	_, err = f.svc.ReturnLoan(ctx, closed.ID)
	require.NoError(t, err)

	yes, no := true, false
	all, err := f.svc.ListUserLoans(ctx, userID, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyActive, err := f.svc.ListUserLoans(ctx, userID, &yes)
	require.NoError(t, err)
	assert.Equal(t, []int64{open.ID}, ids(onlyActive))

	onlyClosed, err := f.svc.ListUserLoans(ctx, userID, &no)
	require.NoError(t, err)
	assert.Equal(t, []int64{closed.ID}, ids(onlyClosed))

	_, err = f.svc.ListUserLoans(ctx, 999, nil)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func Test_ExportLoans(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := f.addUser(t, "ada@example.com")
	bookID := f.addBook(t, 2)
	loan, err := f.svc.BorrowBook(ctx, userID, bookID)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.svc.ExportLoans(ctx, &buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"loan_id", "user_id", "book_id", "loan_date", "due_date", "return_date", "fine_amount"}, records[0])
	assert.Equal(t, []string{"1", "1", "1", "2024-03-01T10:00:00Z", "2024-03-15T10:00:00Z", "", "0"}, records[1])
	assert.Equal(t, int64(1), loan.ID)
}

// conflictingStore fails the first n transactions with a retryable conflict.
type conflictingStore struct {
	storage.Store
	remaining atomic.Int32
}

func (s *conflictingStore) WithTx(ctx context.Context, fn storage.TxFunc) error {
	if s.remaining.Add(-1) >= 0 {
		return storage.ErrConflict
	}
	return s.Store.WithTx(ctx, fn)
}

func Test_BorrowBook_RetriesConflicts(t *testing.T) {
	ctx := context.Background()
	var cs *conflictingStore
	f := newFixtureWithStore(t, func(m *memory.Store) storage.Store {
		cs = &conflictingStore{Store: m}
		return cs
	})
	userID := f.addUser(t, "ada@example.com")
	bookID := f.addBook(t, 1)
	cs.remaining.Store(2)

	loan, err := f.svc.BorrowBook(ctx, userID, bookID)

	require.NoError(t, err)
	assert.NotZero(t, loan.ID)
	assert.Equal(t, 0, f.book(t, bookID).AvailableCopies)
}

func Test_Metrics_CountOutcomes(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	f := newFixtureWithStore(t, nil, WithMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))))
	userID := f.addUser(t, "ada@example.com")
	bookID := f.addBook(t, 1)

	loan, err := f.svc.BorrowBook(ctx, userID, bookID)
	require.NoError(t, err)
	_, err = f.svc.BorrowBook(ctx, userID, bookID)
	require.ErrorIs(t, err, domain.ErrNoAvailableCopies)
	f.setAvailable(t, bookID, 1)
	_, err = f.svc.ReturnLoan(ctx, loan.ID)
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	assert.Equal(t, int64(1), counterValue(rm, "librarium.loans.borrowed"))
	assert.Equal(t, int64(1), counterValue(rm, "librarium.loans.rejected"))
	assert.Equal(t, int64(1), counterValue(rm, "librarium.loans.returned"))
	assert.Equal(t, int64(1), counterValue(rm, "librarium.inventory.clamped"))
}

func counterValue(rm metricdata.ResourceMetrics, name string) int64 {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				return 0
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func ids(loans []*domain.Loan) []int64 {
	out := make([]int64, 0, len(loans))
	for _, l := range loans {
		out = append(out, l.ID)
	}
	return out
}
