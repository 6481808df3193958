// internal/storage/memory/store.go
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"librarium/internal/domain"
	"librarium/internal/storage"
)

var errReadOnly = errors.New("memory: write in read-only transaction")

// Store keeps all entities in process memory. Transactions are serialized by a single
// mutex and work on a private copy that replaces the live state only on commit.
type Store struct {
	mu    sync.Mutex
	state *state
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{state: newState()}
}

// WithTx runs fn in a serializable transaction.
func (s *Store) WithTx(ctx context.Context, fn storage.TxFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(ctx, &tx{st: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

// ReadOnly runs fn against the live state; any write fails.
func (s *Store) ReadOnly(ctx context.Context, fn storage.TxFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return fn(ctx, &tx{st: s.state, readOnly: true})
}

type state struct {
	users  map[int64]domain.User
	books  map[int64]domain.Book
	loans  map[int64]domain.Loan
	events []domain.Event

	lastUserID  int64
	lastBookID  int64
	lastLoanID  int64
	lastEventID int64
}

func newState() *state {
	return &state{
		users: make(map[int64]domain.User),
		books: make(map[int64]domain.Book),
		loans: make(map[int64]domain.Loan),
	}
}

func (s *state) clone() *state {
	c := &state{
		users:       make(map[int64]domain.User, len(s.users)),
		books:       make(map[int64]domain.Book, len(s.books)),
		loans:       make(map[int64]domain.Loan, len(s.loans)),
		events:      append([]domain.Event(nil), s.events...),
		lastUserID:  s.lastUserID,
		lastBookID:  s.lastBookID,
		lastLoanID:  s.lastLoanID,
		lastEventID: s.lastEventID,
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.books {
		c.books[k] = v
	}
	for k, v := range s.loans {
		c.loans[k] = v
	}
	return c
}

type tx struct {
	st       *state
	readOnly bool
}

func (t *tx) writable() error {
	if t.readOnly {
		return errReadOnly
	}
	return nil
}

// ---------- users ----------

func (t *tx) GetUser(_ context.Context, id int64) (*domain.User, error) {
	u, ok := t.st.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &u, nil
}

func (t *tx) GetUserForUpdate(ctx context.Context, id int64) (*domain.User, error) {
	return t.GetUser(ctx, id)
}

func (t *tx) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range t.st.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (t *tx) emailTaken(email string, except int64) bool {
	for _, u := range t.st.users {
		if u.Email == email && u.ID != except {
			return true
		}
	}
	return false
}

func (t *tx) CreateUser(_ context.Context, user *domain.User) error {
	if err := t.writable(); err != nil {
		return err
	}
	if t.emailTaken(user.Email, 0) {
		return storage.ErrDuplicate
	}
	t.st.lastUserID++
	user.ID = t.st.lastUserID
	t.st.users[user.ID] = *user
	return nil
}

func (t *tx) UpdateUser(_ context.Context, user *domain.User) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.st.users[user.ID]; !ok {
		return storage.ErrNotFound
	}
	if t.emailTaken(user.Email, user.ID) {
		return storage.ErrDuplicate
	}
	t.st.users[user.ID] = *user
	return nil
}

func (t *tx) ListUsers(_ context.Context, page storage.Page) ([]*domain.User, error) {
	users := make([]*domain.User, 0, len(t.st.users))
	for _, u := range t.st.users {
		u := u
		users = append(users, &u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return paginate(users, page), nil
}

// ---------- books ----------

func (t *tx) GetBook(_ context.Context, id int64) (*domain.Book, error) {
	b, ok := t.st.books[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &b, nil
}

func (t *tx) GetBookForUpdate(ctx context.Context, id int64) (*domain.Book, error) {
	return t.GetBook(ctx, id)
}

func (t *tx) CreateBook(_ context.Context, book *domain.Book) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.st.lastBookID++
	book.ID = t.st.lastBookID
	t.st.books[book.ID] = *book
	return nil
}

func (t *tx) UpdateBook(_ context.Context, book *domain.Book) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.st.books[book.ID]; !ok {
		return storage.ErrNotFound
	}
	t.st.books[book.ID] = *book
	return nil
}

func (t *tx) ListBooks(_ context.Context, page storage.Page) ([]*domain.Book, error) {
	books := make([]*domain.Book, 0, len(t.st.books))
	for _, b := range t.st.books {
		b := b
		books = append(books, &b)
	}
	sort.Slice(books, func(i, j int) bool { return books[i].ID < books[j].ID })
	return paginate(books, page), nil
}

func (t *tx) ListBookStock(_ context.Context) ([]*domain.BookStock, error) {
	active := make(map[int64]int)
	for _, l := range t.st.loans {
		if l.Active() {
			active[l.BookID]++
		}
	}
	stock := make([]*domain.BookStock, 0, len(t.st.books))
	for _, b := range t.st.books {
		stock = append(stock, &domain.BookStock{Book: b, ActiveLoans: active[b.ID]})
	}
	sort.Slice(stock, func(i, j int) bool { return stock[i].ID < stock[j].ID })
	return stock, nil
}

// ---------- loans ----------

func (t *tx) GetLoan(_ context.Context, id int64) (*domain.Loan, error) {
	l, ok := t.st.loans[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &l, nil
}

func (t *tx) GetLoanForUpdate(ctx context.Context, id int64) (*domain.Loan, error) {
	return t.GetLoan(ctx, id)
}

func (t *tx) CreateLoan(_ context.Context, loan *domain.Loan) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.st.users[loan.UserID]; !ok {
		return storage.ErrNotFound
	}
	if _, ok := t.st.books[loan.BookID]; !ok {
		return storage.ErrNotFound
	}
	t.st.lastLoanID++
	loan.ID = t.st.lastLoanID
	t.st.loans[loan.ID] = *loan
	return nil
}

func (t *tx) UpdateLoan(_ context.Context, loan *domain.Loan) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.st.loans[loan.ID]; !ok {
		return storage.ErrNotFound
	}
	t.st.loans[loan.ID] = *loan
	return nil
}

func (t *tx) CountActiveLoansForUser(_ context.Context, userID int64) (int, error) {
	n := 0
	for _, l := range t.st.loans {
		if l.UserID == userID && l.Active() {
			n++
		}
	}
	return n, nil
}

func (t *tx) ListLoans(_ context.Context, filter storage.LoanFilter, page storage.Page) ([]*domain.Loan, error) {
	loans := t.selectLoans(func(l *domain.Loan) bool {
		switch filter.Status {
		case domain.LoanStatusActive:
			return l.Active()
		case domain.LoanStatusOverdue:
			return l.Overdue(filter.Now)
		}
		return true
	})
	return paginate(loans, page), nil
}

func (t *tx) ListUserLoans(_ context.Context, userID int64, activeOnly *bool) ([]*domain.Loan, error) {
	return t.selectLoans(func(l *domain.Loan) bool {
		if l.UserID != userID {
			return false
		}
		if activeOnly != nil {
			return l.Active() == *activeOnly
		}
		return true
	}), nil
}

// selectLoans returns matching loans, newest loan_date first.
func (t *tx) selectLoans(match func(*domain.Loan) bool) []*domain.Loan {
	loans := make([]*domain.Loan, 0)
	for _, l := range t.st.loans {
		l := l
		if match(&l) {
			loans = append(loans, &l)
		}
	}
	sort.Slice(loans, func(i, j int) bool {
		if !loans[i].LoanDate.Equal(loans[j].LoanDate) {
			return loans[i].LoanDate.After(loans[j].LoanDate)
		}
		return loans[i].ID > loans[j].ID
	})
	return loans
}

// ---------- events ----------

func (t *tx) AppendEvent(_ context.Context, event *domain.Event) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.st.lastEventID++
	event.ID = t.st.lastEventID
	t.st.events = append(t.st.events, *event)
	return nil
}

func (t *tx) ListEvents(_ context.Context, aggregateType string, aggregateID int64) ([]domain.Event, error) {
	var events []domain.Event
	for _, e := range t.st.events {
		if e.AggregateType == aggregateType && e.AggregateID == aggregateID {
			events = append(events, e)
		}
	}
	return events, nil
}

func paginate[T any](items []T, page storage.Page) []T {
	if page.Offset >= len(items) {
		return items[:0]
	}
	end := len(items)
	if page.Limit > 0 && page.Offset+page.Limit < end {
		end = page.Offset + page.Limit
	}
	return items[page.Offset:end]
}

var _ storage.Store = (*Store)(nil)
