package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"librarium/internal/domain"
)

func Test_DecrementOnBorrow_NoCopiesLeft(t *testing.T) {
	book := &domain.Book{TotalCopies: 2, AvailableCopies: 0}

	err := DecrementOnBorrow(book)

	assert.ErrorIs(t, err, domain.ErrNoAvailableCopies)
	assert.Equal(t, 0, book.AvailableCopies)
}

func Test_IncrementOnReturn_Clamps(t *testing.T) {
	book := &domain.Book{TotalCopies: 2, AvailableCopies: 2}

	clamped := IncrementOnReturn(book)

	assert.True(t, clamped)
	assert.Equal(t, 2, book.AvailableCopies)
}

func Test_ResizeCopies(t *testing.T) {
	tests := []struct {
		name          string
		newTotal      int
		wantAvailable int
	}{
		{"shrink below outstanding", 2, 0},
		{"grow", 10, 7},
		{"shrink to outstanding", 3, 0},
		{"unchanged", 5, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			book := &domain.Book{TotalCopies: 5, AvailableCopies: 2}

			require.NoError(t, ResizeCopies(book, tt.newTotal))

			assert.Equal(t, tt.newTotal, book.TotalCopies)
			assert.Equal(t, tt.wantAvailable, book.AvailableCopies)
		})
	}
}

func Test_ResizeCopies_RejectsNegative(t *testing.T) {
	book := &domain.Book{TotalCopies: 5, AvailableCopies: 2}

	err := ResizeCopies(book, -1)

	assert.Equal(t, domain.KindInvalidArgument, domain.KindOf(err))
	assert.Equal(t, 5, book.TotalCopies)
}

// Any sequence of borrows and returns keeps the counts in step with the loans that are out.
func Test_Policy_PreservesInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		total := rapid.IntRange(0, 20).Draw(t, "total")
		book := &domain.Book{TotalCopies: total, AvailableCopies: total}
		out := 0

		steps := rapid.SliceOfN(rapid.Bool(), 0, 60).Draw(t, "borrow")
		for _, borrow := range steps {
			if borrow {
				if err := DecrementOnBorrow(book); err == nil {
					out++
				} else if CanBorrow(book) {
					t.Fatalf("borrow refused with %d copies available", book.AvailableCopies)
				}
			} else if out > 0 {
				if IncrementOnReturn(book) {
					t.Fatalf("clamp triggered on a legitimate return")
				}
				out--
			}

			if !Consistent(book, out) {
				t.Fatalf("inconsistent: total=%d available=%d out=%d", book.TotalCopies, book.AvailableCopies, out)
			}
		}
	})
}

func Test_ResizeCopies_NeverNegative(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		total := rapid.IntRange(0, 50).Draw(t, "total")
		available := rapid.IntRange(0, total).Draw(t, "available")
		newTotal := rapid.IntRange(0, 100).Draw(t, "newTotal")
		book := &domain.Book{TotalCopies: total, AvailableCopies: available}
		used := total - available

		if err := ResizeCopies(book, newTotal); err != nil {
			t.Fatalf("resize: %v", err)
		}

		if book.AvailableCopies < 0 || book.AvailableCopies > book.TotalCopies {
			t.Fatalf("available %d out of [0,%d]", book.AvailableCopies, book.TotalCopies)
		}
		if newTotal >= used && book.AvailableCopies != newTotal-used {
			t.Fatalf("available %d, want %d", book.AvailableCopies, newTotal-used)
		}
	})
}
