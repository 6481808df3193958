// internal/inventory/policy.go
package inventory

import (
	"librarium/internal/domain"
)

// CanBorrow reports whether at least one copy of the book is on the shelf.
func CanBorrow(book *domain.Book) bool {
	return book.AvailableCopies > 0
}

// DecrementOnBorrow takes one copy off the shelf.
func DecrementOnBorrow(book *domain.Book) error {
	if !CanBorrow(book) {
		return domain.ErrNoAvailableCopies
	}
	book.AvailableCopies--
	return nil
}

// IncrementOnReturn puts one copy back, never exceeding the total.
// It reports whether the cap had to be applied, which means the counts were already out of step.
func IncrementOnReturn(book *domain.Book) (clamped bool) {
	if book.AvailableCopies+1 > book.TotalCopies {
		book.AvailableCopies = book.TotalCopies
		return true
	}
	book.AvailableCopies++
	return false
}

// ResizeCopies changes the total copy count while keeping the checked-out copies checked out.
// Available copies drop to zero, never below, when the new total is smaller than what is on loan.
func ResizeCopies(book *domain.Book, newTotal int) error {
	if newTotal < 0 {
		return domain.InvalidArgument("total_copies must be >= 0")
	}
	used := book.TotalCopies - book.AvailableCopies
	book.TotalCopies = newTotal
	book.AvailableCopies = max(newTotal-used, 0)
	return nil
}

// Consistent reports whether the book's counts agree with the number of active loans on it.
func Consistent(book *domain.Book, activeLoans int) bool {
	if book.AvailableCopies < 0 || book.AvailableCopies > book.TotalCopies {
		return false
	}
	return book.AvailableCopies == max(book.TotalCopies-activeLoans, 0)
}
