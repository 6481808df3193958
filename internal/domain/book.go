// internal/domain/book.go
package domain

// Book represents a catalog title and its physical copy counts.
type Book struct {
	ID              int64  `json:"id" db:"id"`
	Title           string `json:"title" db:"title"`
	Author          string `json:"author" db:"author"`
	TotalCopies     int    `json:"total_copies" db:"total_copies"`
	AvailableCopies int    `json:"available_copies" db:"available_copies"`
}

// Availability is the copy summary of a single book.
type Availability struct {
	BookID          int64 `json:"book_id"`
	AvailableCopies int   `json:"available_copies"`
	TotalCopies     int   `json:"total_copies"`
}

// BookStock pairs a book with the number of its loans that are still out.
type BookStock struct {
	Book
	ActiveLoans int `db:"active_loans"`
}
