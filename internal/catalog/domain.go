// internal/catalog/domain.go
package catalog

// DefaultTotalCopies is used when a new book does not state its copy count.
const DefaultTotalCopies = 1

// CreateBookRequest is the body of POST /books.
type CreateBookRequest struct {
	Title       string `json:"title" validate:"required,min=1,max=200"`
	Author      string `json:"author" validate:"required,min=1,max=200"`
	TotalCopies *int   `json:"total_copies" validate:"omitempty,gte=0"`
}

// BookUpdate carries the optional fields of PUT /books/{id}. Nil fields are left unchanged.
type BookUpdate struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=200"`
	Author      *string `json:"author" validate:"omitempty,min=1,max=200"`
	TotalCopies *int    `json:"total_copies" validate:"omitempty,gte=0"`
}

// BookAddedEvent is recorded when a book enters the catalog.
type BookAddedEvent struct {
	BookID      int64  `json:"book_id"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	TotalCopies int    `json:"total_copies"`
}

// BookUpdatedEvent is recorded when a book's details or copy counts change.
type BookUpdatedEvent struct {
	BookID            int64  `json:"book_id"`
	Title             string `json:"title"`
	Author            string `json:"author"`
	PreviousTotal     int    `json:"previous_total"`
	TotalCopies       int    `json:"total_copies"`
	PreviousAvailable int    `json:"previous_available"`
	AvailableCopies   int    `json:"available_copies"`
}
