// internal/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

// Kind groups errors by how a caller should react to them.
type Kind string

const (
	KindNotFound        Kind = "NOT_FOUND"
	KindConflict        Kind = "CONFLICT"
	KindInvalidArgument Kind = "INVALID_ARGUMENT"
)

// Error is an expected, caller-recoverable business error.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches errors carrying the same code, so wrapped copies still compare equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

var (
	ErrUserNotFound = &Error{Kind: KindNotFound, Code: "USER_NOT_FOUND", Message: "user not found"}
	ErrBookNotFound = &Error{Kind: KindNotFound, Code: "BOOK_NOT_FOUND", Message: "book not found"}
	ErrLoanNotFound = &Error{Kind: KindNotFound, Code: "LOAN_NOT_FOUND", Message: "loan not found"}

	ErrEmailExists           = &Error{Kind: KindConflict, Code: "EMAIL_EXISTS", Message: "email already exists"}
	ErrNoAvailableCopies     = &Error{Kind: KindConflict, Code: "NO_AVAILABLE_COPIES", Message: "no available copies"}
	ErrMaxActiveLoansReached = &Error{Kind: KindConflict, Code: "MAX_ACTIVE_LOANS_REACHED", Message: "user reached max active loans"}
	ErrAlreadyReturned       = &Error{Kind: KindConflict, Code: "ALREADY_RETURNED", Message: "loan already returned"}
)

// InvalidArgument builds an error for input the domain rejects.
func InvalidArgument(msg string) error {
	return &Error{Kind: KindInvalidArgument, Code: "INVALID_ARGUMENT", Message: msg}
}

// KindOf returns the kind of a domain error, or "" for anything else.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }
func IsConflict(err error) bool { return KindOf(err) == KindConflict }
