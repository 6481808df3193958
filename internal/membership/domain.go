// internal/membership/domain.go
package membership

// CreateUserRequest is the body of POST /users.
type CreateUserRequest struct {
	Name  string `json:"name" validate:"required,min=1,max=120"`
	Email string `json:"email" validate:"required,email"`
}

// UserUpdate carries the optional fields of PUT /users/{id}. Nil fields are left unchanged.
type UserUpdate struct {
	Name  *string `json:"name" validate:"omitempty,min=1,max=120"`
	Email *string `json:"email" validate:"omitempty,email"`
}

// UserRegisteredEvent is recorded when a new user registers.
type UserRegisteredEvent struct {
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

// UserUpdatedEvent is recorded when a user's name or email changes.
type UserUpdatedEvent struct {
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}
