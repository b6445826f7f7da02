package core

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by storage, services and the HTTP layer.
var (
	ErrValidation      = errors.New("validation failed")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrNotFound        = errors.New("not found")
	ErrConnection      = errors.New("store unavailable")
	ErrConflict        = errors.New("already exists")
)

// Field-level validation failures. Each is reported wrapped in a ValidationError.
var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrNegativeAmount     = errors.New("amount must not be negative")
	ErrAmountPrecision    = errors.New("amount must have at most two decimal places")
	ErrAmountTooLarge     = errors.New("amount too large")
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
	ErrInvalidUsername    = errors.New("username must be 3-50 characters of letters, digits, '.', '_' or '-'")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrEmptyFullName      = errors.New("full name is required")
	ErrFullNameTooLong    = errors.New("full name too long (max 100 characters)")
	ErrWeakPassword       = errors.New("password must be 8-72 bytes long")
	ErrUsernameTaken      = errors.New("username already registered")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidHomeName    = errors.New("home name must be 2-80 characters")
	ErrHomeNameTaken      = errors.New("home name already taken")
	ErrUnknownHome        = errors.New("no home with that name")
	ErrAlreadyInHome      = errors.New("you already belong to a home")
	ErrNoHome             = errors.New("create or join a home first")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrLeaderMustStay     = errors.New("the leader cannot leave while other members remain")
	ErrNotLeader          = errors.New("only the home leader can remove members")
	ErrCannotRemoveLeader = errors.New("the leader cannot be removed")
	ErrNotMember          = errors.New("no member with that username in your home")
)

// ValidationError reports a user-correctable problem with one input field.
// It matches both ErrValidation and the wrapped field error under errors.Is.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Err.Error())
}

func (e *ValidationError) Unwrap() []error {
	return []error{ErrValidation, e.Err}
}

// Message returns the field error text without the field prefix, for inline display.
func (e *ValidationError) Message() string {
	return e.Err.Error()
}

// Invalid wraps err as a ValidationError for field.
func Invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// AsValidation extracts a ValidationError from err, if any.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
