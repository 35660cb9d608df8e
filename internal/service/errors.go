package service

import "errors"

var (
	// ErrInvalidCredentials covers both unknown-email and wrong-password
	// failures; the messaging is deliberately uniform so callers cannot
	// probe which accounts exist.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account temporarily locked")
	ErrAccountSuspended   = errors.New("account suspended")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrEmailTaken         = errors.New("email already registered")
	// ErrInvalidToken covers never-existed, already-used and expired tokens
	// alike; the caller cannot distinguish them.
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrMailDispatch = errors.New("email dispatch failed")
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 1 {
		return e.Fields[0].Field + ": " + e.Fields[0].Message
	}
	return "validation failed"
}

func (e *ValidationError) add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}
