package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnauthenticated is returned when an operation needs a signed-in caller.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden is returned when the caller is signed in but not an admin.
	ErrForbidden = errors.New("admin role required")
	// ErrListingNotFound is returned when a listing id does not resolve.
	ErrListingNotFound = errors.New("listing not found")
	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// FieldError names one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every invalid field of a request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + " " + f.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// orNil returns e when it holds at least one field error.
func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// AssetError reports a rejected or failed upload of one file.
type AssetError struct {
	FileName string
	Reason   string
	Err      error
}

func (e *AssetError) Error() string {
	msg := e.Reason
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	if e.FileName != "" {
		return e.FileName + ": " + msg
	}
	return msg
}

func (e *AssetError) Unwrap() error {
	return e.Err
}

// StoreError wraps a row store failure with the operation that hit it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// asStoreError leaves typed service errors alone and wraps anything else.
func asStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		storeErr *StoreError
		valErr   *ValidationError
	)
	if errors.As(err, &storeErr) || errors.As(err, &valErr) ||
		errors.Is(err, ErrListingNotFound) || errors.Is(err, ErrForbidden) || errors.Is(err, ErrUnauthenticated) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// ErrorKind classifies err for metrics labels and logs.
func ErrorKind(err error) string {
	var (
		valErr   *ValidationError
		assetErr *AssetError
		storeErr *StoreError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &valErr):
		return "validation"
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrForbidden), errors.Is(err, ErrInvalidCredentials):
		return "authorization"
	case errors.Is(err, ErrListingNotFound):
		return "not_found"
	case errors.As(err, &assetErr):
		return "asset"
	case errors.As(err, &storeErr):
		return "store"
	default:
		return "internal"
	}
}
