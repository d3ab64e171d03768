package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Callers check them with errors.Is.
var (
	// ErrValidation marks bad or empty input. Nothing is persisted or broadcast.
	ErrValidation = errors.New("validation error")

	// ErrAuth marks an action attempted by a connection without a login identity.
	ErrAuth = errors.New("authentication required")

	// ErrPersistence marks a storage fault reported by the gateway.
	ErrPersistence = errors.New("persistence error")

	// ErrUniquenessConflict is returned by gateways when a create collides with a
	// unique index. It never leaves get-or-create.
	ErrUniquenessConflict = errors.New("uniqueness conflict")

	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("requested resource not found")
)

// Message catalog keys carried by Error.Code. The transport turns them into
// localized text for the originating client.
const (
	CodeUsernameRequired = "username_required"
	CodeUsernameTooLong  = "username_too_long"
	CodeMessageEmpty     = "message_empty"
	CodeMessageTooLong   = "message_too_long"
	CodeLoginRequired    = "login_required"
	CodeStorageFailure   = "storage_failure"
	CodeInvalidRequest   = "invalid_request"
	CodeUnknownAction    = "unknown_action"
	CodeInvalidMessageID = "invalid_message_id"
	CodeImageRequired    = "image_required"
	CodeImageType        = "image_type_not_allowed"
	CodeImageTooLarge    = "image_too_large"
	CodeImageURLInvalid  = "image_url_invalid"
)

// Error is the structured failure returned by the chat core. Kind is one of the
// sentinel kinds above, Code a message catalog key, Op the failing operation.
type Error struct {
	Kind error
	Code string
	Op   string
	Err  error
}

// NewError builds an Error of the given kind.
func NewError(kind error, code, op string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Op: op, Err: cause}
}

// Validation is shorthand for a validation failure with no underlying cause.
func Validation(op, code string) *Error {
	return NewError(ErrValidation, code, op, nil)
}

// Unauthenticated is shorthand for an AuthError.
func Unauthenticated(op string) *Error {
	return NewError(ErrAuth, CodeLoginRequired, op, nil)
}

// Persistence wraps a gateway failure.
func Persistence(op string, cause error) *Error {
	return NewError(ErrPersistence, CodeStorageFailure, op, cause)
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if e.Code != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Code)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// CodeOf returns the catalog key of err, or CodeStorageFailure for errors that did
// not come from the core.
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) && de.Code != "" {
		return de.Code
	}
	return CodeStorageFailure
}
