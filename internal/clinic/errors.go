package clinic

import "errors"

// Kind classifies a core failure. Handlers map kinds to HTTP status codes;
// the Message is what the client sees. Store failures keep their cause for
// logging but never leak it to the client.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnauthenticated
	KindValidation
	KindConflict
	KindNotFound
	KindForbidden
	KindAlreadyInState
	KindUpdateFailed
	KindStore
)

type Error struct {
	Kind    Kind
	Field   string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// KindOf returns the classification of err, or KindUnknown for foreign errors.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}

// UserMessage returns the client-safe message for err. Anything that is not a
// classified core error surfaces as a generic database failure.
func UserMessage(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Message
	}
	return "Database error occurred"
}

func validationErr(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

func conflictErr(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

func notFoundErr(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func forbiddenErr(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

func alreadyInStateErr(message string) *Error {
	return &Error{Kind: KindAlreadyInState, Message: message}
}

func updateFailedErr(message string) *Error {
	return &Error{Kind: KindUpdateFailed, Message: message}
}

func storeErr(cause error) *Error {
	return &Error{Kind: KindStore, Message: "Database error occurred", cause: cause}
}
