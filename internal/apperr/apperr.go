// Package apperr is the error model shared by every service and handler.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation"
)

type Code string

const (
	CodeInvalidArgument    Code = "INVALID_ARGUMENT"
	CodeNotFound           Code = "NOT_FOUND"
	CodeConflict           Code = "CONFLICT"
	CodeInvalidState       Code = "INVALID_STATE"
	CodeStorageUnavailable Code = "STORAGE_UNAVAILABLE"
)

// Error carries a Code plus an optional Field naming the offending input or column.
type Error struct {
	Code    Code
	Message string
	Field   string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same Code, so errors.Is(err, &Error{Code: CodeConflict}) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && (t.Field == "" || t.Field == e.Field)
}

func Invalid(msg string) *Error  { return &Error{Code: CodeInvalidArgument, Message: msg} }
func NotFound(msg string) *Error { return &Error{Code: CodeNotFound, Message: msg} }
func InvalidState(msg string) *Error {
	return &Error{Code: CodeInvalidState, Message: msg}
}

func InvalidField(field, msg string) *Error {
	return &Error{Code: CodeInvalidArgument, Message: msg, Field: field}
}

func Conflict(field, msg string) *Error {
	return &Error{Code: CodeConflict, Message: msg, Field: field}
}

func Storage(msg string, err error) *Error {
	return &Error{Code: CodeStorageUnavailable, Message: msg, Err: err}
}

// CodeOf returns the Code of the first *Error in the chain, or "" for foreign errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HasCode reports whether err carries code c.
func HasCode(err error, c Code) bool { return err != nil && CodeOf(err) == c }

func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// FromValidation turns ozzo validation.Errors into an InvalidArgument naming the first failing field.
func FromValidation(err error) error {
	if err == nil {
		return nil
	}
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return &Error{Code: CodeInvalidArgument, Message: err.Error(), Err: err}
	}
	fields := make([]string, 0, len(verrs))
	for f := range verrs {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	first := fields[0]
	return &Error{Code: CodeInvalidArgument, Field: first, Message: first + ": " + verrs[first].Error(), Err: err}
}
