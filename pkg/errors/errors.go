package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error is a classified failure raised while resolving, connecting to or
// publishing for a database target. Errors compare equal under errors.Is when
// their codes match, so the package-level sentinels double as kinds.
type Error struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Step     string `json:"step,omitempty"`
	Server   string `json:"server,omitempty"`
	Database string `json:"database,omitempty"`
	Internal error  `json:"-"`
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}

	var b strings.Builder
	if e.Server != "" || e.Database != "" {
		fmt.Fprintf(&b, "[%s][%s] ", e.Server, e.Database)
	}
	if e.Step != "" {
		b.WriteString(e.Step)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Internal != nil {
		b.WriteString(": ")
		b.WriteString(e.Internal.Error())
	}
	return b.String()
}

// Unwrap exposes the internal error for errors.Is / errors.As compatibility.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok || t == nil {
		return false
	}
	return t.Code == e.Code
}

// WithInternal returns a copy of the Error with an attached internal error.
func (e *Error) WithInternal(err error) *Error {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Internal = err
	return &cpy
}

// WithStep returns a copy of the Error tagged with the step that raised it.
func (e *Error) WithStep(step string) *Error {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Step = step
	return &cpy
}

// ForTarget returns a copy of the Error tagged with the target identity.
func (e *Error) ForTarget(server, database string) *Error {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Server = server
	cpy.Database = database
	return &cpy
}

// Error kinds raised by the pipelines.
var (
	ErrConfigFetch = &Error{
		Code:    "CONFIG_FETCH",
		Message: "failed to fetch target list",
	}
	ErrConfigParse = &Error{
		Code:    "CONFIG_PARSE",
		Message: "invalid target list",
	}
	ErrSecretFetch = &Error{
		Code:    "SECRET_FETCH",
		Message: "failed to fetch credentials",
	}
	ErrSecretParse = &Error{
		Code:    "SECRET_PARSE",
		Message: "invalid credential payload",
	}
	ErrConnection = &Error{
		Code:    "CONNECTION",
		Message: "failed to connect",
	}
	ErrSchemaEnsure = &Error{
		Code:    "SCHEMA_ENSURE",
		Message: "failed to ensure schema",
	}
	ErrQuery = &Error{
		Code:    "QUERY",
		Message: "statement failed",
	}
	ErrEmptyResult = &Error{
		Code:    "EMPTY_RESULT",
		Message: "no rows to report",
	}
	ErrPublish = &Error{
		Code:    "PUBLISH",
		Message: "failed to publish metrics",
	}
	ErrInternal = &Error{
		Code:    "INTERNAL",
		Message: "internal error",
	}
)

// Error kinds raised by the HTTP surface.
var (
	ErrNotFound = &Error{
		Code:    "NOT_FOUND",
		Message: "resource not found",
	}
	ErrTooManyRequests = &Error{
		Code:    "TOO_MANY_REQUESTS",
		Message: "too many requests",
	}
	ErrUnauthorized = &Error{
		Code:    "UNAUTHORIZED",
		Message: "authentication required",
	}
	ErrForbidden = &Error{
		Code:    "FORBIDDEN",
		Message: "token is not allowed to run this pipeline",
	}
	ErrConflict = &Error{
		Code:    "CONFLICT",
		Message: "pipeline is already running",
	}
)

// FromError converts a generic error into an *Error, defaulting to ErrInternal.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	return ErrInternal.WithInternal(err)
}

// CodeOf returns the code of the first *Error in err's chain, or "" when unclassified.
func CodeOf(err error) string {
	var classified *Error
	if errors.As(err, &classified) && classified != nil {
		return classified.Code
	}
	return ""
}
