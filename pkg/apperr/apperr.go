// Package apperr defines the error kinds surfaced by the API and their HTTP mapping.
//
// Kinds are expressed with github.com/juju/errors const errors so callers can test
// them with errors.Is regardless of how much context has been added.
package apperr

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/juju/errors"
	"gorm.io/gorm"
)

const (
	// InUse marks a delete blocked by dependent rows.
	InUse = errors.ConstError("in use")

	// AccountLocked is returned while a login lockout window is open.
	AccountLocked = errors.ConstError("account locked")

	// InvalidCredentials is returned for any failed login.
	InvalidCredentials = errors.ConstError("invalid credentials")
)

// ValidationError carries field level detail for malformed input.
type ValidationError struct {
	Fields map[string]string
}

// Validation builds a ValidationError from field -> message pairs.
func Validation(fields map[string]string) error {
	return &ValidationError{Fields: fields}
}

// Invalid is shorthand for a single-field validation error.
func Invalid(field, msg string) error {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return errors.NotValid }

// ReferenceError reports a domain reference (client code, plate, service id)
// that could not be resolved while building another record.
type ReferenceError struct {
	Entity string
	Key    string
}

// MissingReference builds a ReferenceError.
func MissingReference(entity, key string) error {
	return &ReferenceError{Entity: entity, Key: key}
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.Key)
}

func (e *ReferenceError) Unwrap() error { return errors.NotFound }

// FromDB translates gorm errors into API error kinds. what names the record
// involved and ends up in the client-facing message.
func FromDB(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errors.NotFoundf("%s", what)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return errors.AlreadyExistsf("%s", what)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%s is referenced by other records: %w", what, InUse)
	}
	return errors.Annotatef(err, "%s", what)
}

// HTTPStatus maps an error to the response status code.
func HTTPStatus(err error) int {
	var verr *ValidationError
	var rerr *ReferenceError
	switch {
	case errors.As(err, &verr), errors.As(err, &rerr):
		return http.StatusBadRequest
	case errors.Is(err, errors.NotValid), errors.Is(err, errors.BadRequest):
		return http.StatusBadRequest
	case errors.Is(err, errors.AlreadyExists), errors.Is(err, InUse):
		return http.StatusBadRequest
	case errors.Is(err, errors.NotFound):
		return http.StatusNotFound
	case errors.Is(err, AccountLocked):
		return http.StatusLocked
	case errors.Is(err, InvalidCredentials), errors.Is(err, errors.Unauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, errors.Forbidden):
		return http.StatusForbidden
	case errors.Is(err, errors.QuotaLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, errors.NotSupported):
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

// Response is the JSON error body.
type Response struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// ToResponse builds the client-facing body. Internal errors never leak detail.
func ToResponse(err error) Response {
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		return Response{Error: "internal server error"}
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return Response{Error: "validation failed", Fields: verr.Fields}
	}
	return Response{Error: err.Error()}
}
