package repository

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/shupiange/mephisto-quant/models"
)

// Error kinds surfaced by the store. Use errors.Is to test for them.
var (
	ErrSchemaConflict      = errors.New("schema conflict")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrConnectionFailure   = errors.New("connection failure")
	ErrQueryTimeout        = errors.New("query timeout")
	ErrValidation          = errors.New("validation failed")
)

// SchemaConflictError reports a pre-existing table whose columns differ from
// the declared definition
type SchemaConflictError struct {
	Table  models.Table
	Column string
	Want   string
	Got    string
}

func (e *SchemaConflictError) Error() string {
	if e.Got == "" {
		return fmt.Sprintf("schema conflict on %s: column %s missing (want %s)", e.Table, e.Column, e.Want)
	}
	return fmt.Sprintf("schema conflict on %s.%s: want %s, got %s", e.Table, e.Column, e.Want, e.Got)
}

func (e *SchemaConflictError) Unwrap() error { return ErrSchemaConflict }

// RejectedWriteError reports a single record the store refused to persist.
// Kind is one of ErrValidation, ErrConstraintViolation, ErrConnectionFailure
// or ErrQueryTimeout.
type RejectedWriteError struct {
	Table models.Table
	Key   string
	Kind  error
	Err   error
}

func (e *RejectedWriteError) Error() string {
	return fmt.Sprintf("write to %s rejected (%s): %v: %v", e.Table, e.Key, e.Kind, e.Err)
}

func (e *RejectedWriteError) Unwrap() []error { return []error{e.Kind, e.Err} }

// KindLabel returns a short metric label for an error kind
func KindLabel(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConstraintViolation):
		return "constraint_violation"
	case errors.Is(err, ErrQueryTimeout):
		return "query_timeout"
	case errors.Is(err, ErrConnectionFailure):
		return "connection_failure"
	case errors.Is(err, ErrSchemaConflict):
		return "schema_conflict"
	default:
		return "other"
	}
}

// classifiedError attaches a kind to a driver error without hiding it
type classifiedError struct {
	kind error
	err  error
}

func (e *classifiedError) Error() string { return fmt.Sprintf("%v: %v", e.kind, e.err) }

func (e *classifiedError) Unwrap() []error { return []error{e.kind, e.err} }

// Classify maps a driver error onto the store's error kinds. Errors that are
// already classified, and errors that match no kind, are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if kind := kindOf(err); kind != nil && !errors.Is(err, kind) {
		return &classifiedError{kind: kind, err: err}
	}
	return err
}

func kindOf(err error) error {
	for _, kind := range []error{ErrValidation, ErrConstraintViolation, ErrQueryTimeout, ErrConnectionFailure, ErrSchemaConflict} {
		if errors.Is(err, kind) {
			return kind
		}
	}

	var fe *models.FieldError
	if errors.As(err, &fe) {
		return ErrValidation
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505", // unique_violation
			pgErr.Code == "23502", // not_null_violation
			pgErr.Code == "23514", // check_violation
			pgErr.Code == "22001", // string_data_right_truncation
			pgErr.Code == "22003": // numeric_value_out_of_range
			return ErrConstraintViolation
		case pgErr.Code == "57014": // query_canceled, raised by statement_timeout
			return ErrQueryTimeout
		case strings.HasPrefix(pgErr.Code, "08"), pgErr.Code == "57P01", pgErr.Code == "53300":
			return ErrConnectionFailure
		}
		return nil
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return ErrConnectionFailure
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return ErrQueryTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrConnectionFailure
	}
	return nil
}

// reject wraps a write failure as a RejectedWriteError
func reject(table models.Table, key string, err error) error {
	kind := kindOf(err)
	if kind == nil {
		return fmt.Errorf("failed to write %s (%s): %w", table, key, err)
	}
	return &RejectedWriteError{Table: table, Key: key, Kind: kind, Err: err}
}
