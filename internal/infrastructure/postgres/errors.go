package postgres

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// Error classes the repositories and the sync engine tell apart.
var (
	ErrUniqueViolation     = errors.New("unique violation")
	ErrForeignKeyViolation = errors.New("foreign key violation")
	ErrNotNullViolation    = errors.New("not null violation")
	ErrCheckViolation      = errors.New("check violation")
	ErrInvalidInput        = errors.New("invalid input")
	ErrRetryable           = errors.New("retryable conflict")
	ErrUnavailable         = errors.New("database unavailable")
	ErrCanceled            = errors.New("statement canceled")
	ErrDatabase            = errors.New("database error")
)

// Error is a Postgres failure with its SQLSTATE and the table and
// constraint involved. errors.Is matches the class sentinel; errors.As
// still reaches the underlying *pq.Error.
type Error struct {
	Class      error
	Code       string
	Table      string
	Column     string
	Constraint string
	Message    string
	cause      *pq.Error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("postgres %s (%s)", e.Class, e.Code)
	if e.Table != "" {
		msg += " on " + e.Table
	}
	if e.Constraint != "" {
		msg += " constraint " + e.Constraint
	} else if e.Column != "" {
		msg += " column " + e.Column
	}
	return msg + ": " + e.Message
}

func (e *Error) Unwrap() []error {
	return []error{e.Class, e.cause}
}

// translate maps *pq.Error to *Error and leaves every other error alone.
func translate(err error) error {
	var pqErr *pq.Error
	if err == nil || !errors.As(err, &pqErr) {
		return err
	}
	var already *Error
	if errors.As(err, &already) {
		return err
	}

	return &Error{
		Class:      classify(pqErr.Code),
		Code:       string(pqErr.Code),
		Table:      pqErr.Table,
		Column:     pqErr.Column,
		Constraint: pqErr.Constraint,
		Message:    pqErr.Message,
		cause:      pqErr,
	}
}

func classify(code pq.ErrorCode) error {
	switch code {
	case "23505":
		return ErrUniqueViolation
	case "23503":
		return ErrForeignKeyViolation
	case "23502":
		return ErrNotNullViolation
	case "23514":
		return ErrCheckViolation
	case "40001", "40P01":
		return ErrRetryable
	case "57014":
		return ErrCanceled
	case "57P01", "57P02", "57P03", "53300":
		return ErrUnavailable
	}
	switch code.Class() {
	case "08":
		return ErrUnavailable
	case "22":
		return ErrInvalidInput
	}
	return ErrDatabase
}
