package database

import (
	"github.com/lib/pq"
	"github.com/timottowitz/obelisk-backend/pkg/errors"
)

// PostgreSQL error codes this package cares about.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeNotNullViolation    = "23502"
)

// IsUniqueViolation reports whether err is a PostgreSQL unique-constraint
// violation. The provisioning pipeline leans on this: a duplicate tenant
// insert or a duplicate migration-ledger insert means another delivery of
// the same webhook got there first, which is convergence, not failure.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return string(pqErr.Code) == codeUniqueViolation
}

// IsForeignKeyViolation reports whether err is a PostgreSQL foreign-key
// violation.
func IsForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return string(pqErr.Code) == codeForeignKeyViolation
}

// UniqueViolationConstraint returns the constraint name of a unique
// violation, or "" if err is not one.
func UniqueViolationConstraint(err error) string {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return ""
	}
	if string(pqErr.Code) != codeUniqueViolation {
		return ""
	}
	return pqErr.Constraint
}

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error it knows about.
func MapPQError(err error) *errors.AppError {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil
	}

	switch string(pqErr.Code) {
	case codeUniqueViolation:
		return errors.Conflict("a record with these values already exists")

	case codeForeignKeyViolation:
		return errors.BadRequest("referenced record does not exist")

	case codeNotNullViolation:
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	default:
		return nil
	}
}
