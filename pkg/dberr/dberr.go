// Package dberr classifies Postgres errors into application error kinds.
package dberr

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmehra2102/tenant-commerce/pkg/apperr"
)

// Map converts err returned by pgx during op.
//
// Integrity violations become constraint errors, a missing row becomes
// not_found and anything else is an infrastructure failure. Context errors
// and errors that already carry a kind are returned unchanged.
func Map(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return &apperr.Error{Kind: apperr.KindNotFound, Op: op, Msg: "record not found", Err: err}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && IsIntegrityViolation(pgErr.Code) {
		return &apperr.Error{Kind: apperr.KindConstraint, Op: op, Msg: describe(pgErr), Err: err}
	}
	return apperr.Infrastructure(op, err)
}

// IsIntegrityViolation reports whether code is one of the constraint
// violations a caller can fix by changing its input.
func IsIntegrityViolation(code string) bool {
	switch code {
	case pgerrcode.ForeignKeyViolation,
		pgerrcode.NotNullViolation,
		pgerrcode.UniqueViolation,
		pgerrcode.CheckViolation:
		return true
	}
	return false
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func describe(e *pgconn.PgError) string {
	var what string
	switch e.Code {
	case pgerrcode.ForeignKeyViolation:
		what = "foreign key violation"
	case pgerrcode.NotNullViolation:
		what = "missing required value"
		if e.ColumnName != "" {
			what += " for " + e.ColumnName
		}
		return what
	case pgerrcode.UniqueViolation:
		what = "duplicate value"
	case pgerrcode.CheckViolation:
		what = "check violation"
	}
	if e.ConstraintName != "" {
		return fmt.Sprintf("%s on %s", what, e.ConstraintName)
	}
	return what
}
