package database

import (
	stderrors "errors"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/poubelles/poubelles-backend/pkg/errors"
)

// MapStoreError converts a driver error into an AppError with a caller-safe message.
// Returns nil if the error is not a recognised driver error.
func MapStoreError(err error) *errors.AppError {
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		return mapPQError(pqErr)
	}

	var liteErr sqlite3.Error
	if stderrors.As(err, &liteErr) {
		return mapSQLiteError(liteErr)
	}

	return nil
}

func mapPQError(pqErr *pq.Error) *errors.AppError {
	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return errors.BadRequest("data validation failed: " + pqErr.Constraint)

	// Unique constraint violation (23505)
	case "23505":
		return errors.Conflict("a bin with these values already exists")

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	// Read-only transaction (25006)
	case "25006":
		return errors.Forbidden("store is opened read-only")

	default:
		return nil
	}
}

func mapSQLiteError(liteErr sqlite3.Error) *errors.AppError {
	switch liteErr.Code {
	case sqlite3.ErrConstraint:
		if liteErr.ExtendedCode == sqlite3.ErrConstraintUnique || liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return errors.Conflict("a bin with these values already exists")
		}
		return errors.BadRequest("data validation failed")
	case sqlite3.ErrReadonly:
		return errors.Forbidden("store is opened read-only")
	default:
		return nil
	}
}
