package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Common database error codes
const (
	PgUniqueViolation     = "23505" // unique_violation
	PgForeignKeyViolation = "23503" // foreign_key_violation
	PgCheckViolation      = "23514" // check_violation
	PgConnectionException = "08000" // connection_exception
	PgConnectionFailure   = "08006" // connection_failure
)

// Custom error types
var (
	ErrDBConnection = errors.New("database connection error")
	ErrDBConstraint = errors.New("database constraint violation")
	ErrDBTimeout    = errors.New("database operation timeout")
	ErrDBCanceled   = errors.New("database operation canceled")
)

// mapToCustomError maps database errors to our custom error types while
// keeping the original error in the chain
func mapToCustomError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrDBTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrDBCanceled, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case PgUniqueViolation, PgForeignKeyViolation, PgCheckViolation:
			return fmt.Errorf("%w: %w", ErrDBConstraint, err)
		case PgConnectionException, PgConnectionFailure:
			return fmt.Errorf("%w: %w", ErrDBConnection, err)
		}
	}

	if errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("%w: %w", ErrDBConnection, err)
	}

	return err
}

// isForeignKeyViolation reports whether err is a foreign key violation
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == PgForeignKeyViolation
}
