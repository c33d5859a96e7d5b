package store

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	// ErrSerialization marks a transaction aborted by the isolation level.
	// Nothing it wrote was committed, so the unit of work may be retried.
	ErrSerialization = errors.New("serialization failure")
)

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
)

// classify maps driver errors onto the store sentinels while keeping the
// original error in the chain.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected:
			return errors.Join(ErrSerialization, err)
		case pgUniqueViolation:
			return errors.Join(ErrConflict, err)
		}
	}
	return err
}
