package store

import (
	"errors"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert violates a uniqueness constraint,
// e.g. a taken username or a second review for the same title by the same
// author. The constraint lives in the database so concurrent requests
// cannot race past it.
var ErrConflict = errors.New("already exists")

// ErrUnknownCategory and ErrUnknownGenre are returned when a title write
// references a slug that does not resolve to a stored row.
var (
	ErrUnknownCategory = errors.New("unknown category")
	ErrUnknownGenre    = errors.New("unknown genre")
)

const uniqueViolationCode = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode
}
