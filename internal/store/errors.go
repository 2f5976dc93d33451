package store

import "errors"

var (
	// ErrNotFound is returned when an update or delete targets an
	// identifier with no row. Lookups report a miss with a false flag
	// instead.
	ErrNotFound = errors.New("store: not found")

	// ErrInvalidID is returned when an operation needs a stored entity
	// but was given one without an identifier.
	ErrInvalidID = errors.New("store: invalid id")

	// ErrWriteFailed wraps the cause of a failed multi-statement write.
	// The transaction was rolled back and no partial state remains.
	ErrWriteFailed = errors.New("store: write failed")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsWriteFailed(err error) bool {
	return errors.Is(err, ErrWriteFailed)
}
