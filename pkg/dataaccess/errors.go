package dataaccess

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
)

var (
	// ErrNotFound is returned when the requested document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrDuplicate is returned when an insert collides with an existing key.
	ErrDuplicate = errors.New("document already exists")
)

// mapMongoErr converts driver errors into the package sentinels so callers
// never depend on the mongo package directly.
func mapMongoErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicate
	default:
		return err
	}
}

// isPermanent reports whether an error should not be retried. Not-found and
// duplicate-key outcomes are definitive answers from the store, and a
// cancelled caller context will not recover on its own.
func isPermanent(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrDuplicate) ||
		errors.Is(err, context.Canceled)
}
