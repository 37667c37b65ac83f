package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/cbgm/internal/cache"
	"github.com/papapumpkin/cbgm/internal/config"
)

// internalError marks a failure as an unexpected internal error (a storage
// driver failure, not something the user can fix by changing their
// invocation), selecting the negative exit code rather
// than the usual 1.
type internalError struct{ err error }

func (e *internalError) Error() string { return e.err.Error() }
func (e *internalError) Unwrap() error { return e.err }

func asInternal(err error) error {
	if err == nil {
		return nil
	}
	return &internalError{err: err}
}

// openCache opens the persisted cache, classifying a version mismatch as a
// user error (exit 1: rebuild the cache) and any other failure — a
// corrupt file, a locked database, a driver error — as internal.
func openCache(cmd *cobra.Command, cfg config.Config) (cache.Store, error) {
	store, err := cache.Open(cmd.Context(), cfg.CachePath)
	if err != nil {
		if errors.Is(err, cache.ErrSchemaVersion) {
			return nil, err
		}
		return nil, asInternal(err)
	}
	return store, nil
}
