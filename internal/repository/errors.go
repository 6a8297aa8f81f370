package repository

import (
	"errors"
	"fmt"

	"github.com/tkhorram/convoytrack/internal/adapters/durable"
)

// Sentinel kinds for dual-store errors. Callers branch on these with
// errors.Is; everything else wrapped around them is diagnostic detail.
var (
	// ErrNotFound: the entity does not exist in the durable store. A cache
	// miss alone is never ErrNotFound.
	ErrNotFound = errors.New("entity not found")

	// ErrTransient: a store was unreachable or timed out; the operation made
	// no durable change and may be retried as-is.
	ErrTransient = errors.New("transient store failure")

	// ErrConflict: a concurrent writer won; re-read before retrying.
	ErrConflict = errors.New("write conflict")

	// ErrInconsistent: the durable write committed but the cache could not
	// be brought in line after retries. The durable store holds truth; the
	// failed cache step has been queued for reconciliation.
	ErrInconsistent = errors.New("stores inconsistent")
)

// mapDurable folds a durable-store error into the taxonomy.
func mapDurable(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, durable.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}
