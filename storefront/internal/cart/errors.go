package cart

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidSize     = errors.New("size is required")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrInvalidPrice    = errors.New("price must not be negative")
	ErrMissingProduct  = errors.New("product id is required")

	// ErrStorageUnread is returned by writes while the stored cart could not be read.
	ErrStorageUnread = errors.New("stored cart could not be read, refusing to overwrite it")
)

// HydrationError reports a stored snapshot that could not be used. The store
// has already fallen back to an empty cart when it is returned.
// Transient marks a failed read of storage, as opposed to unusable data.
type HydrationError struct {
	Key       string
	Err       error
	Transient bool
}

func (e *HydrationError) Error() string {
	return fmt.Sprintf("hydrate cart %q: %v", e.Key, e.Err)
}

func (e *HydrationError) Unwrap() error {
	return e.Err
}
