package cache

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrMiss indicates the signature has no usable cache entry.
	// A miss is a signal to fall through to the query executor, never a
	// failure of the export.
	ErrMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates a cache entry exists but is corrupted.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// DefaultValidity is how long an entry for a non-time-bounded signature
// stays usable. Time-bounded entries describe immutable history and never
// expire.
const DefaultValidity = 72 * time.Hour

// Markers whose joint presence makes a signature time-bounded.
const (
	startBoundMarker = "--start-time"
	endBoundMarker   = "--end-time"
)

// Store is a persistent signature-keyed payload store.
//
// Lookup returns ErrMiss when no usable entry exists; Store overwrites an
// existing entry for the same signature in place.
type Store interface {
	Lookup(signature string) ([]byte, error)
	Store(signature string, payload []byte) error
	Close() error
}

// IsBounded reports whether a query signature carries explicit start and
// end time bounds. Bounded queries address a fixed historical window, so
// their cached payloads are valid forever.
func IsBounded(signature string) bool {
	return strings.Contains(signature, startBoundMarker) &&
		strings.Contains(signature, endBoundMarker)
}
