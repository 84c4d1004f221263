package export

import (
	"time"

	"github.com/ocitools/audit-export/pkg/cache"
	"github.com/ocitools/audit-export/pkg/executor"
	"github.com/ocitools/audit-export/pkg/fanout"
)

// DefaultDaysBack is how far the export range reaches when no start date
// is given: the end date and this many days prior.
const DefaultDaysBack = 90

// Config holds the engine configuration. All knobs are explicit; the
// engine keeps no ambient state.
type Config struct {
	// Start and End bound the export range [Start, End). Both are
	// calendar dates; Start == End still exports one empty window.
	Start time.Time
	End   time.Time

	// SliceDuration is the time-window size (default 24h).
	SliceDuration time.Duration

	// Timeout is the hard per-call deadline (default 600s).
	Timeout time.Duration

	// Store is the query cache shared across regions. Nil disables
	// caching entirely.
	Store cache.Store

	// Regions to export, each a full sequential run. Empty means one
	// run against the runner's default region.
	Regions []string

	// Compartments optionally pins the fan-out set. Empty means the
	// set is discovered per region (deleted excluded, ROOT appended).
	Compartments []string

	// RequestsPerSecond paces provider calls. Zero disables pacing.
	RequestsPerSecond float64

	// Options is the dispatch table to run. Nil means Options (the
	// full static table).
	Options []Option
}

// DefaultConfig returns a configuration for the trailing DefaultDaysBack
// days ending today, with caching left to the caller.
func DefaultConfig() Config {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	return Config{
		Start:         today.AddDate(0, 0, -DefaultDaysBack),
		End:           today,
		SliceDuration: fanout.DefaultSlice,
		Timeout:       executor.DefaultTimeout,
	}
}
