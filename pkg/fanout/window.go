package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ocitools/audit-export/pkg/jsonmerge"
)

// DefaultSlice is the default time-window size. Daily slices bound the
// size of any single page accumulation, limit the blast radius of a
// failed call to one day's data, and keep each bounded slice cacheable
// forever.
const DefaultSlice = 24 * time.Hour

// TimestampFormat is the UTC second-precision format for window bounds.
const TimestampFormat = "2006-01-02T15:04:05Z"

// WindowFunc runs the export for one [start, end) window, bounds given as
// formatted UTC timestamps.
type WindowFunc func(ctx context.Context, windowStart, windowEnd string) (json.RawMessage, error)

// OverRange partitions [start, end) into slices of at most slice length
// and runs fn once per slice, merging the results. The final slice is
// clamped to end; start == end still produces exactly one (empty) slice.
// Any slice failure aborts the whole range.
func OverRange(ctx context.Context, start, end time.Time, slice time.Duration, fn WindowFunc) (json.RawMessage, error) {
	if slice <= 0 {
		slice = DefaultSlice
	}
	if end.Before(start) {
		return nil, fmt.Errorf("invalid range: end %s before start %s", end, start)
	}

	logger := log.With().Str("component", "partitioner").Logger()
	runStart := time.Now()

	var merged json.RawMessage
	windows := 0

	for cur := start; windows == 0 || cur.Before(end); {
		windowEnd := cur.Add(slice)
		if windowEnd.After(end) {
			windowEnd = end
		}

		startStr := cur.UTC().Format(TimestampFormat)
		endStr := windowEnd.UTC().Format(TimestampFormat)

		result, err := fn(ctx, startStr, endStr)
		if err != nil {
			return nil, fmt.Errorf("window [%s, %s): %w", startStr, endStr, err)
		}
		windows++

		merged, err = jsonmerge.Merge(merged, result)
		if err != nil {
			return nil, fmt.Errorf("window [%s, %s): %w", startStr, endStr, err)
		}

		cur = windowEnd
	}

	logger.Debug().
		Int("windows", windows).
		Dur("duration", time.Since(runStart)).
		Msg("Range complete")

	return merged, nil
}
