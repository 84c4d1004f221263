package pagination

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ocitools/audit-export/pkg/executor"
	"github.com/ocitools/audit-export/pkg/jsonmerge"
)

// NextPageField is the provider's continuation-token field. A terminal
// page omits it; any other page carries a non-empty token.
const NextPageField = "opc-next-page"

// Driver paginates one logical query to completion.
type Driver struct {
	exec   *executor.Executor
	logger zerolog.Logger
}

// NewDriver creates a pagination driver over an executor.
func NewDriver(exec *executor.Executor) *Driver {
	return &Driver{
		exec:   exec,
		logger: log.With().Str("component", "pagination").Logger(),
	}
}

// Executor returns the underlying executor.
func (d *Driver) Executor() *executor.Executor {
	return d.exec
}

// RunPaged runs the query described by args (plus an optional result
// filter) and follows continuation tokens until the provider stops
// returning them. A single-page response is returned verbatim; a
// multi-page sequence is folded into one {"data": [...]} document with
// page order preserved. Any executor error aborts and propagates.
func (d *Driver) RunPaged(ctx context.Context, args []string, filter string) (json.RawMessage, error) {
	start := time.Now()

	var merged json.RawMessage
	pageArgs := args
	pages := 0

	for {
		resp, err := d.exec.Execute(ctx, pageArgs, filter)
		if err != nil {
			return nil, err
		}
		pages++

		token, page, splitErr := splitToken(resp)

		if token == "" && merged == nil {
			// Single terminal page: hand back the response as-is.
			return resp, nil
		}
		if splitErr != nil {
			return nil, splitErr
		}

		if token == "" {
			result, err := jsonmerge.Merge(merged, page)
			if err != nil {
				return nil, err
			}
			d.logger.Debug().
				Int("pages", pages).
				Dur("duration", time.Since(start)).
				Msg("Pagination complete")
			return result, nil
		}

		merged, err = jsonmerge.Merge(merged, page)
		if err != nil {
			return nil, err
		}

		pageArgs = append(append([]string{}, args...), "--page", token)
	}
}

// splitToken separates the continuation token from a page response and
// normalizes the remainder to {"data": [...]}. A page that must be
// merged but carries no data field is a schema error; the caller skips
// that error only on the verbatim single-page path.
func splitToken(resp json.RawMessage) (string, json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(resp, &fields); err != nil {
		return "", nil, fmt.Errorf("%w: page is not a JSON object", jsonmerge.ErrSchema)
	}

	var token string
	if raw, ok := fields[NextPageField]; ok {
		if err := json.Unmarshal(raw, &token); err != nil {
			token = ""
		}
	}

	value, ok := fields[jsonmerge.DataField]
	if !ok {
		return token, nil, jsonmerge.ErrSchema
	}

	page, err := jsonmerge.WrapData(value)
	if err != nil {
		return token, nil, err
	}
	return token, page, nil
}
