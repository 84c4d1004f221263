// Package export is the audit-export engine: it drives the static option
// table across regions, compartments, time windows, and pages, and hands
// back one JSON document per option.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/ocitools/audit-export/pkg/compartments"
	"github.com/ocitools/audit-export/pkg/executor"
	"github.com/ocitools/audit-export/pkg/fanout"
	"github.com/ocitools/audit-export/pkg/jsonmerge"
	"github.com/ocitools/audit-export/pkg/pagination"
)

// Engine runs exports against an authenticated provider runner.
type Engine struct {
	runner executor.Runner
	config Config
	logger zerolog.Logger
}

// regionRun is the per-region execution state shared by option handlers.
type regionRun struct {
	driver       *pagination.Driver
	compartments []string
	config       *Config
}

// New creates an engine. The runner is the already-authenticated provider
// boundary; the engine never handles credentials.
func New(runner executor.Runner, cfg Config) (*Engine, error) {
	if runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if cfg.End.Before(cfg.Start) {
		return nil, fmt.Errorf("invalid range: end %s before start %s",
			cfg.End.Format(fanout.TimestampFormat), cfg.Start.Format(fanout.TimestampFormat))
	}
	if cfg.SliceDuration <= 0 {
		cfg.SliceDuration = fanout.DefaultSlice
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = executor.DefaultTimeout
	}
	if cfg.Options == nil {
		cfg.Options = Options
	}

	return &Engine{
		runner: runner,
		config: cfg,
		logger: log.With().Str("component", "export").Logger(),
	}, nil
}

// Run executes every configured option in every configured region,
// strictly sequentially. The result maps output keys (region-prefixed
// when more than the default region is involved) to JSON documents.
//
// A failed option fails the export for that option and is reported in the
// joined error; other options still run and their documents are returned.
// Within one option, failures are never absorbed.
func (e *Engine) Run(ctx context.Context) (map[string][]byte, error) {
	runID := uuid.NewString()
	logger := e.logger.With().Str("run_id", runID).Logger()

	regions := e.config.Regions
	if len(regions) == 0 {
		regions = []string{""}
	}

	logger.Info().
		Time("start", e.config.Start).
		Time("end", e.config.End).
		Strs("regions", regions).
		Bool("cache", e.config.Store != nil).
		Msg("Export run starting")

	results := make(map[string][]byte)
	var failures []error

	for _, region := range regions {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if err := e.runRegion(ctx, logger, region, results); err != nil {
			failures = append(failures, err)
		}
	}

	logger.Info().
		Int("documents", len(results)).
		Int("failed_options", len(failures)).
		Msg("Export run finished")

	return results, errors.Join(failures...)
}

// runRegion runs the full option table against one region.
func (e *Engine) runRegion(ctx context.Context, logger zerolog.Logger, region string, results map[string][]byte) error {
	logger = logger.With().Str("region", region).Logger()

	var limiter *rate.Limiter
	if e.config.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(e.config.RequestsPerSecond), 1)
	}

	exec, err := executor.New(e.runner, executor.Config{
		Timeout: e.config.Timeout,
		Region:  region,
		Store:   e.config.Store,
		Limiter: limiter,
	})
	if err != nil {
		return err
	}

	run := &regionRun{
		driver: pagination.NewDriver(exec),
		config: &e.config,
	}

	run.compartments = e.config.Compartments
	if len(run.compartments) == 0 {
		set, err := compartments.Discover(ctx, run.driver)
		if err != nil {
			return fmt.Errorf("region %q: %w", region, err)
		}
		run.compartments = compartments.IDs(set)
	}

	var failures []error
	for _, opt := range e.config.Options {
		start := time.Now()

		doc, err := opt.Run(ctx, run, opt.Args)
		if err != nil {
			logger.Error().
				Err(err).
				Str("option", opt.Name).
				Msg("Option failed")
			failures = append(failures, fmt.Errorf("option %s (region %q): %w", opt.Name, region, err))
			continue
		}

		doc, err = normalize(doc)
		if err != nil {
			failures = append(failures, fmt.Errorf("option %s (region %q): %w", opt.Name, region, err))
			continue
		}

		results[outputKey(region, opt.OutputFile)] = doc
		logger.Info().
			Str("option", opt.Name).
			Int("bytes", len(doc)).
			Dur("duration", time.Since(start)).
			Msg("Option exported")
	}

	return errors.Join(failures...)
}

// normalize guarantees the caller-facing {"data": [...]} contract even
// when an option produced no result at all (empty compartment set).
func normalize(doc json.RawMessage) (json.RawMessage, error) {
	if doc != nil {
		return doc, nil
	}
	return jsonmerge.WrapData(nil)
}

// outputKey prefixes an output file with its region when one is set.
func outputKey(region, file string) string {
	if region == "" {
		return file
	}
	return region + "/" + file
}
