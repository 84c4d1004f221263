// Package executor runs single paged provider queries with timeout
// enforcement, JSON validation, and a read-through cache.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/ocitools/audit-export/pkg/cache"
)

// Prometheus metrics for query execution.
var (
	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "audit_queries_total",
		Help: "Total provider queries by outcome",
	}, []string{"outcome"}) // "success", "cache_hit", "timeout", "protocol_error", "upstream_error"

	queryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "audit_query_duration_seconds",
		Help:    "Provider query duration in seconds",
		Buckets: []float64{0.5, 1, 5, 15, 60, 180, 600},
	})
)

// DefaultTimeout is the hard per-call deadline.
const DefaultTimeout = 600 * time.Second

// Runner is the authenticated provider boundary: one command-style call
// returning raw JSON. The executor never constructs credentials itself.
type Runner interface {
	Run(ctx context.Context, args []string) ([]byte, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, args []string) ([]byte, error)

// Run implements Runner.
func (f RunnerFunc) Run(ctx context.Context, args []string) ([]byte, error) {
	return f(ctx, args)
}

// Config holds executor configuration.
type Config struct {
	// Timeout is the hard per-call deadline (default 600s).
	Timeout time.Duration

	// Region scopes cache signatures and is forwarded to the runner as
	// a --region argument. Empty means the runner's default region.
	Region string

	// Store is the read-through cache. Nil disables caching: every
	// lookup is a miss and results are not persisted.
	Store cache.Store

	// Limiter paces calls against the rate-limited upstream. Nil
	// disables pacing.
	Limiter *rate.Limiter
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		Timeout: DefaultTimeout,
	}
}

// Executor runs provider queries through a Runner.
type Executor struct {
	runner Runner
	config Config
	logger zerolog.Logger
}

// New creates an executor around an authenticated runner.
func New(runner Runner, cfg Config) (*Executor, error) {
	if runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Executor{
		runner: runner,
		config: cfg,
		logger: log.With().Str("component", "executor").Str("region", cfg.Region).Logger(),
	}, nil
}

// Region returns the region this executor is scoped to.
func (e *Executor) Region() string {
	return e.config.Region
}

// Signature returns the cache key for a query: the exact argument string,
// prefixed with the region so identical queries against different regions
// never collide in a shared archive.
func (e *Executor) Signature(args []string) string {
	sig := strings.Join(args, " ")
	if e.config.Region != "" {
		sig = "region=" + e.config.Region + "|" + sig
	}
	return sig
}

// Execute runs one provider query. filter, when non-empty, is appended as
// a --query argument and is part of the signature. The flow is cache
// lookup, then the remote call under the per-call deadline, then a
// best-effort cache write.
func (e *Executor) Execute(ctx context.Context, args []string, filter string) (json.RawMessage, error) {
	full := args
	if filter != "" {
		full = append(append([]string{}, args...), "--query", filter)
	}
	signature := e.Signature(full)

	if e.config.Store != nil {
		payload, err := e.config.Store.Lookup(signature)
		switch {
		case err == nil:
			e.logger.Debug().Str("signature", signature).Msg("Cache hit")
			queriesTotal.WithLabelValues("cache_hit").Inc()
			return payload, nil
		case errors.Is(err, cache.ErrMiss):
			// Proceed to the provider.
		default:
			e.logger.Warn().Err(err).Str("signature", signature).Msg("Cache lookup failed")
		}
	}

	if e.config.Limiter != nil {
		if err := e.config.Limiter.Wait(ctx); err != nil {
			return nil, &QueryError{Class: ClassUpstream, Signature: signature, Err: err}
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	start := time.Now()
	raw, err := e.runner.Run(callCtx, e.runArgs(full))
	queryDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			e.logger.Error().
				Str("signature", signature).
				Dur("timeout", e.config.Timeout).
				Msg("Query timed out")
			queriesTotal.WithLabelValues("timeout").Inc()
			return nil, &QueryError{Class: ClassTimeout, Signature: signature, Err: err}
		}
		e.logger.Error().Err(err).Str("signature", signature).Msg("Query failed")
		queriesTotal.WithLabelValues("upstream_error").Inc()
		return nil, &QueryError{Class: ClassUpstream, Signature: signature, Err: err}
	}

	if !json.Valid(raw) {
		e.logger.Error().Str("signature", signature).Msg("Malformed provider response")
		queriesTotal.WithLabelValues("protocol_error").Inc()
		return nil, &QueryError{
			Class:     ClassProtocol,
			Signature: signature,
			Err:       fmt.Errorf("response is not well-formed JSON"),
		}
	}

	queriesTotal.WithLabelValues("success").Inc()
	e.logger.Debug().
		Str("signature", signature).
		Int("bytes", len(raw)).
		Dur("duration", time.Since(start)).
		Msg("Query succeeded")

	// Caching is best-effort: a failed write is logged, never fatal.
	if e.config.Store != nil {
		if err := e.config.Store.Store(signature, raw); err != nil {
			e.logger.Warn().Err(err).Str("signature", signature).Msg("Cache store failed")
		}
	}

	return raw, nil
}

// runArgs appends the region argument forwarded to the runner.
func (e *Executor) runArgs(args []string) []string {
	if e.config.Region == "" {
		return args
	}
	return append(append([]string{}, args...), "--region", e.config.Region)
}
