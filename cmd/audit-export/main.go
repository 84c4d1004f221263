// Command audit-export exports a tenancy's audit-event history and IAM
// listings as JSON files, driving the export engine once per region.
package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ocitools/audit-export/pkg/cache"
	"github.com/ocitools/audit-export/pkg/executor"
	"github.com/ocitools/audit-export/pkg/export"
	"github.com/ocitools/audit-export/pkg/logging"
)

// Build-time variables (set via -ldflags).
var (
	Version = "dev"
)

const dateFormat = "2006-01-02"

var rootCmd = &cobra.Command{
	Use:     "audit-export",
	Short:   "Export cloud audit-event history as JSON",
	Version: Version,
	Long: `audit-export walks a date range in daily slices, fans each slice out
over every compartment of the tenancy, paginates each query to completion,
and writes one JSON document per export option. Already-fetched time
windows are served from a local archive cache across runs.`,
	RunE: run,
}

func init() {
	flags := rootCmd.Flags()
	flags.String("start", "", "First day of the export range (YYYY-MM-DD, inclusive)")
	flags.String("end", "", "Last day of the export range (YYYY-MM-DD, inclusive, default today)")
	flags.Int("days-back", export.DefaultDaysBack, "Range length when --start is not given")
	flags.StringSlice("regions", nil, "Regions to export (default: the CLI profile's region)")
	flags.StringSlice("compartments", nil, "Compartment ids to export (default: discover all)")
	flags.String("output-dir", ".", "Directory for output files")
	flags.String("cache-file", "audit_hist.zip", "Archive cache path")
	flags.Bool("no-cache", false, "Disable the query cache")
	flags.Duration("cache-validity", cache.DefaultValidity, "Validity window for unbounded cache entries")
	flags.Duration("timeout", executor.DefaultTimeout, "Per-call timeout")
	flags.Duration("slice", 24*time.Hour, "Time-window size")
	flags.Float64("rate", 0, "Max provider calls per second (0 = unpaced)")
	flags.String("cli", "oci", "Provider CLI binary")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.Bool("pretty", false, "Human-readable log output")

	viper.SetEnvPrefix("AUDIT_EXPORT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	_ = viper.BindPFlags(flags)
}

func run(cmd *cobra.Command, args []string) error {
	logging.Setup(logging.Config{
		Level:  logging.LogLevel(viper.GetString("log-level")),
		Pretty: viper.GetBool("pretty"),
		Output: os.Stderr,
	})

	start, end, err := exportRange()
	if err != nil {
		return err
	}

	cfg := export.Config{
		Start: start,
		// The engine range is half-open; the end date is inclusive.
		End:               end.AddDate(0, 0, 1),
		SliceDuration:     viper.GetDuration("slice"),
		Timeout:           viper.GetDuration("timeout"),
		Regions:           viper.GetStringSlice("regions"),
		Compartments:      viper.GetStringSlice("compartments"),
		RequestsPerSecond: viper.GetFloat64("rate"),
	}

	if !viper.GetBool("no-cache") {
		store, err := cache.OpenArchive(viper.GetString("cache-file"), viper.GetDuration("cache-validity"))
		if err != nil {
			return fmt.Errorf("open cache: %w", err)
		}
		defer store.Close()
		cfg.Store = store
	}

	engine, err := export.New(&cliRunner{bin: viper.GetString("cli")}, cfg)
	if err != nil {
		return err
	}

	results, runErr := engine.Run(cmd.Context())

	outputDir := viper.GetString("output-dir")
	for name, doc := range results {
		path := filepath.Join(outputDir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
		if err := os.WriteFile(path, doc, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		log.Info().Str("file", path).Int("bytes", len(doc)).Msg("Document written")
	}

	return runErr
}

// exportRange resolves the inclusive start and end dates from flags.
func exportRange() (time.Time, time.Time, error) {
	end := time.Now().UTC().Truncate(24 * time.Hour)
	if s := viper.GetString("end"); s != "" {
		var err error
		end, err = time.Parse(dateFormat, s)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse --end: %w", err)
		}
	}

	start := end.AddDate(0, 0, -viper.GetInt("days-back"))
	if s := viper.GetString("start"); s != "" {
		var err error
		start, err = time.Parse(dateFormat, s)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse --start: %w", err)
		}
	}

	return start, end, nil
}

// cliRunner executes queries through the provider's authenticated CLI.
// Credentials stay with the CLI profile; the engine never sees them.
type cliRunner struct {
	bin string
}

func (r *cliRunner) Run(ctx context.Context, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, r.bin, append(append([]string{}, args...), "--output", "json")...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s: %w: %s", r.bin, err, strings.TrimSpace(stderr.String()))
	}

	return stdout.Bytes(), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
