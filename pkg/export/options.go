package export

import (
	"context"
	"encoding/json"

	"github.com/ocitools/audit-export/pkg/fanout"
)

// AuditFilter excludes read-only events from the export.
const AuditFilter = `data[?"request-action" != 'GET']`

// OptionFunc produces one export document for a region run.
type OptionFunc func(ctx context.Context, run *regionRun, args []string) (json.RawMessage, error)

// Option is one row of the export dispatch table: a named export whose
// handler turns a base provider command into an output document.
type Option struct {
	// Name identifies the option in logs and errors.
	Name string

	// OutputFile is the file name the caller writes the document to.
	OutputFile string

	// Run is the handler driving the export for this option.
	Run OptionFunc

	// Args is the base provider command the handler starts from.
	Args []string
}

// Options is the static export table, iterated in order. Each row used
// to be synthesized at runtime from configuration markers; a fixed table
// dispatched directly replaces that.
var Options = []Option{
	{
		Name:       "audit-events",
		OutputFile: "audit_events.json",
		Run:        runAuditEvents,
		Args:       []string{"audit", "event", "list"},
	},
	{
		Name:       "compartments",
		OutputFile: "compartments.json",
		Run:        runListing,
		Args:       []string{"iam", "compartment", "list", "--compartment-id-in-subtree", "true", "--all"},
	},
	{
		Name:       "users",
		OutputFile: "users.json",
		Run:        runListing,
		Args:       []string{"iam", "user", "list", "--all"},
	},
	{
		Name:       "groups",
		OutputFile: "groups.json",
		Run:        runListing,
		Args:       []string{"iam", "group", "list", "--all"},
	},
	{
		Name:       "policies",
		OutputFile: "policies.json",
		Run:        runCompartmentListing,
		Args:       []string{"iam", "policy", "list", "--all"},
	},
}

// runAuditEvents exports the audit-event history: the range is cut into
// slices, each slice fans out over every compartment, and every query
// filters out read-only (GET) events.
func runAuditEvents(ctx context.Context, run *regionRun, args []string) (json.RawMessage, error) {
	return fanout.OverRange(ctx, run.config.Start, run.config.End, run.config.SliceDuration,
		func(ctx context.Context, windowStart, windowEnd string) (json.RawMessage, error) {
			template := append(append([]string{}, args...),
				"--start-time", windowStart,
				"--end-time", windowEnd,
			)
			return fanout.AcrossCompartments(ctx, run.driver, template, AuditFilter, run.compartments)
		})
}

// runListing exports one tenancy-wide paged listing.
func runListing(ctx context.Context, run *regionRun, args []string) (json.RawMessage, error) {
	return run.driver.RunPaged(ctx, args, "")
}

// runCompartmentListing exports one per-compartment paged listing.
func runCompartmentListing(ctx context.Context, run *regionRun, args []string) (json.RawMessage, error) {
	return fanout.AcrossCompartments(ctx, run.driver, args, "", run.compartments)
}
