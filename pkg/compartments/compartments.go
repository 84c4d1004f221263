// Package compartments discovers the compartment set an export fans out
// over: every non-deleted compartment in the tenancy plus a synthesized
// ROOT entry for the tenancy itself.
package compartments

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/ocitools/audit-export/pkg/pagination"
)

// RootName names the synthesized tenancy-level entry.
const RootName = "ROOT"

// deletedState marks compartments excluded from fan-out.
const deletedState = "DELETED"

// listArgs is the provider query for the full compartment tree.
var listArgs = []string{"iam", "compartment", "list", "--compartment-id-in-subtree", "true", "--all"}

// Compartment is one resource-grouping unit of the tenancy.
type Compartment struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	LifecycleState string `json:"lifecycle-state"`
	// ParentID is the id of the enclosing compartment; for top-level
	// compartments it is the tenancy id.
	ParentID string `json:"compartment-id"`
}

// Discover lists the tenancy's compartment tree and returns the fan-out
// set in listing order: deleted compartments removed, ROOT appended last.
func Discover(ctx context.Context, driver *pagination.Driver) ([]Compartment, error) {
	doc, err := driver.RunPaged(ctx, listArgs, "")
	if err != nil {
		return nil, fmt.Errorf("list compartments: %w", err)
	}
	return FromListing(doc)
}

// FromListing builds the compartment set from a raw {"data": [...]}
// compartment listing.
//
// The provider's listing call never returns the tenancy root itself, so
// the root is synthesized from the parent chain: the one parent id that
// is no listed compartment's own id is the tenancy id.
func FromListing(doc json.RawMessage) ([]Compartment, error) {
	var listing struct {
		Data []Compartment `json:"data"`
	}
	if err := json.Unmarshal(doc, &listing); err != nil {
		return nil, fmt.Errorf("parse compartment listing: %w", err)
	}

	ids := make(map[string]bool, len(listing.Data))
	for _, c := range listing.Data {
		ids[c.ID] = true
	}

	set := make([]Compartment, 0, len(listing.Data)+1)
	tenancyID := ""
	skipped := 0

	for _, c := range listing.Data {
		if c.LifecycleState == deletedState {
			skipped++
			continue
		}
		if tenancyID == "" && c.ParentID != "" && !ids[c.ParentID] {
			tenancyID = c.ParentID
		}
		set = append(set, c)
	}

	if tenancyID != "" {
		set = append(set, Compartment{ID: tenancyID, Name: RootName, LifecycleState: "ACTIVE"})
	}

	log.Debug().
		Str("component", "compartments").
		Int("compartments", len(set)).
		Int("deleted", skipped).
		Bool("root_synthesized", tenancyID != "").
		Msg("Compartment set built")

	return set, nil
}

// IDs projects a compartment set onto its identifiers, preserving order.
func IDs(set []Compartment) []string {
	out := make([]string, 0, len(set))
	for _, c := range set {
		out = append(out, c.ID)
	}
	return out
}
