// Package pagination drives one logical provider query to completion
// across its continuation-token pages.
//
// The provider returns an opc-next-page token while more results remain.
// Pages are fetched strictly sequentially: token N+1 only exists once
// page N has been read, and the upstream is rate limited, so there is
// nothing to parallelize. Each page's data array is folded into one
// {"data": [...]} result; an executor error aborts the loop immediately
// and propagates.
//
// Example usage:
//
//	driver := pagination.NewDriver(exec)
//	result, err := driver.RunPaged(ctx, []string{"audit", "event", "list",
//		"--start-time", start, "--end-time", end,
//		"--compartment-id", id}, filter)
package pagination
