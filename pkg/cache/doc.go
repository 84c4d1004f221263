// Package cache provides the signature-keyed payload store the query
// executor reads through before touching the provider API.
//
// Keys are full query signatures: the exact argument string submitted to
// the executor, region-scoped by the caller. Two signatures are equal iff
// their arguments are byte-identical, so a cache hit is always an exact
// replay of a previous query.
//
// # Staleness
//
// A signature carrying both --start-time and --end-time bounds addresses a
// fixed slice of history; once fetched, its payload never goes stale.
// Every other signature (compartment listings, user listings, ...) expires
// after a validity window, 72h by default.
//
// # Backends
//
// ArchiveStore persists entries in a single zip container holding an index
// file (audit_hist_list.txt, lines of "signature|filename") plus one
// numbered payload file per entry. The layout is an interop contract with
// prior export runs and must not change. RedisStore keeps the same
// contract on a Redis backend, expressing the validity window as a key
// TTL.
//
// # Usage
//
//	store, err := cache.OpenArchive("audit_hist.zip", cache.DefaultValidity)
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//
//	payload, err := store.Lookup(signature)
//	if errors.Is(err, cache.ErrMiss) {
//		// fetch from the provider, then best-effort:
//		_ = store.Store(signature, payload)
//	}
package cache
