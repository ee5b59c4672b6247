// Package policy guards mutations of protected records.
//
// # Overview
//
// Guards wraps the four check-then-act sequences of the catalog:
//
//	InsertCatalogEntry  title already taken           -> Conflict
//	DeleteCatalogEntry  entry absent                  -> NotFound
//	                    entry has main=true           -> PolicyViolation
//	GrantAdmin          user absent                   -> NotFound
//	RevokeAdmin         user absent                   -> NotFound
//	                    user has mainAdmin=true       -> PolicyViolation
//
// Every guard branches on absence before reading a flag. Callers are
// expected to have passed the role gate already.
//
// # Concurrency
//
// Each check and its write run under a KeyedMutex entry for the record key
// (title, id or email), so two guarded calls on the same key in one process
// never interleave. The store offers no transactions; processes sharing a
// store can still race.
package policy
