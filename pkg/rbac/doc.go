// Package rbac gates admin-only operations on the caller's stored role.
//
// # Overview
//
// The catalog has a single privileged role, "admin", stored on the user
// record keyed by email. Gate.Authorize maps a resolved identity to one of
// three outcomes:
//
//	anonymous caller               -> Unauthenticated (401)
//	verified, no admin role        -> Forbidden (403)
//	verified, role == "admin"      -> proceed
//
// A verified identity with no stored user is Forbidden and logged at warn
// level, since the caller is authenticated but holds no privileges.
//
// # Caching
//
// Concurrent lookups for the same email are coalesced with singleflight.
// An optional RoleCache (RedisRoleCache) sits in front of the users
// collection and must be invalidated whenever a role changes:
//
//	gate := rbac.NewGate(store.Collection(storage.CollectionUsers),
//		rbac.WithCache(cache),
//		rbac.WithRecorder(metrics))
//	...
//	gate.Invalidate(ctx, email)
package rbac
