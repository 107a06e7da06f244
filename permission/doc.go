// Package permission maps portal roles to permission bitmasks for client-side
// route guarding.
//
// # Model
//
// A [Registry] assigns each permission name a bit in a [Mask64]; the highest bit is
// reserved as the root bit when requested, and a mask holding it satisfies every
// check. A [RoleManager] composes role masks from permission names. Role names are
// matched case-insensitively.
//
// # Architecture boundaries
//
// This package is pure in-memory data with no I/O. Guards built on it only avoid
// pointless round trips; the backend remains the authority.
package permission
