// Package access decides who may read, write, delete or fork a tensor and
// records every decision in an append-only audit log.
//
// Permissions are stored one per tensor through storage.PermissionRepository.
// Owners always pass every check. Sharing and public visibility only ever
// grant read and fork. Mutating calls (grants, revokes, level changes) are
// applied as single read-modify-write transactions, so concurrent owners
// never lose each other's updates.
package access
