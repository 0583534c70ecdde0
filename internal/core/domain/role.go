package domain

// Role defines the permission level of an API key.
// @design DS-0201
type Role string

const (
	// RoleReader can read store contents and list snapshots.
	RoleReader Role = "reader"

	// RoleWriter can additionally write values, flush stores, and create
	// snapshots.
	RoleWriter Role = "writer"

	// RoleAdmin holds every permission, including key and store
	// management.
	RoleAdmin Role = "admin"
)

// ValidRoles returns the built-in roles.
func ValidRoles() []Role {
	return []Role{RoleReader, RoleWriter, RoleAdmin}
}

// IsValidRole reports whether r names a built-in role.
func IsValidRole(r string) bool {
	switch Role(r) {
	case RoleReader, RoleWriter, RoleAdmin:
		return true
	}
	return false
}

// KeyStatus is the lifecycle state of an API key.
type KeyStatus string

const (
	KeyStatusActive   KeyStatus = "active"
	KeyStatusDisabled KeyStatus = "disabled"
)

// ValidKeyStatuses returns the valid key statuses.
func ValidKeyStatuses() []KeyStatus {
	return []KeyStatus{KeyStatusActive, KeyStatusDisabled}
}

// IsValidKeyStatus reports whether s names a valid key status.
func IsValidKeyStatus(s string) bool {
	switch KeyStatus(s) {
	case KeyStatusActive, KeyStatusDisabled:
		return true
	}
	return false
}

// Permission names one guarded operation, as "<area>.<action>".
type Permission string

const (
	PermStoreRead   Permission = "store.read"
	PermStoreWrite  Permission = "store.write"
	PermStoreList   Permission = "store.list"
	PermStoreAttach Permission = "store.attach"
	PermStoreDetach Permission = "store.detach"
	PermStoreFlush  Permission = "store.flush"

	PermSnapshotCreate Permission = "snapshot.create"
	PermSnapshotList   Permission = "snapshot.list"

	PermAPIKeyCreate  Permission = "apikey.create"
	PermAPIKeyRead    Permission = "apikey.read"
	PermAPIKeyList    Permission = "apikey.list"
	PermAPIKeyDisable Permission = "apikey.disable"
	PermAPIKeyEnable  Permission = "apikey.enable"
	PermAPIKeyRotate  Permission = "apikey.rotate"

	PermSystemStatus Permission = "system.status"
	PermSystemHealth Permission = "system.health"
	PermSystemConfig Permission = "system.config"

	PermMetricsRead Permission = "metrics.read"
)

// Role grants are cumulative: writer holds everything reader does, admin
// holds everything.
var (
	readerGrants = []Permission{
		PermStoreRead, PermStoreList, PermSnapshotList, PermMetricsRead,
	}
	writerGrants = append([]Permission{
		PermStoreWrite, PermStoreFlush, PermSnapshotCreate,
	}, readerGrants...)
	adminGrants = append([]Permission{
		PermStoreAttach, PermStoreDetach,
		PermAPIKeyCreate, PermAPIKeyRead, PermAPIKeyList,
		PermAPIKeyDisable, PermAPIKeyEnable, PermAPIKeyRotate,
		PermSystemStatus, PermSystemHealth, PermSystemConfig,
	}, writerGrants...)

	roleGrants = map[Role][]Permission{
		RoleReader: readerGrants,
		RoleWriter: writerGrants,
		RoleAdmin:  adminGrants,
	}
)

// HasPermission reports whether role grants perm. Unknown roles grant
// nothing.
func HasPermission(role Role, perm Permission) bool {
	for _, p := range roleGrants[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// HasPermissionString is HasPermission for a raw action string.
func HasPermissionString(role Role, action string) bool {
	return HasPermission(role, Permission(action))
}

// GetPermissions returns a copy of the permissions granted to role.
func GetPermissions(role Role) []Permission {
	grants, ok := roleGrants[role]
	if !ok {
		return nil
	}
	out := make([]Permission, len(grants))
	copy(out, grants)
	return out
}

// RoleHierarchy orders roles by privilege; unknown roles rank lowest.
func RoleHierarchy(role Role) int {
	switch role {
	case RoleReader:
		return 1
	case RoleWriter:
		return 2
	case RoleAdmin:
		return 3
	}
	return 0
}

// IsRoleAtLeast reports whether role is at least as privileged as required.
func IsRoleAtLeast(role, required Role) bool {
	return RoleHierarchy(role) >= RoleHierarchy(required)
}
