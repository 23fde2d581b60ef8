package domain

// Role is the closed set of caller roles the API recognises.
// Modelling roles as a typed enum (rather than branching on raw strings)
// means every role-dependent operation is an exhaustive switch the compiler
// can check when a role is added.
type Role int

const (
	// RoleUnknown is the zero value, assigned to any unrecognised role claim.
	RoleUnknown Role = iota
	RoleSuperadmin
	RoleAdmin
	RoleTeacher
	RoleDriver
	RoleParent
)

// ParseRole maps a role claim string to a Role.
// Unrecognised values map to RoleUnknown, never an error: an unknown role is
// a valid authenticated caller that simply has no scope anywhere.
func ParseRole(s string) Role {
	switch s {
	case "superadmin":
		return RoleSuperadmin
	case "admin":
		return RoleAdmin
	case "teacher":
		return RoleTeacher
	case "driver":
		return RoleDriver
	case "parent":
		return RoleParent
	default:
		return RoleUnknown
	}
}

// String returns the wire representation of the role.
func (r Role) String() string {
	switch r {
	case RoleSuperadmin:
		return "superadmin"
	case RoleAdmin:
		return "admin"
	case RoleTeacher:
		return "teacher"
	case RoleDriver:
		return "driver"
	case RoleParent:
		return "parent"
	default:
		return "unknown"
	}
}
