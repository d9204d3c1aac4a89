package lifecycle

// Role identifies the kind of agent work performed at a lifecycle stage.
type Role string

const (
	RolePlanner  Role = "planner"
	RoleBuilder  Role = "builder"
	RoleVerifier Role = "verifier"
	RoleReviewer Role = "reviewer"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether r is a declared role.
func (r Role) IsValid() bool {
	switch r {
	case RolePlanner, RoleBuilder, RoleVerifier, RoleReviewer:
		return true
	}
	return false
}

// Roles returns all roles in pipeline order.
func Roles() []Role {
	return []Role{RolePlanner, RoleBuilder, RoleVerifier, RoleReviewer}
}
