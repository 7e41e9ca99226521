package enums

// UserRole scopes what an authenticated user may do.
type UserRole string

const (
	RoleUser    UserRole = "user"
	RoleAdmin   UserRole = "admin"
	RoleOps     UserRole = "ops"
	RoleSupport UserRole = "support"
)

var validUserRoles = []UserRole{
	RoleUser,
	RoleAdmin,
	RoleOps,
	RoleSupport,
}

// IsValid reports whether the value is a known UserRole.
func (r UserRole) IsValid() bool {
	for _, candidate := range validUserRoles {
		if candidate == r {
			return true
		}
	}
	return false
}
