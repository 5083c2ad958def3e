package auth

// AccountRole is the coarse authorization flag carried by every account
type AccountRole string

const (
	RoleUser  AccountRole = "user"
	RoleAdmin AccountRole = "admin"
)

// IsValid checks if the role is one of the predefined valid roles
func (r AccountRole) IsValid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

// IsAdmin reports whether the role grants admin operations
func (r AccountRole) IsAdmin() bool {
	return r == RoleAdmin
}

// IsAtLeast checks if this role meets the minimum required level
func (r AccountRole) IsAtLeast(minRole AccountRole) bool {
	roleHierarchy := map[AccountRole]int{
		RoleUser:  0,
		RoleAdmin: 1,
	}

	currentLevel, exists := roleHierarchy[r]
	if !exists {
		return false
	}

	minLevel, exists := roleHierarchy[minRole]
	if !exists {
		return false
	}

	return currentLevel >= minLevel
}

// ParseRole safely parses a string into an AccountRole
func ParseRole(roleStr string) (AccountRole, bool) {
	role := AccountRole(roleStr)
	return role, role.IsValid()
}
