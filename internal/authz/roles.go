package authz

const (
	RoleViewer   = 10
	RoleOperator = 20
	RoleAdmin    = 50
)

// CanOverride reports whether the role may force-confirm a folio.
func CanOverride(roleID int) bool {
	return roleID == RoleOperator || roleID == RoleAdmin
}

func IsReadOnly(roleID int) bool {
	return roleID == RoleViewer
}

// Valid reports whether roleID names a known role.
func Valid(roleID int) bool {
	return roleID == RoleViewer || CanOverride(roleID)
}
