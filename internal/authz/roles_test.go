package authz

import "testing"

func TestRoles(t *testing.T) {
	cases := []struct {
		role               int
		override, readOnly bool
		valid              bool
	}{
		{RoleViewer, false, true, true},
		{RoleOperator, true, false, true},
		{RoleAdmin, true, false, true},
		{0, false, false, false},
		{99, false, false, false},
	}
	for _, c := range cases {
		if CanOverride(c.role) != c.override || IsReadOnly(c.role) != c.readOnly || Valid(c.role) != c.valid {
			t.Fatalf("role %d: override=%v readOnly=%v valid=%v", c.role, CanOverride(c.role), IsReadOnly(c.role), Valid(c.role))
		}
	}
}
