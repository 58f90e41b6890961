package rbac

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		name   string
		role   Role
		action Action
		allow  bool
	}{
		{name: "member view", role: RoleMember, action: ActionView, allow: true},
		{name: "member contribute", role: RoleMember, action: ActionContribute, allow: true},
		{name: "member facilitate", role: RoleMember, action: ActionFacilitate, allow: false},
		{name: "member admin", role: RoleMember, action: ActionAdmin, allow: false},
		{name: "facilitator facilitate", role: RoleFacilitator, action: ActionFacilitate, allow: true},
		{name: "facilitator admin", role: RoleFacilitator, action: ActionAdmin, allow: false},
		{name: "admin admin", role: RoleAdmin, action: ActionAdmin, allow: true},
		{name: "unknown role", role: Role("owner"), action: ActionView, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Can(tc.role, tc.action); got != tc.allow {
				t.Fatalf("Can(%q, %q) = %v, want %v", tc.role, tc.action, got, tc.allow)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	if Normalize("facilitator") != RoleFacilitator {
		t.Error("facilitator should normalize to itself")
	}
	if Normalize("superuser") != RoleMember {
		t.Error("unknown role should normalize to member")
	}
}
