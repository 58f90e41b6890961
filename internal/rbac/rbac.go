// Package rbac defines roles within a board series and the actions
// each role may take.
package rbac

type Role string
type Action string

const (
	RoleMember      Role = "member"
	RoleFacilitator Role = "facilitator"
	RoleAdmin       Role = "admin"
)

const (
	ActionView       Action = "view"
	ActionContribute Action = "contribute"
	ActionFacilitate Action = "facilitate"
	ActionAdmin      Action = "admin"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleFacilitator:
		return action == ActionView || action == ActionContribute || action == ActionFacilitate
	case RoleMember:
		return action == ActionView || action == ActionContribute
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleMember, RoleFacilitator, RoleAdmin:
		return Role(role)
	default:
		return RoleMember
	}
}
