package enums

// Role is the account role carried in access tokens.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
	RoleAdmin    Role = "admin"
)

var validRoles = []Role{RoleCustomer, RoleStaff, RoleAdmin}

func (r Role) String() string {
	return string(r)
}

func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// CanManageOrders reports whether the role may move orders through fulfilment.
func (r Role) CanManageOrders() bool {
	return r == RoleAdmin || r == RoleStaff
}
