package models

// Role is the closed set of permission tiers a user can hold.
type Role string

const (
	RoleUser    Role = "USER"
	RoleSupport Role = "SUPPORT"
	RoleAgent   Role = "AGENT"
	RoleAgency  Role = "AGENCY"
	RoleAdmin   Role = "ADMIN"
)

// Valid reports whether the role is one of the known tiers. The empty role is
// treated as USER wherever transition rules apply.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleSupport, RoleAgent, RoleAgency, RoleAdmin:
		return true
	}
	return false
}

// PromoteOnAccept returns the role a user should hold after redeeming a
// contributor invitation. Only USER (or unset) is promoted to SUPPORT; every
// other tier is left untouched.
func (r Role) PromoteOnAccept() (Role, bool) {
	if r == "" || r == RoleUser {
		return RoleSupport, true
	}
	return r, false
}

// DemoteOnRevoke returns the role a user should hold after their invitation is
// revoked. Only SUPPORT is demoted back to USER; tiers above SUPPORT are never
// altered by the invitation flow.
func (r Role) DemoteOnRevoke() (Role, bool) {
	if r == RoleSupport {
		return RoleUser, true
	}
	return r, false
}

// CanAuthor reports whether the role may create blog content.
func (r Role) CanAuthor() bool {
	switch r {
	case RoleSupport, RoleAgent, RoleAgency, RoleAdmin:
		return true
	}
	return false
}

// CanList reports whether the role may own property listings.
func (r Role) CanList() bool {
	switch r {
	case RoleAgent, RoleAgency, RoleAdmin:
		return true
	}
	return false
}
