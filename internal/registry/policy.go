package registry

import "slices"

// Policy is a snapshot of the access settings taken at the start of a command.
type Policy struct {
	Owners         []string
	RequiredRoleID string
	Locked         bool
}

func newPolicy(s Settings) Policy {
	return Policy{
		Owners:         slices.Clone(s.Owners),
		RequiredRoleID: s.RequiredRoleID,
		Locked:         s.DNSLocked,
	}
}

// IsOwner reports whether userID is a bot owner.
func (p Policy) IsOwner(userID string) bool {
	return slices.Contains(p.Owners, userID)
}

// HasRole reports whether a member holding roleIDs passes the role gate.
// The gate is open when no role is configured.
func (p Policy) HasRole(roleIDs []string) bool {
	if p.RequiredRoleID == "" {
		return true
	}
	return slices.Contains(roleIDs, p.RequiredRoleID)
}
