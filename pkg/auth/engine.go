package auth

// The authorization engine is a set of pure predicates over a requester's
// memberships. Callers fetch the membership set once per request and pass it
// to every check; the engine itself never touches storage.

// IsGlobalAdmin reports whether any membership carries RoleGlobalAdmin.
// Global scope is computed here, independently of per-account role lookup.
func IsGlobalAdmin(memberships []Membership) bool {
	for _, m := range memberships {
		if m.Role == RoleGlobalAdmin {
			return true
		}
	}
	return false
}

// RoleOn returns the membership role for a specific account, if any
func RoleOn(memberships []Membership, accountID string) (Role, bool) {
	for _, m := range memberships {
		if m.AccountID == accountID {
			return m.Role, true
		}
	}
	return "", false
}

// CanAdminister reports whether the requester may mutate membership and
// settings of the account: a global admin, or an account admin on it.
func CanAdminister(memberships []Membership, accountID string) bool {
	if IsGlobalAdmin(memberships) {
		return true
	}
	role, ok := RoleOn(memberships, accountID)
	return ok && role == RoleAccountAdmin
}

// IsMember reports whether the requester may read resources in the account:
// any membership role on it, or global admin.
func IsMember(memberships []Membership, accountID string) bool {
	if IsGlobalAdmin(memberships) {
		return true
	}
	_, ok := RoleOn(memberships, accountID)
	return ok
}
