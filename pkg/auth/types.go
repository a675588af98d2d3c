package auth

import "time"

// Role represents a membership role within an account
type Role string

const (
	// RoleUser has read and resource-level write access within the account
	RoleUser Role = "USER"
	// RoleAccountAdmin additionally manages members and account settings
	RoleAccountAdmin Role = "ACCOUNT_ADMIN"
	// RoleGlobalAdmin, held on any membership, administers every account.
	// It is never grantable through an invite or role change.
	RoleGlobalAdmin Role = "GLOBAL_ADMIN"
)

// ParseRole validates a role string against the closed set
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleUser, RoleAccountAdmin, RoleGlobalAdmin:
		return Role(s), true
	}
	return "", false
}

// Grantable reports whether the role may be assigned via invite or role
// change. GLOBAL_ADMIN is excluded; it is only ever provisioned directly.
func (r Role) Grantable() bool {
	return r == RoleUser || r == RoleAccountAdmin
}

// Membership is the (user, account, role) relationship, the unit of access
// control. At most one membership exists per (user, account) pair.
type Membership struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	AccountID string    `json:"account_id"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
