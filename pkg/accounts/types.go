package accounts

import (
	"context"
	"time"

	"github.com/pkolev/warrantyhub/pkg/auth"
)

// Account represents a tenant scope owning warranties and having members
type Account struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsOwnedBy reports whether userID is the account owner
func (a *Account) IsOwnedBy(userID string) bool {
	return a.OwnerID == userID
}

// AccountSummary is the member-floor view used for account switching
type AccountSummary struct {
	AccountID   string    `json:"account_id"`
	AccountName string    `json:"account_name"`
	Role        auth.Role `json:"role"`
	IsOwner     bool      `json:"is_owner"`
}

// MemberDetail is the admin-floor view of a membership, including the
// member's email and join date
type MemberDetail struct {
	MembershipID string    `json:"membership_id"`
	UserID       string    `json:"user_id"`
	Name         string    `json:"name,omitempty"`
	Email        string    `json:"email"`
	Role         auth.Role `json:"role"`
	JoinedAt     time.Time `json:"joined_at"`
	IsOwner      bool      `json:"is_owner"`
}

// BlobDeleter removes stored objects during the account deletion cascade
type BlobDeleter interface {
	Delete(ctx context.Context, key string) error
}

// Service defines account and membership management
type Service interface {
	CreateAccount(ctx context.Context, requesterID, name string) (*Account, error)
	GetAccount(ctx context.Context, requesterID, accountID string) (*Account, error)
	RenameAccount(ctx context.Context, requesterID, accountID, newName string) (*Account, error)
	DeleteAccount(ctx context.Context, requesterID, accountID string) error
	LeaveAccount(ctx context.Context, requesterID, accountID string) error

	InviteMember(ctx context.Context, requesterID, accountID, email string, role auth.Role) (*auth.Membership, error)
	ChangeRole(ctx context.Context, requesterID, membershipID string, newRole auth.Role) error
	RemoveMember(ctx context.Context, requesterID, membershipID string) error

	// ListUserMemberships returns the requester's own memberships, the input
	// to every authorization decision.
	ListUserMemberships(ctx context.Context, userID string) ([]auth.Membership, error)

	// ListAccounts is the member-floor listing for account switching
	ListAccounts(ctx context.Context, userID string) ([]AccountSummary, error)

	// ListMembers returns plain membership rows; requires membership
	ListMembers(ctx context.Context, requesterID, accountID string) ([]auth.Membership, error)

	// ListMemberDetails returns members with email and join date; requires
	// administrative access. Deliberately a distinct operation from
	// ListMembers with a higher authorization floor.
	ListMemberDetails(ctx context.Context, requesterID, accountID string) ([]MemberDetail, error)
}
