package accounts

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/pkolev/warrantyhub/pkg/apperr"
	"github.com/pkolev/warrantyhub/pkg/audit"
	"github.com/pkolev/warrantyhub/pkg/auth"
)

// InviteMember adds an already-registered user to the account. There is
// deliberately no account auto-creation through invites: an unknown email is
// a not-found error telling the target to register first.
func (s *PostgresService) InviteMember(ctx context.Context, requesterID, accountID, email string, role auth.Role) (*auth.Membership, error) {
	if !role.Grantable() {
		return nil, apperr.Validation("role", "role must be USER or ACCOUNT_ADMIN")
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, apperr.Validation("email", "email is required")
	}

	if _, err := s.getAccount(ctx, accountID); err != nil {
		return nil, err
	}

	ms, err := s.ListUserMemberships(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	if !auth.CanAdminister(ms, accountID) {
		return nil, apperr.Forbidden()
	}

	var targetUserID string
	err = s.db.QueryRowContext(ctx, `
		SELECT id FROM users WHERE LOWER(email) = LOWER($1)
	`, email).Scan(&targetUserID)
	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.KindNotFound, "user not found: user must register first")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	membership := &auth.Membership{
		ID:        uuid.NewString(),
		UserID:    targetUserID,
		AccountID: accountID,
		Role:      role,
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO account_members (id, user_id, account_id, role)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, membership.ID, membership.UserID, membership.AccountID, membership.Role).Scan(&membership.CreatedAt)
	if isUniqueViolation(err) {
		return nil, apperr.New(apperr.KindConflict, "user is already a member of this account")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create membership: %w", err)
	}

	s.recordAudit(ctx, &audit.Event{
		ActorID:      requesterID,
		AccountID:    accountID,
		Action:       "member.invite",
		ResourceType: "membership",
		ResourceID:   membership.ID,
		Status:       audit.StatusSuccess,
		Message:      fmt.Sprintf("invited %s as %s", email, role),
	})
	return membership, nil
}

// ChangeRole updates a membership's role. The owner's role is fixed; the
// not-the-owner invariant is enforced again inside the UPDATE so a
// concurrent owner change cannot race past the initial check.
func (s *PostgresService) ChangeRole(ctx context.Context, requesterID, membershipID string, newRole auth.Role) error {
	if !newRole.Grantable() {
		return apperr.Validation("role", "role must be USER or ACCOUNT_ADMIN")
	}

	target, ownerID, err := s.getMembership(ctx, membershipID)
	if err != nil {
		return err
	}

	ms, err := s.ListUserMemberships(ctx, requesterID)
	if err != nil {
		return err
	}
	if !auth.CanAdminister(ms, target.AccountID) {
		return apperr.Forbidden()
	}
	if target.UserID == ownerID {
		return apperr.New(apperr.KindConflict, "cannot change the account owner's role")
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE account_members m SET role = $1
		WHERE m.id = $2
		  AND m.user_id <> (SELECT owner_id FROM accounts WHERE id = m.account_id)
	`, newRole, membershipID)
	if err != nil {
		return fmt.Errorf("failed to change role: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		// The write-time predicate rejected the row: the membership now
		// belongs to the owner, or is gone.
		return apperr.New(apperr.KindConflict, "cannot change the account owner's role")
	}

	s.recordAudit(ctx, &audit.Event{
		ActorID:      requesterID,
		AccountID:    target.AccountID,
		Action:       "member.role_change",
		ResourceType: "membership",
		ResourceID:   membershipID,
		Status:       audit.StatusSuccess,
		Message:      fmt.Sprintf("role changed to %s", newRole),
	})
	return nil
}

// RemoveMember deletes a membership. The owner's membership can never be
// removed; like ChangeRole this is re-checked at write time.
func (s *PostgresService) RemoveMember(ctx context.Context, requesterID, membershipID string) error {
	target, ownerID, err := s.getMembership(ctx, membershipID)
	if err != nil {
		return err
	}

	ms, err := s.ListUserMemberships(ctx, requesterID)
	if err != nil {
		return err
	}
	if !auth.CanAdminister(ms, target.AccountID) {
		return apperr.Forbidden()
	}
	if target.UserID == ownerID {
		return apperr.New(apperr.KindConflict, "cannot remove the account owner")
	}

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM account_members m
		WHERE m.id = $1
		  AND m.user_id <> (SELECT owner_id FROM accounts WHERE id = m.account_id)
	`, membershipID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperr.New(apperr.KindConflict, "cannot remove the account owner")
	}

	s.recordAudit(ctx, &audit.Event{
		ActorID:      requesterID,
		AccountID:    target.AccountID,
		Action:       "member.remove",
		ResourceType: "membership",
		ResourceID:   membershipID,
		Status:       audit.StatusSuccess,
	})
	return nil
}

// ListMembers returns plain membership rows for the account; requires
// membership on it. Used by account-switching style views that need no
// personal data.
func (s *PostgresService) ListMembers(ctx context.Context, requesterID, accountID string) ([]auth.Membership, error) {
	ms, err := s.ListUserMemberships(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	if !auth.IsMember(ms, accountID) {
		return nil, apperr.NotFound("account")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, account_id, role, created_at
		FROM account_members
		WHERE account_id = $1
		ORDER BY created_at ASC
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []auth.Membership
	for rows.Next() {
		var m auth.Membership
		if err := rows.Scan(&m.ID, &m.UserID, &m.AccountID, &m.Role, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// ListMemberDetails returns members with email and join date. This listing
// exposes personal data and requires administrative access, a higher floor
// than ListMembers.
func (s *PostgresService) ListMemberDetails(ctx context.Context, requesterID, accountID string) ([]MemberDetail, error) {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	ms, err := s.ListUserMemberships(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	if !auth.CanAdminister(ms, accountID) {
		return nil, apperr.Forbidden()
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, u.id, u.name, u.email, m.role, m.created_at
		FROM account_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.account_id = $1
		ORDER BY m.created_at ASC
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list member details: %w", err)
	}
	defer rows.Close()

	var details []MemberDetail
	for rows.Next() {
		var d MemberDetail
		var name sql.NullString
		if err := rows.Scan(&d.MembershipID, &d.UserID, &name, &d.Email, &d.Role, &d.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member detail: %w", err)
		}
		if name.Valid {
			d.Name = name.String
		}
		d.IsOwner = d.UserID == account.OwnerID
		details = append(details, d)
	}
	return details, rows.Err()
}

// getMembership loads a membership row together with its account's owner id
func (s *PostgresService) getMembership(ctx context.Context, membershipID string) (*auth.Membership, string, error) {
	var m auth.Membership
	var ownerID string
	err := s.db.QueryRowContext(ctx, `
		SELECT m.id, m.user_id, m.account_id, m.role, m.created_at, a.owner_id
		FROM account_members m
		JOIN accounts a ON a.id = m.account_id
		WHERE m.id = $1
	`, membershipID).Scan(&m.ID, &m.UserID, &m.AccountID, &m.Role, &m.CreatedAt, &ownerID)
	if err == sql.ErrNoRows {
		return nil, "", apperr.NotFound("membership")
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to get membership: %w", err)
	}
	return &m, ownerID, nil
}
