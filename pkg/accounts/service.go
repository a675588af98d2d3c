package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/pkolev/warrantyhub/pkg/apperr"
	"github.com/pkolev/warrantyhub/pkg/audit"
	"github.com/pkolev/warrantyhub/pkg/auth"
	"github.com/pkolev/warrantyhub/pkg/blob"
	"github.com/pkolev/warrantyhub/pkg/observability"
)

// PostgresService implements Service using PostgreSQL
type PostgresService struct {
	db      *sql.DB
	blobs   BlobDeleter
	auditor audit.Logger
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewPostgresService creates a new PostgresService. blobs may be nil when no
// blob store is configured; auditor, logger and metrics may be nil and
// default to no-ops.
func NewPostgresService(db *sql.DB, blobs BlobDeleter, auditor audit.Logger, logger *observability.Logger, metrics *observability.Metrics) *PostgresService {
	if auditor == nil {
		auditor = audit.NewNopLogger()
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &PostgresService{db: db, blobs: blobs, auditor: auditor, logger: logger, metrics: metrics}
}

// CreateAccount creates an account owned by the requester together with the
// owner's ACCOUNT_ADMIN membership, atomically.
func (s *PostgresService) CreateAccount(ctx context.Context, requesterID, name string) (*Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("name", "account name is required")
	}

	account := &Account{
		ID:      uuid.NewString(),
		Name:    name,
		OwnerID: requesterID,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO accounts (id, name, owner_id)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at
	`, account.ID, account.Name, account.OwnerID).Scan(&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO account_members (id, user_id, account_id, role)
		VALUES ($1, $2, $3, $4)
	`, uuid.NewString(), requesterID, account.ID, auth.RoleAccountAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to create owner membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if s.metrics != nil {
		s.metrics.AccountsTotal.Inc()
	}
	s.recordAudit(ctx, &audit.Event{
		ActorID:      requesterID,
		AccountID:    account.ID,
		Action:       "account.create",
		ResourceType: "account",
		ResourceID:   account.ID,
		Status:       audit.StatusSuccess,
	})
	return account, nil
}

// GetAccount returns the account if the requester is a member. Absent and
// inaccessible accounts are indistinguishable.
func (s *PostgresService) GetAccount(ctx context.Context, requesterID, accountID string) (*Account, error) {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	ms, err := s.ListUserMemberships(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	if !auth.IsMember(ms, accountID) {
		return nil, apperr.NotFound("account")
	}
	return account, nil
}

// RenameAccount updates the account name; requires administrative access
func (s *PostgresService) RenameAccount(ctx context.Context, requesterID, accountID, newName string) (*Account, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, apperr.Validation("name", "account name is required")
	}

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

	err = s.db.QueryRowContext(ctx, `
		UPDATE accounts SET name = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING updated_at
	`, newName, accountID).Scan(&account.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to rename account: %w", err)
	}
	account.Name = newName

	s.recordAudit(ctx, &audit.Event{
		ActorID:      requesterID,
		AccountID:    accountID,
		Action:       "account.rename",
		ResourceType: "account",
		ResourceID:   accountID,
		Status:       audit.StatusSuccess,
	})
	return account, nil
}

// DeleteAccount deletes the account with all memberships, warranties and
// documents; only the owner may delete. Blob store cleanup runs after the
// transaction commits and is best-effort.
func (s *PostgresService) DeleteAccount(ctx context.Context, requesterID, accountID string) error {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if !account.IsOwnedBy(requesterID) {
		return apperr.Forbidden()
	}

	// Collect document keys before the rows disappear.
	keys, err := s.accountDocumentKeys(ctx, accountID)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Memberships, warranty items and documents go with the account via
	// ON DELETE CASCADE.
	if _, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, accountID); err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	if s.metrics != nil {
		s.metrics.AccountsTotal.Dec()
	}
	s.cleanupBlobs(ctx, accountID, keys)

	s.recordAudit(ctx, &audit.Event{
		ActorID:      requesterID,
		AccountID:    accountID,
		Action:       "account.delete",
		ResourceType: "account",
		ResourceID:   accountID,
		Status:       audit.StatusSuccess,
	})
	return nil
}

// LeaveAccount removes the requester's own membership. Owners cannot leave;
// they must delete the account instead.
func (s *PostgresService) LeaveAccount(ctx context.Context, requesterID, accountID string) error {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if account.IsOwnedBy(requesterID) {
		return apperr.Forbidden()
	}

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM account_members WHERE account_id = $1 AND user_id = $2
	`, accountID, requesterID)
	if err != nil {
		return fmt.Errorf("failed to leave account: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperr.Forbidden()
	}

	s.recordAudit(ctx, &audit.Event{
		ActorID:      requesterID,
		AccountID:    accountID,
		Action:       "account.leave",
		ResourceType: "account",
		ResourceID:   accountID,
		Status:       audit.StatusSuccess,
	})
	return nil
}

// ListUserMemberships returns all memberships of a user
func (s *PostgresService) ListUserMemberships(ctx context.Context, userID string) ([]auth.Membership, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, account_id, role, created_at
		FROM account_members
		WHERE user_id = $1
		ORDER BY created_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var memberships []auth.Membership
	for rows.Next() {
		var m auth.Membership
		if err := rows.Scan(&m.ID, &m.UserID, &m.AccountID, &m.Role, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}

// ListAccounts returns the requester's accounts for the switching UI
func (s *PostgresService) ListAccounts(ctx context.Context, userID string) ([]AccountSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.name, m.role, a.owner_id = m.user_id AS is_owner
		FROM account_members m
		JOIN accounts a ON a.id = m.account_id
		WHERE m.user_id = $1
		ORDER BY m.created_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var summaries []AccountSummary
	for rows.Next() {
		var a AccountSummary
		if err := rows.Scan(&a.AccountID, &a.AccountName, &a.Role, &a.IsOwner); err != nil {
			return nil, fmt.Errorf("failed to scan account summary: %w", err)
		}
		summaries = append(summaries, a)
	}
	return summaries, rows.Err()
}

// getAccount loads an account row, mapping absence to NotFound
func (s *PostgresService) getAccount(ctx context.Context, accountID string) (*Account, error) {
	account := &Account{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, owner_id, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`, accountID).Scan(&account.ID, &account.Name, &account.OwnerID, &account.CreatedAt, &account.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("account")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// accountDocumentKeys returns the blob keys of every document in the account
func (s *PostgresService) accountDocumentKeys(ctx context.Context, accountID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.object_key
		FROM documents d
		JOIN warranty_items w ON w.id = d.warranty_item_id
		WHERE w.account_id = $1
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to collect document keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan document key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// cleanupBlobs deletes blobs best-effort after the rows are gone. A failed
// delete leaks the blob; an aborted operation would leak a dangling row, so
// failures are logged and swallowed.
func (s *PostgresService) cleanupBlobs(ctx context.Context, accountID string, keys []string) {
	if s.blobs == nil {
		return
	}
	for _, key := range keys {
		err := s.blobs.Delete(ctx, key)
		if err == nil || errors.Is(err, blob.ErrNotFound) {
			continue
		}
		if s.metrics != nil {
			s.metrics.BlobCleanupFailuresTotal.Inc()
		}
		s.logger.WithFields(map[string]interface{}{
			"account_id": accountID,
			"object_key": key,
		}).WithError(err).Warn("failed to delete blob during account cascade")
	}
}

// recordAudit records an audit event, logging but never propagating failures
func (s *PostgresService) recordAudit(ctx context.Context, event *audit.Event) {
	if err := s.auditor.Record(ctx, event); err != nil {
		s.logger.WithError(err).WithField("action", event.Action).Warn("failed to record audit event")
	}
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
