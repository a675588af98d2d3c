package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/pkolev/warrantyhub/pkg/apperr"
	"github.com/pkolev/warrantyhub/pkg/audit"
	"github.com/pkolev/warrantyhub/pkg/auth"
	"github.com/pkolev/warrantyhub/pkg/observability"
)

const minPasswordLength = 6

// User is a registered person. The password digest never leaves the package.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	passwordHash sql.NullString
}

// HasPassword reports whether the user can log in with a local password
func (u *User) HasPassword() bool {
	return u.passwordHash.Valid
}

// MembershipSource resolves a user's memberships for authorization
type MembershipSource interface {
	ListUserMemberships(ctx context.Context, userID string) ([]auth.Membership, error)
}

// Service is the user and credential management API
type Service interface {
	Register(ctx context.Context, email, password, name string) (*User, error)
	Authenticate(ctx context.Context, email, password string) (*User, error)
	ChangePassword(ctx context.Context, requesterID, currentPassword, newPassword string) error
	AdminResetPassword(ctx context.Context, requesterID, targetUserID, newPassword string) error
	GetByID(ctx context.Context, userID string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
}

// PostgresService implements Service using PostgreSQL
type PostgresService struct {
	db          *sql.DB
	hasher      auth.Hasher
	memberships MembershipSource
	auditor     audit.Logger
	logger      *observability.Logger
}

// NewPostgresService creates a new PostgresService. auditor and logger may
// be nil and default to no-ops.
func NewPostgresService(db *sql.DB, hasher auth.Hasher, memberships MembershipSource, auditor audit.Logger, logger *observability.Logger) *PostgresService {
	if auditor == nil {
		auditor = audit.NewNopLogger()
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &PostgresService{db: db, hasher: hasher, memberships: memberships, auditor: auditor, logger: logger}
}

// Register creates a user together with their personal default account and
// owner membership, all in one transaction. Email uniqueness is
// case-insensitive.
func (s *PostgresService) Register(ctx context.Context, email, password, name string) (*User, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperr.Validation("email", "a valid email address is required")
	}
	if len(password) < minPasswordLength {
		return nil, apperr.Validation("password", fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if len(name) < 2 {
		return nil, apperr.Validation("name", "name must be at least 2 characters")
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		passwordHash: sql.NullString{String: digest, Valid: true},
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO users (id, email, name, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, user.ID, user.Email, user.Name, user.passwordHash).Scan(&user.CreatedAt, &user.UpdatedAt)
	if isUniqueViolation(err) {
		return nil, apperr.New(apperr.KindConflict, "a user with this email already exists")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	accountID := uuid.NewString()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO accounts (id, name, owner_id)
		VALUES ($1, $2, $3)
	`, accountID, fmt.Sprintf("%s's Account", name), user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create default account: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO account_members (id, user_id, account_id, role)
		VALUES ($1, $2, $3, $4)
	`, uuid.NewString(), user.ID, accountID, auth.RoleAccountAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to create default membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.recordAudit(ctx, &audit.Event{
		ActorID:      user.ID,
		AccountID:    accountID,
		Action:       "user.register",
		ResourceType: "user",
		ResourceID:   user.ID,
		Status:       audit.StatusSuccess,
	})
	return user, nil
}

// Authenticate verifies email and password. Unknown emails, missing digests
// and wrong passwords all produce the same unauthenticated error.
func (s *PostgresService) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.GetByEmail(ctx, email)
	if apperr.IsNotFound(err) {
		return nil, apperr.Unauthenticated()
	}
	if err != nil {
		return nil, err
	}
	if !user.HasPassword() {
		return nil, apperr.Unauthenticated()
	}
	if !s.hasher.Verify(password, user.passwordHash.String) {
		return nil, apperr.Unauthenticated()
	}
	return user, nil
}

// ChangePassword rotates the requester's own password after verifying the
// current one.
func (s *PostgresService) ChangePassword(ctx context.Context, requesterID, currentPassword, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return apperr.Validation("newPassword", fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	user, err := s.GetByID(ctx, requesterID)
	if err != nil {
		return err
	}
	if !user.HasPassword() {
		return apperr.New(apperr.KindConflict, "password login is not configured for this user")
	}
	if !s.hasher.Verify(currentPassword, user.passwordHash.String) {
		return apperr.Validation("currentPassword", "current password is incorrect")
	}

	if err := s.setPassword(ctx, requesterID, newPassword); err != nil {
		return err
	}

	s.recordAudit(ctx, &audit.Event{
		ActorID:      requesterID,
		Action:       "user.password_change",
		ResourceType: "user",
		ResourceID:   requesterID,
		Status:       audit.StatusSuccess,
	})
	return nil
}

// AdminResetPassword sets a new password for any user; global admins only
func (s *PostgresService) AdminResetPassword(ctx context.Context, requesterID, targetUserID, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return apperr.Validation("newPassword", fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	ms, err := s.memberships.ListUserMemberships(ctx, requesterID)
	if err != nil {
		return err
	}
	if !auth.IsGlobalAdmin(ms) {
		return apperr.Forbidden()
	}

	if _, err := s.GetByID(ctx, targetUserID); err != nil {
		return err
	}
	if err := s.setPassword(ctx, targetUserID, newPassword); err != nil {
		return err
	}

	s.recordAudit(ctx, &audit.Event{
		ActorID:      requesterID,
		Action:       "user.password_reset",
		ResourceType: "user",
		ResourceID:   targetUserID,
		Status:       audit.StatusSuccess,
	})
	return nil
}

// GetByID returns a user by id
func (s *PostgresService) GetByID(ctx context.Context, userID string) (*User, error) {
	return s.getUser(ctx, `WHERE id = $1`, userID)
}

// GetByEmail returns a user by email, case-insensitively
func (s *PostgresService) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.getUser(ctx, `WHERE LOWER(email) = LOWER($1)`, strings.TrimSpace(email))
}

func (s *PostgresService) getUser(ctx context.Context, where, arg string) (*User, error) {
	user := &User{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, password_hash, created_at, updated_at
		FROM users
		`+where, arg).Scan(&user.ID, &user.Email, &user.Name, &user.passwordHash,
		&user.CreatedAt, &user.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("user")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *PostgresService) setPassword(ctx context.Context, userID, password string) error {
	digest, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2
	`, digest, userID)
	if err != nil {
		return fmt.Errorf("failed to set password: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperr.NotFound("user")
	}
	return nil
}

func (s *PostgresService) recordAudit(ctx context.Context, event *audit.Event) {
	if err := s.auditor.Record(ctx, event); err != nil {
		s.logger.WithError(err).WithField("action", event.Action).Warn("failed to record audit event")
	}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
