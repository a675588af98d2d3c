package accounts

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkolev/warrantyhub/pkg/apperr"
	"github.com/pkolev/warrantyhub/pkg/audit"
	"github.com/pkolev/warrantyhub/pkg/auth"
	"github.com/pkolev/warrantyhub/pkg/blob"
	"github.com/pkolev/warrantyhub/pkg/observability"
)

// recordingAudit captures audit events for assertions
type recordingAudit struct {
	events []*audit.Event
}

func (r *recordingAudit) Record(_ context.Context, event *audit.Event) error {
	r.events = append(r.events, event)
	return nil
}

// fakeBlobDeleter records deletions and can fail selected keys
type fakeBlobDeleter struct {
	deleted []string
	failOn  map[string]error
}

func (f *fakeBlobDeleter) Delete(_ context.Context, key string) error {
	if err, ok := f.failOn[key]; ok {
		return err
	}
	f.deleted = append(f.deleted, key)
	return nil
}

func newMockService(t *testing.T) (*PostgresService, sqlmock.Sqlmock, *sql.DB, *recordingAudit, *fakeBlobDeleter) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	auditor := &recordingAudit{}
	blobs := &fakeBlobDeleter{failOn: map[string]error{}}
	service := NewPostgresService(db, blobs, auditor, nil, nil)
	return service, mock, db, auditor, blobs
}

func membershipRows(ms ...auth.Membership) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "user_id", "account_id", "role", "created_at"})
	for _, m := range ms {
		rows.AddRow(m.ID, m.UserID, m.AccountID, m.Role, time.Now())
	}
	return rows
}

func expectMemberships(mock sqlmock.Sqlmock, userID string, ms ...auth.Membership) {
	mock.ExpectQuery(`SELECT id, user_id, account_id, role, created_at\s+FROM account_members\s+WHERE user_id`).
		WithArgs(userID).
		WillReturnRows(membershipRows(ms...))
}

func expectGetAccount(mock sqlmock.Sqlmock, account *Account) {
	mock.ExpectQuery(`SELECT id, name, owner_id, created_at, updated_at\s+FROM accounts`).
		WithArgs(account.ID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "owner_id", "created_at", "updated_at"}).
			AddRow(account.ID, account.Name, account.OwnerID, time.Now(), time.Now()))
}

func expectAccountMissing(mock sqlmock.Sqlmock, accountID string) {
	mock.ExpectQuery(`SELECT id, name, owner_id, created_at, updated_at\s+FROM accounts`).
		WithArgs(accountID).
		WillReturnError(sql.ErrNoRows)
}

func TestCreateAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("creates account and owner membership atomically", func(t *testing.T) {
		service, mock, db, auditor, _ := newMockService(t)
		defer db.Close()

		now := time.Now()
		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO accounts`).
			WithArgs(sqlmock.AnyArg(), "Acme", "u1").
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
		mock.ExpectExec(`INSERT INTO account_members`).
			WithArgs(sqlmock.AnyArg(), "u1", sqlmock.AnyArg(), auth.RoleAccountAdmin).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		account, err := service.CreateAccount(ctx, "u1", "Acme")
		require.NoError(t, err)
		assert.Equal(t, "Acme", account.Name)
		assert.Equal(t, "u1", account.OwnerID)
		assert.NotEmpty(t, account.ID)
		require.NoError(t, mock.ExpectationsWereMet())

		require.Len(t, auditor.events, 1)
		assert.Equal(t, "account.create", auditor.events[0].Action)
	})

	t.Run("create increments the account gauge", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		metrics := observability.NewMetrics(prometheus.NewRegistry())
		service := NewPostgresService(db, nil, nil, nil, metrics)

		now := time.Now()
		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO accounts`).
			WithArgs(sqlmock.AnyArg(), "Acme", "u1").
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
		mock.ExpectExec(`INSERT INTO account_members`).
			WithArgs(sqlmock.AnyArg(), "u1", sqlmock.AnyArg(), auth.RoleAccountAdmin).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		_, err = service.CreateAccount(ctx, "u1", "Acme")
		require.NoError(t, err)
		assert.Equal(t, float64(1), testutil.ToFloat64(metrics.AccountsTotal))
	})

	t.Run("empty name is a validation error", func(t *testing.T) {
		service, mock, db, _, _ := newMockService(t)
		defer db.Close()

		_, err := service.CreateAccount(ctx, "u1", "   ")
		assert.True(t, apperr.IsValidation(err))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("membership insert failure rolls back", func(t *testing.T) {
		service, mock, db, _, _ := newMockService(t)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO accounts`).
			WithArgs(sqlmock.AnyArg(), "Acme", "u1").
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(time.Now(), time.Now()))
		mock.ExpectExec(`INSERT INTO account_members`).
			WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		_, err := service.CreateAccount(ctx, "u1", "Acme")
		assert.Error(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetAccount(t *testing.T) {
	ctx := context.Background()
	acme := &Account{ID: "acct-1", Name: "Acme", OwnerID: "u1"}

	t.Run("member sees the account", func(t *testing.T) {
		service, mock, db, _, _ := newMockService(t)
		defer db.Close()

		expectGetAccount(mock, acme)
		expectMemberships(mock, "u2", auth.Membership{ID: "m2", UserID: "u2", AccountID: "acct-1", Role: auth.RoleUser})

		account, err := service.GetAccount(ctx, "u2", "acct-1")
		require.NoError(t, err)
		assert.Equal(t, "Acme", account.Name)
	})

	t.Run("non-member gets not found, same shape as absent", func(t *testing.T) {
		service, mock, db, _, _ := newMockService(t)
		defer db.Close()

		expectGetAccount(mock, acme)
		expectMemberships(mock, "outsider")
		_, errForeign := service.GetAccount(ctx, "outsider", "acct-1")

		expectAccountMissing(mock, "acct-missing")
		_, errMissing := service.GetAccount(ctx, "outsider", "acct-missing")

		assert.True(t, apperr.IsNotFound(errForeign))
		assert.True(t, apperr.IsNotFound(errMissing))
		assert.Equal(t, apperr.KindOf(errMissing), apperr.KindOf(errForeign))
	})

	t.Run("global admin sees any account", func(t *testing.T) {
		service, mock, db, _, _ := newMockService(t)
		defer db.Close()

		expectGetAccount(mock, acme)
		expectMemberships(mock, "root", auth.Membership{ID: "m9", UserID: "root", AccountID: "acct-other", Role: auth.RoleGlobalAdmin})

		_, err := service.GetAccount(ctx, "root", "acct-1")
		assert.NoError(t, err)
	})
}

func TestRenameAccount(t *testing.T) {
	ctx := context.Background()
	acme := &Account{ID: "acct-1", Name: "Acme", OwnerID: "u1"}

	t.Run("admin renames", func(t *testing.T) {
		service, mock, db, _, _ := newMockService(t)
		defer db.Close()

		expectGetAccount(mock, acme)
		expectMemberships(mock, "u1", auth.Membership{ID: "m1", UserID: "u1", AccountID: "acct-1", Role: auth.RoleAccountAdmin})
		mock.ExpectQuery(`UPDATE accounts SET name`).
			WithArgs("Acme Corp", "acct-1").
			WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(time.Now()))

		account, err := service.RenameAccount(ctx, "u1", "acct-1", "Acme Corp")
		require.NoError(t, err)
		assert.Equal(t, "Acme Corp", account.Name)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("plain member is forbidden", func(t *testing.T) {
		service, mock, db, _, _ := newMockService(t)
		defer db.Close()

		expectGetAccount(mock, acme)
		expectMemberships(mock, "u2", auth.Membership{ID: "m2", UserID: "u2", AccountID: "acct-1", Role: auth.RoleUser})

		_, err := service.RenameAccount(ctx, "u2", "acct-1", "Evil Corp")
		assert.True(t, apperr.IsForbidden(err))
	})

	t.Run("missing account", func(t *testing.T) {
		service, mock, db, _, _ := newMockService(t)
		defer db.Close()

		expectAccountMissing(mock, "acct-nope")
		_, err := service.RenameAccount(ctx, "u1", "acct-nope", "Name")
		assert.True(t, apperr.IsNotFound(err))
	})
}

func TestDeleteAccount(t *testing.T) {
	ctx := context.Background()
	acme := &Account{ID: "acct-1", Name: "Acme", OwnerID: "u1"}

	expectDocumentKeys := func(mock sqlmock.Sqlmock, keys ...string) {
		rows := sqlmock.NewRows([]string{"object_key"})
		for _, k := range keys {
			rows.AddRow(k)
		}
		mock.ExpectQuery(`SELECT d.object_key`).
			WithArgs("acct-1").
			WillReturnRows(rows)
	}

	t.Run("owner deletes with cascade and blob cleanup", func(t *testing.T) {
		service, mock, db, auditor, blobs := newMockService(t)
		defer db.Close()

		expectGetAccount(mock, acme)
		expectDocumentKeys(mock, "uploads/a.pdf", "uploads/b.jpg")
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM accounts`).
			WithArgs("acct-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, service.DeleteAccount(ctx, "u1", "acct-1"))
		assert.ElementsMatch(t, []string{"uploads/a.pdf", "uploads/b.jpg"}, blobs.deleted)
		require.Len(t, auditor.events, 1)
		assert.Equal(t, "account.delete", auditor.events[0].Action)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("blob failure does not abort deletion", func(t *testing.T) {
		service, mock, db, _, blobs := newMockService(t)
		defer db.Close()
		blobs.failOn["uploads/a.pdf"] = errors.New("connection refused")

		expectGetAccount(mock, acme)
		expectDocumentKeys(mock, "uploads/a.pdf", "uploads/b.jpg")
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM accounts`).
			WithArgs("acct-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		// Overall success: every key is attempted, failures are swallowed.
		require.NoError(t, service.DeleteAccount(ctx, "u1", "acct-1"))
		assert.Equal(t, []string{"uploads/b.jpg"}, blobs.deleted)
	})

	t.Run("missing blob counts as cleaned up and the gauge decrements", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		metrics := observability.NewMetrics(prometheus.NewRegistry())
		blobs := &fakeBlobDeleter{failOn: map[string]error{"uploads/gone.pdf": blob.ErrNotFound}}
		service := NewPostgresService(db, blobs, &recordingAudit{}, nil, metrics)

		expectGetAccount(mock, acme)
		expectDocumentKeys(mock, "uploads/gone.pdf")
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM accounts`).
			WithArgs("acct-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, service.DeleteAccount(ctx, "u1", "acct-1"))
		assert.Zero(t, testutil.ToFloat64(metrics.BlobCleanupFailuresTotal))
		assert.Equal(t, float64(-1), testutil.ToFloat64(metrics.AccountsTotal))
	})

	t.Run("non-owner admin is forbidden", func(t *testing.T) {
		service, mock, db, _, _ := newMockService(t)
		defer db.Close()

		expectGetAccount(mock, acme)
		err := service.DeleteAccount(ctx, "u2", "acct-1")
		assert.True(t, apperr.IsForbidden(err))
	})
}

func TestLeaveAccount(t *testing.T) {
	ctx := context.Background()
	acme := &Account{ID: "acct-1", Name: "Acme", OwnerID: "u1"}

	t.Run("member leaves", func(t *testing.T) {
		service, mock, db, _, _ := newMockService(t)
		defer db.Close()

		expectGetAccount(mock, acme)
		mock.ExpectExec(`DELETE FROM account_members WHERE account_id`).
			WithArgs("acct-1", "u2").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, service.LeaveAccount(ctx, "u2", "acct-1"))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("owner cannot leave", func(t *testing.T) {
		service, mock, db, _, _ := newMockService(t)
		defer db.Close()

		expectGetAccount(mock, acme)
		err := service.LeaveAccount(ctx, "u1", "acct-1")
		assert.True(t, apperr.IsForbidden(err))
	})

	t.Run("non-member cannot leave", func(t *testing.T) {
		service, mock, db, _, _ := newMockService(t)
		defer db.Close()

		expectGetAccount(mock, acme)
		mock.ExpectExec(`DELETE FROM account_members WHERE account_id`).
			WithArgs("acct-1", "outsider").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := service.LeaveAccount(ctx, "outsider", "acct-1")
		assert.True(t, apperr.IsForbidden(err))
	})
}

func TestListAccounts(t *testing.T) {
	service, mock, db, _, _ := newMockService(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT a.id, a.name, m.role, a.owner_id = m.user_id`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "role", "is_owner"}).
			AddRow("acct-1", "Acme", auth.RoleAccountAdmin, true).
			AddRow("acct-2", "Side Project", auth.RoleUser, false))

	summaries, err := service.ListAccounts(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.True(t, summaries[0].IsOwner)
	assert.Equal(t, auth.RoleUser, summaries[1].Role)
	require.NoError(t, mock.ExpectationsWereMet())
}
