package accounts

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkolev/warrantyhub/pkg/apperr"
	"github.com/pkolev/warrantyhub/pkg/auth"
)

func expectGetMembership(mock sqlmock.Sqlmock, m auth.Membership, ownerID string) {
	mock.ExpectQuery(`SELECT m.id, m.user_id, m.account_id, m.role, m.created_at, a.owner_id`).
		WithArgs(m.ID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "account_id", "role", "created_at", "owner_id"}).
			AddRow(m.ID, m.UserID, m.AccountID, m.Role, time.Now(), ownerID))
}

func TestInviteMember(t *testing.T) {
	ctx := context.Background()
	acme := &Account{ID: "acct-1", Name: "Acme", OwnerID: "u1"}
	adminMembership := auth.Membership{ID: "m1", UserID: "u1", AccountID: "acct-1", Role: auth.RoleAccountAdmin}

	t.Run("admin invites a registered user", func(t *testing.T) {
		service, mock, db, auditor, _ := newMockService(t)
		defer db.Close()

		expectGetAccount(mock, acme)
		expectMemberships(mock, "u1", adminMembership)
		mock.ExpectQuery(`SELECT id FROM users WHERE LOWER`).
			WithArgs("bob@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u2"))
		mock.ExpectQuery(`INSERT INTO account_members`).
			WithArgs(sqlmock.AnyArg(), "u2", "acct-1", auth.RoleUser).
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

		membership, err := service.InviteMember(ctx, "u1", "acct-1", "bob@example.com", auth.RoleUser)
		require.NoError(t, err)
		assert.Equal(t, "u2", membership.UserID)
		assert.Equal(t, auth.RoleUser, membership.Role)
		require.NoError(t, mock.ExpectationsWereMet())

		require.Len(t, auditor.events, 1)
		assert.Equal(t, "member.invite", auditor.events[0].Action)
	})

	t.Run("plain member cannot invite", func(t *testing.T) {
		service, mock, db, _, _ := newMockService(t)
		defer db.Close()

		expectGetAccount(mock, acme)
		expectMemberships(mock, "u3", auth.Membership{ID: "m3", UserID: "u3", AccountID: "acct-1", Role: auth.RoleUser})

		_, err := service.InviteMember(ctx, "u3", "acct-1", "bob@example.com", auth.RoleUser)
		assert.True(t, apperr.IsForbidden(err))
	})

	t.Run("unregistered email must register first", func(t *testing.T) {
		service, mock, db, _, _ := newMockService(t)
		defer db.Close()

		expectGetAccount(mock, acme)
		expectMemberships(mock, "u1", adminMembership)
		mock.ExpectQuery(`SELECT id FROM users WHERE LOWER`).
			WithArgs("nobody@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := service.InviteMember(ctx, "u1", "acct-1", "nobody@example.com", auth.RoleUser)
		require.True(t, apperr.IsNotFound(err))
		assert.Contains(t, err.Error(), "must register first")
	})

	t.Run("duplicate membership is a conflict", func(t *testing.T) {
		service, mock, db, _, _ := newMockService(t)
		defer db.Close()

		expectGetAccount(mock, acme)
		expectMemberships(mock, "u1", adminMembership)
		mock.ExpectQuery(`SELECT id FROM users WHERE LOWER`).
			WithArgs("bob@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u2"))
		mock.ExpectQuery(`INSERT INTO account_members`).
			WillReturnError(&pq.Error{Code: "23505"})

		_, err := service.InviteMember(ctx, "u1", "acct-1", "bob@example.com", auth.RoleUser)
		assert.True(t, apperr.IsConflict(err))
	})

	t.Run("GLOBAL_ADMIN role is not grantable", func(t *testing.T) {
		service, mock, db, _, _ := newMockService(t)
		defer db.Close()

		_, err := service.InviteMember(ctx, "u1", "acct-1", "bob@example.com", auth.RoleGlobalAdmin)
		assert.True(t, apperr.IsValidation(err))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing account", func(t *testing.T) {
		service, mock, db, _, _ := newMockService(t)
		defer db.Close()

		expectAccountMissing(mock, "acct-nope")
		_, err := service.InviteMember(ctx, "u1", "acct-nope", "bob@example.com", auth.RoleUser)
		assert.True(t, apperr.IsNotFound(err))
	})
}

func TestChangeRole(t *testing.T) {
	ctx := context.Background()
	adminMembership := auth.Membership{ID: "m1", UserID: "u1", AccountID: "acct-1", Role: auth.RoleAccountAdmin}
	targetMembership := auth.Membership{ID: "m2", UserID: "u2", AccountID: "acct-1", Role: auth.RoleUser}

	t.Run("admin promotes a member", func(t *testing.T) {
		service, mock, db, _, _ := newMockService(t)
		defer db.Close()

		expectGetMembership(mock, targetMembership, "u1")
		expectMemberships(mock, "u1", adminMembership)
		mock.ExpectExec(`UPDATE account_members m SET role`).
			WithArgs(auth.RoleAccountAdmin, "m2").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, service.ChangeRole(ctx, "u1", "m2", auth.RoleAccountAdmin))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("owner role is fixed", func(t *testing.T) {
		service, mock, db, _, _ := newMockService(t)
		defer db.Close()

		ownerMembership := auth.Membership{ID: "m1", UserID: "u1", AccountID: "acct-1", Role: auth.RoleAccountAdmin}
		expectGetMembership(mock, ownerMembership, "u1")
		expectMemberships(mock, "u1", adminMembership)

		err := service.ChangeRole(ctx, "u1", "m1", auth.RoleUser)
		assert.True(t, apperr.IsConflict(err))
	})

	t.Run("write-time owner check wins a race", func(t *testing.T) {
		service, mock, db, _, _ := newMockService(t)
		defer db.Close()

		// owner_id read as u1 but the UPDATE predicate matches nothing,
		// as if ownership moved to u2 in between.
		expectGetMembership(mock, targetMembership, "u1")
		expectMemberships(mock, "u1", adminMembership)
		mock.ExpectExec(`UPDATE account_members m SET role`).
			WithArgs(auth.RoleAccountAdmin, "m2").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := service.ChangeRole(ctx, "u1", "m2", auth.RoleAccountAdmin)
		assert.True(t, apperr.IsConflict(err))
	})

	t.Run("plain member is forbidden", func(t *testing.T) {
		service, mock, db, _, _ := newMockService(t)
		defer db.Close()

		expectGetMembership(mock, targetMembership, "u1")
		expectMemberships(mock, "u3", auth.Membership{ID: "m3", UserID: "u3", AccountID: "acct-1", Role: auth.RoleUser})

		err := service.ChangeRole(ctx, "u3", "m2", auth.RoleAccountAdmin)
		assert.True(t, apperr.IsForbidden(err))
	})

	t.Run("missing membership", func(t *testing.T) {
		service, mock, db, _, _ := newMockService(t)
		defer db.Close()

		mock.ExpectQuery(`SELECT m.id, m.user_id, m.account_id, m.role, m.created_at, a.owner_id`).
			WithArgs("m-nope").
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "account_id", "role", "created_at", "owner_id"}))

		err := service.ChangeRole(ctx, "u1", "m-nope", auth.RoleUser)
		assert.True(t, apperr.IsNotFound(err))
	})
}

func TestRemoveMember(t *testing.T) {
	ctx := context.Background()
	adminMembership := auth.Membership{ID: "m1", UserID: "u1", AccountID: "acct-1", Role: auth.RoleAccountAdmin}
	targetMembership := auth.Membership{ID: "m2", UserID: "u2", AccountID: "acct-1", Role: auth.RoleUser}

	t.Run("admin removes a member", func(t *testing.T) {
		service, mock, db, auditor, _ := newMockService(t)
		defer db.Close()

		expectGetMembership(mock, targetMembership, "u1")
		expectMemberships(mock, "u1", adminMembership)
		mock.ExpectExec(`DELETE FROM account_members m`).
			WithArgs("m2").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, service.RemoveMember(ctx, "u1", "m2"))
		require.Len(t, auditor.events, 1)
		assert.Equal(t, "member.remove", auditor.events[0].Action)
	})

	t.Run("owner can never be removed", func(t *testing.T) {
		service, mock, db, _, _ := newMockService(t)
		defer db.Close()

		ownerMembership := auth.Membership{ID: "m1", UserID: "u1", AccountID: "acct-1", Role: auth.RoleAccountAdmin}
		expectGetMembership(mock, ownerMembership, "u1")
		expectMemberships(mock, "u1", adminMembership)

		err := service.RemoveMember(ctx, "u1", "m1")
		assert.True(t, apperr.IsConflict(err))
	})

	t.Run("write-time owner check wins a race", func(t *testing.T) {
		service, mock, db, _, _ := newMockService(t)
		defer db.Close()

		expectGetMembership(mock, targetMembership, "u1")
		expectMemberships(mock, "u1", adminMembership)
		mock.ExpectExec(`DELETE FROM account_members m`).
			WithArgs("m2").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := service.RemoveMember(ctx, "u1", "m2")
		assert.True(t, apperr.IsConflict(err))
	})

	t.Run("global admin removes without a membership row", func(t *testing.T) {
		service, mock, db, _, _ := newMockService(t)
		defer db.Close()

		expectGetMembership(mock, targetMembership, "u1")
		expectMemberships(mock, "root", auth.Membership{ID: "m9", UserID: "root", AccountID: "acct-other", Role: auth.RoleGlobalAdmin})
		mock.ExpectExec(`DELETE FROM account_members m`).
			WithArgs("m2").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, service.RemoveMember(ctx, "root", "m2"))
	})
}

func TestListMembers(t *testing.T) {
	ctx := context.Background()

	t.Run("member lists plain rows", func(t *testing.T) {
		service, mock, db, _, _ := newMockService(t)
		defer db.Close()

		expectMemberships(mock, "u2", auth.Membership{ID: "m2", UserID: "u2", AccountID: "acct-1", Role: auth.RoleUser})
		mock.ExpectQuery(`SELECT id, user_id, account_id, role, created_at\s+FROM account_members\s+WHERE account_id`).
			WithArgs("acct-1").
			WillReturnRows(membershipRows(
				auth.Membership{ID: "m1", UserID: "u1", AccountID: "acct-1", Role: auth.RoleAccountAdmin},
				auth.Membership{ID: "m2", UserID: "u2", AccountID: "acct-1", Role: auth.RoleUser},
			))

		members, err := service.ListMembers(ctx, "u2", "acct-1")
		require.NoError(t, err)
		assert.Len(t, members, 2)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("non-member gets not found", func(t *testing.T) {
		service, mock, db, _, _ := newMockService(t)
		defer db.Close()

		expectMemberships(mock, "outsider")
		_, err := service.ListMembers(ctx, "outsider", "acct-1")
		assert.True(t, apperr.IsNotFound(err))
	})
}

func TestListMemberDetails(t *testing.T) {
	ctx := context.Background()
	acme := &Account{ID: "acct-1", Name: "Acme", OwnerID: "u1"}

	t.Run("admin sees emails and join dates", func(t *testing.T) {
		service, mock, db, _, _ := newMockService(t)
		defer db.Close()

		expectGetAccount(mock, acme)
		expectMemberships(mock, "u1", auth.Membership{ID: "m1", UserID: "u1", AccountID: "acct-1", Role: auth.RoleAccountAdmin})
		mock.ExpectQuery(`SELECT m.id, u.id, u.name, u.email, m.role, m.created_at`).
			WithArgs("acct-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name", "email", "role", "created_at"}).
				AddRow("m1", "u1", "Alice", "alice@example.com", auth.RoleAccountAdmin, time.Now()).
				AddRow("m2", "u2", nil, "bob@example.com", auth.RoleUser, time.Now()))

		details, err := service.ListMemberDetails(ctx, "u1", "acct-1")
		require.NoError(t, err)
		require.Len(t, details, 2)
		assert.True(t, details[0].IsOwner)
		assert.False(t, details[1].IsOwner)
		assert.Empty(t, details[1].Name)
		assert.Equal(t, "bob@example.com", details[1].Email)
	})

	t.Run("plain member is forbidden, not not-found", func(t *testing.T) {
		service, mock, db, _, _ := newMockService(t)
		defer db.Close()

		expectGetAccount(mock, acme)
		expectMemberships(mock, "u2", auth.Membership{ID: "m2", UserID: "u2", AccountID: "acct-1", Role: auth.RoleUser})

		_, err := service.ListMemberDetails(ctx, "u2", "acct-1")
		assert.True(t, apperr.IsForbidden(err))
	})
}
