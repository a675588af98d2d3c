package audit

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDBLoggerRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	logger := NewDBLogger(db)

	mock.ExpectQuery(`INSERT INTO audit_logs`).
		WithArgs(
			sqlmock.AnyArg(), sqlmock.AnyArg(),
			"member.invite", "membership", "m1",
			StatusSuccess, "invited bob@example.com as USER",
			sqlmock.AnyArg(),
		).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	event := &Event{
		ActorID:      "u1",
		AccountID:    "acct-1",
		Action:       "member.invite",
		ResourceType: "membership",
		ResourceID:   "m1",
		Status:       StatusSuccess,
		Message:      "invited bob@example.com as USER",
	}
	require.NoError(t, logger.Record(context.Background(), event))
	assert.Equal(t, int64(7), event.ID)
	assert.False(t, event.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDBLoggerKeepsExplicitTimestamp(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	logger := NewDBLogger(db)
	at := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`INSERT INTO audit_logs`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "account.delete", "account", "acct-1", StatusSuccess, "", at).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	event := &Event{Action: "account.delete", ResourceType: "account", ResourceID: "acct-1", Status: StatusSuccess, CreatedAt: at}
	require.NoError(t, logger.Record(context.Background(), event))
	assert.Equal(t, at, event.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNopLogger(t *testing.T) {
	assert.NoError(t, NewNopLogger().Record(context.Background(), &Event{Action: "x"}))
}
