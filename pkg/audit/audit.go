// Package audit records security-relevant events (membership changes, account
// deletion, blob cleanup failures) to durable storage.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// EventStatus is the outcome of an audited action
type EventStatus string

const (
	StatusSuccess EventStatus = "success"
	StatusFailure EventStatus = "failure"
	StatusDenied  EventStatus = "denied"
)

// Event is a single audit record
type Event struct {
	ID           int64
	ActorID      string // requesting user, empty for system actions
	AccountID    string // affected account, if any
	Action       string // e.g. "member.invite", "account.delete"
	ResourceType string
	ResourceID   string
	Status       EventStatus
	Message      string
	CreatedAt    time.Time
}

// Logger is the audit sink contract. Recording is best-effort: services log
// failures but never fail an operation because the audit write failed.
type Logger interface {
	Record(ctx context.Context, event *Event) error
}

// DBLogger implements Logger backed by the audit_logs table
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a database-backed audit logger
func NewDBLogger(db *sql.DB) *DBLogger {
	return &DBLogger{db: db}
}

// Record inserts an audit event
func (l *DBLogger) Record(ctx context.Context, event *Event) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO audit_logs (actor_id, account_id, action, resource_type, resource_id, status, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := l.db.QueryRowContext(ctx, query,
		nullable(event.ActorID),
		nullable(event.AccountID),
		event.Action,
		event.ResourceType,
		event.ResourceID,
		event.Status,
		event.Message,
		event.CreatedAt,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// NopLogger discards all events
type NopLogger struct{}

// NewNopLogger creates an audit logger that records nothing
func NewNopLogger() *NopLogger { return &NopLogger{} }

// Record implements Logger
func (*NopLogger) Record(context.Context, *Event) error { return nil }
