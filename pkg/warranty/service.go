package warranty

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/pkolev/warrantyhub/pkg/apperr"
	"github.com/pkolev/warrantyhub/pkg/audit"
	"github.com/pkolev/warrantyhub/pkg/auth"
	"github.com/pkolev/warrantyhub/pkg/blob"
	"github.com/pkolev/warrantyhub/pkg/observability"
)

const itemColumns = `id, account_id, created_by_user_id, title, category, brand, model,
		       merchant_name, purchase_date, warranty_period_months, expiry_date,
		       price, currency, created_at, updated_at`

// PostgresService implements Service using PostgreSQL
type PostgresService struct {
	db          *sql.DB
	memberships MembershipSource
	blobs       BlobDeleter
	auditor     audit.Logger
	logger      *observability.Logger
	metrics     *observability.Metrics
}

// NewPostgresService creates a new PostgresService. blobs may be nil when no
// blob store is configured; auditor, logger and metrics may be nil and
// default to no-ops.
func NewPostgresService(db *sql.DB, memberships MembershipSource, blobs BlobDeleter, auditor audit.Logger, logger *observability.Logger, metrics *observability.Metrics) *PostgresService {
	if auditor == nil {
		auditor = audit.NewNopLogger()
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &PostgresService{db: db, memberships: memberships, blobs: blobs, auditor: auditor, logger: logger, metrics: metrics}
}

// Create inserts a warranty item with its initial documents. The requester
// must be a member of the target account; outsiders get the same not-found
// as a nonexistent account.
func (s *PostgresService) Create(ctx context.Context, requesterID string, req CreateRequest) (*Item, error) {
	if err := validateCreate(&req); err != nil {
		return nil, err
	}

	ms, err := s.memberships.ListUserMemberships(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	if !auth.IsMember(ms, req.AccountID) {
		return nil, apperr.NotFound("account")
	}

	item := &Item{
		ID:                   uuid.NewString(),
		AccountID:            req.AccountID,
		CreatedBy:            requesterID,
		Title:                strings.TrimSpace(req.Title),
		Category:             req.Category,
		Brand:                req.Brand,
		Model:                req.Model,
		MerchantName:         req.MerchantName,
		PurchaseDate:         req.PurchaseDate,
		WarrantyPeriodMonths: req.WarrantyPeriodMonths,
		ExpiryDate:           ComputeExpiry(req.PurchaseDate, req.WarrantyPeriodMonths),
		Price:                req.Price,
		Currency:             req.Currency,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO warranty_items (id, account_id, created_by_user_id, title, category,
			brand, model, merchant_name, purchase_date, warranty_period_months,
			expiry_date, price, currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`, item.ID, item.AccountID, item.CreatedBy, item.Title, item.Category,
		item.Brand, item.Model, item.MerchantName, nullTime(item.PurchaseDate),
		item.WarrantyPeriodMonths, nullTime(item.ExpiryDate), nullFloat(item.Price),
		item.Currency).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create warranty item: %w", err)
	}

	for _, input := range req.Documents {
		doc := Document{
			ID:             uuid.NewString(),
			WarrantyItemID: item.ID,
			Type:           input.Type,
			ObjectKey:      input.ObjectKey,
		}
		err = tx.QueryRowContext(ctx, `
			INSERT INTO documents (id, warranty_item_id, type, object_key)
			VALUES ($1, $2, $3, $4)
			RETURNING created_at
		`, doc.ID, doc.WarrantyItemID, doc.Type, doc.ObjectKey).Scan(&doc.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to create document: %w", err)
		}
		item.Documents = append(item.Documents, doc)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if s.metrics != nil {
		s.metrics.WarrantiesTotal.Inc()
	}
	s.recordAudit(ctx, &audit.Event{
		ActorID:      requesterID,
		AccountID:    item.AccountID,
		Action:       "warranty.create",
		ResourceType: "warranty_item",
		ResourceID:   item.ID,
		Status:       audit.StatusSuccess,
	})
	return item, nil
}

// Get returns a warranty item with its documents. Items in accounts the
// requester cannot see are indistinguishable from absent ones.
func (s *PostgresService) Get(ctx context.Context, requesterID, itemID string) (*Item, error) {
	item, err := s.fetchAccessible(ctx, requesterID, itemID)
	if err != nil {
		return nil, err
	}
	docs, err := s.loadDocuments(ctx, []string{item.ID})
	if err != nil {
		return nil, err
	}
	item.Documents = docs[item.ID]
	return item, nil
}

// List returns the account's warranty items, newest first, with documents
func (s *PostgresService) List(ctx context.Context, requesterID, accountID string) ([]Item, error) {
	ms, err := s.memberships.ListUserMemberships(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	if !auth.IsMember(ms, accountID) {
		return nil, apperr.NotFound("account")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM warranty_items
		WHERE account_id = $1
		ORDER BY created_at DESC
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list warranty items: %w", err)
	}
	defer rows.Close()

	var items []Item
	var ids []string
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
		ids = append(ids, item.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) > 0 {
		docs, err := s.loadDocuments(ctx, ids)
		if err != nil {
			return nil, err
		}
		for i := range items {
			items[i].Documents = docs[items[i].ID]
		}
	}
	return items, nil
}

// Update applies a partial update and recomputes the stored expiry date from
// the effective purchase date and period, so the derived value can never go
// stale.
func (s *PostgresService) Update(ctx context.Context, requesterID, itemID string, req UpdateRequest) (*Item, error) {
	item, err := s.fetchAccessible(ctx, requesterID, itemID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, apperr.Validation("title", "title is required")
		}
		item.Title = title
	}
	if req.Category != nil {
		item.Category = *req.Category
	}
	if req.Brand != nil {
		item.Brand = *req.Brand
	}
	if req.Model != nil {
		item.Model = *req.Model
	}
	if req.MerchantName != nil {
		item.MerchantName = *req.MerchantName
	}
	if req.ClearPurchaseDate {
		item.PurchaseDate = nil
	} else if req.PurchaseDate != nil {
		item.PurchaseDate = req.PurchaseDate
	}
	if req.WarrantyPeriodMonths != nil {
		if *req.WarrantyPeriodMonths < 1 {
			return nil, apperr.Validation("warrantyPeriodMonths", "warranty period must be at least 1 month")
		}
		item.WarrantyPeriodMonths = *req.WarrantyPeriodMonths
	}
	if req.Price != nil {
		item.Price = req.Price
	}
	if req.Currency != nil {
		item.Currency = *req.Currency
	}
	item.ExpiryDate = ComputeExpiry(item.PurchaseDate, item.WarrantyPeriodMonths)

	err = s.db.QueryRowContext(ctx, `
		UPDATE warranty_items
		SET title = $1, category = $2, brand = $3, model = $4, merchant_name = $5,
		    purchase_date = $6, warranty_period_months = $7, expiry_date = $8,
		    price = $9, currency = $10, updated_at = NOW()
		WHERE id = $11
		RETURNING updated_at
	`, item.Title, item.Category, item.Brand, item.Model, item.MerchantName,
		nullTime(item.PurchaseDate), item.WarrantyPeriodMonths, nullTime(item.ExpiryDate),
		nullFloat(item.Price), item.Currency, item.ID).Scan(&item.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update warranty item: %w", err)
	}

	s.recordAudit(ctx, &audit.Event{
		ActorID:      requesterID,
		AccountID:    item.AccountID,
		Action:       "warranty.update",
		ResourceType: "warranty_item",
		ResourceID:   item.ID,
		Status:       audit.StatusSuccess,
	})
	docs, err := s.loadDocuments(ctx, []string{item.ID})
	if err != nil {
		return nil, err
	}
	item.Documents = docs[item.ID]
	return item, nil
}

// Delete removes a warranty item and its documents, then cleans the blobs
// best-effort.
func (s *PostgresService) Delete(ctx context.Context, requesterID, itemID string) error {
	item, err := s.fetchAccessible(ctx, requesterID, itemID)
	if err != nil {
		return err
	}

	docs, err := s.loadDocuments(ctx, []string{item.ID})
	if err != nil {
		return err
	}
	var keys []string
	for _, doc := range docs[item.ID] {
		keys = append(keys, doc.ObjectKey)
	}

	// Document rows go with the item via ON DELETE CASCADE.
	if _, err := s.db.ExecContext(ctx, `DELETE FROM warranty_items WHERE id = $1`, itemID); err != nil {
		return fmt.Errorf("failed to delete warranty item: %w", err)
	}

	if s.metrics != nil {
		s.metrics.WarrantiesTotal.Dec()
	}
	s.cleanupBlobs(ctx, item.AccountID, keys)

	s.recordAudit(ctx, &audit.Event{
		ActorID:      requesterID,
		AccountID:    item.AccountID,
		Action:       "warranty.delete",
		ResourceType: "warranty_item",
		ResourceID:   itemID,
		Status:       audit.StatusSuccess,
	})
	return nil
}

// AddDocuments attaches documents to an existing item
func (s *PostgresService) AddDocuments(ctx context.Context, requesterID, itemID string, inputs []DocumentInput) ([]Document, error) {
	if len(inputs) == 0 {
		return nil, apperr.Validation("documents", "at least one document is required")
	}
	for _, input := range inputs {
		if !input.Type.Valid() {
			return nil, apperr.Validation("type", fmt.Sprintf("unknown document type %q", input.Type))
		}
		if input.ObjectKey == "" {
			return nil, apperr.Validation("objectKey", "object key is required")
		}
	}

	item, err := s.fetchAccessible(ctx, requesterID, itemID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var docs []Document
	for _, input := range inputs {
		doc := Document{
			ID:             uuid.NewString(),
			WarrantyItemID: item.ID,
			Type:           input.Type,
			ObjectKey:      input.ObjectKey,
		}
		err = tx.QueryRowContext(ctx, `
			INSERT INTO documents (id, warranty_item_id, type, object_key)
			VALUES ($1, $2, $3, $4)
			RETURNING created_at
		`, doc.ID, doc.WarrantyItemID, doc.Type, doc.ObjectKey).Scan(&doc.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to create document: %w", err)
		}
		docs = append(docs, doc)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.recordAudit(ctx, &audit.Event{
		ActorID:      requesterID,
		AccountID:    item.AccountID,
		Action:       "document.add",
		ResourceType: "warranty_item",
		ResourceID:   item.ID,
		Status:       audit.StatusSuccess,
	})
	return docs, nil
}

// DeleteDocument removes a single document row, then deletes its blob
// best-effort.
func (s *PostgresService) DeleteDocument(ctx context.Context, requesterID, documentID string) error {
	var doc Document
	var accountID string
	err := s.db.QueryRowContext(ctx, `
		SELECT d.id, d.warranty_item_id, d.type, d.object_key, d.created_at, w.account_id
		FROM documents d
		JOIN warranty_items w ON w.id = d.warranty_item_id
		WHERE d.id = $1
	`, documentID).Scan(&doc.ID, &doc.WarrantyItemID, &doc.Type, &doc.ObjectKey, &doc.CreatedAt, &accountID)
	if err == sql.ErrNoRows {
		return apperr.NotFound("document")
	}
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	ms, err := s.memberships.ListUserMemberships(ctx, requesterID)
	if err != nil {
		return err
	}
	if !auth.IsMember(ms, accountID) {
		return apperr.NotFound("document")
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, documentID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	s.cleanupBlobs(ctx, accountID, []string{doc.ObjectKey})

	s.recordAudit(ctx, &audit.Event{
		ActorID:      requesterID,
		AccountID:    accountID,
		Action:       "document.delete",
		ResourceType: "document",
		ResourceID:   documentID,
		Status:       audit.StatusSuccess,
	})
	return nil
}

// CountByStatus classifies the account's items for dashboard views
func (s *PostgresService) CountByStatus(ctx context.Context, requesterID, accountID string) (map[Status]int, error) {
	ms, err := s.memberships.ListUserMemberships(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	if !auth.IsMember(ms, accountID) {
		return nil, apperr.NotFound("account")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT expiry_date FROM warranty_items WHERE account_id = $1
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to count warranty items: %w", err)
	}
	defer rows.Close()

	now := timeNow()
	counts := map[Status]int{
		StatusNoExpiry:     0,
		StatusExpired:      0,
		StatusExpiringSoon: 0,
		StatusActive:       0,
	}
	for rows.Next() {
		var expiry sql.NullTime
		if err := rows.Scan(&expiry); err != nil {
			return nil, fmt.Errorf("failed to scan expiry date: %w", err)
		}
		var expiryPtr *time.Time
		if expiry.Valid {
			expiryPtr = &expiry.Time
		}
		counts[StatusOf(expiryPtr, now)]++
	}
	return counts, rows.Err()
}

// fetchAccessible loads an item and checks membership in one place so that
// nonexistent and inaccessible items produce the identical not-found error.
func (s *PostgresService) fetchAccessible(ctx context.Context, requesterID, itemID string) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+itemColumns+`
		FROM warranty_items
		WHERE id = $1
	`, itemID)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("warranty item")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get warranty item: %w", err)
	}

	ms, err := s.memberships.ListUserMemberships(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	if !auth.IsMember(ms, item.AccountID) {
		return nil, apperr.NotFound("warranty item")
	}
	return item, nil
}

// loadDocuments returns documents grouped by warranty item id
func (s *PostgresService) loadDocuments(ctx context.Context, itemIDs []string) (map[string][]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, warranty_item_id, type, object_key, created_at
		FROM documents
		WHERE warranty_item_id = ANY($1)
		ORDER BY created_at ASC
	`, pq.Array(itemIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}
	defer rows.Close()

	docs := make(map[string][]Document)
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.WarrantyItemID, &doc.Type, &doc.ObjectKey, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs[doc.WarrantyItemID] = append(docs[doc.WarrantyItemID], doc)
	}
	return docs, rows.Err()
}

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
		}).WithError(err).Warn("failed to delete blob during warranty cascade")
	}
}

func (s *PostgresService) recordAudit(ctx context.Context, event *audit.Event) {
	if err := s.auditor.Record(ctx, event); err != nil {
		s.logger.WithError(err).WithField("action", event.Action).Warn("failed to record audit event")
	}
}

func validateCreate(req *CreateRequest) error {
	if strings.TrimSpace(req.Title) == "" {
		return apperr.Validation("title", "title is required")
	}
	if req.AccountID == "" {
		return apperr.Validation("accountId", "account id is required")
	}
	if req.WarrantyPeriodMonths < 1 {
		return apperr.Validation("warrantyPeriodMonths", "warranty period must be at least 1 month")
	}
	for _, input := range req.Documents {
		if !input.Type.Valid() {
			return apperr.Validation("type", fmt.Sprintf("unknown document type %q", input.Type))
		}
		if input.ObjectKey == "" {
			return apperr.Validation("objectKey", "object key is required")
		}
	}
	return nil
}

// scanner covers both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row scanner) (*Item, error) {
	item := &Item{}
	var purchaseDate, expiryDate sql.NullTime
	var price sql.NullFloat64
	err := row.Scan(&item.ID, &item.AccountID, &item.CreatedBy, &item.Title,
		&item.Category, &item.Brand, &item.Model, &item.MerchantName,
		&purchaseDate, &item.WarrantyPeriodMonths, &expiryDate,
		&price, &item.Currency, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if purchaseDate.Valid {
		item.PurchaseDate = &purchaseDate.Time
	}
	if expiryDate.Valid {
		item.ExpiryDate = &expiryDate.Time
	}
	if price.Valid {
		item.Price = &price.Float64
	}
	return item, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// timeNow is swapped in tests
var timeNow = time.Now
