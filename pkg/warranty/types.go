package warranty

import (
	"context"
	"time"

	"github.com/pkolev/warrantyhub/pkg/auth"
)

// DocumentType classifies an uploaded document
type DocumentType string

const (
	DocumentReceipt      DocumentType = "RECEIPT"
	DocumentWarrantyCard DocumentType = "WARRANTY_CARD"
	DocumentProductPhoto DocumentType = "PRODUCT_PHOTO"
)

// Valid reports whether the document type is one of the known values
func (t DocumentType) Valid() bool {
	switch t {
	case DocumentReceipt, DocumentWarrantyCard, DocumentProductPhoto:
		return true
	}
	return false
}

// Status is the derived lifecycle state of a warranty item
type Status string

const (
	StatusNoExpiry     Status = "NO_EXPIRY"
	StatusExpired      Status = "EXPIRED"
	StatusExpiringSoon Status = "EXPIRING_SOON"
	StatusActive       Status = "ACTIVE"
)

// Document is a stored file attached to a warranty item
type Document struct {
	ID             string       `json:"id"`
	WarrantyItemID string       `json:"warrantyItemId"`
	Type           DocumentType `json:"type"`
	ObjectKey      string       `json:"objectKey"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// Item is a warranty record scoped to an account
type Item struct {
	ID                   string     `json:"id"`
	AccountID            string     `json:"accountId"`
	CreatedBy            string     `json:"createdBy"`
	Title                string     `json:"title"`
	Category             string     `json:"category,omitempty"`
	Brand                string     `json:"brand,omitempty"`
	Model                string     `json:"model,omitempty"`
	MerchantName         string     `json:"merchantName,omitempty"`
	PurchaseDate         *time.Time `json:"purchaseDate,omitempty"`
	WarrantyPeriodMonths int        `json:"warrantyPeriodMonths"`
	ExpiryDate           *time.Time `json:"expiryDate,omitempty"`
	Price                *float64   `json:"price,omitempty"`
	Currency             string     `json:"currency,omitempty"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
	Documents            []Document `json:"documents,omitempty"`
}

// Status derives the lifecycle state of the item at the given instant
func (i *Item) Status(now time.Time) Status {
	return StatusOf(i.ExpiryDate, now)
}

// DocumentInput describes a document to attach on create or add
type DocumentInput struct {
	Type      DocumentType `json:"type"`
	ObjectKey string       `json:"objectKey"`
}

// CreateRequest carries the fields for a new warranty item. AccountID is
// explicit; the item always lands in the account the caller names.
type CreateRequest struct {
	AccountID            string          `json:"accountId"`
	Title                string          `json:"title"`
	Category             string          `json:"category"`
	Brand                string          `json:"brand"`
	Model                string          `json:"model"`
	MerchantName         string          `json:"merchantName"`
	PurchaseDate         *time.Time      `json:"purchaseDate"`
	WarrantyPeriodMonths int             `json:"warrantyPeriodMonths"`
	Price                *float64        `json:"price"`
	Currency             string          `json:"currency"`
	Documents            []DocumentInput `json:"documents"`
}

// UpdateRequest carries a partial update. Nil pointers leave the field
// unchanged; ClearPurchaseDate nulls the purchase date (and the expiry).
type UpdateRequest struct {
	Title                *string    `json:"title"`
	Category             *string    `json:"category"`
	Brand                *string    `json:"brand"`
	Model                *string    `json:"model"`
	MerchantName         *string    `json:"merchantName"`
	PurchaseDate         *time.Time `json:"purchaseDate"`
	ClearPurchaseDate    bool       `json:"clearPurchaseDate"`
	WarrantyPeriodMonths *int       `json:"warrantyPeriodMonths"`
	Price                *float64   `json:"price"`
	Currency             *string    `json:"currency"`
}

// MembershipSource resolves a user's memberships for authorization
type MembershipSource interface {
	ListUserMemberships(ctx context.Context, userID string) ([]auth.Membership, error)
}

// BlobDeleter removes objects from the blob store
type BlobDeleter interface {
	Delete(ctx context.Context, key string) error
}

// Service is the warranty lifecycle API
type Service interface {
	Create(ctx context.Context, requesterID string, req CreateRequest) (*Item, error)
	Get(ctx context.Context, requesterID, itemID string) (*Item, error)
	List(ctx context.Context, requesterID, accountID string) ([]Item, error)
	Update(ctx context.Context, requesterID, itemID string, req UpdateRequest) (*Item, error)
	Delete(ctx context.Context, requesterID, itemID string) error
	AddDocuments(ctx context.Context, requesterID, itemID string, docs []DocumentInput) ([]Document, error)
	DeleteDocument(ctx context.Context, requesterID, documentID string) error
	CountByStatus(ctx context.Context, requesterID, accountID string) (map[Status]int, error)
}
