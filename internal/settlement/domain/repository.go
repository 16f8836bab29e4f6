package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Filter narrows unsettled obligation listings. Zero fields match anything;
// the due range is inclusive.
type Filter struct {
	Direction  Direction
	ContactKey string
	DueFrom    *time.Time
	DueTo      *time.Time
}

// Repository persists obligations, payment sources and settlement records.
// Methods taking a *gorm.DB run inside that transaction; nil means the
// repository's own connection.
type Repository interface {
	CreateOutstanding(ctx context.Context, tx *gorm.DB, o *Outstanding) error
	ExistsOutstanding(ctx context.Context, tx *gorm.DB, typ ObligationType, refType, refID string) (bool, error)
	FindOutstanding(ctx context.Context, id int64) (*Outstanding, error)
	ListUnsettled(ctx context.Context, db *gorm.DB, f Filter) ([]Outstanding, error)
	// OldestUnsettled returns open obligations of one contact, oldest first, locked.
	OldestUnsettled(ctx context.Context, tx *gorm.DB, contact string, dir Direction) ([]Outstanding, error)
	ApplyAllocation(ctx context.Context, tx *gorm.DB, a Allocation, at time.Time) error
	SaveAging(ctx context.Context, tx *gorm.DB, o *Outstanding, days int, status Status) error

	CreatePayment(ctx context.Context, tx *gorm.DB, p *PaymentEntry) error
	CreateCreditNote(ctx context.Context, tx *gorm.DB, c *CreditNote) error
	FindSource(ctx context.Context, db *gorm.DB, kind SourceKind, id int64) (*Source, error)
	LockSource(ctx context.Context, tx *gorm.DB, kind SourceKind, id int64) (*Source, error)
	SaveRemaining(ctx context.Context, tx *gorm.DB, src *Source, remaining decimal.Decimal) error
	// PendingSources lists payments and credit notes of a contact with
	// unallocated amounts, oldest first.
	PendingSources(ctx context.Context, db *gorm.DB, contact string, dir Direction) ([]Source, error)

	CreateSettlement(ctx context.Context, tx *gorm.DB, s *InvoiceSettlement) error
	SettlementsFor(ctx context.Context, outstandingID int64) ([]InvoiceSettlement, error)
	SettlementsBySource(ctx context.Context, kind SourceKind, id int64) ([]InvoiceSettlement, error)
}
