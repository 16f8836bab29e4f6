package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// AccountRepository is the port for the chart of accounts.
// Methods taking a *gorm.DB run on that session so they can join a
// caller's transaction; the rest use the repository's own connection.
type AccountRepository interface {
	Create(ctx context.Context, tx *gorm.DB, a *Account) error

	// Update saves mutable fields guarded by the version column.
	Update(ctx context.Context, tx *gorm.DB, a *Account) error

	FindByID(ctx context.Context, id int64) (*Account, error)
	FindByCode(ctx context.Context, code string) (*Account, error)

	// FindByIDs returns the accounts keyed by id; missing ids are absent.
	FindByIDs(ctx context.Context, db *gorm.DB, ids []int64) (map[int64]*Account, error)

	// FindForPosting loads every account matching one of ids or codes in a
	// single query.
	FindForPosting(ctx context.Context, db *gorm.DB, ids []int64, codes []string) ([]Account, error)

	ExistsByCode(ctx context.Context, db *gorm.DB, code string) (bool, error)

	// Search matches name or code, case-insensitively.
	Search(ctx context.Context, query string, limit int) ([]Account, error)
	ListChildren(ctx context.Context, parentID int64) ([]Account, error)
	ListAll(ctx context.Context, db *gorm.DB) ([]Account, error)
}

// VoucherRepository is the append-only voucher store: no update, no delete.
type VoucherRepository interface {
	// Create saves the header and its entries.
	Create(ctx context.Context, tx *gorm.DB, v *Voucher) error

	ExistsByReference(ctx context.Context, tx *gorm.DB, typ VoucherType, refType, refID string) (bool, error)
	ExistsReversalOf(ctx context.Context, tx *gorm.DB, voucherID int64) (bool, error)

	FindByID(ctx context.Context, id int64) (*Voucher, error)
	ListByDateRange(ctx context.Context, start, end time.Time) ([]Voucher, error)

	// EntryLines returns entries joined with their voucher for vouchers dated
	// within [start, end].
	EntryLines(ctx context.Context, db *gorm.DB, start, end time.Time) ([]EntryLine, error)
}
