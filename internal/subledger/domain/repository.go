package domain

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Repository persists party ledgers and their entries.
type Repository interface {
	// EnsureParty inserts the party unless it exists; the first writer's name wins.
	EnsureParty(ctx context.Context, tx *gorm.DB, kind Kind, key, name string) error

	// LockParty reads the party row with an exclusive row lock held until tx ends.
	LockParty(ctx context.Context, tx *gorm.DB, kind Kind, key string) (*PartyLedger, error)

	FindParty(ctx context.Context, db *gorm.DB, kind Kind, key string) (*PartyLedger, error)

	// SaveBalance writes the new cached balance, guarded by the version column.
	SaveBalance(ctx context.Context, tx *gorm.DB, p *PartyLedger, balance decimal.Decimal) error

	// UpdateSettings writes name, status and credit limit, guarded by version.
	UpdateSettings(ctx context.Context, tx *gorm.DB, p *PartyLedger) error

	AppendEntry(ctx context.Context, tx *gorm.DB, e *Entry) error

	// Entries returns every entry of a ledger ordered by (entry_date, id).
	Entries(ctx context.Context, db *gorm.DB, ledgerID int64) ([]Entry, error)

	// EntriesFor returns the entries of many ledgers keyed by ledger id.
	EntriesFor(ctx context.Context, db *gorm.DB, ledgerIDs []int64) (map[int64][]Entry, error)

	Search(ctx context.Context, kind Kind, query string, limit int) ([]PartyLedger, error)
	ListParties(ctx context.Context, db *gorm.DB, kind Kind, status Status) ([]PartyLedger, error)
}
