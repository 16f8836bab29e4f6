package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/xxz807/finscale/accounting/internal/platform/money"
)

// Account is a chart-of-accounts node.
// Table: ledger_accounts
type Account struct {
	ID          int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountCode string      `gorm:"uniqueIndex;type:varchar(32);not null" json:"code"`
	Name        string      `gorm:"type:varchar(100);not null" json:"name"`
	Type        AccountType `gorm:"type:smallint;not null" json:"type"`
	ParentID    *int64      `gorm:"index" json:"parent_id,omitempty"`
	Description string      `gorm:"type:text" json:"description,omitempty"`
	IsActive    bool        `gorm:"not null;default:true" json:"is_active"`
	Version     int64       `gorm:"not null;default:1" json:"version"` // optimistic lock
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func (Account) TableName() string {
	return "ledger_accounts"
}

// Voucher is the header of one balanced business transaction. Immutable once
// posted; corrections are reversing vouchers.
// Table: ledger_vouchers
type Voucher struct {
	ID          int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	Number      string      `gorm:"uniqueIndex;type:varchar(32);not null" json:"number"`
	VoucherDate time.Time   `gorm:"index;not null" json:"date"`
	Type        VoucherType `gorm:"type:varchar(32);not null;index:idx_voucher_reference,priority:1" json:"type"`
	Narration   string      `gorm:"type:text" json:"narration,omitempty"`
	// ReferenceType/ReferenceID point back at the originating document (order, GRN, ...).
	ReferenceType     string            `gorm:"type:varchar(32);index:idx_voucher_reference,priority:2" json:"reference_type,omitempty"`
	ReferenceID       string            `gorm:"type:varchar(64);index:idx_voucher_reference,priority:3" json:"reference_id,omitempty"`
	ReversesVoucherID *int64            `gorm:"index" json:"reverses_voucher_id,omitempty"`
	Metadata          datatypes.JSONMap `json:"metadata,omitempty"`
	PostedAt          time.Time         `gorm:"not null" json:"posted_at"`
	CreatedAt         time.Time         `json:"created_at"`

	Entries []VoucherEntry `gorm:"foreignKey:VoucherID" json:"entries"`
}

func (Voucher) TableName() string {
	return "ledger_vouchers"
}

// Totals sums debit and credit of all entries.
func (v *Voucher) Totals() (debit, credit decimal.Decimal) {
	for _, e := range v.Entries {
		debit = debit.Add(e.Debit.Decimal)
		credit = credit.Add(e.Credit.Decimal)
	}
	return debit, credit
}

// VoucherEntry is one posting line. Exactly one of Debit/Credit is non-zero.
// Table: ledger_voucher_entries
type VoucherEntry struct {
	ID          int64        `gorm:"primaryKey;autoIncrement" json:"id"`
	VoucherID   int64        `gorm:"not null;index" json:"voucher_id"`
	AccountID   int64        `gorm:"not null;index" json:"account_id"`
	Debit       money.Amount `gorm:"not null;default:0" json:"debit"`
	Credit      money.Amount `gorm:"not null;default:0" json:"credit"`
	Description string       `gorm:"type:text" json:"description,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

func (VoucherEntry) TableName() string {
	return "ledger_voucher_entries"
}

// Direction returns the side carrying the amount.
func (e VoucherEntry) Direction() Direction {
	if e.Debit.IsPositive() {
		return Debit
	}
	return Credit
}

// Amount returns the non-zero side.
func (e VoucherEntry) Amount() decimal.Decimal {
	if e.Debit.IsPositive() {
		return e.Debit.Decimal
	}
	return e.Credit.Decimal
}

// EntryLine is a voucher entry joined with its voucher header; the unit all
// reports aggregate over.
type EntryLine struct {
	EntryID       int64
	VoucherID     int64
	VoucherNumber string
	VoucherDate   time.Time
	PostedAt      time.Time
	VoucherType   VoucherType
	Narration     string
	ReferenceType string
	ReferenceID   string
	AccountID     int64
	Debit         decimal.Decimal
	Credit        decimal.Decimal
	Description   string
}

// Models lists the tables owned by the general ledger.
func Models() []any {
	return []any{&Account{}, &Voucher{}, &VoucherEntry{}}
}

// DateOf truncates t to its calendar date (in t's own location), expressed as
// UTC midnight. Voucher dates and report windows are compared as dates.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
