package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xxz807/finscale/accounting/internal/platform/apperr"
	"github.com/xxz807/finscale/accounting/internal/platform/money"
)

// Kind separates customer (receivable) from supplier (payable) ledgers.
type Kind string

const (
	Customer Kind = "CUSTOMER"
	Supplier Kind = "SUPPLIER"
)

func (k Kind) IsValid() bool {
	return k == Customer || k == Supplier
}

// SignedDelta is the balance change for one entry. A customer owes more
// after a debit (invoice); a supplier is owed more after a credit (bill).
func (k Kind) SignedDelta(debit, credit decimal.Decimal) decimal.Decimal {
	if k == Supplier {
		return credit.Sub(debit)
	}
	return debit.Sub(credit)
}

type Status string

const (
	Active   Status = "ACTIVE"
	Inactive Status = "INACTIVE"
)

func (s Status) IsValid() bool {
	return s == Active || s == Inactive
}

// PartyLedger is one customer's or supplier's running account. CurrentBalance
// is a cache of the signed sum of its entries; it only moves through appends.
// Table: subledger_parties
type PartyLedger struct {
	ID             int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	Kind           Kind             `gorm:"type:varchar(16);not null;uniqueIndex:idx_party_contact,priority:1" json:"kind"`
	ContactKey     string           `gorm:"type:varchar(64);not null;uniqueIndex:idx_party_contact,priority:2" json:"contact_key"` // phone or party code
	Name           string           `gorm:"type:varchar(120)" json:"name"`
	CurrentBalance money.Amount     `gorm:"not null;default:0" json:"current_balance"`
	CreditLimit    money.NullAmount `json:"credit_limit"`
	Status         Status           `gorm:"type:varchar(16);not null;default:ACTIVE" json:"status"`
	Version        int64            `gorm:"not null;default:1" json:"version"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

func (PartyLedger) TableName() string {
	return "subledger_parties"
}

// OverLimit reports whether the balance exceeds a configured credit limit.
func (p *PartyLedger) OverLimit() bool {
	return p.CreditLimit.Valid && p.CurrentBalance.GreaterThan(p.CreditLimit.Decimal)
}

// Entry is an append-only line of a party ledger.
// Table: subledger_entries
type Entry struct {
	ID               int64        `gorm:"primaryKey;autoIncrement" json:"id"`
	LedgerID         int64        `gorm:"not null;index" json:"ledger_id"`
	EntryDate        time.Time    `gorm:"not null;index" json:"entry_date"`
	Debit            money.Amount `gorm:"not null;default:0" json:"debit"`
	Credit           money.Amount `gorm:"not null;default:0" json:"credit"`
	RunningBalance   money.Amount `gorm:"not null;default:0" json:"running_balance"` // balance after this append
	ReferenceType    string       `gorm:"type:varchar(32);index:idx_subledger_ref,priority:1" json:"reference_type"`
	ReferenceID      string       `gorm:"type:varchar(64);index:idx_subledger_ref,priority:2" json:"reference_id"`
	PaymentMethod    string       `gorm:"type:varchar(32)" json:"payment_method,omitempty"`
	PaymentReference string       `gorm:"type:varchar(64)" json:"payment_reference,omitempty"`
	Description      string       `gorm:"type:text" json:"description,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
}

func (Entry) TableName() string {
	return "subledger_entries"
}

// Models lists the subledger tables.
func Models() []any {
	return []any{&PartyLedger{}, &Entry{}}
}

// AppendRequest describes one entry for a party, creating the party on first use.
type AppendRequest struct {
	Kind             Kind
	ContactKey       string
	Name             string
	Date             time.Time
	Debit            decimal.Decimal
	Credit           decimal.Decimal
	ReferenceType    string
	ReferenceID      string
	PaymentMethod    string
	PaymentReference string
	Description      string
}

func (r *AppendRequest) Validate() error {
	r.ContactKey = strings.TrimSpace(r.ContactKey)
	if !r.Kind.IsValid() {
		return apperr.Invalid("kind", "unknown ledger kind %q", r.Kind)
	}
	if r.ContactKey == "" {
		return apperr.Invalid("contact_key", "is required")
	}
	if r.Date.IsZero() {
		return apperr.Invalid("date", "is required")
	}
	if r.Debit.IsNegative() || r.Credit.IsNegative() {
		return apperr.Invalid("amount", "must not be negative")
	}
	if r.Debit.IsZero() && r.Credit.IsZero() {
		return apperr.Invalid("amount", "debit or credit must be non-zero")
	}
	return nil
}

// Recompute is the signed sum of entries. Order does not matter.
func Recompute(kind Kind, entries []Entry) decimal.Decimal {
	var sum decimal.Decimal
	for _, e := range entries {
		sum = sum.Add(kind.SignedDelta(e.Debit.Decimal, e.Credit.Decimal))
	}
	return sum
}
