package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xxz807/finscale/accounting/internal/platform/money"
	subledger "github.com/xxz807/finscale/accounting/internal/subledger/domain"
)

// Direction says which side of the business an obligation sits on.
type Direction string

const (
	Receivable Direction = "RECEIVABLE" // customers owe us
	Payable    Direction = "PAYABLE"    // we owe suppliers
)

func (d Direction) IsValid() bool {
	return d == Receivable || d == Payable
}

// PartyKind maps the direction to the subledger that tracks it.
func (d Direction) PartyKind() subledger.Kind {
	if d == Payable {
		return subledger.Supplier
	}
	return subledger.Customer
}

type ObligationType string

const (
	InvoiceReceivable ObligationType = "INVOICE_RECEIVABLE"
	SalesOrder        ObligationType = "SALES_ORDER"
	InvoicePayable    ObligationType = "INVOICE_PAYABLE"
	PurchaseOrder     ObligationType = "PURCHASE_ORDER"
)

// Direction of the obligation type; ok is false for unknown types.
func (t ObligationType) Direction() (Direction, bool) {
	switch t {
	case InvoiceReceivable, SalesOrder:
		return Receivable, true
	case InvoicePayable, PurchaseOrder:
		return Payable, true
	}
	return "", false
}

type Status string

const (
	Pending       Status = "PENDING"
	Overdue       Status = "OVERDUE"
	PartiallyPaid Status = "PARTIALLY_PAID"
	Settled       Status = "SETTLED" // terminal
)

// Outstanding is one unsettled obligation. Amount only decreases, through
// settlements.
// Table: settlement_outstandings
type Outstanding struct {
	ID             int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Type           ObligationType `gorm:"type:varchar(32);not null" json:"type"`
	Direction      Direction      `gorm:"type:varchar(16);not null;index:idx_outstanding_contact,priority:2" json:"direction"`
	ContactKey     string         `gorm:"type:varchar(64);not null;index:idx_outstanding_contact,priority:1" json:"contact_key"`
	ContactName    string         `gorm:"type:varchar(120)" json:"contact_name,omitempty"`
	OriginalAmount money.Amount   `gorm:"not null" json:"original_amount"`
	Amount         money.Amount   `gorm:"not null" json:"amount"` // still owed
	DueDate        time.Time      `gorm:"not null;index" json:"due_date"`
	Status         Status         `gorm:"type:varchar(16);not null;index" json:"status"`
	DaysOverdue    int            `gorm:"not null;default:0" json:"days_overdue"`
	ReferenceType  string         `gorm:"type:varchar(32)" json:"reference_type"`
	ReferenceID    string         `gorm:"type:varchar(64);index" json:"reference_id"`
	Version        int64          `gorm:"not null;default:1" json:"version"`
	SettledAt      *time.Time     `json:"settled_at,omitempty"`
	CreatedAt      time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (Outstanding) TableName() string {
	return "settlement_outstandings"
}

func (o *Outstanding) IsSettled() bool {
	return o.Status == Settled
}

// SourceKind is what pays an obligation down.
type SourceKind string

const (
	SourcePayment    SourceKind = "PAYMENT"
	SourceCreditNote SourceKind = "CREDIT_NOTE"
)

func (k SourceKind) IsValid() bool {
	return k == SourcePayment || k == SourceCreditNote
}

// PaymentEntry is money received from a customer or paid to a supplier.
// RemainingAmount is the part not yet allocated.
// Table: settlement_payments
type PaymentEntry struct {
	ID               int64        `gorm:"primaryKey;autoIncrement" json:"id"`
	Number           string       `gorm:"uniqueIndex;type:varchar(32);not null" json:"number"`
	Direction        Direction    `gorm:"type:varchar(16);not null;index:idx_payment_contact,priority:2" json:"direction"`
	ContactKey       string       `gorm:"type:varchar(64);not null;index:idx_payment_contact,priority:1" json:"contact_key"`
	PaymentDate      time.Time    `gorm:"not null" json:"payment_date"`
	TotalAmount      money.Amount `gorm:"not null" json:"total_amount"`
	RemainingAmount  money.Amount `gorm:"not null" json:"remaining_amount"`
	PaymentMethod    string       `gorm:"type:varchar(32)" json:"payment_method"`
	PaymentReference string       `gorm:"type:varchar(64)" json:"payment_reference,omitempty"`
	Version          int64        `gorm:"not null;default:1" json:"version"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

func (PaymentEntry) TableName() string {
	return "settlement_payments"
}

func (p *PaymentEntry) Source() Source {
	return Source{
		Kind:       SourcePayment,
		ID:         p.ID,
		Number:     p.Number,
		Direction:  p.Direction,
		ContactKey: p.ContactKey,
		Date:       p.PaymentDate,
		Total:      p.TotalAmount.Decimal,
		Remaining:  p.RemainingAmount.Decimal,
		Method:     p.PaymentMethod,
		Reference:  p.PaymentReference,
		Version:    p.Version,
		CreatedAt:  p.CreatedAt,
	}
}

// CreditNote reduces what a party owes (or what we owe a supplier) without
// money changing hands.
// Table: settlement_credit_notes
type CreditNote struct {
	ID              int64        `gorm:"primaryKey;autoIncrement" json:"id"`
	Number          string       `gorm:"uniqueIndex;type:varchar(32);not null" json:"number"`
	Direction       Direction    `gorm:"type:varchar(16);not null;index:idx_credit_note_contact,priority:2" json:"direction"`
	ContactKey      string       `gorm:"type:varchar(64);not null;index:idx_credit_note_contact,priority:1" json:"contact_key"`
	IssueDate       time.Time    `gorm:"not null" json:"issue_date"`
	TotalAmount     money.Amount `gorm:"not null" json:"total_amount"`
	RemainingAmount money.Amount `gorm:"not null" json:"remaining_amount"`
	Reason          string       `gorm:"type:text" json:"reason,omitempty"`
	ReferenceType   string       `gorm:"type:varchar(32)" json:"reference_type,omitempty"`
	ReferenceID     string       `gorm:"type:varchar(64)" json:"reference_id,omitempty"`
	Version         int64        `gorm:"not null;default:1" json:"version"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

func (CreditNote) TableName() string {
	return "settlement_credit_notes"
}

func (c *CreditNote) Source() Source {
	return Source{
		Kind:       SourceCreditNote,
		ID:         c.ID,
		Number:     c.Number,
		Direction:  c.Direction,
		ContactKey: c.ContactKey,
		Date:       c.IssueDate,
		Total:      c.TotalAmount.Decimal,
		Remaining:  c.RemainingAmount.Decimal,
		Method:     "CREDIT_NOTE",
		Reference:  c.ReferenceID,
		Version:    c.Version,
		CreatedAt:  c.CreatedAt,
	}
}

// Source is the common view of a payment or credit note during allocation.
type Source struct {
	Kind       SourceKind      `json:"kind"`
	ID         int64           `json:"id"`
	Number     string          `json:"number"`
	Direction  Direction       `json:"direction"`
	ContactKey string          `json:"contact_key"`
	Date       time.Time       `json:"date"`
	Total      decimal.Decimal `json:"total"`
	Remaining  decimal.Decimal `json:"remaining"`
	Method     string          `json:"method,omitempty"`
	Reference  string          `json:"reference,omitempty"`
	Version    int64           `json:"-"`
	CreatedAt  time.Time       `json:"created_at"`
}

// InvoiceSettlement is the immutable audit record of one allocation step.
// Table: settlement_records
type InvoiceSettlement struct {
	ID             int64        `gorm:"primaryKey;autoIncrement" json:"id"`
	OutstandingID  int64        `gorm:"not null;index" json:"outstanding_id"`
	SourceKind     SourceKind   `gorm:"type:varchar(16);not null;index:idx_settlement_source,priority:1" json:"source_kind"`
	SourceID       int64        `gorm:"not null;index:idx_settlement_source,priority:2" json:"source_id"`
	Amount         money.Amount `gorm:"not null" json:"amount"`
	SettlementDate time.Time    `gorm:"not null" json:"settlement_date"`
	ContactKey     string       `gorm:"type:varchar(64);not null;index" json:"contact_key"`
	CreatedAt      time.Time    `json:"created_at"`
}

func (InvoiceSettlement) TableName() string {
	return "settlement_records"
}

// Models lists the settlement tables.
func Models() []any {
	return []any{&Outstanding{}, &PaymentEntry{}, &CreditNote{}, &InvoiceSettlement{}}
}
