package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xxz807/finscale/accounting/internal/platform/apperr"
	"github.com/xxz807/finscale/accounting/internal/settlement/domain"
)

// CreateObligationReq is the body of POST /settlement/obligations.
type CreateObligationReq struct {
	Type          domain.ObligationType `json:"type" binding:"required"`
	Amount        decimal.Decimal       `json:"amount"`
	Date          string                `json:"date"` // defaults to today
	DueDate       string                `json:"due_date" binding:"required"`
	ReferenceType string                `json:"reference_type"`
	ReferenceID   string                `json:"reference_id"`
	ContactKey    string                `json:"contact_key" binding:"required"`
	ContactName   string                `json:"contact_name"`
}

// RecordPaymentReq is the body of POST /settlement/payments. With allocate
// set the payment is applied right away.
type RecordPaymentReq struct {
	Direction   domain.Direction `json:"direction" binding:"required"`
	ContactKey  string           `json:"contact_key" binding:"required"`
	ContactName string           `json:"contact_name"`
	Date        string           `json:"date" binding:"required"`
	Amount      decimal.Decimal  `json:"amount"`
	Method      string           `json:"method"`
	Reference   string           `json:"reference"`
	Allocate    bool             `json:"allocate"`
}

type IssueCreditNoteReq struct {
	Direction     domain.Direction `json:"direction" binding:"required"`
	ContactKey    string           `json:"contact_key" binding:"required"`
	ContactName   string           `json:"contact_name"`
	Date          string           `json:"date" binding:"required"`
	Amount        decimal.Decimal  `json:"amount"`
	Reason        string           `json:"reason"`
	ReferenceType string           `json:"reference_type"`
	ReferenceID   string           `json:"reference_id"`
	Allocate      bool             `json:"allocate"`
}

type RecomputeAgingReq struct {
	AsOf string `json:"as_of"` // defaults to today
}

func parseDate(field, s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, apperr.Invalid(field, "expected YYYY-MM-DD, got %q", s)
	}
	return t, nil
}

// optionalDate returns fallback for an empty value.
func optionalDate(field, s string, fallback time.Time) (time.Time, error) {
	if s == "" {
		return fallback, nil
	}
	return parseDate(field, s)
}
