package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xxz807/finscale/accounting/internal/ledger/domain"
	"github.com/xxz807/finscale/accounting/internal/platform/apperr"
)

// CreateAccountReq is the body of POST /ledger/accounts.
type CreateAccountReq struct {
	Code        string             `json:"code" binding:"required"`
	Name        string             `json:"name" binding:"required"`
	Type        domain.AccountType `json:"type" binding:"required"` // ASSET, LIABILITY, ...
	ParentID    *int64             `json:"parent_id"`
	Description string             `json:"description"`
}

type MoveAccountReq struct {
	ParentID *int64 `json:"parent_id"`
}

// PostVoucherReq is the body of POST /ledger/vouchers.
type PostVoucherReq struct {
	Date          string         `json:"date" binding:"required"` // YYYY-MM-DD
	Type          string         `json:"type" binding:"required"`
	Narration     string         `json:"narration"`
	ReferenceType string         `json:"reference_type"`
	ReferenceID   string         `json:"reference_id"`
	Metadata      map[string]any `json:"metadata"`
	Entries       []EntryReq     `json:"entries" binding:"required,min=1,dive"`
}

// EntryReq carries amounts as decimals; JSON strings or numbers are both
// parsed exactly.
type EntryReq struct {
	AccountID   int64           `json:"account_id"`
	AccountCode string          `json:"account_code"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description"`
}

type ReverseVoucherReq struct {
	Date      string `json:"date" binding:"required"`
	Narration string `json:"narration"`
}

// WindowQuery is the ?start=&end= pair used by listings and reports.
type WindowQuery struct {
	Start       string `form:"start" binding:"required"`
	End         string `form:"end" binding:"required"`
	IncludeZero bool   `form:"include_zero"`
}

func (q WindowQuery) Parse() (start, end time.Time, err error) {
	if start, err = ParseDate("start", q.Start); err != nil {
		return
	}
	end, err = ParseDate("end", q.End)
	return
}

// ParseDate reads a YYYY-MM-DD value.
func ParseDate(field, s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, apperr.Invalid(field, "expected YYYY-MM-DD, got %q", s)
	}
	return t, nil
}
