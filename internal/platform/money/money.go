// Package money holds the column types every module persists amounts in.
//
// SQLite gives a decimal(20,4) column NUMERIC affinity, so the text a
// decimal.Decimal writes is stored as a REAL and read back rounded past 15
// significant digits. Amount and NullAmount keep numeric(20,4) on postgres
// and switch to TEXT on sqlite.
package money

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Amount is a persisted decimal. Arithmetic goes through the embedded
// decimal.Decimal.
type Amount struct {
	decimal.Decimal
}

func New(d decimal.Decimal) Amount {
	return Amount{Decimal: d}
}

// RequireFromString panics on malformed input. Fixtures and constants only.
func RequireFromString(s string) Amount {
	return Amount{Decimal: decimal.RequireFromString(s)}
}

func (Amount) GormDataType() string {
	return "decimal"
}

func (Amount) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	return columnType(db)
}

// NullAmount is an optional persisted decimal, e.g. a credit limit.
type NullAmount struct {
	decimal.NullDecimal
}

func NewNull(d decimal.Decimal) NullAmount {
	return NullAmount{NullDecimal: decimal.NewNullDecimal(d)}
}

func (NullAmount) GormDataType() string {
	return "decimal"
}

func (NullAmount) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	return columnType(db)
}

func columnType(db *gorm.DB) string {
	if db.Dialector.Name() == "sqlite" {
		return "text"
	}
	return "numeric(20,4)"
}
