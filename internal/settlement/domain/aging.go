package domain

import (
	"time"

	"github.com/shopspring/decimal"

	ledger "github.com/xxz807/finscale/accounting/internal/ledger/domain"
)

// DaysOverdue counts whole calendar days from due to now, never negative.
func DaysOverdue(due, now time.Time) int {
	days := int(ledger.DateOf(now).Sub(ledger.DateOf(due)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// Age returns the aging state of o as of now. Settled rows keep their state.
func Age(o Outstanding, now time.Time) (days int, status Status) {
	if o.IsSettled() {
		return o.DaysOverdue, o.Status
	}
	days = DaysOverdue(o.DueDate, now)
	status = o.Status
	if days > 0 && (status == Pending || status == PartiallyPaid) {
		status = Overdue
	}
	return days, status
}

type Bucket string

const (
	BucketCurrent Bucket = "CURRENT"
	Bucket1To30   Bucket = "1-30"
	Bucket31To60  Bucket = "31-60"
	Bucket61To90  Bucket = "61-90"
	BucketOver90  Bucket = "90+"
)

// Buckets in report order.
var Buckets = []Bucket{BucketCurrent, Bucket1To30, Bucket31To60, Bucket61To90, BucketOver90}

func BucketOf(days int) Bucket {
	switch {
	case days <= 0:
		return BucketCurrent
	case days <= 30:
		return Bucket1To30
	case days <= 60:
		return Bucket31To60
	case days <= 90:
		return Bucket61To90
	default:
		return BucketOver90
	}
}

type AgingRow struct {
	ContactKey  string                     `json:"contact_key"`
	ContactName string                     `json:"contact_name"`
	Buckets     map[Bucket]decimal.Decimal `json:"buckets"`
	Total       decimal.Decimal            `json:"total"`
}

// AgingReport groups unsettled amounts per contact and bucket.
type AgingReport struct {
	Direction Direction                  `json:"direction"`
	AsOf      time.Time                  `json:"as_of"`
	Rows      []AgingRow                 `json:"rows"`
	Totals    map[Bucket]decimal.Decimal `json:"totals"`
	Total     decimal.Decimal            `json:"total"`
}

func emptyBuckets() map[Bucket]decimal.Decimal {
	m := make(map[Bucket]decimal.Decimal, len(Buckets))
	for _, b := range Buckets {
		m[b] = decimal.Zero
	}
	return m
}

// BuildAgingReport buckets obligations by days overdue as of now. Rows keep
// the order in which contacts first appear.
func BuildAgingReport(dir Direction, obligations []Outstanding, now time.Time) AgingReport {
	r := AgingReport{Direction: dir, AsOf: ledger.DateOf(now), Totals: emptyBuckets(), Total: decimal.Zero}
	index := make(map[string]int)
	for _, o := range obligations {
		if o.IsSettled() || o.Direction != dir {
			continue
		}
		i, ok := index[o.ContactKey]
		if !ok {
			i = len(r.Rows)
			index[o.ContactKey] = i
			r.Rows = append(r.Rows, AgingRow{
				ContactKey:  o.ContactKey,
				ContactName: o.ContactName,
				Buckets:     emptyBuckets(),
				Total:       decimal.Zero,
			})
		}
		b := BucketOf(DaysOverdue(o.DueDate, now))
		row := &r.Rows[i]
		row.Buckets[b] = row.Buckets[b].Add(o.Amount.Decimal)
		row.Total = row.Total.Add(o.Amount.Decimal)
		r.Totals[b] = r.Totals[b].Add(o.Amount.Decimal)
		r.Total = r.Total.Add(o.Amount.Decimal)
	}
	return r
}
