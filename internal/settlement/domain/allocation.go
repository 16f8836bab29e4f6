package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Allocation is one planned step: take Amount off an obligation.
type Allocation struct {
	OutstandingID int64
	Amount        decimal.Decimal
	Remaining     decimal.Decimal // obligation amount after the step
	Status        Status
	Version       int64 // version the obligation was read at
}

type Plan struct {
	Allocations []Allocation
	Allocated   decimal.Decimal
	Unallocated decimal.Decimal
}

// SortOldestFirst orders obligations by creation time, then id.
func SortOldestFirst(obligations []Outstanding) {
	sort.SliceStable(obligations, func(i, j int) bool {
		a, b := obligations[i], obligations[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// PlanAllocation applies available oldest-first until either side runs out.
// The input slice is not modified.
func PlanAllocation(obligations []Outstanding, available decimal.Decimal) Plan {
	ordered := make([]Outstanding, len(obligations))
	copy(ordered, obligations)
	SortOldestFirst(ordered)

	plan := Plan{Allocated: decimal.Zero, Unallocated: available}
	for _, o := range ordered {
		if !plan.Unallocated.IsPositive() {
			break
		}
		if o.IsSettled() || !o.Amount.IsPositive() {
			continue
		}
		take := decimal.Min(o.Amount.Decimal, plan.Unallocated)
		rest := o.Amount.Sub(take)
		status := PartiallyPaid
		if rest.IsZero() {
			status = Settled
		}
		plan.Allocations = append(plan.Allocations, Allocation{
			OutstandingID: o.ID,
			Amount:        take,
			Remaining:     rest,
			Status:        status,
			Version:       o.Version,
		})
		plan.Allocated = plan.Allocated.Add(take)
		plan.Unallocated = plan.Unallocated.Sub(take)
	}
	return plan
}
