package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	ledger "github.com/xxz807/finscale/accounting/internal/ledger/domain"
	"github.com/xxz807/finscale/accounting/internal/platform/apperr"
	"github.com/xxz807/finscale/accounting/internal/platform/config"
	"github.com/xxz807/finscale/accounting/internal/platform/idgen"
	"github.com/xxz807/finscale/accounting/internal/platform/keylock"
	"github.com/xxz807/finscale/accounting/internal/platform/money"
	"github.com/xxz807/finscale/accounting/internal/settlement/domain"
	subledger "github.com/xxz807/finscale/accounting/internal/subledger/domain"
)

type RecordPaymentRequest struct {
	Direction   domain.Direction
	ContactKey  string
	ContactName string
	Date        time.Time
	Amount      decimal.Decimal
	Method      string
	Reference   string
}

type IssueCreditNoteRequest struct {
	Direction     domain.Direction
	ContactKey    string
	ContactName   string
	Date          time.Time
	Amount        decimal.Decimal
	Reason        string
	ReferenceType string
	ReferenceID   string
}

// Result describes one allocation run of a single source.
type Result struct {
	Source      domain.Source              `json:"source"`
	Settlements []domain.InvoiceSettlement `json:"settlements"`
	Allocated   decimal.Decimal            `json:"allocated"`
	Remaining   decimal.Decimal            `json:"remaining"`
}

// Allocator applies payments and credit notes to a contact's open
// obligations, oldest first.
//
// Runs for the same contact are serialized three ways: an in-process keyed
// mutex, the subledger party row lock held for the whole transaction, and
// version checks on every obligation and source row it writes. A version
// conflict rolls the run back and it is retried as a whole.
type Allocator struct {
	db        *gorm.DB
	repo      domain.Repository
	subledger PartyLedger
	locks     *keylock.Locker
	ids       *idgen.Generator
	log       *zap.Logger
	now       func() time.Time

	maxRetries int
	backoff    time.Duration
}

func NewAllocator(db *gorm.DB, repo domain.Repository, parties PartyLedger, locks *keylock.Locker,
	ids *idgen.Generator, cfg config.SettlementConfig, log *zap.Logger) *Allocator {
	return &Allocator{
		db:         db,
		repo:       repo,
		subledger:  parties,
		locks:      locks,
		ids:        ids,
		log:        log,
		now:        time.Now,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.RetryBackoff,
	}
}

func validateSource(dir domain.Direction, contact string, date time.Time, amount decimal.Decimal) error {
	if !dir.IsValid() {
		return apperr.Invalid("direction", "unknown direction %q", dir)
	}
	if contact == "" {
		return apperr.Invalid("contact_key", "is required")
	}
	if date.IsZero() {
		return apperr.Invalid("date", "is required")
	}
	if !amount.IsPositive() {
		return apperr.Invalid("amount", "must be positive")
	}
	return nil
}

// RecordPayment stores a payment with its full amount unallocated. The
// party row is created if it does not exist yet.
func (a *Allocator) RecordPayment(ctx context.Context, req RecordPaymentRequest) (*domain.PaymentEntry, error) {
	req.ContactKey = strings.TrimSpace(req.ContactKey)
	if err := validateSource(req.Direction, req.ContactKey, req.Date, req.Amount); err != nil {
		return nil, err
	}
	p := &domain.PaymentEntry{
		Number:           a.ids.Next(idgen.PrefixPayment),
		Direction:        req.Direction,
		ContactKey:       req.ContactKey,
		PaymentDate:      ledger.DateOf(req.Date),
		TotalAmount:      money.New(req.Amount),
		RemainingAmount:  money.New(req.Amount),
		PaymentMethod:    strings.TrimSpace(req.Method),
		PaymentReference: strings.TrimSpace(req.Reference),
		Version:          1,
		CreatedAt:        a.now().UTC(),
	}
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := a.subledger.LockTx(ctx, tx, req.Direction.PartyKind(), p.ContactKey, req.ContactName); err != nil {
			return err
		}
		return a.repo.CreatePayment(ctx, tx, p)
	})
	if err != nil {
		return nil, err
	}
	a.log.Info("payment recorded",
		zap.String("number", p.Number),
		zap.String("direction", string(p.Direction)),
		zap.String("contact", p.ContactKey),
		zap.String("amount", p.TotalAmount.String()),
	)
	return p, nil
}

func (a *Allocator) IssueCreditNote(ctx context.Context, req IssueCreditNoteRequest) (*domain.CreditNote, error) {
	req.ContactKey = strings.TrimSpace(req.ContactKey)
	if err := validateSource(req.Direction, req.ContactKey, req.Date, req.Amount); err != nil {
		return nil, err
	}
	c := &domain.CreditNote{
		Number:          a.ids.Next(idgen.PrefixCreditNote),
		Direction:       req.Direction,
		ContactKey:      req.ContactKey,
		IssueDate:       ledger.DateOf(req.Date),
		TotalAmount:     money.New(req.Amount),
		RemainingAmount: money.New(req.Amount),
		Reason:          strings.TrimSpace(req.Reason),
		ReferenceType:   strings.TrimSpace(req.ReferenceType),
		ReferenceID:     strings.TrimSpace(req.ReferenceID),
		Version:         1,
		CreatedAt:       a.now().UTC(),
	}
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := a.subledger.LockTx(ctx, tx, req.Direction.PartyKind(), c.ContactKey, req.ContactName); err != nil {
			return err
		}
		return a.repo.CreateCreditNote(ctx, tx, c)
	})
	if err != nil {
		return nil, err
	}
	a.log.Info("credit note issued",
		zap.String("number", c.Number),
		zap.String("direction", string(c.Direction)),
		zap.String("contact", c.ContactKey),
		zap.String("amount", c.TotalAmount.String()),
	)
	return c, nil
}

func lockKey(dir domain.Direction, contact string) string {
	return string(dir) + "/" + contact
}

// Allocate applies the unallocated amount of one payment or credit note.
// Whatever cannot be placed stays on the source as standing credit.
func (a *Allocator) Allocate(ctx context.Context, kind domain.SourceKind, id int64) (*Result, error) {
	src, err := a.repo.FindSource(ctx, nil, kind, id)
	if err != nil {
		return nil, err
	}
	unlock := a.locks.Lock(lockKey(src.Direction, src.ContactKey))
	defer unlock()
	return a.allocateLocked(ctx, *src)
}

// allocateLocked runs with the contact's keyed mutex held.
func (a *Allocator) allocateLocked(ctx context.Context, src domain.Source) (*Result, error) {
	kind, id := src.Kind, src.ID
	for attempt := 0; ; attempt++ {
		res, err := a.allocateOnce(ctx, src)
		if err == nil {
			return res, nil
		}
		if !apperr.IsRetryable(err) || attempt >= a.maxRetries {
			a.log.Warn("allocation failed",
				zap.String("source_kind", string(kind)),
				zap.Int64("source_id", id),
				zap.Int("attempts", attempt+1),
				zap.Error(err),
			)
			return nil, err
		}
		a.log.Debug("allocation conflict, retrying",
			zap.String("source_kind", string(kind)),
			zap.Int64("source_id", id),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, errors.Join(err, ctx.Err())
		case <-time.After(a.backoff * time.Duration(attempt+1)):
		}
	}
}

// allocateOnce is one all-or-nothing transaction. Lock order: party row,
// source row, obligation rows.
func (a *Allocator) allocateOnce(ctx context.Context, ref domain.Source) (*Result, error) {
	var res *Result
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		partyKind := ref.Direction.PartyKind()
		if _, err := a.subledger.LockTx(ctx, tx, partyKind, ref.ContactKey, ""); err != nil {
			return err
		}
		src, err := a.repo.LockSource(ctx, tx, ref.Kind, ref.ID)
		if err != nil {
			return err
		}

		res = &Result{Allocated: decimal.Zero, Remaining: src.Remaining}
		if !src.Remaining.IsPositive() {
			res.Source = *src
			return nil
		}

		open, err := a.repo.OldestUnsettled(ctx, tx, src.ContactKey, src.Direction)
		if err != nil {
			return err
		}
		plan := domain.PlanAllocation(open, src.Remaining)
		if len(plan.Allocations) == 0 {
			res.Source = *src
			return nil
		}

		now := a.now().UTC()
		byID := make(map[int64]domain.Outstanding, len(open))
		for _, o := range open {
			byID[o.ID] = o
		}
		for _, step := range plan.Allocations {
			o := byID[step.OutstandingID]
			rec := &domain.InvoiceSettlement{
				OutstandingID:  step.OutstandingID,
				SourceKind:     src.Kind,
				SourceID:       src.ID,
				Amount:         money.New(step.Amount),
				SettlementDate: now,
				ContactKey:     src.ContactKey,
			}
			if err := a.repo.CreateSettlement(ctx, tx, rec); err != nil {
				return err
			}
			if err := a.repo.ApplyAllocation(ctx, tx, step, now); err != nil {
				return err
			}

			entry := subledger.AppendRequest{
				Kind:             partyKind,
				ContactKey:       src.ContactKey,
				Date:             now,
				ReferenceType:    string(src.Kind),
				ReferenceID:      src.Number,
				PaymentMethod:    src.Method,
				PaymentReference: src.Reference,
				Description:      "Settles " + string(o.Type) + " " + o.ReferenceID,
			}
			if src.Direction == domain.Receivable {
				entry.Credit = step.Amount
			} else {
				entry.Debit = step.Amount
			}
			if _, err := a.subledger.AppendTx(ctx, tx, entry); err != nil {
				return err
			}
			res.Settlements = append(res.Settlements, *rec)
		}

		if err := a.repo.SaveRemaining(ctx, tx, src, plan.Unallocated); err != nil {
			return err
		}
		res.Source = *src
		res.Allocated = plan.Allocated
		res.Remaining = plan.Unallocated
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(res.Settlements) > 0 {
		a.log.Info("source allocated",
			zap.String("source", res.Source.Number),
			zap.String("contact", res.Source.ContactKey),
			zap.Int("settlements", len(res.Settlements)),
			zap.String("allocated", res.Allocated.String()),
			zap.String("remaining", res.Remaining.String()),
		)
	}
	return res, nil
}

// AllocatePending applies a contact's standing credit, oldest source first,
// until the sources or the obligations run out.
func (a *Allocator) AllocatePending(ctx context.Context, contact string, dir domain.Direction) ([]Result, error) {
	contact = strings.TrimSpace(contact)
	if !dir.IsValid() {
		return nil, apperr.Invalid("direction", "unknown direction %q", dir)
	}
	if contact == "" {
		return nil, apperr.Invalid("contact_key", "is required")
	}
	unlock := a.locks.Lock(lockKey(dir, contact))
	defer unlock()

	sources, err := a.repo.PendingSources(ctx, nil, contact, dir)
	if err != nil {
		return nil, err
	}
	var results []Result
	for _, src := range sources {
		res, err := a.allocateLocked(ctx, src)
		if err != nil {
			return results, err
		}
		if len(res.Settlements) == 0 {
			// nothing left to settle
			break
		}
		results = append(results, *res)
	}
	return results, nil
}

// Settlements is the audit trail of one obligation.
func (a *Allocator) Settlements(ctx context.Context, outstandingID int64) ([]domain.InvoiceSettlement, error) {
	if _, err := a.repo.FindOutstanding(ctx, outstandingID); err != nil {
		return nil, err
	}
	return a.repo.SettlementsFor(ctx, outstandingID)
}

func (a *Allocator) SourceSettlements(ctx context.Context, kind domain.SourceKind, id int64) ([]domain.InvoiceSettlement, error) {
	if _, err := a.repo.FindSource(ctx, nil, kind, id); err != nil {
		return nil, err
	}
	return a.repo.SettlementsBySource(ctx, kind, id)
}

func (a *Allocator) Source(ctx context.Context, kind domain.SourceKind, id int64) (*domain.Source, error) {
	return a.repo.FindSource(ctx, nil, kind, id)
}
