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
	"github.com/xxz807/finscale/accounting/internal/platform/database"
	"github.com/xxz807/finscale/accounting/internal/platform/money"
	"github.com/xxz807/finscale/accounting/internal/subledger/domain"
)

// Service is the customer/supplier subledger. Balances are caches; Verify
// recomputes them from entries and reports, never repairs.
type Service struct {
	db   *gorm.DB
	repo domain.Repository
	log  *zap.Logger
}

func NewService(db *gorm.DB, repo domain.Repository, log *zap.Logger) *Service {
	return &Service{db: db, repo: repo, log: log}
}

// Append records one entry in its own transaction.
func (s *Service) Append(ctx context.Context, req domain.AppendRequest) (*domain.Entry, error) {
	var entry *domain.Entry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = s.AppendTx(ctx, tx, req)
		return err
	})
	return entry, err
}

// AppendTx records one entry inside the caller's transaction: ensure the
// party row, lock it, append, move the cached balance.
func (s *Service) AppendTx(ctx context.Context, tx *gorm.DB, req domain.AppendRequest) (*domain.Entry, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	party, err := s.LockTx(ctx, tx, req.Kind, req.ContactKey, req.Name)
	if err != nil {
		return nil, err
	}

	balance := party.CurrentBalance.Add(req.Kind.SignedDelta(req.Debit, req.Credit))
	entry := &domain.Entry{
		LedgerID:         party.ID,
		EntryDate:        ledger.DateOf(req.Date),
		Debit:            money.New(req.Debit),
		Credit:           money.New(req.Credit),
		RunningBalance:   money.New(balance),
		ReferenceType:    req.ReferenceType,
		ReferenceID:      req.ReferenceID,
		PaymentMethod:    req.PaymentMethod,
		PaymentReference: req.PaymentReference,
		Description:      req.Description,
	}
	if err := s.repo.AppendEntry(ctx, tx, entry); err != nil {
		return nil, err
	}
	if err := s.repo.SaveBalance(ctx, tx, party, balance); err != nil {
		return nil, err
	}

	s.log.Debug("subledger entry appended",
		zap.String("kind", string(req.Kind)),
		zap.String("contact", req.ContactKey),
		zap.String("reference", req.ReferenceType+":"+req.ReferenceID),
		zap.String("balance", balance.String()),
	)
	return entry, nil
}

// LockTx creates the party if needed and holds its row lock for the rest of tx.
// This lock is the per-contact critical section shared with settlement.
func (s *Service) LockTx(ctx context.Context, tx *gorm.DB, kind domain.Kind, key, name string) (*domain.PartyLedger, error) {
	key = strings.TrimSpace(key)
	if !kind.IsValid() {
		return nil, apperr.Invalid("kind", "unknown ledger kind %q", kind)
	}
	if key == "" {
		return nil, apperr.Invalid("contact_key", "is required")
	}
	if err := s.repo.EnsureParty(ctx, tx, kind, key, name); err != nil {
		return nil, err
	}
	return s.repo.LockParty(ctx, tx, kind, key)
}

// Register creates a party without entries. Existing parties are returned as is.
func (s *Service) Register(ctx context.Context, kind domain.Kind, key, name string) (*domain.PartyLedger, error) {
	var party *domain.PartyLedger
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		party, err = s.LockTx(ctx, tx, kind, key, name)
		return err
	})
	return party, err
}

func (s *Service) Party(ctx context.Context, kind domain.Kind, key string) (*domain.PartyLedger, error) {
	return s.repo.FindParty(ctx, nil, kind, key)
}

// Balance returns the cached balance of a party.
func (s *Service) Balance(ctx context.Context, kind domain.Kind, key string) (decimal.Decimal, error) {
	p, err := s.repo.FindParty(ctx, nil, kind, key)
	if err != nil {
		return decimal.Zero, err
	}
	return p.CurrentBalance.Decimal, nil
}

func (s *Service) Search(ctx context.Context, kind domain.Kind, query string, limit int) ([]domain.PartyLedger, error) {
	if !kind.IsValid() {
		return nil, apperr.Invalid("kind", "unknown ledger kind %q", kind)
	}
	if limit <= 0 {
		limit = 50
	}
	return s.repo.Search(ctx, kind, query, limit)
}

// WithOutstanding lists active parties with a positive balance.
func (s *Service) WithOutstanding(ctx context.Context, kind domain.Kind) ([]domain.PartyLedger, error) {
	parties, err := s.repo.ListParties(ctx, nil, kind, domain.Active)
	if err != nil {
		return nil, err
	}
	out := make([]domain.PartyLedger, 0, len(parties))
	for _, p := range parties {
		if p.CurrentBalance.IsPositive() {
			out = append(out, p)
		}
	}
	return out, nil
}

// TotalOutstanding sums positive balances of active parties. Advances
// (negative balances) do not offset other parties' debts.
func (s *Service) TotalOutstanding(ctx context.Context, kind domain.Kind) (decimal.Decimal, error) {
	parties, err := s.WithOutstanding(ctx, kind)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, p := range parties {
		total = total.Add(p.CurrentBalance.Decimal)
	}
	return total, nil
}

func (s *Service) OverCreditLimit(ctx context.Context, kind domain.Kind) ([]domain.PartyLedger, error) {
	parties, err := s.repo.ListParties(ctx, nil, kind, domain.Active)
	if err != nil {
		return nil, err
	}
	var out []domain.PartyLedger
	for _, p := range parties {
		if p.OverLimit() {
			out = append(out, p)
		}
	}
	return out, nil
}

// SetCreditLimit sets or, with nil, clears the limit.
func (s *Service) SetCreditLimit(ctx context.Context, kind domain.Kind, key string, limit *decimal.Decimal) (*domain.PartyLedger, error) {
	if limit != nil && limit.IsNegative() {
		return nil, apperr.Invalid("credit_limit", "must not be negative")
	}
	return s.update(ctx, kind, key, func(p *domain.PartyLedger) {
		if limit == nil {
			p.CreditLimit = money.NullAmount{}
			return
		}
		p.CreditLimit = money.NewNull(*limit)
	})
}

func (s *Service) SetStatus(ctx context.Context, kind domain.Kind, key string, status domain.Status) (*domain.PartyLedger, error) {
	if !status.IsValid() {
		return nil, apperr.Invalid("status", "unknown status %q", status)
	}
	return s.update(ctx, kind, key, func(p *domain.PartyLedger) { p.Status = status })
}

func (s *Service) update(ctx context.Context, kind domain.Kind, key string, mutate func(*domain.PartyLedger)) (*domain.PartyLedger, error) {
	var party *domain.PartyLedger
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.repo.LockParty(ctx, tx, kind, key)
		if err != nil {
			return err
		}
		mutate(p)
		if err := s.repo.UpdateSettings(ctx, tx, p); err != nil {
			return err
		}
		party = p
		return nil
	})
	return party, err
}

// Statement lists a party's entries in [start, end] with running balances in
// entry-date order.
func (s *Service) Statement(ctx context.Context, kind domain.Kind, key string, start, end time.Time) (*domain.Statement, error) {
	w, err := ledger.NewWindow(start, end)
	if err != nil {
		return nil, err
	}
	var st domain.Statement
	err = database.Snapshot(ctx, s.db, func(tx *gorm.DB) error {
		p, err := s.repo.FindParty(ctx, tx, kind, key)
		if err != nil {
			return err
		}
		entries, err := s.repo.Entries(ctx, tx, p.ID)
		if err != nil {
			return err
		}
		st = domain.BuildStatement(*p, entries, w.Start, w.End)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// Verify recomputes one party's balance from its entries.
func (s *Service) Verify(ctx context.Context, kind domain.Kind, key string) (*domain.Reconciliation, error) {
	var rec domain.Reconciliation
	err := database.Snapshot(ctx, s.db, func(tx *gorm.DB) error {
		p, err := s.repo.FindParty(ctx, tx, kind, key)
		if err != nil {
			return err
		}
		entries, err := s.repo.Entries(ctx, tx, p.ID)
		if err != nil {
			return err
		}
		rec = domain.Reconcile(*p, entries)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rec, s.violation(rec)
}

// VerifyAll reconciles every party of a kind. All mismatches are joined into
// the returned error.
func (s *Service) VerifyAll(ctx context.Context, kind domain.Kind) ([]domain.Reconciliation, error) {
	var recs []domain.Reconciliation
	err := database.Snapshot(ctx, s.db, func(tx *gorm.DB) error {
		parties, err := s.repo.ListParties(ctx, tx, kind, "")
		if err != nil {
			return err
		}
		ids := make([]int64, len(parties))
		for i, p := range parties {
			ids[i] = p.ID
		}
		entries, err := s.repo.EntriesFor(ctx, tx, ids)
		if err != nil {
			return err
		}
		for _, p := range parties {
			recs = append(recs, domain.Reconcile(p, entries[p.ID]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var errs []error
	for _, rec := range recs {
		if err := s.violation(rec); err != nil {
			errs = append(errs, err)
		}
	}
	return recs, errors.Join(errs...)
}

func (s *Service) violation(rec domain.Reconciliation) error {
	if rec.OK() {
		return nil
	}
	s.log.Error("subledger balance does not match entries",
		zap.String("kind", string(rec.Kind)),
		zap.String("contact", rec.ContactKey),
		zap.String("stored", rec.Stored.String()),
		zap.String("computed", rec.Computed.String()),
	)
	return &apperr.IntegrityViolationError{
		Check:    "subledger:" + string(rec.Kind) + ":" + rec.ContactKey,
		Expected: rec.Computed,
		Actual:   rec.Stored,
	}
}
