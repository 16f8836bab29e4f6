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
	"github.com/xxz807/finscale/accounting/internal/platform/money"
	"github.com/xxz807/finscale/accounting/internal/settlement/domain"
	subledger "github.com/xxz807/finscale/accounting/internal/subledger/domain"
)

// PartyLedger is the part of the subledger engine settlement writes through.
type PartyLedger interface {
	LockTx(ctx context.Context, tx *gorm.DB, kind subledger.Kind, key, name string) (*subledger.PartyLedger, error)
	AppendTx(ctx context.Context, tx *gorm.DB, req subledger.AppendRequest) (*subledger.Entry, error)
}

type CreateObligationRequest struct {
	Type          domain.ObligationType
	Amount        decimal.Decimal
	Date          time.Time // posting date of the subledger entry; defaults to today
	DueDate       time.Time
	ReferenceType string
	ReferenceID   string
	ContactKey    string
	ContactName   string
}

// Totals aggregates unsettled amounts per direction.
type Totals struct {
	Receivable      decimal.Decimal `json:"receivable"`
	Payable         decimal.Decimal `json:"payable"`
	ReceivableCount int             `json:"receivable_count"`
	PayableCount    int             `json:"payable_count"`
}

type OutstandingService struct {
	db        *gorm.DB
	repo      domain.Repository
	subledger PartyLedger
	log       *zap.Logger
	now       func() time.Time
}

func NewOutstandingService(db *gorm.DB, repo domain.Repository, parties PartyLedger, log *zap.Logger) *OutstandingService {
	return &OutstandingService{db: db, repo: repo, subledger: parties, log: log, now: time.Now}
}

// CreateObligation records an invoice or order as outstanding and moves the
// party's subledger in the same transaction.
func (s *OutstandingService) CreateObligation(ctx context.Context, req CreateObligationRequest) (*domain.Outstanding, error) {
	dir, ok := req.Type.Direction()
	if !ok {
		return nil, apperr.Invalid("type", "unknown obligation type %q", req.Type)
	}
	if !req.Amount.IsPositive() {
		return nil, apperr.Invalid("amount", "must be positive")
	}
	if req.DueDate.IsZero() {
		return nil, apperr.Invalid("due_date", "is required")
	}
	req.ContactKey = strings.TrimSpace(req.ContactKey)
	if req.ContactKey == "" {
		return nil, apperr.Invalid("contact_key", "is required")
	}
	now := s.now().UTC()
	if req.Date.IsZero() {
		req.Date = now
	}

	o := &domain.Outstanding{
		Type:           req.Type,
		Direction:      dir,
		ContactKey:     req.ContactKey,
		ContactName:    strings.TrimSpace(req.ContactName),
		OriginalAmount: money.New(req.Amount),
		Amount:         money.New(req.Amount),
		DueDate:        ledger.DateOf(req.DueDate),
		Status:         domain.Pending,
		ReferenceType:  strings.TrimSpace(req.ReferenceType),
		ReferenceID:    strings.TrimSpace(req.ReferenceID),
		Version:        1,
		CreatedAt:      now,
	}
	o.DaysOverdue, o.Status = domain.Age(*o, now)

	entry := subledger.AppendRequest{
		Kind:          dir.PartyKind(),
		ContactKey:    o.ContactKey,
		Name:          o.ContactName,
		Date:          req.Date,
		ReferenceType: string(o.Type),
		ReferenceID:   o.ReferenceID,
		Description:   "Outstanding " + string(o.Type),
	}
	if dir == domain.Receivable {
		entry.Debit = o.Amount.Decimal
	} else {
		entry.Credit = o.Amount.Decimal
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if o.ReferenceID != "" {
			dup, err := s.repo.ExistsOutstanding(ctx, tx, o.Type, o.ReferenceType, o.ReferenceID)
			if err != nil {
				return err
			}
			if dup {
				return apperr.Invalid("reference_id", "%s %s/%s already has an obligation", o.Type, o.ReferenceType, o.ReferenceID)
			}
		}
		if _, err := s.subledger.AppendTx(ctx, tx, entry); err != nil {
			return err
		}
		return s.repo.CreateOutstanding(ctx, tx, o)
	})
	if err != nil {
		s.log.Warn("obligation rejected",
			zap.String("type", string(req.Type)),
			zap.String("contact", req.ContactKey),
			zap.Error(err),
		)
		return nil, err
	}

	s.log.Info("obligation created",
		zap.Int64("id", o.ID),
		zap.String("type", string(o.Type)),
		zap.String("contact", o.ContactKey),
		zap.String("amount", o.Amount.String()),
		zap.Time("due_date", o.DueDate),
	)
	return o, nil
}

func (s *OutstandingService) Get(ctx context.Context, id int64) (*domain.Outstanding, error) {
	return s.repo.FindOutstanding(ctx, id)
}

// RecomputeAging refreshes days overdue and status of every open obligation
// as of now. Running it twice for the same day changes nothing the second
// time. Rows modified concurrently are skipped and picked up by the next run.
func (s *OutstandingService) RecomputeAging(ctx context.Context, now time.Time) (int, error) {
	rows, err := s.repo.ListUnsettled(ctx, nil, domain.Filter{})
	if err != nil {
		return 0, err
	}

	changed, skipped := 0, 0
	for i := range rows {
		o := &rows[i]
		days, status := domain.Age(*o, now)
		if days == o.DaysOverdue && status == o.Status {
			continue
		}
		err := s.repo.SaveAging(ctx, s.db, o, days, status)
		if errors.Is(err, apperr.ErrConcurrencyConflict) {
			skipped++
			s.log.Debug("aging skipped modified obligation", zap.Int64("id", o.ID))
			continue
		}
		if err != nil {
			return changed, err
		}
		changed++
	}

	s.log.Info("aging recomputed",
		zap.Time("as_of", ledger.DateOf(now)),
		zap.Int("open", len(rows)),
		zap.Int("changed", changed),
		zap.Int("skipped", skipped),
	)
	return changed, nil
}

func (s *OutstandingService) dueBetween(ctx context.Context, dir domain.Direction, from, to time.Time) ([]domain.Outstanding, error) {
	if dir != "" && !dir.IsValid() {
		return nil, apperr.Invalid("direction", "unknown direction %q", dir)
	}
	from, to = ledger.DateOf(from), ledger.DateOf(to)
	return s.repo.ListUnsettled(ctx, nil, domain.Filter{Direction: dir, DueFrom: &from, DueTo: &to})
}

// DueToday lists open obligations due on now's date. An empty direction
// means both.
func (s *OutstandingService) DueToday(ctx context.Context, dir domain.Direction, now time.Time) ([]domain.Outstanding, error) {
	return s.dueBetween(ctx, dir, now, now)
}

// DueThisWeek covers today and the following six days.
func (s *OutstandingService) DueThisWeek(ctx context.Context, dir domain.Direction, now time.Time) ([]domain.Outstanding, error) {
	return s.dueBetween(ctx, dir, now, now.AddDate(0, 0, 6))
}

// DueThisMonth covers today through the last day of the calendar month.
func (s *OutstandingService) DueThisMonth(ctx context.Context, dir domain.Direction, now time.Time) ([]domain.Outstanding, error) {
	today := ledger.DateOf(now)
	endOfMonth := time.Date(today.Year(), today.Month()+1, 0, 0, 0, 0, 0, time.UTC)
	return s.dueBetween(ctx, dir, today, endOfMonth)
}

// OverdueBeyond lists open obligations more than days past due as of now.
func (s *OutstandingService) OverdueBeyond(ctx context.Context, dir domain.Direction, days int, now time.Time) ([]domain.Outstanding, error) {
	if days < 0 {
		return nil, apperr.Invalid("days", "must not be negative")
	}
	if dir != "" && !dir.IsValid() {
		return nil, apperr.Invalid("direction", "unknown direction %q", dir)
	}
	cutoff := ledger.DateOf(now).AddDate(0, 0, -days-1)
	return s.repo.ListUnsettled(ctx, nil, domain.Filter{Direction: dir, DueTo: &cutoff})
}

func (s *OutstandingService) Totals(ctx context.Context) (Totals, error) {
	t := Totals{Receivable: decimal.Zero, Payable: decimal.Zero}
	rows, err := s.repo.ListUnsettled(ctx, nil, domain.Filter{})
	if err != nil {
		return t, err
	}
	for _, o := range rows {
		switch o.Direction {
		case domain.Receivable:
			t.Receivable = t.Receivable.Add(o.Amount.Decimal)
			t.ReceivableCount++
		case domain.Payable:
			t.Payable = t.Payable.Add(o.Amount.Decimal)
			t.PayableCount++
		}
	}
	return t, nil
}

// OldestUnsettled lists a contact's open obligations of one direction in
// allocation order.
func (s *OutstandingService) OldestUnsettled(ctx context.Context, contact string, dir domain.Direction) ([]domain.Outstanding, error) {
	if !dir.IsValid() {
		return nil, apperr.Invalid("direction", "unknown direction %q", dir)
	}
	rows, err := s.repo.ListUnsettled(ctx, nil, domain.Filter{Direction: dir, ContactKey: strings.TrimSpace(contact)})
	if err != nil {
		return nil, err
	}
	domain.SortOldestFirst(rows)
	return rows, nil
}

func (s *OutstandingService) AgingReport(ctx context.Context, dir domain.Direction, now time.Time) (*domain.AgingReport, error) {
	if !dir.IsValid() {
		return nil, apperr.Invalid("direction", "unknown direction %q", dir)
	}
	rows, err := s.repo.ListUnsettled(ctx, nil, domain.Filter{Direction: dir})
	if err != nil {
		return nil, err
	}
	domain.SortOldestFirst(rows)
	r := domain.BuildAgingReport(dir, rows, now)
	return &r, nil
}
