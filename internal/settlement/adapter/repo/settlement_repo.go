package repo

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xxz807/finscale/accounting/internal/platform/apperr"
	"github.com/xxz807/finscale/accounting/internal/settlement/domain"
)

type SettlementRepo struct {
	db *gorm.DB
}

func NewSettlementRepo(db *gorm.DB) *SettlementRepo {
	return &SettlementRepo{db: db}
}

func (r *SettlementRepo) conn(db *gorm.DB) *gorm.DB {
	if db != nil {
		return db
	}
	return r.db
}

func (r *SettlementRepo) CreateOutstanding(ctx context.Context, tx *gorm.DB, o *domain.Outstanding) error {
	return tx.WithContext(ctx).Create(o).Error
}

func (r *SettlementRepo) ExistsOutstanding(ctx context.Context, tx *gorm.DB, typ domain.ObligationType, refType, refID string) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).Model(&domain.Outstanding{}).
		Where("type = ? AND reference_type = ? AND reference_id = ?", typ, refType, refID).
		Count(&count).Error
	return count > 0, err
}

func (r *SettlementRepo) FindOutstanding(ctx context.Context, id int64) (*domain.Outstanding, error) {
	var o domain.Outstanding
	if err := r.db.WithContext(ctx).First(&o, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("outstanding", id)
		}
		return nil, err
	}
	return &o, nil
}

func (r *SettlementRepo) ListUnsettled(ctx context.Context, db *gorm.DB, f domain.Filter) ([]domain.Outstanding, error) {
	q := r.conn(db).WithContext(ctx).Where("status <> ?", domain.Settled)
	if f.Direction != "" {
		q = q.Where("direction = ?", f.Direction)
	}
	if f.ContactKey != "" {
		q = q.Where("contact_key = ?", f.ContactKey)
	}
	if f.DueFrom != nil {
		q = q.Where("due_date >= ?", *f.DueFrom)
	}
	if f.DueTo != nil {
		q = q.Where("due_date <= ?", *f.DueTo)
	}
	var rows []domain.Outstanding
	err := q.Order("due_date, created_at, id").Find(&rows).Error
	return rows, err
}

// OldestUnsettled: SELECT ... FOR UPDATE ORDER BY created_at, id
func (r *SettlementRepo) OldestUnsettled(ctx context.Context, tx *gorm.DB, contact string, dir domain.Direction) ([]domain.Outstanding, error) {
	var rows []domain.Outstanding
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("contact_key = ? AND direction = ? AND status <> ?", contact, dir, domain.Settled).
		Order("created_at, id").
		Find(&rows).Error
	return rows, err
}

func (r *SettlementRepo) ApplyAllocation(ctx context.Context, tx *gorm.DB, a domain.Allocation, at time.Time) error {
	updates := map[string]any{
		"amount":     a.Remaining,
		"status":     a.Status,
		"version":    gorm.Expr("version + 1"),
		"updated_at": at,
	}
	if a.Status == domain.Settled {
		updates["settled_at"] = at
	}
	result := tx.WithContext(ctx).Model(&domain.Outstanding{}).
		Where("id = ? AND version = ?", a.OutstandingID, a.Version).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return &apperr.ConcurrencyConflictError{Entity: "outstanding", ID: a.OutstandingID}
	}
	return nil
}

func (r *SettlementRepo) SaveAging(ctx context.Context, tx *gorm.DB, o *domain.Outstanding, days int, status domain.Status) error {
	now := time.Now().UTC()
	result := tx.WithContext(ctx).Model(&domain.Outstanding{}).
		Where("id = ? AND version = ?", o.ID, o.Version).
		Updates(map[string]any{
			"days_overdue": days,
			"status":       status,
			"version":      gorm.Expr("version + 1"),
			"updated_at":   now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return &apperr.ConcurrencyConflictError{Entity: "outstanding", ID: o.ID}
	}
	o.DaysOverdue = days
	o.Status = status
	o.Version++
	o.UpdatedAt = now
	return nil
}

func (r *SettlementRepo) CreatePayment(ctx context.Context, tx *gorm.DB, p *domain.PaymentEntry) error {
	return tx.WithContext(ctx).Create(p).Error
}

func (r *SettlementRepo) CreateCreditNote(ctx context.Context, tx *gorm.DB, c *domain.CreditNote) error {
	return tx.WithContext(ctx).Create(c).Error
}

func (r *SettlementRepo) FindSource(ctx context.Context, db *gorm.DB, kind domain.SourceKind, id int64) (*domain.Source, error) {
	return r.loadSource(r.conn(db).WithContext(ctx), kind, id)
}

// LockSource: SELECT ... FOR UPDATE on the payment or credit note row.
func (r *SettlementRepo) LockSource(ctx context.Context, tx *gorm.DB, kind domain.SourceKind, id int64) (*domain.Source, error) {
	return r.loadSource(tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), kind, id)
}

func (r *SettlementRepo) loadSource(q *gorm.DB, kind domain.SourceKind, id int64) (*domain.Source, error) {
	var src domain.Source
	var err error
	switch kind {
	case domain.SourcePayment:
		var p domain.PaymentEntry
		if err = q.First(&p, id).Error; err == nil {
			src = p.Source()
		}
	case domain.SourceCreditNote:
		var c domain.CreditNote
		if err = q.First(&c, id).Error; err == nil {
			src = c.Source()
		}
	default:
		return nil, apperr.Invalid("source_kind", "unknown source kind %q", kind)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(string(kind), id)
		}
		return nil, err
	}
	return &src, nil
}

func (r *SettlementRepo) SaveRemaining(ctx context.Context, tx *gorm.DB, src *domain.Source, remaining decimal.Decimal) error {
	var model any
	switch src.Kind {
	case domain.SourcePayment:
		model = &domain.PaymentEntry{}
	case domain.SourceCreditNote:
		model = &domain.CreditNote{}
	default:
		return apperr.Invalid("source_kind", "unknown source kind %q", src.Kind)
	}
	result := tx.WithContext(ctx).Model(model).
		Where("id = ? AND version = ?", src.ID, src.Version).
		Updates(map[string]any{
			"remaining_amount": remaining,
			"version":          gorm.Expr("version + 1"),
			"updated_at":       time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return &apperr.ConcurrencyConflictError{Entity: string(src.Kind), ID: src.ID}
	}
	src.Remaining = remaining
	src.Version++
	return nil
}

// PendingSources lists sources with something left to allocate. The
// remaining amount is compared in Go: on sqlite the column is TEXT.
func (r *SettlementRepo) PendingSources(ctx context.Context, db *gorm.DB, contact string, dir domain.Direction) ([]domain.Source, error) {
	q := r.conn(db).WithContext(ctx)

	var payments []domain.PaymentEntry
	err := q.Where("contact_key = ? AND direction = ?", contact, dir).
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	var notes []domain.CreditNote
	err = q.Where("contact_key = ? AND direction = ?", contact, dir).
		Find(&notes).Error
	if err != nil {
		return nil, err
	}

	sources := make([]domain.Source, 0, len(payments)+len(notes))
	for i := range payments {
		if payments[i].RemainingAmount.IsPositive() {
			sources = append(sources, payments[i].Source())
		}
	}
	for i := range notes {
		if notes[i].RemainingAmount.IsPositive() {
			sources = append(sources, notes[i].Source())
		}
	}
	sort.SliceStable(sources, func(i, j int) bool {
		a, b := sources[i], sources[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if a.Kind != b.Kind {
			return a.Kind == domain.SourceCreditNote
		}
		return a.ID < b.ID
	})
	return sources, nil
}

func (r *SettlementRepo) CreateSettlement(ctx context.Context, tx *gorm.DB, s *domain.InvoiceSettlement) error {
	return tx.WithContext(ctx).Create(s).Error
}

func (r *SettlementRepo) SettlementsFor(ctx context.Context, outstandingID int64) ([]domain.InvoiceSettlement, error) {
	var rows []domain.InvoiceSettlement
	err := r.db.WithContext(ctx).
		Where("outstanding_id = ?", outstandingID).
		Order("id").
		Find(&rows).Error
	return rows, err
}

func (r *SettlementRepo) SettlementsBySource(ctx context.Context, kind domain.SourceKind, id int64) ([]domain.InvoiceSettlement, error) {
	var rows []domain.InvoiceSettlement
	err := r.db.WithContext(ctx).
		Where("source_kind = ? AND source_id = ?", kind, id).
		Order("id").
		Find(&rows).Error
	return rows, err
}
