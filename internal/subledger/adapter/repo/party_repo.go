package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xxz807/finscale/accounting/internal/platform/apperr"
	"github.com/xxz807/finscale/accounting/internal/platform/money"
	"github.com/xxz807/finscale/accounting/internal/subledger/domain"
)

type PartyRepo struct {
	db *gorm.DB
}

func NewPartyRepo(db *gorm.DB) *PartyRepo {
	return &PartyRepo{db: db}
}

func (r *PartyRepo) conn(db *gorm.DB) *gorm.DB {
	if db != nil {
		return db
	}
	return r.db
}

// EnsureParty: INSERT ... ON CONFLICT (kind, contact_key) DO NOTHING
func (r *PartyRepo) EnsureParty(ctx context.Context, tx *gorm.DB, kind domain.Kind, key, name string) error {
	p := domain.PartyLedger{
		Kind:       kind,
		ContactKey: key,
		Name:       name,
		Status:     domain.Active,
		Version:    1,
	}
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "kind"}, {Name: "contact_key"}},
			DoNothing: true,
		}).
		Create(&p).Error
}

// LockParty: SELECT ... FOR UPDATE. sqlite has no row locks; there the
// single-writer transaction gives the same exclusion.
func (r *PartyRepo) LockParty(ctx context.Context, tx *gorm.DB, kind domain.Kind, key string) (*domain.PartyLedger, error) {
	var p domain.PartyLedger
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("kind = ? AND contact_key = ?", kind, key).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperr.UnknownContactError{Contact: key}
		}
		return nil, err
	}
	return &p, nil
}

func (r *PartyRepo) FindParty(ctx context.Context, db *gorm.DB, kind domain.Kind, key string) (*domain.PartyLedger, error) {
	var p domain.PartyLedger
	err := r.conn(db).WithContext(ctx).
		Where("kind = ? AND contact_key = ?", kind, key).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperr.UnknownContactError{Contact: key}
		}
		return nil, err
	}
	return &p, nil
}

// SaveBalance stores the balance computed in Go rather than balance + delta
// in SQL, so decimal columns never round through floating point.
func (r *PartyRepo) SaveBalance(ctx context.Context, tx *gorm.DB, p *domain.PartyLedger, balance decimal.Decimal) error {
	now := time.Now().UTC()
	result := tx.WithContext(ctx).Model(&domain.PartyLedger{}).
		Where("id = ? AND version = ?", p.ID, p.Version).
		Updates(map[string]any{
			"current_balance": balance,
			"version":         gorm.Expr("version + 1"),
			"updated_at":      now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return &apperr.ConcurrencyConflictError{Entity: "party_ledger", ID: p.ID}
	}
	p.CurrentBalance = money.New(balance)
	p.Version++
	p.UpdatedAt = now
	return nil
}

func (r *PartyRepo) UpdateSettings(ctx context.Context, tx *gorm.DB, p *domain.PartyLedger) error {
	now := time.Now().UTC()
	result := tx.WithContext(ctx).Model(&domain.PartyLedger{}).
		Where("id = ? AND version = ?", p.ID, p.Version).
		Updates(map[string]any{
			"name":         p.Name,
			"status":       p.Status,
			"credit_limit": p.CreditLimit,
			"version":      gorm.Expr("version + 1"),
			"updated_at":   now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return &apperr.ConcurrencyConflictError{Entity: "party_ledger", ID: p.ID}
	}
	p.Version++
	p.UpdatedAt = now
	return nil
}

func (r *PartyRepo) AppendEntry(ctx context.Context, tx *gorm.DB, e *domain.Entry) error {
	return tx.WithContext(ctx).Create(e).Error
}

func (r *PartyRepo) Entries(ctx context.Context, db *gorm.DB, ledgerID int64) ([]domain.Entry, error) {
	var entries []domain.Entry
	err := r.conn(db).WithContext(ctx).
		Where("ledger_id = ?", ledgerID).
		Order("entry_date, id").
		Find(&entries).Error
	return entries, err
}

func (r *PartyRepo) EntriesFor(ctx context.Context, db *gorm.DB, ledgerIDs []int64) (map[int64][]domain.Entry, error) {
	out := make(map[int64][]domain.Entry, len(ledgerIDs))
	if len(ledgerIDs) == 0 {
		return out, nil
	}
	var entries []domain.Entry
	err := r.conn(db).WithContext(ctx).
		Where("ledger_id IN ?", ledgerIDs).
		Order("ledger_id, entry_date, id").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		out[e.LedgerID] = append(out[e.LedgerID], e)
	}
	return out, nil
}

// Search matches name or contact key, case-insensitively.
func (r *PartyRepo) Search(ctx context.Context, kind domain.Kind, query string, limit int) ([]domain.PartyLedger, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	q := r.db.WithContext(ctx).
		Where("kind = ?", kind).
		Where("LOWER(name) LIKE ? OR LOWER(contact_key) LIKE ?", pattern, pattern).
		Order("name, contact_key")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var parties []domain.PartyLedger
	err := q.Find(&parties).Error
	return parties, err
}

// ListParties lists parties of a kind; an empty status means any.
func (r *PartyRepo) ListParties(ctx context.Context, db *gorm.DB, kind domain.Kind, status domain.Status) ([]domain.PartyLedger, error) {
	q := r.conn(db).WithContext(ctx).Where("kind = ?", kind)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var parties []domain.PartyLedger
	err := q.Order("contact_key").Find(&parties).Error
	return parties, err
}
