package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/xxz807/finscale/accounting/internal/ledger/domain"
	"github.com/xxz807/finscale/accounting/internal/platform/apperr"
)

type VoucherRepo struct {
	db *gorm.DB
}

func NewVoucherRepo(db *gorm.DB) *VoucherRepo {
	return &VoucherRepo{db: db}
}

// Create inserts the voucher; gorm inserts the Entries association with it.
// Must run on the caller's transaction.
func (r *VoucherRepo) Create(ctx context.Context, tx *gorm.DB, v *domain.Voucher) error {
	return tx.WithContext(ctx).Create(v).Error
}

func (r *VoucherRepo) ExistsByReference(ctx context.Context, tx *gorm.DB, typ domain.VoucherType, refType, refID string) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).Model(&domain.Voucher{}).
		Where("type = ? AND reference_type = ? AND reference_id = ?", typ, refType, refID).
		Count(&count).Error
	return count > 0, err
}

func (r *VoucherRepo) ExistsReversalOf(ctx context.Context, tx *gorm.DB, voucherID int64) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).Model(&domain.Voucher{}).
		Where("reverses_voucher_id = ?", voucherID).
		Count(&count).Error
	return count > 0, err
}

func (r *VoucherRepo) FindByID(ctx context.Context, id int64) (*domain.Voucher, error) {
	var v domain.Voucher
	err := r.db.WithContext(ctx).
		Preload("Entries", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&v, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("voucher", id)
		}
		return nil, err
	}
	return &v, nil
}

func (r *VoucherRepo) ListByDateRange(ctx context.Context, start, end time.Time) ([]domain.Voucher, error) {
	var vouchers []domain.Voucher
	err := r.db.WithContext(ctx).
		Preload("Entries", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("voucher_date >= ? AND voucher_date <= ?", start, end).
		Order("voucher_date, posted_at, id").
		Find(&vouchers).Error
	return vouchers, err
}

// EntryLines reads entries and headers in one statement, so a voucher is
// seen with all of its entries or none.
func (r *VoucherRepo) EntryLines(ctx context.Context, db *gorm.DB, start, end time.Time) ([]domain.EntryLine, error) {
	if db == nil {
		db = r.db
	}
	var lines []domain.EntryLine
	err := db.WithContext(ctx).
		Table("ledger_voucher_entries AS e").
		Select(`e.id AS entry_id, e.voucher_id, v.number AS voucher_number,
			v.voucher_date, v.posted_at, v.type AS voucher_type, v.narration,
			v.reference_type, v.reference_id, e.account_id, e.debit, e.credit, e.description`).
		Joins("JOIN ledger_vouchers AS v ON v.id = e.voucher_id").
		Where("v.voucher_date >= ? AND v.voucher_date <= ?", start, end).
		Order("v.voucher_date, v.posted_at, v.id, e.id").
		Scan(&lines).Error
	return lines, err
}
