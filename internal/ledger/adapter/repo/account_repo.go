package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/xxz807/finscale/accounting/internal/ledger/domain"
	"github.com/xxz807/finscale/accounting/internal/platform/apperr"
)

type AccountRepo struct {
	db *gorm.DB
}

func NewAccountRepo(db *gorm.DB) *AccountRepo {
	return &AccountRepo{db: db}
}

func (r *AccountRepo) Create(ctx context.Context, tx *gorm.DB, a *domain.Account) error {
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.Invalid("code", "account code %s already exists", a.AccountCode)
		}
		return err
	}
	return nil
}

// Update applies an optimistic-lock update:
// UPDATE ledger_accounts SET ..., version = version + 1 WHERE id = ? AND version = ?
func (r *AccountRepo) Update(ctx context.Context, tx *gorm.DB, a *domain.Account) error {
	now := time.Now().UTC()
	result := tx.WithContext(ctx).Model(&domain.Account{}).
		Where("id = ? AND version = ?", a.ID, a.Version).
		Updates(map[string]any{
			"name":        a.Name,
			"parent_id":   a.ParentID,
			"description": a.Description,
			"is_active":   a.IsActive,
			"version":     gorm.Expr("version + 1"),
			"updated_at":  now,
		})
	if result.Error != nil {
		return result.Error
	}
	// no row updated: someone else bumped the version first
	if result.RowsAffected == 0 {
		return &apperr.ConcurrencyConflictError{Entity: "account", ID: a.ID}
	}
	a.Version++
	a.UpdatedAt = now
	return nil
}

func (r *AccountRepo) FindByID(ctx context.Context, id int64) (*domain.Account, error) {
	var account domain.Account
	if err := r.db.WithContext(ctx).First(&account, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperr.UnknownAccountError{AccountID: id}
		}
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepo) FindByCode(ctx context.Context, code string) (*domain.Account, error) {
	var account domain.Account
	if err := r.db.WithContext(ctx).Where("account_code = ?", code).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperr.UnknownAccountError{Code: code}
		}
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepo) FindByIDs(ctx context.Context, db *gorm.DB, ids []int64) (map[int64]*domain.Account, error) {
	out := make(map[int64]*domain.Account, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var accounts []domain.Account
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&accounts).Error; err != nil {
		return nil, err
	}
	for i := range accounts {
		out[accounts[i].ID] = &accounts[i]
	}
	return out, nil
}

func (r *AccountRepo) FindForPosting(ctx context.Context, db *gorm.DB, ids []int64, codes []string) ([]domain.Account, error) {
	var accounts []domain.Account
	q := db.WithContext(ctx)
	switch {
	case len(ids) == 0 && len(codes) == 0:
		return accounts, nil
	case len(codes) == 0:
		q = q.Where("id IN ?", ids)
	case len(ids) == 0:
		q = q.Where("account_code IN ?", codes)
	default:
		q = q.Where("id IN ? OR account_code IN ?", ids, codes)
	}
	if err := q.Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *AccountRepo) ExistsByCode(ctx context.Context, db *gorm.DB, code string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Model(&domain.Account{}).Where("account_code = ?", code).Count(&count).Error
	return count > 0, err
}

func (r *AccountRepo) Search(ctx context.Context, query string, limit int) ([]domain.Account, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	q := r.db.WithContext(ctx).
		Where("LOWER(name) LIKE ? OR LOWER(account_code) LIKE ?", pattern, pattern).
		Order("account_code")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var accounts []domain.Account
	if err := q.Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *AccountRepo) ListChildren(ctx context.Context, parentID int64) ([]domain.Account, error) {
	var accounts []domain.Account
	err := r.db.WithContext(ctx).Where("parent_id = ?", parentID).Order("account_code").Find(&accounts).Error
	return accounts, err
}

// ListAll loads the whole chart in one query; callers build the tree in memory.
func (r *AccountRepo) ListAll(ctx context.Context, db *gorm.DB) ([]domain.Account, error) {
	if db == nil {
		db = r.db
	}
	var accounts []domain.Account
	err := db.WithContext(ctx).Order("account_code").Find(&accounts).Error
	return accounts, err
}
