package service

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/xxz807/finscale/accounting/internal/ledger/domain"
	"github.com/xxz807/finscale/accounting/internal/platform/apperr"
)

const defaultSearchLimit = 50

type CreateAccountRequest struct {
	Code        string
	Name        string
	Type        domain.AccountType
	ParentID    *int64
	Description string
}

// AccountService maintains the chart of accounts. Accounts are never deleted,
// only deactivated.
type AccountService struct {
	db       *gorm.DB
	accounts domain.AccountRepository
	log      *zap.Logger
}

func NewAccountService(db *gorm.DB, accounts domain.AccountRepository, log *zap.Logger) *AccountService {
	return &AccountService{db: db, accounts: accounts, log: log}
}

func (s *AccountService) Create(ctx context.Context, req CreateAccountRequest) (*domain.Account, error) {
	req.Code = strings.TrimSpace(req.Code)
	req.Name = strings.TrimSpace(req.Name)
	if req.Code == "" {
		return nil, apperr.Invalid("code", "is required")
	}
	if req.Name == "" {
		return nil, apperr.Invalid("name", "is required")
	}
	if !req.Type.IsValid() {
		return nil, apperr.Invalid("type", "unknown account type %d", int16(req.Type))
	}

	account := &domain.Account{
		AccountCode: req.Code,
		Name:        req.Name,
		Type:        req.Type,
		ParentID:    req.ParentID,
		Description: req.Description,
		IsActive:    true,
		Version:     1,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := s.accounts.ExistsByCode(ctx, tx, req.Code)
		if err != nil {
			return err
		}
		if exists {
			return apperr.Invalid("code", "account code %s already exists", req.Code)
		}
		if req.ParentID != nil {
			if err := s.checkParent(ctx, tx, req.Type, *req.ParentID); err != nil {
				return err
			}
		}
		return s.accounts.Create(ctx, tx, account)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("account created",
		zap.Int64("account_id", account.ID),
		zap.String("code", account.AccountCode),
		zap.Stringer("type", account.Type),
	)
	return account, nil
}

// checkParent requires the parent to exist and share the child's type, so
// rollups never mix categories.
func (s *AccountService) checkParent(ctx context.Context, tx *gorm.DB, typ domain.AccountType, parentID int64) error {
	found, err := s.accounts.FindByIDs(ctx, tx, []int64{parentID})
	if err != nil {
		return err
	}
	parent, ok := found[parentID]
	if !ok {
		return &apperr.UnknownAccountError{AccountID: parentID}
	}
	if parent.Type != typ {
		return apperr.Invalid("parent_id", "parent %s is %s, child is %s", parent.AccountCode, parent.Type, typ)
	}
	return nil
}

// Move re-parents an account; nil makes it a root. Cycles are rejected.
func (s *AccountService) Move(ctx context.Context, id int64, newParentID *int64) (*domain.Account, error) {
	var moved *domain.Account
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		all, err := s.accounts.ListAll(ctx, tx)
		if err != nil {
			return err
		}
		tree := domain.NewAccountTree(all)
		account, ok := tree.Get(id)
		if !ok {
			return &apperr.UnknownAccountError{AccountID: id}
		}
		if newParentID != nil {
			parent, ok := tree.Get(*newParentID)
			if !ok {
				return &apperr.UnknownAccountError{AccountID: *newParentID}
			}
			if parent.Type != account.Type {
				return apperr.Invalid("parent_id", "parent %s is %s, child is %s", parent.AccountCode, parent.Type, account.Type)
			}
			if tree.WouldCycle(id, *newParentID) {
				return apperr.Invalid("parent_id", "moving %s under %s would create a cycle", account.AccountCode, parent.AccountCode)
			}
		}
		account.ParentID = newParentID
		if err := s.accounts.Update(ctx, tx, account); err != nil {
			return err
		}
		moved = account
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("account moved", zap.Int64("account_id", id), zap.Int64p("parent_id", newParentID))
	return moved, nil
}

func (s *AccountService) Deactivate(ctx context.Context, id int64) (*domain.Account, error) {
	return s.setActive(ctx, id, false)
}

func (s *AccountService) Activate(ctx context.Context, id int64) (*domain.Account, error) {
	return s.setActive(ctx, id, true)
}

func (s *AccountService) setActive(ctx context.Context, id int64, active bool) (*domain.Account, error) {
	var account *domain.Account
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := s.accounts.FindByIDs(ctx, tx, []int64{id})
		if err != nil {
			return err
		}
		a, ok := found[id]
		if !ok {
			return &apperr.UnknownAccountError{AccountID: id}
		}
		if a.IsActive == active {
			account = a
			return nil
		}
		a.IsActive = active
		if err := s.accounts.Update(ctx, tx, a); err != nil {
			return err
		}
		account = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("account status changed", zap.Int64("account_id", id), zap.Bool("active", active))
	return account, nil
}

func (s *AccountService) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	return s.accounts.FindByID(ctx, id)
}

func (s *AccountService) GetByCode(ctx context.Context, code string) (*domain.Account, error) {
	return s.accounts.FindByCode(ctx, code)
}

// Search is a case-insensitive substring match over name and code, for pickers.
func (s *AccountService) Search(ctx context.Context, query string, limit int) ([]domain.Account, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	return s.accounts.Search(ctx, query, limit)
}

func (s *AccountService) Children(ctx context.Context, id int64) ([]domain.Account, error) {
	if _, err := s.accounts.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.accounts.ListChildren(ctx, id)
}

// Tree loads the full chart with one query.
func (s *AccountService) Tree(ctx context.Context) (*domain.AccountTree, error) {
	all, err := s.accounts.ListAll(ctx, nil)
	if err != nil {
		return nil, err
	}
	return domain.NewAccountTree(all), nil
}
