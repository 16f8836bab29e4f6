package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/xxz807/finscale/accounting/internal/ledger/domain"
	"github.com/xxz807/finscale/accounting/internal/platform/apperr"
	"github.com/xxz807/finscale/accounting/internal/platform/idgen"
	"github.com/xxz807/finscale/accounting/internal/platform/money"
)

// PostingRequest is the input of PostVoucher.
type PostingRequest struct {
	Date          time.Time
	Type          domain.VoucherType
	Narration     string
	ReferenceType string
	ReferenceID   string
	Metadata      map[string]any
	Entries       []PostingEntry
}

// PostingEntry references an account by id or, if AccountID is zero, by code.
type PostingEntry struct {
	AccountID   int64
	AccountCode string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
}

// LedgerService posts vouchers. Posted vouchers are never edited; corrections
// go through ReverseVoucher.
type LedgerService struct {
	db       *gorm.DB
	accounts domain.AccountRepository
	vouchers domain.VoucherRepository
	ids      *idgen.Generator
	log      *zap.Logger
	now      func() time.Time
}

func NewLedgerService(db *gorm.DB, accounts domain.AccountRepository, vouchers domain.VoucherRepository, ids *idgen.Generator, log *zap.Logger) *LedgerService {
	return &LedgerService{
		db:       db,
		accounts: accounts,
		vouchers: vouchers,
		ids:      ids,
		log:      log,
		now:      time.Now,
	}
}

// PostVoucher validates and persists one balanced voucher atomically.
func (s *LedgerService) PostVoucher(ctx context.Context, req PostingRequest) (*domain.Voucher, error) {
	// 1. shape checks
	if req.Date.IsZero() {
		return nil, apperr.Invalid("date", "is required")
	}
	if !req.Type.IsValid() {
		return nil, apperr.Invalid("type", "unknown voucher type %q", req.Type)
	}
	if req.Type == domain.VoucherReversal {
		return nil, apperr.Invalid("type", "reversals are posted through ReverseVoucher")
	}
	if len(req.Entries) == 0 {
		return nil, apperr.Invalid("entries", "at least one entry is required")
	}

	// 2. amounts and the balance check, in memory
	var totalDebit, totalCredit decimal.Decimal
	entries := make([]domain.VoucherEntry, 0, len(req.Entries))
	codes := make([]string, len(req.Entries))
	for i, e := range req.Entries {
		field := fmt.Sprintf("entries[%d]", i)
		if e.Debit.IsNegative() || e.Credit.IsNegative() {
			return nil, apperr.Invalid(field, "amounts must not be negative")
		}
		if e.Debit.IsZero() == e.Credit.IsZero() {
			return nil, apperr.Invalid(field, "exactly one of debit or credit must be non-zero")
		}
		if e.AccountID == 0 && e.AccountCode == "" {
			return nil, apperr.Invalid(field, "account is required")
		}
		if e.AccountID == 0 {
			codes[i] = e.AccountCode
		}
		totalDebit = totalDebit.Add(e.Debit)
		totalCredit = totalCredit.Add(e.Credit)
		entries = append(entries, domain.VoucherEntry{
			AccountID:   e.AccountID,
			Debit:       money.New(e.Debit),
			Credit:      money.New(e.Credit),
			Description: e.Description,
		})
	}
	if !totalDebit.Equal(totalCredit) {
		return nil, &apperr.UnbalancedVoucherError{TotalDebit: totalDebit, TotalCredit: totalCredit}
	}

	// 3. header; accounts are resolved inside the posting transaction
	voucher := &domain.Voucher{
		VoucherDate:   domain.DateOf(req.Date),
		Type:          req.Type,
		Narration:     req.Narration,
		ReferenceType: req.ReferenceType,
		ReferenceID:   req.ReferenceID,
		Entries:       entries,
	}
	if len(req.Metadata) > 0 {
		voucher.Metadata = datatypes.JSONMap(req.Metadata)
	}

	err := s.post(ctx, voucher, codes, func(tx *gorm.DB) error {
		if req.ReferenceID == "" {
			return nil
		}
		exists, err := s.vouchers.ExistsByReference(ctx, tx, req.Type, req.ReferenceType, req.ReferenceID)
		if err != nil {
			return err
		}
		if exists {
			return apperr.Invalid("reference_id", "%s voucher for %s %s already posted", req.Type, req.ReferenceType, req.ReferenceID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return voucher, nil
}

// ReverseVoucher posts the mirror image of a voucher dated on date. A voucher
// can be reversed once; reversals themselves cannot be reversed.
func (s *LedgerService) ReverseVoucher(ctx context.Context, id int64, date time.Time, narration string) (*domain.Voucher, error) {
	if date.IsZero() {
		return nil, apperr.Invalid("date", "is required")
	}
	original, err := s.vouchers.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if original.Type == domain.VoucherReversal {
		return nil, apperr.Invalid("voucher_id", "voucher %s is already a reversal", original.Number)
	}
	if narration == "" {
		narration = "Reversal of " + original.Number
	}

	entries := make([]domain.VoucherEntry, len(original.Entries))
	for i, e := range original.Entries {
		entries[i] = domain.VoucherEntry{
			AccountID:   e.AccountID,
			Debit:       e.Credit,
			Credit:      e.Debit,
			Description: e.Description,
		}
	}
	reversal := &domain.Voucher{
		VoucherDate:       domain.DateOf(date),
		Type:              domain.VoucherReversal,
		Narration:         narration,
		ReferenceType:     "VOUCHER",
		ReferenceID:       original.Number,
		ReversesVoucherID: &original.ID,
		Entries:           entries,
	}

	err = s.post(ctx, reversal, nil, func(tx *gorm.DB) error {
		exists, err := s.vouchers.ExistsReversalOf(ctx, tx, original.ID)
		if err != nil {
			return err
		}
		if exists {
			return apperr.Invalid("voucher_id", "voucher %s already reversed", original.Number)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reversal, nil
}

// post resolves and checks the accounts, runs the extra guard and inserts
// the voucher, all in one transaction. codes[i] names the account of entry i
// when its AccountID is zero.
func (s *LedgerService) post(ctx context.Context, v *domain.Voucher, codes []string, guard func(tx *gorm.DB) error) error {
	var (
		ids       []int64
		wantCodes []string
	)
	for i, e := range v.Entries {
		if e.AccountID == 0 {
			wantCodes = append(wantCodes, codes[i])
		} else {
			ids = append(ids, e.AccountID)
		}
	}

	v.Number = s.ids.Next(idgen.PrefixVoucher)
	v.PostedAt = s.now().UTC()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := s.accounts.FindForPosting(ctx, tx, ids, wantCodes)
		if err != nil {
			return err
		}
		byID := make(map[int64]*domain.Account, len(found))
		byCode := make(map[string]*domain.Account, len(found))
		for i := range found {
			byID[found[i].ID] = &found[i]
			byCode[found[i].AccountCode] = &found[i]
		}
		for i := range v.Entries {
			e := &v.Entries[i]
			var acc *domain.Account
			if e.AccountID == 0 {
				if acc = byCode[codes[i]]; acc == nil {
					return &apperr.UnknownAccountError{Code: codes[i]}
				}
				e.AccountID = acc.ID
			} else if acc = byID[e.AccountID]; acc == nil {
				return &apperr.UnknownAccountError{AccountID: e.AccountID}
			}
			if !acc.IsActive {
				return apperr.Invalid("account_id", "account %s is inactive", acc.AccountCode)
			}
		}
		if guard != nil {
			if err := guard(tx); err != nil {
				return err
			}
		}
		return s.vouchers.Create(ctx, tx, v)
	})
	if err != nil {
		s.log.Warn("voucher rejected",
			zap.String("type", string(v.Type)),
			zap.String("reference_id", v.ReferenceID),
			zap.Error(err),
		)
		return err
	}

	debit, _ := v.Totals()
	s.log.Info("voucher posted",
		zap.Int64("voucher_id", v.ID),
		zap.String("number", v.Number),
		zap.String("type", string(v.Type)),
		zap.Time("date", v.VoucherDate),
		zap.Int("entries", len(v.Entries)),
		zap.String("amount", debit.String()),
	)
	return nil
}

func (s *LedgerService) GetVoucher(ctx context.Context, id int64) (*domain.Voucher, error) {
	return s.vouchers.FindByID(ctx, id)
}

func (s *LedgerService) ListVouchers(ctx context.Context, start, end time.Time) ([]domain.Voucher, error) {
	w, err := domain.NewWindow(start, end)
	if err != nil {
		return nil, err
	}
	return s.vouchers.ListByDateRange(ctx, w.Start, w.End)
}
