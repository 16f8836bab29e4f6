package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/xxz807/finscale/accounting/internal/ledger/domain"
	"github.com/xxz807/finscale/accounting/internal/platform/apperr"
	"github.com/xxz807/finscale/accounting/internal/platform/database"
)

// ReportService aggregates the entry stream into statements. Every report is
// recomputed from entries; nothing cached is trusted.
type ReportService struct {
	db       *gorm.DB
	accounts domain.AccountRepository
	vouchers domain.VoucherRepository
	log      *zap.Logger
}

func NewReportService(db *gorm.DB, accounts domain.AccountRepository, vouchers domain.VoucherRepository, log *zap.Logger) *ReportService {
	return &ReportService{db: db, accounts: accounts, vouchers: vouchers, log: log}
}

// load reads the window's entries and the chart inside one snapshot.
func (s *ReportService) load(ctx context.Context, w domain.Window) (*domain.AccountTree, []domain.EntryLine, error) {
	var (
		lines    []domain.EntryLine
		accounts []domain.Account
	)
	err := database.Snapshot(ctx, s.db, func(tx *gorm.DB) error {
		var err error
		if lines, err = s.vouchers.EntryLines(ctx, tx, w.Start, w.End); err != nil {
			return err
		}
		accounts, err = s.accounts.ListAll(ctx, tx)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return domain.NewAccountTree(accounts), lines, nil
}

func (s *ReportService) TrialBalance(ctx context.Context, start, end time.Time) (*domain.TrialBalance, error) {
	w, err := domain.NewWindow(start, end)
	if err != nil {
		return nil, err
	}
	tree, lines, err := s.load(ctx, w)
	if err != nil {
		return nil, err
	}
	tb := domain.BuildTrialBalance(w, tree, domain.SumByAccount(lines))
	if !tb.IsBalanced {
		s.log.Error("trial balance does not balance",
			zap.Time("start", w.Start),
			zap.Time("end", w.End),
			zap.String("total_debit", tb.TotalDebit.String()),
			zap.String("total_credit", tb.TotalCredit.String()),
		)
	}
	return &tb, nil
}

func (s *ReportService) HierarchicalTrialBalance(ctx context.Context, start, end time.Time, includeZero bool) ([]domain.HierarchicalTrialBalanceRow, error) {
	w, err := domain.NewWindow(start, end)
	if err != nil {
		return nil, err
	}
	tree, lines, err := s.load(ctx, w)
	if err != nil {
		return nil, err
	}
	return domain.BuildHierarchicalTrialBalance(tree, domain.SumByAccount(lines), includeZero), nil
}

func (s *ReportService) ProfitAndLoss(ctx context.Context, start, end time.Time) (*domain.ProfitAndLoss, error) {
	w, err := domain.NewWindow(start, end)
	if err != nil {
		return nil, err
	}
	tree, lines, err := s.load(ctx, w)
	if err != nil {
		return nil, err
	}
	pl := domain.BuildProfitAndLoss(w, tree, domain.SumByAccount(lines))
	return &pl, nil
}

// BalanceSheet returns the statement even when it does not balance; in that
// case the error is an *apperr.IntegrityViolationError.
func (s *ReportService) BalanceSheet(ctx context.Context, start, end time.Time) (*domain.BalanceSheet, error) {
	w, err := domain.NewWindow(start, end)
	if err != nil {
		return nil, err
	}
	tree, lines, err := s.load(ctx, w)
	if err != nil {
		return nil, err
	}
	bs := domain.BuildBalanceSheet(w, tree, domain.SumByAccount(lines))
	if !bs.IsBalanced {
		liabilitiesAndEquity := bs.TotalLiabilities.Add(bs.TotalEquity)
		s.log.Error("balance sheet does not balance",
			zap.Time("start", w.Start),
			zap.Time("end", w.End),
			zap.String("assets", bs.TotalAssets.String()),
			zap.String("liabilities_and_equity", liabilitiesAndEquity.String()),
		)
		return &bs, &apperr.IntegrityViolationError{
			Check:    "balance_sheet",
			Expected: bs.TotalAssets,
			Actual:   liabilitiesAndEquity,
		}
	}
	return &bs, nil
}

func (s *ReportService) Daybook(ctx context.Context, start, end time.Time) (*domain.Daybook, error) {
	w, err := domain.NewWindow(start, end)
	if err != nil {
		return nil, err
	}
	tree, lines, err := s.load(ctx, w)
	if err != nil {
		return nil, err
	}
	entries := domain.BuildDaybook(tree, lines)
	return &domain.Daybook{Entries: entries, Summary: domain.SummarizeDaybook(w, entries)}, nil
}

func (s *ReportService) DaybookSummary(ctx context.Context, start, end time.Time) (*domain.DaybookSummary, error) {
	book, err := s.Daybook(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return &book.Summary, nil
}

// CheckIntegrity recomputes the trial balance and balance sheet for the window
// and reports the first identity that fails.
func (s *ReportService) CheckIntegrity(ctx context.Context, start, end time.Time) error {
	tb, err := s.TrialBalance(ctx, start, end)
	if err != nil {
		return err
	}
	if !tb.IsBalanced {
		return &apperr.IntegrityViolationError{
			Check:    "trial_balance",
			Expected: tb.TotalDebit,
			Actual:   tb.TotalCredit,
		}
	}
	_, err = s.BalanceSheet(ctx, start, end)
	return err
}
