package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"github.com/xxz807/finscale/accounting/internal/platform/config"
	"github.com/xxz807/finscale/accounting/internal/platform/database"
	"github.com/xxz807/finscale/accounting/internal/platform/idgen"
	"github.com/xxz807/finscale/accounting/internal/platform/keylock"
	"github.com/xxz807/finscale/accounting/internal/settlement/adapter/repo"
	"github.com/xxz807/finscale/accounting/internal/settlement/domain"
	subrepo "github.com/xxz807/finscale/accounting/internal/subledger/adapter/repo"
	subledger "github.com/xxz807/finscale/accounting/internal/subledger/domain"
	subservice "github.com/xxz807/finscale/accounting/internal/subledger/service"
)

// clock is a settable time source shared by the services under test.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	db          *gorm.DB
	repo        domain.Repository
	parties     *subservice.Service
	outstanding *OutstandingService
	allocator   *Allocator
	clock       *clock
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithRepo(t, nil)
}

// newTestEnvWithRepo lets a test wrap the gorm repository.
func newTestEnvWithRepo(t *testing.T, wrap func(domain.Repository) domain.Repository) *testEnv {
	t.Helper()

	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	models := append(subledger.Models(), domain.Models()...)
	require.NoError(t, database.Migrate(context.Background(), db, models...))

	ids, err := idgen.New(2)
	require.NoError(t, err)
	log := zaptest.NewLogger(t)

	var r domain.Repository = repo.NewSettlementRepo(db)
	if wrap != nil {
		r = wrap(r)
	}
	parties := subservice.NewService(db, subrepo.NewPartyRepo(db), log)
	clk := &clock{now: time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)}

	outstanding := NewOutstandingService(db, r, parties, log)
	outstanding.now = clk.Now
	allocator := NewAllocator(db, r, parties, keylock.New(), ids,
		config.SettlementConfig{MaxRetries: 3, RetryBackoff: time.Millisecond}, log)
	allocator.now = clk.Now

	return &testEnv{
		db:          db,
		repo:        r,
		parties:     parties,
		outstanding: outstanding,
		allocator:   allocator,
		clock:       clk,
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func (e *testEnv) invoice(t *testing.T, contact, amount, due string) *domain.Outstanding {
	t.Helper()
	o, err := e.outstanding.CreateObligation(context.Background(), CreateObligationRequest{
		Type:          domain.InvoiceReceivable,
		Amount:        dec(amount),
		DueDate:       day(due),
		ReferenceType: "SALE",
		ReferenceID:   "INV-" + contact + "-" + amount + "-" + due,
		ContactKey:    contact,
		ContactName:   "Customer " + contact,
	})
	require.NoError(t, err)
	return o
}

func (e *testEnv) payment(t *testing.T, dir domain.Direction, contact, amount string) *domain.PaymentEntry {
	t.Helper()
	p, err := e.allocator.RecordPayment(context.Background(), RecordPaymentRequest{
		Direction:  dir,
		ContactKey: contact,
		Date:       e.clock.Now(),
		Amount:     dec(amount),
		Method:     "MPESA",
	})
	require.NoError(t, err)
	return p
}

func (e *testEnv) reload(t *testing.T, id int64) *domain.Outstanding {
	t.Helper()
	o, err := e.outstanding.Get(context.Background(), id)
	require.NoError(t, err)
	return o
}

func (e *testEnv) remaining(t *testing.T, kind domain.SourceKind, id int64) decimal.Decimal {
	t.Helper()
	src, err := e.allocator.Source(context.Background(), kind, id)
	require.NoError(t, err)
	return src.Remaining
}

// reconciled asserts the party's cached subledger balance matches its
// entries and equals the sum of its open obligations.
func (e *testEnv) reconciled(t *testing.T, dir domain.Direction, contact string) decimal.Decimal {
	t.Helper()
	ctx := context.Background()
	rec, err := e.parties.Verify(ctx, dir.PartyKind(), contact)
	require.NoError(t, err)

	open, err := e.outstanding.OldestUnsettled(ctx, contact, dir)
	require.NoError(t, err)
	sum := decimal.Zero
	for _, o := range open {
		sum = sum.Add(o.Amount.Decimal)
	}
	require.True(t, rec.Stored.Equal(sum), "subledger %s, open obligations %s", rec.Stored, sum)
	return rec.Stored
}
