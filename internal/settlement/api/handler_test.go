package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xxz807/finscale/accounting/internal/platform/config"
	"github.com/xxz807/finscale/accounting/internal/platform/database"
	"github.com/xxz807/finscale/accounting/internal/platform/idgen"
	"github.com/xxz807/finscale/accounting/internal/platform/keylock"
	"github.com/xxz807/finscale/accounting/internal/platform/server"
	"github.com/xxz807/finscale/accounting/internal/settlement/adapter/repo"
	"github.com/xxz807/finscale/accounting/internal/settlement/domain"
	"github.com/xxz807/finscale/accounting/internal/settlement/service"
	subrepo "github.com/xxz807/finscale/accounting/internal/subledger/adapter/repo"
	subapi "github.com/xxz807/finscale/accounting/internal/subledger/api"
	subledger "github.com/xxz807/finscale/accounting/internal/subledger/domain"
	subservice "github.com/xxz807/finscale/accounting/internal/subledger/service"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenMemory()
	require.NoError(t, err)
	models := append(subledger.Models(), domain.Models()...)
	require.NoError(t, database.Migrate(context.Background(), db, models...))
	ids, err := idgen.New(3)
	require.NoError(t, err)
	log := zaptest.NewLogger(t)

	parties := subservice.NewService(db, subrepo.NewPartyRepo(db), log)
	r := repo.NewSettlementRepo(db)
	h := NewSettlementHandler(
		service.NewOutstandingService(db, r, parties, log),
		service.NewAllocator(db, r, parties, keylock.New(), ids, config.SettlementConfig{MaxRetries: 1}, log),
	)
	h.now = func() time.Time { return time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC) }
	return server.NewServer(log, "0", "test", nil, h, subapi.NewSubledgerHandler(parties)).Handler()
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestInvoicePaymentFlow(t *testing.T) {
	h := newTestHandler(t)

	for i, amount := range []string{"100", "50"} {
		w := do(t, h, http.MethodPost, "/api/v1/settlement/obligations", gin.H{
			"type":           "INVOICE_RECEIVABLE",
			"amount":         amount,
			"due_date":       "2024-03-01",
			"reference_type": "SALE",
			"reference_id":   []string{"S-1", "S-2"}[i],
			"contact_key":    "0722000111",
			"contact_name":   "Mary Wanjiku",
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := do(t, h, http.MethodPost, "/api/v1/settlement/payments", gin.H{
		"direction":   "receivable",
		"contact_key": "0722000111",
		"date":        "2024-03-20",
		"amount":      "120",
		"method":      "MPESA",
		"allocate":    true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var paid struct {
		Payment    domain.PaymentEntry `json:"payment"`
		Allocation service.Result      `json:"allocation"`
	}
	decode(t, w, &paid)
	assert.Len(t, paid.Allocation.Settlements, 2)
	assert.True(t, paid.Allocation.Remaining.IsZero())

	w = do(t, h, http.MethodGet, "/api/v1/settlement/obligations?contact=0722000111&direction=RECEIVABLE", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var open struct {
		Obligations []domain.Outstanding `json:"obligations"`
	}
	decode(t, w, &open)
	require.Len(t, open.Obligations, 1)
	assert.True(t, open.Obligations[0].Amount.Equal(decimal.NewFromInt(30)))

	w = do(t, h, http.MethodGet, "/api/v1/subledger/customers/0722000111", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var party subledger.PartyLedger
	decode(t, w, &party)
	assert.Equal(t, "Mary Wanjiku", party.Name)
	assert.True(t, party.CurrentBalance.Equal(decimal.NewFromInt(30)))

	w = do(t, h, http.MethodGet, "/api/v1/subledger/customers/0722000111/verify", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok":true`)

	w = do(t, h, http.MethodPost, "/api/v1/settlement/aging/recompute", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"changed":1}`, w.Body.String())

	w = do(t, h, http.MethodGet, "/api/v1/settlement/overdue?days=7&direction=RECEIVABLE", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &open)
	require.Len(t, open.Obligations, 1)
	assert.Equal(t, domain.Overdue, open.Obligations[0].Status)
	assert.Equal(t, 19, open.Obligations[0].DaysOverdue)

	w = do(t, h, http.MethodGet, "/api/v1/settlement/totals", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var totals service.Totals
	decode(t, w, &totals)
	assert.True(t, totals.Receivable.Equal(decimal.NewFromInt(30)))
}

func TestSettlementErrorStatuses(t *testing.T) {
	h := newTestHandler(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"bad obligation type", http.MethodPost, "/api/v1/settlement/obligations",
			gin.H{"type": "LOAN", "amount": "1", "due_date": "2024-01-01", "contact_key": "x"}, http.StatusBadRequest},
		{"bad due date", http.MethodPost, "/api/v1/settlement/obligations",
			gin.H{"type": "INVOICE_PAYABLE", "amount": "1", "due_date": "01/02/2024", "contact_key": "x"}, http.StatusBadRequest},
		{"negative payment", http.MethodPost, "/api/v1/settlement/payments",
			gin.H{"direction": "PAYABLE", "contact_key": "x", "date": "2024-01-01", "amount": "-3"}, http.StatusBadRequest},
		{"unknown payment", http.MethodPost, "/api/v1/settlement/payments/99/allocate", nil, http.StatusNotFound},
		{"bad id", http.MethodGet, "/api/v1/settlement/credit-notes/abc", nil, http.StatusBadRequest},
		{"unknown obligation", http.MethodGet, "/api/v1/settlement/obligations/5/settlements", nil, http.StatusNotFound},
		{"bad window", http.MethodGet, "/api/v1/settlement/due?window=year", nil, http.StatusBadRequest},
		{"missing direction", http.MethodGet, "/api/v1/settlement/aging", nil, http.StatusBadRequest},
		{"unknown party kind", http.MethodGet, "/api/v1/subledger/vendors", nil, http.StatusBadRequest},
		{"unknown party", http.MethodGet, "/api/v1/subledger/suppliers/nobody", nil, http.StatusNotFound},
		{"bad statement window", http.MethodGet, "/api/v1/subledger/customers/x/statement?start=2024-02-01&end=2024-01-01", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}
