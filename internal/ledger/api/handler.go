package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/xxz807/finscale/accounting/internal/ledger/domain"
	"github.com/xxz807/finscale/accounting/internal/ledger/service"
	"github.com/xxz807/finscale/accounting/internal/platform/apperr"
	"github.com/xxz807/finscale/accounting/internal/platform/server"
)

type LedgerHandler struct {
	accounts *service.AccountService
	ledger   *service.LedgerService
	reports  *service.ReportService
}

func NewLedgerHandler(accounts *service.AccountService, ledger *service.LedgerService, reports *service.ReportService) *LedgerHandler {
	return &LedgerHandler{accounts: accounts, ledger: ledger, reports: reports}
}

func (h *LedgerHandler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/ledger")
	{
		g.POST("/accounts", h.CreateAccount)
		g.GET("/accounts", h.SearchAccounts)
		g.GET("/accounts/:id", h.GetAccount)
		g.GET("/accounts/:id/children", h.ListChildren)
		g.PUT("/accounts/:id/parent", h.MoveAccount)
		g.POST("/accounts/:id/deactivate", h.DeactivateAccount)
		g.POST("/accounts/:id/activate", h.ActivateAccount)
		g.GET("/chart", h.Chart)

		g.POST("/vouchers", h.PostVoucher)
		g.GET("/vouchers", h.ListVouchers)
		g.GET("/vouchers/:id", h.GetVoucher)
		g.POST("/vouchers/:id/reverse", h.ReverseVoucher)

		reports := g.Group("/reports")
		reports.GET("/trial-balance", h.TrialBalance)
		reports.GET("/hierarchical-trial-balance", h.HierarchicalTrialBalance)
		reports.GET("/profit-and-loss", h.ProfitAndLoss)
		reports.GET("/balance-sheet", h.BalanceSheet)
		reports.GET("/daybook", h.Daybook)
	}
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		server.WriteError(c, apperr.Invalid("id", "must be a positive integer"))
		return 0, false
	}
	return id, true
}

func bindWindow(c *gin.Context) (WindowQuery, bool) {
	var q WindowQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		server.BindError(c, err)
		return q, false
	}
	return q, true
}

// CreateAccount
// POST /api/v1/ledger/accounts
func (h *LedgerHandler) CreateAccount(c *gin.Context) {
	var req CreateAccountReq
	if err := c.ShouldBindJSON(&req); err != nil {
		server.BindError(c, err)
		return
	}
	a, err := h.accounts.Create(c.Request.Context(), service.CreateAccountRequest{
		Code:        req.Code,
		Name:        req.Name,
		Type:        req.Type,
		ParentID:    req.ParentID,
		Description: req.Description,
	})
	if err != nil {
		server.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// SearchAccounts
// GET /api/v1/ledger/accounts?q=recv&limit=20
func (h *LedgerHandler) SearchAccounts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	accounts, err := h.accounts.Search(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		server.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

func (h *LedgerHandler) GetAccount(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	a, err := h.accounts.GetByID(c.Request.Context(), id)
	if err != nil {
		server.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *LedgerHandler) ListChildren(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	children, err := h.accounts.Children(c.Request.Context(), id)
	if err != nil {
		server.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": children})
}

func (h *LedgerHandler) MoveAccount(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req MoveAccountReq
	if err := c.ShouldBindJSON(&req); err != nil {
		server.BindError(c, err)
		return
	}
	a, err := h.accounts.Move(c.Request.Context(), id, req.ParentID)
	if err != nil {
		server.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *LedgerHandler) DeactivateAccount(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	a, err := h.accounts.Deactivate(c.Request.Context(), id)
	if err != nil {
		server.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *LedgerHandler) ActivateAccount(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	a, err := h.accounts.Activate(c.Request.Context(), id)
	if err != nil {
		server.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

type chartNode struct {
	domain.Account
	Level int `json:"level"`
}

// Chart lists the chart of accounts in tree order with levels.
// GET /api/v1/ledger/chart
func (h *LedgerHandler) Chart(c *gin.Context) {
	tree, err := h.accounts.Tree(c.Request.Context())
	if err != nil {
		server.WriteError(c, err)
		return
	}
	nodes := make([]chartNode, 0, tree.Len())
	tree.Walk(func(a *domain.Account, level int) {
		nodes = append(nodes, chartNode{Account: *a, Level: level})
	})
	c.JSON(http.StatusOK, gin.H{"accounts": nodes})
}

// PostVoucher
// POST /api/v1/ledger/vouchers
func (h *LedgerHandler) PostVoucher(c *gin.Context) {
	var req PostVoucherReq

	// 1. bind
	if err := c.ShouldBindJSON(&req); err != nil {
		server.BindError(c, err)
		return
	}
	date, err := ParseDate("date", req.Date)
	if err != nil {
		server.WriteError(c, err)
		return
	}

	// 2. DTO -> service request
	svcReq := service.PostingRequest{
		Date:          date,
		Type:          domain.VoucherType(req.Type),
		Narration:     req.Narration,
		ReferenceType: req.ReferenceType,
		ReferenceID:   req.ReferenceID,
		Metadata:      req.Metadata,
		Entries:       make([]service.PostingEntry, len(req.Entries)),
	}
	for i, e := range req.Entries {
		svcReq.Entries[i] = service.PostingEntry{
			AccountID:   e.AccountID,
			AccountCode: e.AccountCode,
			Debit:       e.Debit,
			Credit:      e.Credit,
			Description: e.Description,
		}
	}

	// 3. post
	v, err := h.ledger.PostVoucher(c.Request.Context(), svcReq)
	if err != nil {
		server.WriteError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"voucher_id": v.ID,
		"number":     v.Number,
		"date":       v.VoucherDate.Format("2006-01-02"),
		"posted_at":  v.PostedAt,
	})
}

func (h *LedgerHandler) ListVouchers(c *gin.Context) {
	q, ok := bindWindow(c)
	if !ok {
		return
	}
	start, end, err := q.Parse()
	if err != nil {
		server.WriteError(c, err)
		return
	}
	vouchers, err := h.ledger.ListVouchers(c.Request.Context(), start, end)
	if err != nil {
		server.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vouchers": vouchers})
}

func (h *LedgerHandler) GetVoucher(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	v, err := h.ledger.GetVoucher(c.Request.Context(), id)
	if err != nil {
		server.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *LedgerHandler) ReverseVoucher(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req ReverseVoucherReq
	if err := c.ShouldBindJSON(&req); err != nil {
		server.BindError(c, err)
		return
	}
	date, err := ParseDate("date", req.Date)
	if err != nil {
		server.WriteError(c, err)
		return
	}
	v, err := h.ledger.ReverseVoucher(c.Request.Context(), id, date, req.Narration)
	if err != nil {
		server.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

// TrialBalance
// GET /api/v1/ledger/reports/trial-balance?start=2024-01-01&end=2024-01-31
func (h *LedgerHandler) TrialBalance(c *gin.Context) {
	q, ok := bindWindow(c)
	if !ok {
		return
	}
	start, end, err := q.Parse()
	if err != nil {
		server.WriteError(c, err)
		return
	}
	tb, err := h.reports.TrialBalance(c.Request.Context(), start, end)
	if err != nil {
		server.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, tb)
}

func (h *LedgerHandler) HierarchicalTrialBalance(c *gin.Context) {
	q, ok := bindWindow(c)
	if !ok {
		return
	}
	start, end, err := q.Parse()
	if err != nil {
		server.WriteError(c, err)
		return
	}
	rows, err := h.reports.HierarchicalTrialBalance(c.Request.Context(), start, end, q.IncludeZero)
	if err != nil {
		server.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows": rows})
}

func (h *LedgerHandler) ProfitAndLoss(c *gin.Context) {
	q, ok := bindWindow(c)
	if !ok {
		return
	}
	start, end, err := q.Parse()
	if err != nil {
		server.WriteError(c, err)
		return
	}
	pl, err := h.reports.ProfitAndLoss(c.Request.Context(), start, end)
	if err != nil {
		server.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, pl)
}

// BalanceSheet returns 500 with the statement attached when it does not
// balance, so the operator sees both.
func (h *LedgerHandler) BalanceSheet(c *gin.Context) {
	q, ok := bindWindow(c)
	if !ok {
		return
	}
	start, end, err := q.Parse()
	if err != nil {
		server.WriteError(c, err)
		return
	}
	bs, err := h.reports.BalanceSheet(c.Request.Context(), start, end)
	if err != nil {
		if bs != nil && errors.Is(err, apperr.ErrIntegrityViolation) {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "report": bs})
			return
		}
		server.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, bs)
}

func (h *LedgerHandler) Daybook(c *gin.Context) {
	q, ok := bindWindow(c)
	if !ok {
		return
	}
	start, end, err := q.Parse()
	if err != nil {
		server.WriteError(c, err)
		return
	}
	book, err := h.reports.Daybook(c.Request.Context(), start, end)
	if err != nil {
		server.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}
