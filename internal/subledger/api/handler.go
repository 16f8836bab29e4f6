package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/xxz807/finscale/accounting/internal/platform/apperr"
	"github.com/xxz807/finscale/accounting/internal/platform/server"
	"github.com/xxz807/finscale/accounting/internal/subledger/domain"
	"github.com/xxz807/finscale/accounting/internal/subledger/service"
)

type AppendEntryReq struct {
	Name             string          `json:"name"`
	Date             string          `json:"date" binding:"required"`
	Debit            decimal.Decimal `json:"debit"`
	Credit           decimal.Decimal `json:"credit"`
	ReferenceType    string          `json:"reference_type"`
	ReferenceID      string          `json:"reference_id"`
	PaymentMethod    string          `json:"payment_method"`
	PaymentReference string          `json:"payment_reference"`
	Description      string          `json:"description"`
}

// CreditLimitReq clears the limit when credit_limit is null.
type CreditLimitReq struct {
	CreditLimit *decimal.Decimal `json:"credit_limit"`
}

type StatusReq struct {
	Status domain.Status `json:"status" binding:"required"`
}

type SubledgerHandler struct {
	svc *service.Service
}

func NewSubledgerHandler(svc *service.Service) *SubledgerHandler {
	return &SubledgerHandler{svc: svc}
}

func (h *SubledgerHandler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/subledger/:kind")
	{
		g.GET("", h.Search)
		g.GET("/outstanding", h.Outstanding)
		g.GET("/over-limit", h.OverLimit)
		g.GET("/verify", h.VerifyAll)

		g.GET("/:contact", h.Party)
		g.POST("/:contact/entries", h.AppendEntry)
		g.GET("/:contact/statement", h.Statement)
		g.GET("/:contact/verify", h.Verify)
		g.PUT("/:contact/credit-limit", h.SetCreditLimit)
		g.PUT("/:contact/status", h.SetStatus)
	}
}

// kindParam accepts "customers", "customer" or "CUSTOMER".
func kindParam(c *gin.Context) (domain.Kind, bool) {
	raw := strings.ToUpper(strings.TrimSpace(c.Param("kind")))
	kind := domain.Kind(strings.TrimSuffix(raw, "S"))
	if !kind.IsValid() {
		server.WriteError(c, apperr.Invalid("kind", "expected customers or suppliers, got %q", c.Param("kind")))
		return "", false
	}
	return kind, true
}

func parseDate(field, s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, apperr.Invalid(field, "expected YYYY-MM-DD, got %q", s)
	}
	return t, nil
}

// Search
// GET /api/v1/subledger/customers?q=0722&limit=20
func (h *SubledgerHandler) Search(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	parties, err := h.svc.Search(c.Request.Context(), kind, c.Query("q"), limit)
	if err != nil {
		server.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"parties": parties})
}

func (h *SubledgerHandler) Outstanding(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	parties, err := h.svc.WithOutstanding(ctx, kind)
	if err != nil {
		server.WriteError(c, err)
		return
	}
	total, err := h.svc.TotalOutstanding(ctx, kind)
	if err != nil {
		server.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"parties": parties, "total": total})
}

func (h *SubledgerHandler) OverLimit(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	parties, err := h.svc.OverCreditLimit(c.Request.Context(), kind)
	if err != nil {
		server.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"parties": parties})
}

func (h *SubledgerHandler) Party(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	p, err := h.svc.Party(c.Request.Context(), kind, c.Param("contact"))
	if err != nil {
		server.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// AppendEntry
// POST /api/v1/subledger/customers/0722000111/entries
func (h *SubledgerHandler) AppendEntry(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	var req AppendEntryReq
	if err := c.ShouldBindJSON(&req); err != nil {
		server.BindError(c, err)
		return
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		server.WriteError(c, err)
		return
	}
	entry, err := h.svc.Append(c.Request.Context(), domain.AppendRequest{
		Kind:             kind,
		ContactKey:       c.Param("contact"),
		Name:             req.Name,
		Date:             date,
		Debit:            req.Debit,
		Credit:           req.Credit,
		ReferenceType:    req.ReferenceType,
		ReferenceID:      req.ReferenceID,
		PaymentMethod:    req.PaymentMethod,
		PaymentReference: req.PaymentReference,
		Description:      req.Description,
	})
	if err != nil {
		server.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// Statement
// GET /api/v1/subledger/suppliers/SUP-1/statement?start=2024-01-01&end=2024-01-31
func (h *SubledgerHandler) Statement(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	start, err := parseDate("start", c.Query("start"))
	if err != nil {
		server.WriteError(c, err)
		return
	}
	end, err := parseDate("end", c.Query("end"))
	if err != nil {
		server.WriteError(c, err)
		return
	}
	st, err := h.svc.Statement(c.Request.Context(), kind, c.Param("contact"), start, end)
	if err != nil {
		server.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *SubledgerHandler) Verify(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	rec, err := h.svc.Verify(c.Request.Context(), kind, c.Param("contact"))
	if err != nil {
		if rec != nil && errors.Is(err, apperr.ErrIntegrityViolation) {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "reconciliation": rec, "ok": false})
			return
		}
		server.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reconciliation": rec, "ok": true})
}

// VerifyAll answers 500 with every reconciliation attached when any party
// disagrees with its entries.
func (h *SubledgerHandler) VerifyAll(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	recs, err := h.svc.VerifyAll(c.Request.Context(), kind)
	if err != nil {
		if recs != nil && errors.Is(err, apperr.ErrIntegrityViolation) {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "reconciliations": recs, "ok": false})
			return
		}
		server.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reconciliations": recs, "ok": true})
}

func (h *SubledgerHandler) SetCreditLimit(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	var req CreditLimitReq
	if err := c.ShouldBindJSON(&req); err != nil {
		server.BindError(c, err)
		return
	}
	p, err := h.svc.SetCreditLimit(c.Request.Context(), kind, c.Param("contact"), req.CreditLimit)
	if err != nil {
		server.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *SubledgerHandler) SetStatus(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	var req StatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		server.BindError(c, err)
		return
	}
	p, err := h.svc.SetStatus(c.Request.Context(), kind, c.Param("contact"), req.Status)
	if err != nil {
		server.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
