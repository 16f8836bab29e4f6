package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxz807/finscale/accounting/internal/platform/apperr"
	"github.com/xxz807/finscale/accounting/internal/platform/server"
	"github.com/xxz807/finscale/accounting/internal/settlement/domain"
	"github.com/xxz807/finscale/accounting/internal/settlement/service"
)

type SettlementHandler struct {
	outstanding *service.OutstandingService
	allocator   *service.Allocator
	now         func() time.Time
}

func NewSettlementHandler(outstanding *service.OutstandingService, allocator *service.Allocator) *SettlementHandler {
	return &SettlementHandler{outstanding: outstanding, allocator: allocator, now: time.Now}
}

func (h *SettlementHandler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/settlement")
	{
		g.POST("/obligations", h.CreateObligation)
		g.GET("/obligations", h.OpenObligations)
		g.GET("/obligations/:id", h.GetObligation)
		g.GET("/obligations/:id/settlements", h.ObligationSettlements)

		g.GET("/due", h.Due)
		g.GET("/overdue", h.Overdue)
		g.GET("/totals", h.Totals)
		g.GET("/aging", h.Aging)
		g.POST("/aging/recompute", h.RecomputeAging)

		g.POST("/payments", h.RecordPayment)
		g.GET("/payments/:id", h.GetSource(domain.SourcePayment))
		g.POST("/payments/:id/allocate", h.Allocate(domain.SourcePayment))
		g.GET("/payments/:id/settlements", h.SourceSettlements(domain.SourcePayment))

		g.POST("/credit-notes", h.IssueCreditNote)
		g.GET("/credit-notes/:id", h.GetSource(domain.SourceCreditNote))
		g.POST("/credit-notes/:id/allocate", h.Allocate(domain.SourceCreditNote))
		g.GET("/credit-notes/:id/settlements", h.SourceSettlements(domain.SourceCreditNote))

		g.POST("/contacts/:contact/allocate-pending", h.AllocatePending)
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

func direction(c *gin.Context) domain.Direction {
	return domain.Direction(strings.ToUpper(c.Query("direction")))
}

func (h *SettlementHandler) asOf(c *gin.Context) (time.Time, bool) {
	t, err := optionalDate("as_of", c.Query("as_of"), h.now())
	if err != nil {
		server.WriteError(c, err)
		return t, false
	}
	return t, true
}

// CreateObligation
// POST /api/v1/settlement/obligations
func (h *SettlementHandler) CreateObligation(c *gin.Context) {
	var req CreateObligationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		server.BindError(c, err)
		return
	}
	due, err := parseDate("due_date", req.DueDate)
	if err != nil {
		server.WriteError(c, err)
		return
	}
	date, err := optionalDate("date", req.Date, time.Time{})
	if err != nil {
		server.WriteError(c, err)
		return
	}
	o, err := h.outstanding.CreateObligation(c.Request.Context(), service.CreateObligationRequest{
		Type:          req.Type,
		Amount:        req.Amount,
		Date:          date,
		DueDate:       due,
		ReferenceType: req.ReferenceType,
		ReferenceID:   req.ReferenceID,
		ContactKey:    req.ContactKey,
		ContactName:   req.ContactName,
	})
	if err != nil {
		server.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

// OpenObligations lists a contact's open obligations in allocation order.
// GET /api/v1/settlement/obligations?contact=0722000111&direction=RECEIVABLE
func (h *SettlementHandler) OpenObligations(c *gin.Context) {
	contact := c.Query("contact")
	if contact == "" {
		server.WriteError(c, apperr.Invalid("contact", "is required"))
		return
	}
	rows, err := h.outstanding.OldestUnsettled(c.Request.Context(), contact, direction(c))
	if err != nil {
		server.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"obligations": rows})
}

func (h *SettlementHandler) GetObligation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	o, err := h.outstanding.Get(c.Request.Context(), id)
	if err != nil {
		server.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *SettlementHandler) ObligationSettlements(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	rows, err := h.allocator.Settlements(c.Request.Context(), id)
	if err != nil {
		server.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settlements": rows})
}

// Due
// GET /api/v1/settlement/due?window=week&direction=PAYABLE&as_of=2024-05-15
func (h *SettlementHandler) Due(c *gin.Context) {
	now, ok := h.asOf(c)
	if !ok {
		return
	}
	ctx, dir := c.Request.Context(), direction(c)

	var (
		rows []domain.Outstanding
		err  error
	)
	switch window := c.DefaultQuery("window", "today"); window {
	case "today":
		rows, err = h.outstanding.DueToday(ctx, dir, now)
	case "week":
		rows, err = h.outstanding.DueThisWeek(ctx, dir, now)
	case "month":
		rows, err = h.outstanding.DueThisMonth(ctx, dir, now)
	default:
		err = apperr.Invalid("window", "expected today, week or month, got %q", window)
	}
	if err != nil {
		server.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"obligations": rows})
}

// Overdue
// GET /api/v1/settlement/overdue?days=30
func (h *SettlementHandler) Overdue(c *gin.Context) {
	now, ok := h.asOf(c)
	if !ok {
		return
	}
	days, err := strconv.Atoi(c.DefaultQuery("days", "0"))
	if err != nil {
		server.WriteError(c, apperr.Invalid("days", "must be an integer"))
		return
	}
	rows, err := h.outstanding.OverdueBeyond(c.Request.Context(), direction(c), days, now)
	if err != nil {
		server.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"obligations": rows})
}

func (h *SettlementHandler) Totals(c *gin.Context) {
	totals, err := h.outstanding.Totals(c.Request.Context())
	if err != nil {
		server.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, totals)
}

func (h *SettlementHandler) Aging(c *gin.Context) {
	now, ok := h.asOf(c)
	if !ok {
		return
	}
	report, err := h.outstanding.AgingReport(c.Request.Context(), direction(c), now)
	if err != nil {
		server.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *SettlementHandler) RecomputeAging(c *gin.Context) {
	var req RecomputeAgingReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			server.BindError(c, err)
			return
		}
	}
	now, err := optionalDate("as_of", req.AsOf, h.now())
	if err != nil {
		server.WriteError(c, err)
		return
	}
	changed, err := h.outstanding.RecomputeAging(c.Request.Context(), now)
	if err != nil {
		server.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changed": changed})
}

// RecordPayment
// POST /api/v1/settlement/payments
func (h *SettlementHandler) RecordPayment(c *gin.Context) {
	var req RecordPaymentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		server.BindError(c, err)
		return
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		server.WriteError(c, err)
		return
	}
	ctx := c.Request.Context()
	p, err := h.allocator.RecordPayment(ctx, service.RecordPaymentRequest{
		Direction:   domain.Direction(strings.ToUpper(string(req.Direction))),
		ContactKey:  req.ContactKey,
		ContactName: req.ContactName,
		Date:        date,
		Amount:      req.Amount,
		Method:      req.Method,
		Reference:   req.Reference,
	})
	if err != nil {
		server.WriteError(c, err)
		return
	}
	if !req.Allocate {
		c.JSON(http.StatusCreated, gin.H{"payment": p})
		return
	}
	res, err := h.allocator.Allocate(ctx, domain.SourcePayment, p.ID)
	if err != nil {
		// the payment itself is stored; allocation can be retried
		server.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"payment": p, "allocation": res})
}

func (h *SettlementHandler) IssueCreditNote(c *gin.Context) {
	var req IssueCreditNoteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		server.BindError(c, err)
		return
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		server.WriteError(c, err)
		return
	}
	ctx := c.Request.Context()
	cn, err := h.allocator.IssueCreditNote(ctx, service.IssueCreditNoteRequest{
		Direction:     domain.Direction(strings.ToUpper(string(req.Direction))),
		ContactKey:    req.ContactKey,
		ContactName:   req.ContactName,
		Date:          date,
		Amount:        req.Amount,
		Reason:        req.Reason,
		ReferenceType: req.ReferenceType,
		ReferenceID:   req.ReferenceID,
	})
	if err != nil {
		server.WriteError(c, err)
		return
	}
	if !req.Allocate {
		c.JSON(http.StatusCreated, gin.H{"credit_note": cn})
		return
	}
	res, err := h.allocator.Allocate(ctx, domain.SourceCreditNote, cn.ID)
	if err != nil {
		server.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"credit_note": cn, "allocation": res})
}

func (h *SettlementHandler) GetSource(kind domain.SourceKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		src, err := h.allocator.Source(c.Request.Context(), kind, id)
		if err != nil {
			server.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, src)
	}
}

// Allocate
// POST /api/v1/settlement/payments/:id/allocate
func (h *SettlementHandler) Allocate(kind domain.SourceKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		res, err := h.allocator.Allocate(c.Request.Context(), kind, id)
		if err != nil {
			server.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func (h *SettlementHandler) SourceSettlements(kind domain.SourceKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		rows, err := h.allocator.SourceSettlements(c.Request.Context(), kind, id)
		if err != nil {
			server.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"settlements": rows})
	}
}

// AllocatePending
// POST /api/v1/settlement/contacts/0722000111/allocate-pending?direction=RECEIVABLE
func (h *SettlementHandler) AllocatePending(c *gin.Context) {
	results, err := h.allocator.AllocatePending(c.Request.Context(), c.Param("contact"), direction(c))
	if err != nil {
		server.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"allocations": results})
}
