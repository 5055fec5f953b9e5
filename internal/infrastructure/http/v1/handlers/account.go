package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"coldledger/internal/core/apperror"
	"coldledger/internal/core/types"
	"coldledger/internal/domain/registers/account"
	"coldledger/internal/infrastructure/export"
	"coldledger/internal/infrastructure/http/v1/dto"
	"coldledger/pkg/logger"
)

// AccountHandler serves /accounts and /payments.
type AccountHandler struct {
	*BaseHandler
	svc *account.Service
}

// NewAccountHandler creates an account handler.
func NewAccountHandler(base *BaseHandler, svc *account.Service) *AccountHandler {
	return &AccountHandler{BaseHandler: base, svc: svc}
}

func today() time.Time {
	return types.BusinessDate(time.Now())
}

// List handles GET /accounts.
// Query: partyId, orderId, type, status, component, from, to, open, excludeCancelled.
func (h *AccountHandler) List(c *gin.Context) {
	filter := account.EntryFilter{
		ListFilter:       h.ListFilter(c),
		Type:             QueryString[account.EntryType](c, "type"),
		Status:           QueryString[account.Status](c, "status"),
		Component:        QueryString[account.Component](c, "component"),
		OpenOnly:         c.Query("open") == "true",
		ExcludeCancelled: c.Query("excludeCancelled") == "true",
	}
	var err error
	if filter.PartyID, err = h.QueryID(c, "partyId"); err != nil {
		h.Error(c, err)
		return
	}
	if filter.OrderID, err = h.QueryID(c, "orderId"); err != nil {
		h.Error(c, err)
		return
	}
	if filter.FromDate, err = h.QueryDate(c, "from"); err != nil {
		h.Error(c, err)
		return
	}
	if filter.ToDate, err = h.QueryDate(c, "to"); err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.svc.ListEntries(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(result, dto.FromEntry))
}

// Summary handles GET /accounts/summary?asOf=.
func (h *AccountHandler) Summary(c *gin.Context) {
	asOf, err := h.QueryDateOr(c, "asOf", today())
	if err != nil {
		h.Error(c, err)
		return
	}
	s, err := h.svc.Summary(c.Request.Context(), asOf)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, s)
}

// Aging handles GET /accounts/aging/:type?asOf=&format=xlsx.
func (h *AccountHandler) Aging(c *gin.Context) {
	t := account.EntryType(c.Param("type"))
	if !t.IsValid() {
		h.Error(c, apperror.NewValidation("aging type must be receivable or payable").
			WithDetail("value", string(t)))
		return
	}
	asOf, err := h.QueryDateOr(c, "asOf", today())
	if err != nil {
		h.Error(c, err)
		return
	}

	ctx := c.Request.Context()
	report, err := h.svc.Aging(ctx, t, asOf)
	if err != nil {
		h.Error(c, err)
		return
	}

	switch c.DefaultQuery("format", "json") {
	case "json":
		h.OK(c, report)
	case "xlsx":
		c.Header("Content-Disposition", `attachment; filename="`+export.AgingFilename(report)+`"`)
		c.Header("Content-Type", export.ContentTypeXLSX)
		c.Status(http.StatusOK)
		if err := export.WriteAging(c.Writer, report); err != nil {
			logger.Error(ctx, "aging export failed", "type", t, "error", err)
		}
	default:
		h.Error(c, apperror.NewValidation("format must be json or xlsx").
			WithDetail("field", "format"))
	}
}

// Get handles GET /accounts/:id.
func (h *AccountHandler) Get(c *gin.Context) {
	entryID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	e, err := h.svc.Get(c.Request.Context(), entryID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromEntry(e))
}

// Update handles PUT /accounts/:id.
func (h *AccountHandler) Update(c *gin.Context) {
	entryID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.EntryUpdateRequest
	if !h.BindJSON(c, &req) {
		return
	}
	e, err := h.svc.UpdateEntry(c.Request.Context(), entryID, req.Update(), h.Actor(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromEntry(e))
}

// Cancel handles POST /accounts/:id/cancel.
func (h *AccountHandler) Cancel(c *gin.Context) {
	entryID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.CancelRequest
	if !h.BindJSON(c, &req) {
		return
	}
	e, err := h.svc.Cancel(c.Request.Context(), entryID, req.Reason, h.Actor(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromEntry(e))
}

// Opening handles POST /accounts/opening. A zero amount removes the opening entry.
func (h *AccountHandler) Opening(c *gin.Context) {
	var req dto.OpeningBalanceRequest
	if !h.BindJSON(c, &req) {
		return
	}
	asOf := today()
	if req.AsOf != nil && !req.AsOf.IsZero() {
		asOf = req.AsOf.Time
	}
	e, err := h.svc.SetOpening(c.Request.Context(), req.PartyID, req.Type, req.Amount, asOf, h.Actor(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	if e == nil {
		h.NoContent(c)
		return
	}
	h.OK(c, dto.FromEntry(e))
}

// PartySummary handles GET /accounts/party/:partyId/summary.
func (h *AccountHandler) PartySummary(c *gin.Context) {
	partyID, ok := h.ParseID(c, "partyId")
	if !ok {
		return
	}
	s, err := h.svc.PartySummary(c.Request.Context(), partyID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, s)
}

// Statement handles GET /accounts/party/:partyId/statement?from=&to=.
// The period defaults to the current calendar month.
func (h *AccountHandler) Statement(c *gin.Context) {
	partyID, ok := h.ParseID(c, "partyId")
	if !ok {
		return
	}
	now := today()
	from, err := h.QueryDateOr(c, "from", time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()))
	if err != nil {
		h.Error(c, err)
		return
	}
	to, err := h.QueryDateOr(c, "to", now)
	if err != nil {
		h.Error(c, err)
		return
	}
	st, err := h.svc.Statement(c.Request.Context(), partyID, from, to)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, st)
}

// ListPayments handles GET /payments.
// Query: partyId, entryId, direction, from, to.
func (h *AccountHandler) ListPayments(c *gin.Context) {
	filter := account.PaymentFilter{
		ListFilter: h.ListFilter(c),
		Direction:  QueryString[account.Direction](c, "direction"),
	}
	var err error
	if filter.PartyID, err = h.QueryID(c, "partyId"); err != nil {
		h.Error(c, err)
		return
	}
	if filter.EntryID, err = h.QueryID(c, "entryId"); err != nil {
		h.Error(c, err)
		return
	}
	if filter.FromDate, err = h.QueryDate(c, "from"); err != nil {
		h.Error(c, err)
		return
	}
	if filter.ToDate, err = h.QueryDate(c, "to"); err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.svc.ListPayments(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(result, dto.FromPayment))
}

// CreatePayment handles POST /payments.
func (h *AccountHandler) CreatePayment(c *gin.Context) {
	var req dto.PaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	p, err := h.svc.ApplyPayment(c.Request.Context(), req.ToRequest(), h.Actor(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromPayment(p))
}

// DeletePayment handles DELETE /payments/:id.
func (h *AccountHandler) DeletePayment(c *gin.Context) {
	paymentID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeletePayment(c.Request.Context(), paymentID, h.Actor(c)); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}
