package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"coldledger/internal/core/types"
	"coldledger/internal/domain/registers/lot"
	"coldledger/internal/infrastructure/http/v1/dto"
)

// LotHandler serves /lots.
type LotHandler struct {
	*BaseHandler
	svc *lot.Service
}

// NewLotHandler creates a lot handler.
func NewLotHandler(base *BaseHandler, svc *lot.Service) *LotHandler {
	return &LotHandler{BaseHandler: base, svc: svc}
}

// wrap costs lots as of the request time.
func (h *LotHandler) wrap() func(*lot.Lot) dto.LotResponse {
	now := time.Now()
	return func(l *lot.Lot) dto.LotResponse { return dto.FromLot(l, now) }
}

// List handles GET /lots.
// Query: productId, warehouseId, status, sourceOrderId, available.
func (h *LotHandler) List(c *gin.Context) {
	filter := lot.Filter{
		ListFilter:    h.ListFilter(c),
		Status:        QueryString[lot.Status](c, "status"),
		OnlyAvailable: c.Query("available") == "true",
	}
	var err error
	if filter.ProductID, err = h.QueryID(c, "productId"); err != nil {
		h.Error(c, err)
		return
	}
	if filter.WarehouseID, err = h.QueryID(c, "warehouseId"); err != nil {
		h.Error(c, err)
		return
	}
	if filter.SourceOrderID, err = h.QueryID(c, "sourceOrderId"); err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(result, h.wrap()))
}

// Get handles GET /lots/:id.
func (h *LotHandler) Get(c *gin.Context) {
	lotID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	l, err := h.svc.Get(c.Request.Context(), lotID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, h.wrap()(l))
}

// Create handles POST /lots.
func (h *LotHandler) Create(c *gin.Context) {
	var req dto.LotRequest
	if !h.BindJSON(c, &req) {
		return
	}
	l, err := h.svc.CreateManual(c.Request.Context(), req.Params(), h.Actor(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, h.wrap()(l))
}

// Update handles PUT /lots/:id.
func (h *LotHandler) Update(c *gin.Context) {
	lotID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.LotUpdateRequest
	if !h.BindJSON(c, &req) {
		return
	}
	l, err := h.svc.Update(c.Request.Context(), lotID, req.Params(), h.Actor(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, h.wrap()(l))
}

// Adjust handles POST /lots/:id/adjust.
func (h *LotHandler) Adjust(c *gin.Context) {
	lotID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.LotAdjustRequest
	if !h.BindJSON(c, &req) {
		return
	}
	l, err := h.svc.Adjust(c.Request.Context(), lotID, req.Quantity, req.Reason, h.Actor(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, h.wrap()(l))
}

// InitialImport handles POST /lots/initial-import. Rows fail independently;
// the report lists created lot numbers and per-row errors.
func (h *LotHandler) InitialImport(c *gin.Context) {
	var req dto.LotImportRequest
	if !h.BindJSON(c, &req) {
		return
	}
	asOf := types.BusinessDate(time.Now())
	if req.AsOf != nil && !req.AsOf.IsZero() {
		asOf = req.AsOf.Time
	}
	items := make([]lot.ManualParams, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, it.Params())
	}
	h.OK(c, h.svc.ImportInitial(c.Request.Context(), items, asOf, h.Actor(c)))
}

// OutboundRecords handles GET /lots/:id/outbound-records.
func (h *LotHandler) OutboundRecords(c *gin.Context) {
	lotID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	allocs, err := h.svc.OutboundRecords(c.Request.Context(), lotID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, allocs)
}

// SummaryByProduct handles GET /lots/summary/by-product.
func (h *LotHandler) SummaryByProduct(c *gin.Context) {
	rows, err := h.svc.SummaryByProduct(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, rows)
}
