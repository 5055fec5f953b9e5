package handlers

import (
	"github.com/gin-gonic/gin"

	"coldledger/internal/core/apperror"
	"coldledger/internal/domain/registers/stock"
	"coldledger/internal/infrastructure/http/v1/dto"
)

// StockHandler serves /stocks.
type StockHandler struct {
	*BaseHandler
	svc *stock.Service
}

// NewStockHandler creates a stock handler.
func NewStockHandler(base *BaseHandler, svc *stock.Service) *StockHandler {
	return &StockHandler{BaseHandler: base, svc: svc}
}

// List handles GET /stocks.
// Query: warehouseId, productId, nonZero, belowSafety.
func (h *StockHandler) List(c *gin.Context) {
	filter := stock.Filter{
		ListFilter:  h.ListFilter(c),
		OnlyNonZero: c.Query("nonZero") == "true",
		BelowSafety: c.Query("belowSafety") == "true",
	}
	var err error
	if filter.WarehouseID, err = h.QueryID(c, "warehouseId"); err != nil {
		h.Error(c, err)
		return
	}
	if filter.ProductID, err = h.QueryID(c, "productId"); err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(result, dto.FromStock))
}

// Get handles GET /stocks/:id.
func (h *StockHandler) Get(c *gin.Context) {
	stockID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	s, err := h.svc.Get(c.Request.Context(), stockID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromStock(s))
}

// Adjust handles POST /stocks/:id/adjust. The body carries either the
// counted quantity or a signed delta.
func (h *StockHandler) Adjust(c *gin.Context) {
	stockID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.StockAdjustRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	var (
		s   *stock.Stock
		err error
	)
	switch {
	case req.Quantity != nil && req.Delta != nil:
		err = apperror.NewValidation("give either quantity or delta, not both")
	case req.Quantity != nil:
		s, err = h.svc.AdjustTo(ctx, stockID, *req.Quantity, req.Reason, h.Actor(c))
	case req.Delta != nil:
		var cur *stock.Stock
		if cur, err = h.svc.Get(ctx, stockID); err == nil {
			ref := stock.Ref{Source: stock.SourceManual, Reason: req.Reason}
			s, err = h.svc.Adjust(ctx, cur.Key(), *req.Delta, ref, h.Actor(c))
		}
	default:
		err = apperror.NewValidation("quantity or delta is required").WithDetail("field", "quantity")
	}
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromStock(s))
}

// Reserve handles POST /stocks/reserve.
func (h *StockHandler) Reserve(c *gin.Context) {
	var req dto.StockMoveRequest
	if !h.BindJSON(c, &req) {
		return
	}
	s, err := h.svc.Reserve(c.Request.Context(), req.Key(), req.Quantity, req.Ref(), h.Actor(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromStock(s))
}

// Release handles POST /stocks/release.
func (h *StockHandler) Release(c *gin.Context) {
	var req dto.StockMoveRequest
	if !h.BindJSON(c, &req) {
		return
	}
	s, err := h.svc.Release(c.Request.Context(), req.Key(), req.Quantity, req.Ref(), h.Actor(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromStock(s))
}

// Opening handles POST /stocks/opening.
func (h *StockHandler) Opening(c *gin.Context) {
	var req dto.StockOpeningRequest
	if !h.BindJSON(c, &req) {
		return
	}
	s, err := h.svc.SetOpening(c.Request.Context(), req.Key(), req.Quantity, req.Reason, h.Actor(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromStock(s))
}

// Flows handles GET /stocks/flows.
// Query: stockId, warehouseId, productId, orderId, type, from, to.
func (h *StockHandler) Flows(c *gin.Context) {
	filter := stock.FlowFilter{
		ListFilter: h.ListFilter(c),
		Type:       QueryString[stock.FlowType](c, "type"),
	}
	var err error
	if filter.StockID, err = h.QueryID(c, "stockId"); err != nil {
		h.Error(c, err)
		return
	}
	if filter.WarehouseID, err = h.QueryID(c, "warehouseId"); err != nil {
		h.Error(c, err)
		return
	}
	if filter.ProductID, err = h.QueryID(c, "productId"); err != nil {
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

	result, err := h.svc.ListFlows(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(result, dto.FromStockFlow))
}

// RevertFlow handles POST /stocks/flows/:flowId/revert.
func (h *StockHandler) RevertFlow(c *gin.Context) {
	flowID, ok := h.ParseID(c, "flowId")
	if !ok {
		return
	}
	var req dto.ReasonRequest
	if c.Request.ContentLength > 0 && !h.BindJSON(c, &req) {
		return
	}
	s, err := h.svc.RevertFlow(c.Request.Context(), flowID, req.Reason, h.Actor(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromStock(s))
}

// Recalculate handles POST /stocks/recalculate.
func (h *StockHandler) Recalculate(c *gin.Context) {
	report, err := h.svc.Recompute(c.Request.Context(), h.Actor(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, report)
}

// CleanupEmpty handles POST /stocks/cleanup-empty.
func (h *StockHandler) CleanupEmpty(c *gin.Context) {
	n, err := h.svc.CleanupEmpty(c.Request.Context(), h.Actor(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.CountResponse{Count: n})
}
