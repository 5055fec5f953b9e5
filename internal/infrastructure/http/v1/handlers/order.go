package handlers

import (
	"sort"

	"github.com/gin-gonic/gin"

	"coldledger/internal/domain/documents/order"
	"coldledger/internal/infrastructure/http/v1/dto"
)

// OrderHandler serves /orders.
type OrderHandler struct {
	*BaseHandler
	svc *order.Service
}

// NewOrderHandler creates an order handler.
func NewOrderHandler(base *BaseHandler, svc *order.Service) *OrderHandler {
	return &OrderHandler{BaseHandler: base, svc: svc}
}

// List handles GET /orders.
// Query: type, status, partyId, dateFrom, dateTo, search, orderBy, limit, offset.
func (h *OrderHandler) List(c *gin.Context) {
	filter := order.ListFilter{
		ListFilter: h.ListFilter(c),
		Type:       QueryString[order.Type](c, "type"),
		Status:     QueryString[order.Status](c, "status"),
	}
	var err error
	if filter.PartyID, err = h.QueryID(c, "partyId"); err != nil {
		h.Error(c, err)
		return
	}
	if filter.DateFrom, err = h.QueryDate(c, "dateFrom"); err != nil {
		h.Error(c, err)
		return
	}
	if filter.DateTo, err = h.QueryDate(c, "dateTo"); err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(result, dto.FromOrder))
}

// Types handles GET /orders/types.
func (h *OrderHandler) Types(c *gin.Context) {
	out := make([]dto.OrderTypeInfo, 0, len(order.Types()))
	for _, t := range order.Types() {
		out = append(out, dto.OrderTypeInfo{Type: t, Label: t.Label()})
	}
	h.OK(c, out)
}

// Get handles GET /orders/:id.
func (h *OrderHandler) Get(c *gin.Context) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	o, err := h.svc.Get(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromOrder(o))
}

// Create handles POST /orders. The order starts as a draft.
func (h *OrderHandler) Create(c *gin.Context) {
	var req dto.OrderRequest
	if !h.BindJSON(c, &req) {
		return
	}
	o, err := h.svc.Create(c.Request.Context(), req.ToInput(), h.Actor(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromOrder(o))
}

// Update handles PUT /orders/:id. Only drafts can be edited.
func (h *OrderHandler) Update(c *gin.Context) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.OrderRequest
	if !h.BindJSON(c, &req) {
		return
	}
	o, err := h.svc.Update(c.Request.Context(), orderID, req.ToInput(), h.Actor(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromOrder(o))
}

// Delete handles DELETE /orders/:id?force=true.
func (h *OrderHandler) Delete(c *gin.Context) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	force := c.Query("force") == "true"
	if err := h.svc.Delete(c.Request.Context(), orderID, force, h.Actor(c)); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// Action handles POST /orders/:id/action.
func (h *OrderHandler) Action(c *gin.Context) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.ActionRequest
	if !h.BindJSON(c, &req) {
		return
	}
	res, err := h.svc.ChangeStatus(c.Request.Context(), orderID, req.Action, req.Payload(), h.Actor(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromActionResult(res))
}

// Flows handles GET /orders/:id/flows.
func (h *OrderHandler) Flows(c *gin.Context) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	flows, err := h.svc.Flows(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromOrderFlows(flows))
}

// Returnable handles GET /orders/:id/returnable.
func (h *OrderHandler) Returnable(c *gin.Context) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	remaining, err := h.svc.Returnable(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}
	out := make([]dto.ReturnableLine, 0, len(remaining))
	for lineID, qty := range remaining {
		out = append(out, dto.ReturnableLine{LineID: lineID, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LineID.String() < out[j].LineID.String() })
	h.OK(c, out)
}
