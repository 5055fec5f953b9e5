package handlers

import (
	"github.com/gin-gonic/gin"

	"coldledger/internal/core/types"
	"coldledger/internal/domain/catalogs/deduction"
	"coldledger/internal/infrastructure/http/v1/dto"
)

// FormulaHandler serves /formulas.
type FormulaHandler struct {
	*BaseHandler
	svc *deduction.Service
}

// NewFormulaHandler creates a formula handler.
func NewFormulaHandler(base *BaseHandler, svc *deduction.Service) *FormulaHandler {
	return &FormulaHandler{BaseHandler: base, svc: svc}
}

// List handles GET /formulas.
func (h *FormulaHandler) List(c *gin.Context) {
	result, err := h.svc.List(c.Request.Context(), h.ListFilter(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(result, dto.FromFormula))
}

// Get handles GET /formulas/:id.
func (h *FormulaHandler) Get(c *gin.Context) {
	formulaID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	f, err := h.svc.Get(c.Request.Context(), formulaID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromFormula(f))
}

// Create handles POST /formulas.
func (h *FormulaHandler) Create(c *gin.Context) {
	var req dto.FormulaRequest
	if !h.BindJSON(c, &req) {
		return
	}
	f := req.ToEntity()
	if err := h.svc.Create(c.Request.Context(), f, h.Actor(c)); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromFormula(f))
}

// Update handles PUT /formulas/:id.
func (h *FormulaHandler) Update(c *gin.Context) {
	formulaID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.FormulaRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	f, err := h.svc.Get(ctx, formulaID)
	if err != nil {
		h.Error(c, err)
		return
	}
	req.ApplyTo(f)
	if err := h.svc.Update(ctx, f, h.Actor(c)); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromFormula(f))
}

// Delete handles DELETE /formulas/:id.
func (h *FormulaHandler) Delete(c *gin.Context) {
	formulaID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), formulaID, h.Actor(c)); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// Calculate handles POST /formulas/calculate. Without formulaId net equals
// gross. One unit is assumed when units is omitted.
func (h *FormulaHandler) Calculate(c *gin.Context) {
	var req dto.CalculateRequest
	if !h.BindJSON(c, &req) {
		return
	}
	units := req.Units
	if units.IsZero() {
		units = types.NewMoney(1)
	}
	w, err := h.svc.Calculate(c.Request.Context(), req.FormulaID, req.GrossWeight, units)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, w)
}

// InitDefaults handles POST /formulas/init-defaults.
func (h *FormulaHandler) InitDefaults(c *gin.Context) {
	n, err := h.svc.InitDefaults(c.Request.Context(), h.Actor(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.CountResponse{Count: n})
}
