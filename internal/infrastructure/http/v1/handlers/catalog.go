package handlers

import (
	"github.com/gin-gonic/gin"

	"coldledger/internal/domain"
	"coldledger/internal/infrastructure/http/v1/dto"
)

// CatalogHandler provides generic HTTP handlers for catalog entities.
// Req is the request body used for both create and replace.
type CatalogHandler[T domain.CatalogEntity, Req any, Resp any] struct {
	*BaseHandler
	service *domain.CatalogService[T]

	mapCreate func(req Req) (T, error)
	mapUpdate func(req Req, existing T) error
	mapToDTO  func(entity T) Resp
}

// CatalogHandlerConfig configures the catalog handler.
type CatalogHandlerConfig[T domain.CatalogEntity, Req any, Resp any] struct {
	Service   *domain.CatalogService[T]
	MapCreate func(req Req) (T, error)
	MapUpdate func(req Req, existing T) error
	MapToDTO  func(entity T) Resp
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler[T domain.CatalogEntity, Req any, Resp any](
	base *BaseHandler,
	cfg CatalogHandlerConfig[T, Req, Resp],
) *CatalogHandler[T, Req, Resp] {
	return &CatalogHandler[T, Req, Resp]{
		BaseHandler: base,
		service:     cfg.Service,
		mapCreate:   cfg.MapCreate,
		mapUpdate:   cfg.MapUpdate,
		mapToDTO:    cfg.MapToDTO,
	}
}

// List handles GET /{entity}.
func (h *CatalogHandler[T, Req, Resp]) List(c *gin.Context) {
	filter := h.ListFilter(c)
	if filter.OrderBy == "" {
		filter.OrderBy = domain.DefaultListFilter().OrderBy
	}

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(result, h.mapToDTO))
}

// Get handles GET /{entity}/:id.
func (h *CatalogHandler[T, Req, Resp]) Get(c *gin.Context) {
	entityID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	entity, err := h.service.GetByID(c.Request.Context(), entityID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, h.mapToDTO(entity))
}

// Create handles POST /{entity}.
func (h *CatalogHandler[T, Req, Resp]) Create(c *gin.Context) {
	var req Req
	if !h.BindJSON(c, &req) {
		return
	}

	entity, err := h.mapCreate(req)
	if err != nil {
		h.Error(c, err)
		return
	}
	if err := h.service.Create(c.Request.Context(), entity, h.Actor(c)); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, h.mapToDTO(entity))
}

// Update handles PUT /{entity}/:id.
func (h *CatalogHandler[T, Req, Resp]) Update(c *gin.Context) {
	entityID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req Req
	if !h.BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	existing, err := h.service.GetByID(ctx, entityID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if err := h.mapUpdate(req, existing); err != nil {
		h.Error(c, err)
		return
	}
	if err := h.service.Update(ctx, existing, h.Actor(c)); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, h.mapToDTO(existing))
}

// Delete handles DELETE /{entity}/:id.
func (h *CatalogHandler[T, Req, Resp]) Delete(c *gin.Context) {
	entityID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), entityID, h.Actor(c)); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}
