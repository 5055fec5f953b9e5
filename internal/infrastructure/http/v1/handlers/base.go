// Package handlers provides HTTP request handlers.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"coldledger/internal/core/apperror"
	"coldledger/internal/core/id"
	"coldledger/internal/domain"
	"coldledger/internal/infrastructure/http/v1/dto"
	"coldledger/internal/infrastructure/http/v1/middleware"
)

// BaseHandler provides common handler utilities.
type BaseHandler struct{}

// NewBaseHandler creates a new base handler.
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// BindJSON binds and validates JSON request body.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		if apperror.IsAppError(err) {
			h.Error(c, err)
			return false
		}
		h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// Error registers error on Gin context and aborts request.
// Actual JSON response is produced by middleware.ErrorHandler.
func (h *BaseHandler) Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// Actor returns the operator performing the request.
func (h *BaseHandler) Actor(c *gin.Context) string {
	return middleware.ActorID(c)
}

// ParseID parses a path parameter as an id. On failure the error is
// registered and false is returned.
func (h *BaseHandler) ParseID(c *gin.Context, param string) (id.ID, bool) {
	v, err := id.Parse(c.Param(param))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format").WithDetail("field", param))
		return id.Nil(), false
	}
	return v, true
}

// ParseIntQuery parses integer query parameter with default value.
func (h *BaseHandler) ParseIntQuery(c *gin.Context, key string, defaultVal int) int {
	val := c.Query(key)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}

// ListFilter reads search, orderBy, limit and offset. OrderBy is left empty
// unless given so every list keeps its own default ordering.
func (h *BaseHandler) ListFilter(c *gin.Context) domain.ListFilter {
	f := domain.ListFilter{
		Search:  c.Query("search"),
		OrderBy: c.Query("orderBy"),
		Limit:   h.ParseIntQuery(c, "limit", 50),
		Offset:  h.ParseIntQuery(c, "offset", 0),
	}
	f.Normalize()
	return f
}

// QueryID parses an optional id query parameter.
func (h *BaseHandler) QueryID(c *gin.Context, key string) (*id.ID, error) {
	v, err := id.ParseOptional(c.Query(key))
	if err != nil {
		return nil, apperror.NewValidation("invalid id format").WithDetail("field", key)
	}
	return v, nil
}

// QueryDate parses an optional date query parameter.
func (h *BaseHandler) QueryDate(c *gin.Context, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	t, err := dto.ParseDate(raw)
	if err != nil {
		if ae, ok := apperror.AsAppError(err); ok {
			return nil, ae.WithDetail("field", key)
		}
		return nil, err
	}
	return &t, nil
}

// QueryDateOr parses a date query parameter, falling back to def.
func (h *BaseHandler) QueryDateOr(c *gin.Context, key string, def time.Time) (time.Time, error) {
	t, err := h.QueryDate(c, key)
	if err != nil || t == nil {
		return def, err
	}
	return *t, nil
}

// QueryString returns a pointer to a non-empty query value.
func QueryString[T ~string](c *gin.Context, key string) *T {
	raw := c.Query(key)
	if raw == "" {
		return nil
	}
	v := T(raw)
	return &v
}

// Created sends 201 response with data.
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// OK sends 200 response with data.
func (h *BaseHandler) OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// NoContent sends 204 response.
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Success sends success response.
func (h *BaseHandler) Success(c *gin.Context, message string) {
	c.JSON(http.StatusOK, dto.SuccessResponse{Success: true, Message: message})
}
