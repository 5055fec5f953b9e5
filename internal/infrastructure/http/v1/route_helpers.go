package v1

import (
	"github.com/gin-gonic/gin"
)

// CrudRouteHandler defines the read and write handlers of a resource.
type CrudRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	Update(c *gin.Context)
}

// DeleteRouteHandler is implemented by resources that can be deleted.
type DeleteRouteHandler interface {
	Delete(c *gin.Context)
}

// RegisterCrudRoutes registers list, create, get and update routes for a
// resource. DELETE is registered only if the handler implements
// DeleteRouteHandler and allowDelete is set.
//
// Usage:
//
//	handler := handlers.NewPartyHandler(base, services.Parties)
//	RegisterCrudRoutes(api.Group("/parties"), handler, true)
func RegisterCrudRoutes(group *gin.RouterGroup, handler CrudRouteHandler, allowDelete bool) {
	group.GET("", handler.List)
	group.POST("", handler.Create)
	group.GET("/:id", handler.Get)
	group.PUT("/:id", handler.Update)

	if !allowDelete {
		return
	}
	if del, ok := handler.(DeleteRouteHandler); ok {
		group.DELETE("/:id", del.Delete)
	}
}
