// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"coldledger/internal/app"
	"coldledger/internal/infrastructure/http/v1/handlers"
	"coldledger/internal/infrastructure/http/v1/middleware"
	"coldledger/internal/infrastructure/storage/postgres"
	"coldledger/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	Services *app.Services

	// Pool is nil for the in-memory driver; readiness then skips the ping.
	Pool   *postgres.Pool
	Driver string

	Logger *logger.Logger

	// DefaultActor is used when a request carries no X-Actor-ID.
	DefaultActor string

	Version string
	// Debug keeps gin in debug mode.
	Debug bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	router := gin.New()

	// Recovery sits inside ErrorHandler so a recovered panic is rendered.
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Recovery())

	healthHandler := handlers.NewHealthHandler(cfg.Pool, cfg.Driver, cfg.Version)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	api := router.Group("/api/v1")
	api.Use(middleware.Actor(cfg.DefaultActor))

	svc := cfg.Services
	base := handlers.NewBaseHandler()

	RegisterCrudRoutes(api.Group("/parties"), handlers.NewPartyHandler(base, svc.Parties), true)
	RegisterCrudRoutes(api.Group("/products"), handlers.NewProductHandler(base, svc.Products), false)

	formulaHandler := handlers.NewFormulaHandler(base, svc.Formulas)
	formulas := api.Group("/formulas")
	{
		formulas.POST("/calculate", formulaHandler.Calculate)
		formulas.POST("/init-defaults", formulaHandler.InitDefaults)
		RegisterCrudRoutes(formulas, formulaHandler, true)
	}

	orderHandler := handlers.NewOrderHandler(base, svc.Orders)
	orders := api.Group("/orders")
	{
		orders.GET("/types", orderHandler.Types)
		RegisterCrudRoutes(orders, orderHandler, true)
		orders.POST("/:id/action", orderHandler.Action)
		orders.GET("/:id/flows", orderHandler.Flows)
		orders.GET("/:id/returnable", orderHandler.Returnable)
	}

	stockHandler := handlers.NewStockHandler(base, svc.Stock)
	stocks := api.Group("/stocks")
	{
		stocks.GET("", stockHandler.List)
		stocks.GET("/flows", stockHandler.Flows)
		stocks.POST("/flows/:flowId/revert", stockHandler.RevertFlow)
		stocks.POST("/reserve", stockHandler.Reserve)
		stocks.POST("/release", stockHandler.Release)
		stocks.POST("/opening", stockHandler.Opening)
		stocks.POST("/recalculate", stockHandler.Recalculate)
		stocks.POST("/cleanup-empty", stockHandler.CleanupEmpty)
		stocks.GET("/:id", stockHandler.Get)
		stocks.POST("/:id/adjust", stockHandler.Adjust)
	}

	lotHandler := handlers.NewLotHandler(base, svc.Lots)
	lots := api.Group("/lots")
	{
		lots.POST("/initial-import", lotHandler.InitialImport)
		lots.GET("/summary/by-product", lotHandler.SummaryByProduct)
		RegisterCrudRoutes(lots, lotHandler, false)
		lots.POST("/:id/adjust", lotHandler.Adjust)
		lots.GET("/:id/outbound-records", lotHandler.OutboundRecords)
	}

	accountHandler := handlers.NewAccountHandler(base, svc.Accounts)
	accounts := api.Group("/accounts")
	{
		accounts.GET("", accountHandler.List)
		accounts.GET("/summary", accountHandler.Summary)
		accounts.GET("/aging/:type", accountHandler.Aging)
		accounts.POST("/opening", accountHandler.Opening)
		accounts.GET("/party/:partyId/summary", accountHandler.PartySummary)
		accounts.GET("/party/:partyId/statement", accountHandler.Statement)
		accounts.GET("/:id", accountHandler.Get)
		accounts.PUT("/:id", accountHandler.Update)
		accounts.POST("/:id/cancel", accountHandler.Cancel)
	}

	payments := api.Group("/payments")
	{
		payments.GET("", accountHandler.ListPayments)
		payments.POST("", accountHandler.CreatePayment)
		payments.DELETE("/:id", accountHandler.DeletePayment)
	}

	return router
}
