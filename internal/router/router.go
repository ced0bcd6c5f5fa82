package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "bidflow/docs"
	"bidflow/internal/handler"
	"bidflow/internal/middleware"
)

// Handlers groups the HTTP handlers mounted by Setup.
type Handlers struct {
	Analysis *handler.AnalysisHandler
	Invoice  *handler.InvoiceHandler
	Tools    *handler.ToolsHandler
	Health   *handler.HealthHandler
}

// Setup configures the Gin engine with all routes and middleware.
func Setup(h Handlers, allowedOrigins []string) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(allowedOrigins))

	// Health checks
	r.GET("/healthz", h.Health.Liveness)
	r.GET("/readyz", h.Health.Readiness)

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/api/v1")

	analyses := v1.Group("/analyses")
	analyses.POST("", h.Analysis.Analyze)
	analyses.GET("", h.Analysis.List)
	analyses.GET("/:id", h.Analysis.Get)
	analyses.GET("/:id/export", h.Analysis.Export)

	invoices := v1.Group("/invoices")
	invoices.POST("/extract", h.Invoice.Extract)
	invoices.GET("", h.Invoice.List)
	invoices.GET("/:id", h.Invoice.Get)
	invoices.GET("/:id/export", h.Invoice.Export)

	tools := v1.Group("/tools")
	tools.POST("/repair-json", h.Tools.RepairJSON)

	return r
}
