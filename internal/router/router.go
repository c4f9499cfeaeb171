package router

import (
	"github.com/gin-gonic/gin"

	"bizlens/internal/config"
	"bizlens/internal/domain"
	"bizlens/internal/handler"
	"bizlens/internal/middleware"
)

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	cfg *config.Config,
	runH *handler.ChunkRunHandler,
	chunkH *handler.ChunkHandler,
	templateH *handler.TemplateHandler,
	healthH *handler.HealthHandler,
) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))

	// Health checks
	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)

	v1 := r.Group("/api/v1")

	// Protected routes - require valid JWT
	protected := v1.Group("")
	protected.Use(middleware.AuthMiddleware(cfg.JWT.Secret, cfg.JWT.Issuer))

	// Chunking runs
	runs := protected.Group("/chunk-runs")
	runs.POST("", runH.Create)
	runs.POST("/spreadsheet", runH.CreateFromSpreadsheet)
	runs.GET("", runH.List)
	runs.GET("/:id", runH.GetByID)
	runs.GET("/:id/chunks", chunkH.ListByRun)

	// Chunks
	chunks := protected.Group("/chunks")
	chunks.GET("", chunkH.List)
	chunks.GET("/export", chunkH.ExportCSV)

	// Document chunk listings
	protected.GET("/documents/:id/chunks", chunkH.ListByDocument)

	// Prompt templates (admin only for edits)
	templates := protected.Group("/prompt-templates")
	templates.GET("/:source_type", templateH.GetActive)
	templates.PUT("/:source_type", middleware.RequireRole(domain.RoleAdmin), templateH.Update)

	return r
}
