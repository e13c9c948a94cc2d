package api

import (
	"context"

	"dirplan/internal/server/config"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// SetupRouter creates and configures the echo router with all routes and
// middleware. ctx bounds background work such as rate limiter cleanup.
func SetupRouter(ctx context.Context, handler *Handler, cfg *config.Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Global middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Authorization"},
	}))
	e.Use(RequestLogger())

	// Filesystem-touching endpoints share one limiter.
	limiter := NewRateLimiter(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst)

	// Health & stats
	e.GET("/health", handler.HandleHealth)
	e.GET("/api/stats", handler.HandleStats)

	// Sessions
	e.POST("/api/sessions", handler.HandleCreateSession)
	s := e.Group("/api/sessions/:id")
	s.GET("", handler.HandleGetSession)
	s.DELETE("", handler.HandleDeleteSession)
	s.PUT("/text", handler.HandleReplaceText)
	s.POST("/clear", handler.HandleClearSession)
	s.POST("/folders", handler.HandleAddFolders)
	s.DELETE("/folders/:name", handler.HandleDeleteFolder)
	s.POST("/generate", handler.HandleGenerate)
	s.POST("/rename", handler.HandleRename)
	s.POST("/move", handler.HandleMove)
	s.POST("/materialize", handler.HandleMaterialize, limiter.Middleware())
	s.POST("/export", handler.HandleExportZip, limiter.Middleware())
	s.GET("/export.json", handler.HandleExportJSON)
	s.POST("/import", handler.HandleImportJSON)
	s.POST("/import/zip", handler.HandleImportZip, limiter.Middleware())
	s.POST("/template", handler.HandleSaveTemplate)
	s.POST("/template/load", handler.HandleLoadTemplate)
	s.POST("/predefined", handler.HandleLoadPredefined)

	// Templates
	e.GET("/api/templates", handler.HandleListTemplates)
	e.POST("/api/templates/seed", handler.HandleSeedTemplates)
	e.GET("/api/templates/:name", handler.HandleGetTemplate)
	e.DELETE("/api/templates/:name", handler.HandleDeleteTemplate)
	e.GET("/api/predefined", handler.HandleListPredefined)

	e.POST("/api/validate", handler.HandleValidate)

	// Download
	e.GET("/d/:id", handler.HandleDownload)

	return e
}
