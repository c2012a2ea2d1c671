// internal/api/api.go
package api

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/api/handlers"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/api/middleware"
	"github.com/andresuchdata/rawmat-dashboard/backend-go/internal/service"
)

type Services struct {
	InventoryService *service.InventoryService
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	// Add middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	if services == nil || services.InventoryService == nil {
		return router
	}

	inventoryHandler := handlers.NewInventoryHandler(services.InventoryService)
	router.GET("/health", inventoryHandler.Health)

	apiGroup := router.Group("/api/v1")
	{
		apiGroup.GET("/materials", inventoryHandler.GetMaterials)
		apiGroup.GET("/materials/:material/dashboard", inventoryHandler.GetDashboard)
		apiGroup.GET("/overview", inventoryHandler.GetOverview)

		recordsGroup := apiGroup.Group("/records")
		{
			recordsGroup.GET("", inventoryHandler.GetRecords)
			recordsGroup.POST("", inventoryHandler.CreateRecord)
			recordsGroup.PUT("/:id", inventoryHandler.UpdateRecord)
			recordsGroup.POST("/upload", inventoryHandler.UploadRecords)
		}

		apiGroup.POST("/source/reload", inventoryHandler.ReloadSource)
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
