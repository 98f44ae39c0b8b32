package api

import (
	"github.com/gin-gonic/gin"

	"github.com/sriaudit/comprobantes-api/internal/service"
)

// NewRouter builds the gin engine with middleware and routes wired
func NewRouter(container *service.Container) *gin.Engine {
	router := gin.New()

	router.Use(RequestID())
	router.Use(Logger(container.Logger))
	router.Use(Recovery(container.Logger))
	router.Use(CORS(container.Config.Security.CORS))

	handlers := NewHandlers(container)

	router.GET("/health", handlers.Health)
	router.GET("/health/live", handlers.Live)
	router.GET("/health/ready", handlers.Ready)

	v1 := router.Group("/api/v1")
	v1.Use(RateLimit(container.Config.Security.RateLimit))
	{
		v1.POST("/descargas", handlers.CreateDownload)
		v1.GET("/historial", handlers.ListHistory)
		v1.GET("/descargas/:id/zip", handlers.DownloadZip)
	}

	return router
}
