package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the daemon's HTTP surface.
func NewRouter(h *Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	subjects := router.Group("/v1/subjects/:subject")
	{
		subjects.POST("/samples", h.HandleSample)
		subjects.POST("/feedback", h.HandleFeedback)
		subjects.POST("/predict", h.HandlePredict)
		subjects.GET("/spc", h.HandleSPC)
		subjects.GET("/status", h.HandleStatus)
		subjects.GET("/model", h.HandleExportModel)
		subjects.PUT("/model", h.HandleImportModel)
		subjects.POST("/checkpoint", h.HandleCheckpoint)
		subjects.GET("/versions", h.HandleVersions)
	}

	return router
}
