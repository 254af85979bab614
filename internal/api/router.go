package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/akylbek/payment-system/agent-tools/internal/handlers"
	"github.com/akylbek/payment-system/agent-tools/internal/interfaces"
	"github.com/akylbek/payment-system/agent-tools/internal/middleware"
	"github.com/akylbek/payment-system/agent-tools/internal/telemetry"
)

const ServiceName = "agent-tools"

func NewRouter(dispatcher interfaces.ToolDispatcher) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(telemetry.TracingMiddleware())

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": ServiceName})
	})

	// Tool routes
	toolHandler := handlers.NewToolHandler(dispatcher)
	toolRoutes := r.Group("/tools")
	{
		toolRoutes.GET("", toolHandler.ListTools)
		toolRoutes.POST("/:name", middleware.IdempotencyMiddleware(), toolHandler.InvokeTool)
	}

	return r
}
