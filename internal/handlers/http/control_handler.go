package http

import (
	"net/http"

	"peercam/internal/core/ports"
	"peercam/internal/infrastructure/monitoring"

	"github.com/gin-gonic/gin"
)

// ControlHandler exposes the relay broker's loopback API: on-demand
// connect/disconnect, live status, health and metrics.
type ControlHandler struct {
	broker    ports.BrokerControl
	checker   *monitoring.HealthChecker
	collector *monitoring.Collector
}

func NewControlHandler(
	broker ports.BrokerControl,
	checker *monitoring.HealthChecker,
	collector *monitoring.Collector,
) *ControlHandler {
	return &ControlHandler{
		broker:    broker,
		checker:   checker,
		collector: collector,
	}
}

// SetupRoutes mounts the control surface. The auth middleware guards
// the mutating endpoints only; health and metrics stay open.
func (h *ControlHandler) SetupRoutes(router *gin.Engine, auth gin.HandlerFunc) {
	api := router.Group("/api/v1", auth)
	{
		api.POST("/connect", h.Connect)
		api.POST("/disconnect", h.Disconnect)
		api.GET("/status", h.Status)
	}

	router.GET("/healthz", h.Healthz)
	if h.collector != nil {
		router.GET("/metrics", gin.WrapH(h.collector.Handler()))
	}
}

func (h *ControlHandler) Connect(c *gin.Context) {
	if err := h.broker.Connect(); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": h.broker.Status()})
}

func (h *ControlHandler) Disconnect(c *gin.Context) {
	if err := h.broker.Disconnect(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": h.broker.Status()})
}

func (h *ControlHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": h.broker.Status()})
}

func (h *ControlHandler) Healthz(c *gin.Context) {
	status := h.checker.CheckAll(c.Request.Context())
	code := http.StatusOK
	if status.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}
