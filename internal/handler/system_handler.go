package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// /health と /metrics
type SystemHandler struct {
	metrics http.Handler
}

func NewSystemHandler() *SystemHandler {
	return &SystemHandler{metrics: promhttp.Handler()}
}

func (h *SystemHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.health)
	e.GET("/metrics", echo.WrapHandler(h.metrics))
}

func (h *SystemHandler) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
