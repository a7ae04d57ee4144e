// Package api exposes the backtester over HTTP: the HTML form, a JSON API,
// the chart endpoint, health and metrics.
package api

import (
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rsi-backtest/internal/backtest"
	"rsi-backtest/internal/metrics"
	"rsi-backtest/internal/report"
)

// Deps are the collaborators of the HTTP layer.
type Deps struct {
	Runner  *backtest.Runner
	Metrics *metrics.Metrics
	Health  *metrics.HealthStatus // nil reports a bare "ok"
	Logger  *slog.Logger

	// Gatherer backs GET /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// NewRouter builds the gin engine with every route and middleware.
func NewRouter(d Deps) (*gin.Engine, error) {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	tmpl, err := report.Templates()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), AccessLog(d.Logger), Metrics(d.Metrics))
	router.SetHTMLTemplate(tmpl)

	h := &handlers{runner: d.Runner, health: d.Health, log: d.Logger}

	router.GET("/", h.showForm)
	router.POST("/", h.submitForm)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", h.healthCheck)
		v1.POST("/backtest", h.runBacktest)
		v1.GET("/backtest/chart.png", h.chart)
	}

	if d.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	return router, nil
}
