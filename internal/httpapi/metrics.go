package httpapi

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/halcyonlabs/trustplane/internal/admin"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trustplane_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "trustplane_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	requestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trustplane_requests_in_flight",
		Help: "HTTP requests currently being served.",
	})

	agentsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trustplane_agents_total",
		Help: "Registered agents.",
	})

	ticketsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trustplane_tickets_total",
		Help: "Anchored tickets.",
	})

	escrowsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trustplane_escrows_total",
		Help: "Escrows ever created.",
	})

	volumeGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trustplane_escrow_volume_total",
		Help: "Cumulative escrowed volume in minor units.",
	})

	settlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trustplane_escrow_settlements_total",
		Help: "Escrow settlement operations by outcome.",
	}, []string{"outcome"})
)

// PrometheusMiddleware records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestsInFlight.Inc()
		c.Next()
		requestsInFlight.Dec()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		requestsTotal.WithLabelValues(method, path, status).Inc()
		requestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler serves the Prometheus scrape endpoint.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// recordSettlement records an escrow settlement operation by outcome
// (released, refunded, disputed).
func recordSettlement(outcome string) {
	settlementsTotal.WithLabelValues(outcome).Inc()
}

// refreshProtocolGauges re-exports the aggregate counters. Called after
// operations that move them; scrape-time staleness is acceptable.
func refreshProtocolGauges(ctx context.Context, admins *admin.Service) {
	stats, err := admins.Stats(ctx)
	if err != nil {
		return
	}
	agentsGauge.Set(float64(stats.TotalAgents))
	ticketsGauge.Set(float64(stats.TotalTickets))
	escrowsGauge.Set(float64(stats.TotalEscrows))
	volumeGauge.Set(float64(stats.TotalVolume))
}
