// Package httpapi is the HTTP surface of the TrustPlane daemon: a gin
// router over the engine services, with caller authentication, rate
// limiting, and Prometheus instrumentation.
package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/halcyonlabs/trustplane/internal/admin"
	"github.com/halcyonlabs/trustplane/internal/anchor"
	"github.com/halcyonlabs/trustplane/internal/auditlog"
	"github.com/halcyonlabs/trustplane/internal/escrow"
	"github.com/halcyonlabs/trustplane/internal/hostauth"
	"github.com/halcyonlabs/trustplane/internal/registry"
	"github.com/halcyonlabs/trustplane/internal/treasury"
)

// Config wires the engine services into the router.
type Config struct {
	Logger   *zap.Logger
	Registry *registry.Service
	Anchor   *anchor.Service
	Escrow   *escrow.Service
	Admins   *admin.Service
	Treasury *treasury.Service
	Audit    *auditlog.Log

	// AuthMode selects caller authentication; Tokens is required in jwt mode.
	AuthMode AuthMode
	Tokens   *hostauth.Issuer

	CORSOrigins    []string
	RateLimitRPS   int
	RateLimitBurst int
}

// NewRouter assembles the full API surface under /api/v1 plus the health and
// metrics endpoints.
func NewRouter(cfg Config) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())

	if len(cfg.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "PUT", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", CallerHeader},
			ExposeHeaders:    []string{"Content-Length", "X-Request-Id"},
			AllowCredentials: !containsWildcard(cfg.CORSOrigins),
			MaxAge:           12 * time.Hour,
		}))
	}

	router.Use(securityHeaders())
	router.Use(bodySizeLimit())
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = cfg.RateLimitRPS * 2
		}
		router.Use(RateLimiter(cfg.RateLimitRPS, burst, "/healthz", "/metrics"))
	}
	router.Use(requestID())
	router.Use(requestLogger(logger))
	router.Use(PrometheusMiddleware())
	router.Use(CallerAuth(cfg.AuthMode, cfg.Tokens))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", MetricsHandler())

	v1 := router.Group("/api/v1")
	NewAgentHandler(cfg.Registry, cfg.Admins, logger).Register(v1)
	NewTicketHandler(cfg.Anchor, cfg.Admins, logger).Register(v1)
	NewEscrowHandler(cfg.Escrow, cfg.Admins, logger).Register(v1)
	NewAdminHandler(cfg.Admins, cfg.Treasury, cfg.Audit, logger).Register(v1)

	return router
}

// containsWildcard reports whether origins includes "*".
func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}
