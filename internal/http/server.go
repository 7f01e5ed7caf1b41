// Package http provides the HTTP API for incidentd.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/incidentd/internal/auth"
	"github.com/fyrsmithlabs/incidentd/internal/config"
	"github.com/fyrsmithlabs/incidentd/internal/incident"
)

// Server provides HTTP endpoints for incidentd.
type Server struct {
	echo      *echo.Echo
	resolver  *auth.Resolver
	incidents *incident.Service
	keys      *auth.KeyService
	logger    *zap.Logger
	config    config.ServerConfig
}

// NewServer creates the HTTP server.
func NewServer(
	resolver *auth.Resolver,
	incidents *incident.Service,
	keys *auth.KeyService,
	logger *zap.Logger,
	cfg config.ServerConfig,
) (*Server, error) {
	if resolver == nil {
		return nil, fmt.Errorf("resolver is required")
	}
	if incidents == nil {
		return nil, fmt.Errorf("incident service is required")
	}
	if keys == nil {
		return nil, fmt.Errorf("key service is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s := &Server{
		echo:      e,
		resolver:  resolver,
		incidents: incidents,
		keys:      keys,
		logger:    logger,
		config:    cfg,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1", s.requireAPIKey)

	v1.POST("/incidents", s.handleCreateIncident)
	v1.GET("/incidents", s.handleListIncidents)
	v1.GET("/incidents/:id", s.handleGetIncident)
	v1.GET("/incidents/:id/raw", s.handleGetIncidentRaw)
	v1.PATCH("/incidents/:id", s.handleUpdateIncident)
	v1.DELETE("/incidents/:id", s.handleDeleteIncident)
	v1.POST("/incidents/:id/reembed", s.handleReembedIncident)

	v1.POST("/search", s.handleSearch)

	v1.GET("/audit", s.handleListAudit)
	v1.GET("/audit/verify", s.handleVerifyAudit)

	v1.POST("/keys", s.handleCreateKey)
	v1.GET("/keys", s.handleListKeys)
	v1.DELETE("/keys/:id", s.handleDeactivateKey)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.config.Address()
	s.echo.Server.ReadTimeout = s.config.ReadTimeout
	s.echo.Server.WriteTimeout = s.config.WriteTimeout
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
