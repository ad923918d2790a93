// Package httpapi exposes the scheduler over HTTP with gin.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// NewRouter builds the gin engine. metricsHandler may be nil.
func NewRouter(planner Planner, metricsHandler http.Handler, version string) *gin.Engine {
	r := gin.New()
	r.Use(Recovery())
	r.Use(Logger())

	r.GET("/health", NewHealthHandler(version).Check)
	if metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(metricsHandler))
	}

	plans := NewPlanHandler(planner)
	v1 := r.Group("/v1")
	{
		v1.POST("/order", plans.Order)
		v1.POST("/makespan", plans.Makespan)
		v1.POST("/ready", plans.Ready)
		v1.GET("/report", plans.Report)
	}
	return r
}

// Server wraps an http.Server around the router.
type Server struct {
	srv *http.Server
}

// NewServer creates a Server listening on addr.
func NewServer(addr string, handler http.Handler) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start serves until Shutdown is called. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	log.Info("HTTP server listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
