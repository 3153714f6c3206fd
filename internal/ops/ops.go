// Package ops serves the scheduler's operational endpoints: liveness,
// Prometheus metrics, the last run report, and the build version. It runs
// alongside the task runner and is not exposed outside the deployment.
package ops

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KnightedIT/freshservice-dashboard/internal/pipeline"
	"github.com/KnightedIT/freshservice-dashboard/internal/version"
)

// Server is the operational HTTP endpoint of the scheduler.
type Server struct {
	engine *gin.Engine
	srv    *http.Server
	logger *log.Logger

	mu         sync.RWMutex
	lastReport *pipeline.RunReport
}

// NewServer builds the ops server listening on addr. Production deployments
// should pass production=true to silence gin's debug output.
func NewServer(addr string, production bool) *Server {
	if production {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		engine: gin.New(),
		logger: log.New(log.Writer(), "[OPS] ", log.LstdFlags),
	}
	s.engine.Use(gin.Recovery(), RequestID())
	s.routes()

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// SetLogger replaces the server's logger.
func (s *Server) SetLogger(logger *log.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

func (s *Server) routes() {
	s.engine.GET("/healthz", s.handleHealthz)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.engine.GET("/status", s.handleStatus)
	s.engine.GET("/version", s.handleVersion)
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "fsdash",
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	report := s.LastReport()
	if report == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "no run has completed yet",
		})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleVersion(c *gin.Context) {
	c.JSON(http.StatusOK, version.GetInfo())
}

// SetLastReport publishes the report served by /status.
func (s *Server) SetLastReport(report *pipeline.RunReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastReport = report
}

// LastReport returns the most recently published report, or nil before the
// first run completes.
func (s *Server) LastReport() *pipeline.RunReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastReport
}

// Start serves in the background until Shutdown is called.
func (s *Server) Start() {
	s.logger.Printf("Serving ops endpoints on %s", s.srv.Addr)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("Ops server stopped: %v", err)
		}
	}()
}

// Shutdown stops the server, waiting for in-flight requests up to the
// context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Router exposes the underlying engine. Useful for testing.
func (s *Server) Router() http.Handler {
	return s.engine
}
