package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"livemon/internal/config"
	"livemon/internal/daemon"
	"livemon/internal/history"
	"livemon/internal/logging"
	"livemon/internal/store"
)

const defaultHistoryLimit = 20

// StatusFunc reports the watch loop state. It may be nil.
type StatusFunc func() daemon.Status

// Server is the status API.
type Server struct {
	bind    string
	token   string
	gateway *store.Gateway
	history *history.Store
	status  StatusFunc
	logger  *slog.Logger

	engine   *gin.Engine
	server   *http.Server
	listener net.Listener
}

// New builds the API server. It returns nil when cfg.API.Bind is empty.
func New(cfg *config.Config, gateway *store.Gateway, hist *history.Store, status StatusFunc, logger *slog.Logger) *Server {
	if cfg == nil || gateway == nil || cfg.API.Bind == "" {
		return nil
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		bind:    cfg.API.Bind,
		token:   cfg.API.Token,
		gateway: gateway,
		history: hist,
		status:  status,
		logger:  logging.NewComponentLogger(logger, "api"),
	}
	s.engine = s.routes()
	s.server = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	group := r.Group("/api")
	if s.token != "" {
		group.Use(bearerAuth(s.token))
	}
	group.GET("/status", s.handleStatus)
	group.GET("/live", s.handleSnapshot(s.gateway.LivePath))
	group.GET("/tree", s.handleSnapshot(s.gateway.TreePath))
	group.GET("/history", s.handleHistory)
	return r
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

// Start listens on the configured address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down, waiting briefly for in-flight requests.
func (s *Server) Stop() {
	if s == nil || s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *Server) handleStatus(c *gin.Context) {
	if s.status == nil {
		c.JSON(http.StatusOK, gin.H{"running": false})
		return
	}
	st := s.status()
	c.JSON(http.StatusOK, gin.H{
		"running":          st.Running,
		"cycles":           st.Cycles,
		"skipped":          st.Skipped,
		"interval_seconds": st.Interval.Seconds(),
	})
}

func (s *Server) handleSnapshot(path func() string) gin.HandlerFunc {
	return func(c *gin.Context) {
		data, err := os.ReadFile(path())
		if errors.Is(err, os.ErrNotExist) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no snapshot written yet"})
			return
		}
		if err != nil {
			s.logger.Warn("read snapshot failed", logging.String("path", path()), logging.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "snapshot unreadable"})
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", data)
	}
}

func (s *Server) handleHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "run history is disabled"})
		return
	}
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	runs, err := s.history.Recent(c.Request.Context(), limit)
	if err != nil {
		s.logger.Warn("history query failed", logging.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history query failed"})
		return
	}
	if runs == nil {
		runs = []history.Run{}
	}
	c.JSON(http.StatusOK, runs)
}

func bearerAuth(token string) gin.HandlerFunc {
	expected := []byte("Bearer " + token)
	return func(c *gin.Context) {
		if subtle.ConstantTimeCompare([]byte(c.GetHeader("Authorization")), expected) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("api request",
			logging.String("method", c.Request.Method),
			logging.String("path", c.FullPath()),
			logging.Int("status", c.Writer.Status()),
			logging.Duration("elapsed", time.Since(start)),
		)
	}
}
