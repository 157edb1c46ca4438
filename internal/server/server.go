package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"interview-engine/internal/config"
	"interview-engine/internal/metrics"
)

// Server exposes the session manager over HTTP and websockets.
type Server struct {
	cfg     config.ServerConfig
	engine  *gin.Engine
	manager *Manager
	limiter *RateLimiter
	log     *zap.SugaredLogger
}

func New(cfg config.ServerConfig, manager *Manager, m *metrics.Metrics, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	limiter := NewRateLimiter(cfg.RateLimit, cfg.RateWindow)

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(log))

	api := NewSessionApi(manager, limiter, m, log)
	HealthCheckRoutes(engine, api, log)
	SessionRoutes(engine, api, limiter, log)

	return &Server{
		cfg:     cfg,
		engine:  engine,
		manager: manager,
		limiter: limiter,
		log:     log,
	}
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", s.cfg.Port),
		Handler:     s.engine,
		ReadTimeout: s.cfg.ReadTimeout,
		// websockets and evaluations outlive the usual write timeout
		WriteTimeout: s.cfg.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Infof("Listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return s.manager.Run(gctx)
	})
	g.Go(func() error {
		interval := s.cfg.RateWindow
		if interval <= 0 {
			interval = time.Minute
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				s.limiter.Prune()
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
		defer cancel()
		s.log.Info("Shutting down server")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
