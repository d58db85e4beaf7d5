package bridge

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/alex2liv/metabridge-API/internal/observability"
)

// Server wires the session service onto a gin engine.
type Server struct {
	svc      *Service
	router   *gin.Engine
	appeared time.Time
}

// NewServer builds the HTTP surface for a service.
func NewServer(svc *Service) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(svc.cfg.ServiceID))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(svc.cfg.CORSOrigins),
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	srv := &Server{
		svc:      svc,
		router:   r,
		appeared: time.Now(),
	}
	srv.RegisterRoutes()
	return srv
}

// HTTPRouter exposes the engine for tests and embedding.
func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

// Run serves until SIGINT/SIGTERM, then drains in-flight requests. The
// sweeper shares the run context and stops with the listener.
func (s *Server) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go s.svc.RunSweeper(ctx)

	httpServer := &http.Server{
		Addr:              s.svc.cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("listening")
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-serveErr; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		out = append(out, "http://localhost:3000")
	}
	return out
}
