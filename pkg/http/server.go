package http

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/lintang-b-s/navigatorx-pg/pkg/config"
	http_router "github.com/lintang-b-s/navigatorx-pg/pkg/http/router"
	"github.com/lintang-b-s/navigatorx-pg/pkg/http/router/controllers"
	http_server "github.com/lintang-b-s/navigatorx-pg/pkg/http/server"
	"github.com/lintang-b-s/navigatorx-pg/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Server struct {
	Log *zap.Logger
	g   *errgroup.Group
}

func NewServer(log *zap.Logger) *Server {
	return &Server{Log: log}
}

// Use starts the API in the background. Wait returns once it has stopped.
func (s *Server) Use(
	ctx context.Context,
	cfg config.APIConfig,

	routingService controllers.RoutingService,
	adminService controllers.AdminService,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
) (*Server, error) {
	serverConfig := http_server.Config{
		Port:    cfg.Port,
		Timeout: cfg.Timeout,
	}

	api := http_router.NewAPI(s.Log)
	handler := api.Handler(http_router.Options{
		AdminToken: cfg.AdminToken,
		RateLimit:  cfg.RateLimit,
		Rate:       cfg.Rate,
		Burst:      cfg.Burst,
	}, routingService, adminService, m, gatherer)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return api.Run(gctx, serverConfig, handler)
	})
	s.g = g

	return s, nil
}

func (s *Server) Wait() error {
	if s.g == nil {
		return nil
	}
	return s.g.Wait()
}

// GracefulShutdown returns a context that is cancelled on SIGINT or SIGTERM.
func GracefulShutdown() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
