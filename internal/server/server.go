package server

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"catchy/internal/cache"
	"catchy/internal/config"
	"catchy/internal/console"
	"catchy/internal/interceptor"
	"catchy/internal/metrics"
	"catchy/internal/proxy"
	"catchy/internal/strategy"
)

// Server represents the main server
type Server struct {
	cfg           *config.Config
	store         cache.Store
	strategies    []strategy.Strategy
	handler       *proxy.Handler
	proxyServer   *http.Server
	metricsServer *http.Server
	proxyAddr     string
	metricsAddr   string
	logger        zerolog.Logger
}

// New creates a new Server. ui may be nil.
func New(cfg *config.Config, ui *console.UI, logger zerolog.Logger) (*Server, error) {
	var store cache.Store
	if cfg.Cache.Enabled {
		store = cache.NewMemoryStore(cfg.Cache.Size, cfg.Cache.GetTTLDuration(), metrics.RecordEviction, logger)
		logger.Info().
			Int("size", cfg.Cache.Size).
			Int("ttl", cfg.Cache.TTL).
			Msg("cache enabled")
	} else {
		store = cache.NewNoopStore()
		logger.Info().Msg("cache disabled")
	}

	strategies := make([]strategy.Strategy, 0, len(cfg.Strategies))
	for _, sc := range cfg.Strategies {
		s, err := strategy.New(sc.Name, sc.Hosts, store)
		if err != nil {
			return nil, fmt.Errorf("failed to create strategy: %w", err)
		}
		strategies = append(strategies, s)
		logger.Info().
			Str("strategy", s.Name()).
			Strs("hosts", s.HandledHosts()).
			Msg("strategy enabled")
	}

	opts := proxy.Options{MaxBodySize: cfg.MaxBodySize}
	if cfg.HasCustomCA() {
		ca, err := tls.LoadX509KeyPair(cfg.CACertFile, cfg.CAKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load CA: %w", err)
		}
		opts.CA = &ca
		logger.Info().Str("cert", cfg.CACertFile).Msg("using custom CA")
	}

	var notifier interceptor.Notifier
	if ui != nil {
		notifier = ui
		opts.OnError = ui.Error
	}

	ic := interceptor.New(strategies, notifier, logger)
	handler := proxy.NewHandler(ic, strategy.HandledHosts(strategies), opts, logger)

	return &Server{
		cfg:        cfg,
		store:      store,
		strategies: strategies,
		handler:    handler,
		logger:     logger,
	}, nil
}

// HandledHosts returns every host some strategy handles
func (s *Server) HandledHosts() []string {
	return strategy.HandledHosts(s.strategies)
}

// Addr returns the address the proxy listens on once started
func (s *Server) Addr() string {
	return s.proxyAddr
}

// MetricsAddr returns the metrics listen address, empty if disabled
func (s *Server) MetricsAddr() string {
	return s.metricsAddr
}

// Start binds the listeners and starts serving in the background
func (s *Server) Start() error {
	proxyLn, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr(), err)
	}
	s.proxyAddr = proxyLn.Addr().String()

	s.proxyServer = &http.Server{
		Handler:     s.handler,
		IdleTimeout: 120 * time.Second,
	}
	go s.serve("proxy", s.proxyServer, proxyLn)

	if s.cfg.MetricsAddr != "" {
		metricsLn, err := net.Listen("tcp", s.cfg.MetricsAddr)
		if err != nil {
			_ = s.proxyServer.Close()
			return fmt.Errorf("failed to listen on %s: %w", s.cfg.MetricsAddr, err)
		}
		s.metricsAddr = metricsLn.Addr().String()

		s.metricsServer = &http.Server{
			Handler:      s.metricsRouter(),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		}
		go s.serve("metrics", s.metricsServer, metricsLn)
	}

	return nil
}

// metricsRouter serves Prometheus metrics and a health check
func (s *Server) metricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(struct {
			Status  string `json:"status"`
			Entries int    `json:"entries"`
		}{Status: "ok", Entries: s.store.Len()})
	})
	return r
}

func (s *Server) serve(name string, srv *http.Server, ln net.Listener) {
	s.logger.Info().
		Str("addr", ln.Addr().String()).
		Msgf("starting %s server", name)
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error().Err(err).Msgf("%s server error", name)
	}
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("shutting down server...")

	g, gctx := errgroup.WithContext(ctx)
	if s.proxyServer != nil {
		g.Go(func() error {
			if err := s.proxyServer.Shutdown(gctx); err != nil {
				return fmt.Errorf("proxy server shutdown error: %w", err)
			}
			return nil
		})
	}
	if s.metricsServer != nil {
		g.Go(func() error {
			if err := s.metricsServer.Shutdown(gctx); err != nil {
				return fmt.Errorf("metrics server shutdown error: %w", err)
			}
			return nil
		})
	}
	err := g.Wait()

	s.store.Close()

	if err != nil {
		return err
	}
	s.logger.Info().Msg("server stopped")
	return nil
}
