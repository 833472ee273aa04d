package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mihaimyh/goexplain/internal/config"
	"github.com/mihaimyh/goexplain/pkg/api"
	"github.com/mihaimyh/goexplain/pkg/goexplain"
	memorylimit "github.com/mihaimyh/goexplain/ratelimit/memory"
	redislimit "github.com/mihaimyh/goexplain/ratelimit/redis"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(configPath *string) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service exposing POST /explain_event",
		Long: `Run the explain service.

Examples:
  goexplain serve
  goexplain serve --addr :8005
  goexplain serve --config goexplain.toml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	zl := newZerolog(cfg.Log, os.Stderr)
	logger := wrapLogger(&zl)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := newMetrics(reg)

	analyzer, err := newAnalyzer(cfg, logger, metrics)
	if err != nil {
		return err
	}
	if !analyzer.ModelEnabled() {
		logger.Warn("OPENROUTER_API_KEY not set, all events will use the fallback classifier")
	}

	limiter, closeLimiter, err := newLimiter(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLimiter()

	handler, err := api.NewHandler(api.Config{
		Analyzer:     analyzer,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Limiter:      limiter,
		Logger:       logger,
		Metrics:      metrics,
	})
	if err != nil {
		return err
	}

	metricsHandler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	servers := []*http.Server{{
		Addr:              cfg.Server.Addr,
		Handler:           newRouter(handler, metricsHandler, cfg.Server.MetricsAddr == ""),
		ReadHeaderTimeout: 10 * time.Second,
	}}
	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsHandler)
		servers = append(servers, &http.Server{
			Addr:              cfg.Server.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			logger.Info("listening", goexplain.Field{Key: "addr", Value: srv.Addr})
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}
		logger.Info("shut down")
		return errors.Join(errs...)
	})

	return g.Wait()
}

func newRouter(explain http.Handler, metrics http.Handler, mountMetrics bool) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Method(http.MethodPost, "/explain_event", explain)
	r.Get("/healthz", api.Health)
	if mountMetrics {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	// Non-POST methods on the explain route reach the handler so it can answer 405 as JSON.
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path == "/explain_event" {
			explain.ServeHTTP(w, req)
			return
		}
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}

func newLimiter(ctx context.Context, cfg *config.Config) (api.Limiter, func(), error) {
	noop := func() {}
	if !cfg.RateLimitEnabled() {
		return nil, noop, nil
	}

	if cfg.RateLimit.RedisURL == "" {
		return memorylimit.New(cfg.RateLimit.Limit, cfg.RateLimit.Window), noop, nil
	}

	opts, err := redis.ParseURL(cfg.RateLimit.RedisURL)
	if err != nil {
		return nil, noop, fmt.Errorf("parse %s: %w", config.EnvRedisURL, err)
	}
	client := redis.NewClient(opts)

	limiter, err := redislimit.New(client, redislimit.Config{
		Limit:  cfg.RateLimit.Limit,
		Window: cfg.RateLimit.Window,
	})
	if err != nil {
		_ = client.Close()
		return nil, noop, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := limiter.Ping(pingCtx); err != nil {
		_ = client.Close()
		return nil, noop, fmt.Errorf("connect to redis: %w", err)
	}

	return limiter, func() { _ = client.Close() }, nil
}
