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

	"github.com/aretw0/sessionvault/pkg/observability"
	"github.com/aretw0/sessionvault/pkg/persistence/middleware"
	"github.com/aretw0/sessionvault/pkg/session"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run periodic garbage collection and expose metrics",
		Long: `Sweeps stale sessions every gc.interval and serves /metrics and /healthz
until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			metrics, err := observability.NewMetrics(prometheus.NewRegistry())
			if err != nil {
				return fmt.Errorf("failed to register metrics: %w", err)
			}

			e, err := openEnv(ctx, cmd, middleware.NewMetricsMiddleware(metrics))
			if err != nil {
				return err
			}
			defer e.Close()

			addr := e.cfg.Metrics.Addr
			if cmd.Flags().Changed("addr") {
				addr, _ = cmd.Flags().GetString("addr")
			}

			srv := &http.Server{
				Addr:              addr,
				Handler:           newRouter(e, metrics),
				ReadHeaderTimeout: 5 * time.Second,
			}
			sweeper := &session.Sweeper{
				Provider: e.provider,
				MaxAge:   e.cfg.GC.MaxAge,
				Interval: e.cfg.GC.Interval,
				Logger:   e.logger,
			}

			serverErrors := make(chan error, 1)
			go func() {
				e.logger.Info("Starting sessionvault server", "addr", addr, "backend", e.cfg.Backend)
				serverErrors <- srv.ListenAndServe()
			}()

			sweepDone := make(chan struct{})
			go func() {
				defer close(sweepDone)
				_ = sweeper.Run(ctx)
			}()

			var runErr error
			select {
			case err := <-serverErrors:
				if !errors.Is(err, http.ErrServerClosed) {
					runErr = fmt.Errorf("server error: %w", err)
				}
				stop()
			case <-ctx.Done():
				e.logger.Info("Start shutdown")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				e.logger.Warn("Graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
				_ = srv.Close()
			}
			<-sweepDone
			e.logger.Info("sessionvault server stopped gracefully")
			return runErr
		},
	}
	cmd.Flags().String("addr", "", "Listen address (default from metrics.addr)")
	return cmd
}

func newRouter(e *env, metrics *observability.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if pinger, ok := e.backend.(interface{ Ping(context.Context) error }); ok {
			if err := pinger.Ping(r.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	return r
}
