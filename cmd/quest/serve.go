package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-quest/internal/scheduler"
)

func serveCmd() *cobra.Command {
	var sweepNow bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the periodic mission sweep and expose metrics",
		Long: `Run in the foreground, re-evaluating every user's open missions on the
configured schedule (scheduler.sweep) so deadlines pass even when nobody
touches the ledger. Prometheus metrics are served at /metrics on metrics.addr.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			sched, err := scheduler.New(a.missions, a.metrics, a.cfg.Scheduler.Sweep)
			if err != nil {
				return err
			}

			if sweepNow {
				if _, err := sched.RunOnce(ctx); err != nil {
					return err
				}
			}

			mux := http.NewServeMux()
			mux.Handle("/metrics", a.metrics.Handler())
			mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
			server := &http.Server{
				Addr:              a.cfg.Metrics.Addr,
				Handler:           mux,
				ReadHeaderTimeout: 5 * time.Second,
			}

			serveErr := make(chan error, 1)
			go func() {
				slog.Info("Serving metrics", "addr", a.cfg.Metrics.Addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
				close(serveErr)
			}()

			sched.Start()
			slog.Info("Mission sweep scheduled", "schedule", a.cfg.Scheduler.Sweep, "next", sched.Next())

			select {
			case <-ctx.Done():
			case err := <-serveErr:
				if err != nil {
					_ = sched.Stop(context.Background())
					return fmt.Errorf("metrics server failed: %w", err)
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				slog.Warn("Metrics server shutdown failed", "error", err)
			}
			return sched.Stop(shutdownCtx)
		},
	}

	cmd.Flags().BoolVar(&sweepNow, "sweep-now", false, "Run one sweep before waiting for the schedule")
	return cmd
}
