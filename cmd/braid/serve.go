package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/braid-ai/braid/internal/gateway"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the turn pipeline over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")

			a, err := buildApp(cmd.Context(), cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()

			opts := []gateway.GatewayOption{
				gateway.WithMetricsHandler(promhttp.HandlerFor(
					a.metrics.Registry,
					promhttp.HandlerOpts{Registry: a.metrics.Registry},
				)),
			}
			if a.ledger != nil {
				opts = append(opts, gateway.WithLedger(a.ledger))
			}

			gw := gateway.New(gateway.Config{
				Bind:            a.cfg.Gateway.Bind,
				ReadTimeout:     a.cfg.Gateway.ReadTimeout,
				WriteTimeout:    a.cfg.Gateway.WriteTimeout,
				ShutdownTimeout: a.cfg.Gateway.ShutdownTimeout,
			}, a.engine, a.store, a.logger, opts...)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := gw.Start(ctx); err != nil {
				return err
			}

			sweeper := startSweep(ctx, a)

			<-ctx.Done()
			if sweeper != nil {
				<-sweeper.Stop().Done()
			}
			return gw.Stop(context.Background())
		},
	}
}

// startSweep schedules the maintenance sweep: repair summaries that failed
// at their trigger point, then checkpoint the WAL. Returns nil when no
// schedule is configured.
func startSweep(ctx context.Context, a *app) *cron.Cron {
	spec := a.cfg.Gateway.SweepSchedule
	if spec == "" {
		return nil
	}

	interval := a.cfg.Context.SummaryInterval
	if interval == 0 {
		interval = 15
	}

	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if err := a.engine.Sweep(ctx, a.store, interval); err != nil {
			a.logger.Warn("maintenance sweep failed", "error", err)
		}
		if err := a.store.Checkpoint(ctx); err != nil {
			a.logger.Warn("wal checkpoint failed", "error", err)
		}
	})
	if err != nil {
		a.logger.Warn("invalid sweep schedule, sweep disabled", "schedule", spec, "error", err)
		return nil
	}

	c.Start()
	a.logger.Info("maintenance sweep scheduled", "schedule", spec)
	return c
}
