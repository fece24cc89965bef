package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/me/examvm/internal/gateway"
	"github.com/me/examvm/internal/ratelimit"
	"github.com/me/examvm/internal/scheduler"
	"github.com/me/examvm/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway, the creation and termination services, and the status API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, cmd)
		},
	}

	flags := cmd.Flags()
	flags.String("addr", "", "Status API listen address; empty disables it")
	flags.Int("rate-limit", 0, "Gateway calls allowed per window")
	flags.Duration("rate-window", 0, "Rolling rate limit window")
	flags.Int("queue-size", 0, "Gateway provisioning queue capacity")
	flags.Duration("poll-interval", 0, "Service tick period")
	flags.Duration("batch-interval", 0, "Pause between sub-batches")
	bindFlags(a.v, flags, map[string]string{
		"addr":           "addr",
		"rate-limit":     "rate_limit",
		"rate-window":    "rate_window",
		"queue-size":     "queue_size",
		"poll-interval":  "poll_interval",
		"batch-interval": "batch_interval",
	})
	return cmd
}

func (a *app) serve(ctx context.Context, cmd *cobra.Command) error {
	cfg := a.cfg
	st, err := a.openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()
	a.logger.Info("database ready", "path", cfg.DBPath)

	limiter := ratelimit.New(cfg.RateLimit, cfg.RateWindow)
	gw := gateway.New(limiter, gateway.Config{
		Delay:     cfg.ProvisioningDelay,
		QueueSize: cfg.QueueSize,
	}, a.logger)

	schedCfg := scheduler.Config{
		PollInterval:      cfg.PollInterval,
		BatchInterval:     cfg.BatchInterval,
		BatchSize:         cfg.RateLimit,
		ProvisioningDelay: cfg.ProvisioningDelay,
	}
	creator := scheduler.NewCreationService(st, gw, schedCfg, a.logger)
	terminator := scheduler.NewTerminationService(st, gw, schedCfg, a.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return gw.Run(gctx) })
	g.Go(func() error { return creator.Start(gctx) })
	g.Go(func() error { return terminator.Start(gctx) })
	if cfg.Addr != "" {
		srv := server.New(st, cfg.ProvisioningDelay, a.logger,
			server.WithGateway(gw),
			server.WithRateLimit(cfg.RateLimit),
		)
		g.Go(func() error { return srv.ListenAndServe(gctx, cfg.Addr) })
	}

	a.logger.Info("examvm running",
		"rate_limit", cfg.RateLimit,
		"rate_window", limiter.Window(),
		"provisioning_delay", cfg.ProvisioningDelay,
	)
	// Once ctx is done every member returns its context error.
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		a.logger.Error("examvm stopped", "error", err)
		return err
	}
	a.logger.Info("examvm stopped")
	return nil
}
