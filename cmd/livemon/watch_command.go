package main

import (
	"time"

	"github.com/spf13/cobra"

	"livemon/internal/api"
	"livemon/internal/daemon"
	"livemon/internal/notifications"
	"livemon/internal/pipeline"
	"livemon/internal/services"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var interval time.Duration
	var mode string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Repeat cycles on an interval until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("interval") {
				interval = cfg.Daemon.Interval()
			}
			if !cmd.Flags().Changed("mode") {
				mode = cfg.Daemon.Mode
			}
			cycleMode := pipeline.Mode(mode)
			switch cycleMode {
			case pipeline.ModeRun, pipeline.ModeRefresh:
				if err := cfg.RequireRoots(); err != nil {
					return services.Wrap(services.ErrConfiguration, "cli", "watch", "", err)
				}
			case pipeline.ModeProbe:
			default:
				return services.Wrap(services.ErrConfiguration, "cli", "watch", "--mode must be run, refresh, or probe", nil)
			}

			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			p, err := pipeline.New(cfg, logger)
			if err != nil {
				return err
			}
			defer p.Close()

			d, err := daemon.New(p, notifications.NewService(cfg), logger, cycleMode, interval)
			if err != nil {
				return err
			}
			if srv := api.New(cfg, p.Gateway(), p.History(), d.Status, logger); srv != nil {
				if err := srv.Start(cmd.Context()); err != nil {
					return err
				}
				defer srv.Stop()
			}
			return d.Run(cmd.Context())
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 30*time.Minute, "Time between cycle starts (default from daemon.interval_minutes)")
	cmd.Flags().StringVar(&mode, "mode", "run", "Cycle to repeat: run, refresh, or probe (default from daemon.mode)")
	return cmd
}
