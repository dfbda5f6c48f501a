package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"livemon/internal/logging"
	"livemon/internal/notifications"
	"livemon/internal/pipeline"
	"livemon/internal/services"
)

func newCycleCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newCycleCommand(ctx, pipeline.ModeRun, "run", "Refresh the catalogue tree, then probe every channel"),
		newCycleCommand(ctx, pipeline.ModeRefresh, "refresh", "Reconcile the catalogue tree against the source roots"),
		newCycleCommand(ctx, pipeline.ModeProbe, "probe", "Probe the channels of the persisted tree"),
	}
}

func newCycleCommand(ctx *commandContext, mode pipeline.Mode, use, short string) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if mode != pipeline.ModeProbe {
				if err := cfg.RequireRoots(); err != nil {
					return services.Wrap(services.ErrConfiguration, "cli", use, "", err)
				}
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

			notifier := notifications.NewService(cfg)
			summary, err := p.Run(cmd.Context(), mode)
			if err != nil {
				if notifyErr := notifier.NotifyCycleFailed(context.WithoutCancel(cmd.Context()), use, err); notifyErr != nil {
					warnNotificationFailed(logger, notifyErr)
				}
				return fmt.Errorf("%s cycle: %w", use, err)
			}
			if notifyErr := notifier.NotifyCycleCompleted(cmd.Context(), summary.Notification()); notifyErr != nil {
				warnNotificationFailed(logger, notifyErr)
			}
			if jsonOutput {
				return writeJSON(cmd, newSummaryView(summary))
			}
			fmt.Fprint(cmd.OutOrStdout(), renderSummary(summary, shouldColorize(cmd.OutOrStdout())))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the cycle summary as JSON")
	return cmd
}

func warnNotificationFailed(logger *slog.Logger, err error) {
	logging.WarnWithContext(logger, "cycle notification failed", "notification_failed",
		logging.Error(err),
		logging.String(logging.FieldImpact, "the cycle result was not published"),
		logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic or run livemon test-notify"),
	)
}
