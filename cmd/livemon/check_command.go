package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"livemon/internal/preflight"
)

var errPreflightFailed = errors.New("preflight checks failed")

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var online bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify directories, the demuxer binary, and source roots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg, preflight.Options{Online: online})
			failed := preflight.Failed(results)

			if jsonOutput {
				if err := writeJSON(cmd, map[string]any{"passed": !failed, "checks": results}); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, line := range renderSectionHeader("Preflight", colorize) {
					fmt.Fprintln(out, line)
				}
				for _, r := range results {
					fmt.Fprintln(out, renderCheckResult(r, colorize))
				}
				fmt.Fprintf(out, "\nOnline checks: %s\n", yesNo(online))
			}
			if failed {
				return errPreflightFailed
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&online, "online", false, "Also fetch each source root's index document")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	return cmd
}
