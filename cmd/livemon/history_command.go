package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"livemon/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent cycles from the run history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.History.Enabled {
				return errors.New("run history is disabled (history.enabled = false)")
			}
			store, err := history.Open(cfg.HistoryPath(), cfg.History.KeepRuns)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			runs, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				if runs == nil {
					runs = []history.Run{}
				}
				return writeJSON(cmd, runs)
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No cycles recorded yet")
				return nil
			}
			fmt.Fprintln(out, renderHistoryTable(runs, time.Now()))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output runs as JSON")
	return cmd
}

func renderHistoryTable(runs []history.Run, now time.Time) string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		status := "ok"
		if run.Error != "" {
			status = "error"
		}
		rows = append(rows, []string{
			shortRunID(run.RunID),
			run.Command,
			humanize.RelTime(run.StartedAt, now, "ago", "from now"),
			run.Elapsed.Round(time.Millisecond).String(),
			fmt.Sprintf("%d/%d", run.Sources-run.SourcesFailed, run.Sources),
			humanize.Comma(int64(run.Channels)),
			humanize.Comma(int64(run.Live)),
			formatFailures(run.Failures),
			status,
		})
	}
	return renderTable(
		[]string{"Run", "Mode", "Started", "Elapsed", "Sources ok", "Channels", "Live", "Failures", "Status"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft, alignLeft},
	)
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatFailures(failures map[string]int) string {
	if len(failures) == 0 {
		return "-"
	}
	kinds := make([]string, 0, len(failures))
	for kind := range failures {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	parts := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		parts = append(parts, fmt.Sprintf("%s=%s", kind, humanize.Comma(int64(failures[kind]))))
	}
	return strings.Join(parts, " ")
}
