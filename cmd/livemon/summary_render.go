package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"livemon/internal/catalog"
	"livemon/internal/pipeline"
	"livemon/internal/refresh"
	"livemon/internal/scheduler"
)

// summaryView is the JSON shape of a cycle summary. Durations are rendered
// as seconds so consumers do not need Go's duration format.
type summaryView struct {
	RunID          string                 `json:"run_id"`
	Mode           string                 `json:"mode"`
	StartedAt      time.Time              `json:"started_at"`
	ElapsedSeconds float64                `json:"elapsed_seconds"`
	Sources        []refresh.SourceReport `json:"sources,omitempty"`
	Platforms      int                    `json:"platforms,omitempty"`
	Channels       int                    `json:"channels"`
	Probed         int                    `json:"probed"`
	Live           int                    `json:"live"`
	Failures       map[string]int         `json:"failures"`
	LiveChannels   []liveChannelView      `json:"live_channels,omitempty"`
	TreePath       string                 `json:"tree_path"`
	LivePath       string                 `json:"live_path,omitempty"`
}

type liveChannelView struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

func newSummaryView(s pipeline.Summary) summaryView {
	view := summaryView{
		RunID:          s.RunID,
		Mode:           string(s.Mode),
		StartedAt:      s.StartedAt,
		ElapsedSeconds: s.Elapsed.Seconds(),
		Failures:       s.Failures,
		TreePath:       s.TreePath,
		LivePath:       s.LivePath,
	}
	if view.Failures == nil {
		view.Failures = map[string]int{}
	}
	if s.Refresh != nil {
		view.Sources = s.Refresh.Sources
		view.Platforms = s.Refresh.Platforms
		view.Channels = s.Refresh.Channels
	}
	if s.Probe != nil {
		view.Channels = s.Probe.Total
		view.Probed = s.Probe.Probed
		view.Live = s.Probe.LiveCount
		view.LiveChannels = liveChannels(s.Probe)
	}
	return view
}

func liveChannels(report *scheduler.Report) []liveChannelView {
	out := make([]liveChannelView, 0, len(report.Live))
	for _, ch := range report.Live {
		out = append(out, liveChannelView{Address: ch.Address, Name: ch.Name})
	}
	return out
}

func renderSummary(s pipeline.Summary, colorize bool) string {
	var b strings.Builder
	for _, line := range renderSectionHeader(fmt.Sprintf("livemon %s", s.Mode), colorize) {
		b.WriteString(line + "\n")
	}
	b.WriteString(renderStatusLine("Run", statusInfo, s.RunID, colorize) + "\n")
	b.WriteString(renderStatusLine("Elapsed", statusInfo, s.Elapsed.Round(time.Millisecond).String(), colorize) + "\n")

	if s.Refresh != nil {
		b.WriteString("\n")
		b.WriteString(renderSourceTable(s.Refresh.Sources))
		b.WriteString("\n")
		b.WriteString(renderStatusLine("Catalogue", statusInfo, fmt.Sprintf("%s platforms, %s channels",
			humanize.Comma(int64(s.Refresh.Platforms)), humanize.Comma(int64(s.Refresh.Channels))), colorize) + "\n")
		b.WriteString(renderStatusLine("Tree", statusInfo, s.TreePath, colorize) + "\n")
	}

	if s.Probe != nil {
		b.WriteString("\n")
		kind := statusOK
		if s.Probe.Total > 0 && s.Probe.LiveCount == 0 {
			kind = statusWarn
		}
		b.WriteString(renderStatusLine("Live", kind, fmt.Sprintf("%s of %s channels (%s unique addresses probed)",
			humanize.Comma(int64(s.Probe.LiveCount)),
			humanize.Comma(int64(s.Probe.Total)),
			humanize.Comma(int64(s.Probe.Probed)),
		), colorize) + "\n")
		if s.LivePath != "" {
			b.WriteString(renderStatusLine("Live list", statusInfo, s.LivePath, colorize) + "\n")
		}
	}

	if len(s.Failures) > 0 {
		b.WriteString("\n")
		b.WriteString(renderFailureTable(s.Failures))
		b.WriteString("\n")
	}
	return b.String()
}

func renderSourceTable(sources []refresh.SourceReport) string {
	rows := make([][]string, 0, len(sources))
	for _, src := range sources {
		status := "ok"
		if src.Kind != "" {
			status = src.Kind
		} else if src.FailedPlatforms > 0 {
			status = fmt.Sprintf("%d platform(s) failed", src.FailedPlatforms)
		}
		rows = append(rows, []string{
			src.Address,
			fmt.Sprintf("%d", src.Result),
			formatCounts(src.Platforms),
			formatCounts(src.Channels),
			status,
		})
	}
	return renderTable(
		[]string{"Source", "Result", "Platforms +/-/~", "Channels +/-/~", "Status"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft},
	)
}

func formatCounts(c catalog.Counts) string {
	return fmt.Sprintf("%s/%s/%s",
		humanize.Comma(int64(c.Added)),
		humanize.Comma(int64(c.Removed)),
		humanize.Comma(int64(c.Updated)),
	)
}

func renderFailureTable(failures map[string]int) string {
	kinds := make([]string, 0, len(failures))
	for kind := range failures {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	rows := make([][]string, 0, len(kinds))
	for _, kind := range kinds {
		rows = append(rows, []string{kind, humanize.Comma(int64(failures[kind]))})
	}
	return renderTable([]string{"Failure", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
}
