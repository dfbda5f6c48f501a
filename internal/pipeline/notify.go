package pipeline

import "livemon/internal/notifications"

// Notification converts the summary into the shape published to ntfy.
func (s Summary) Notification() notifications.CycleReport {
	report := notifications.CycleReport{
		RunID:         s.RunID,
		Mode:          string(s.Mode),
		SourcesFailed: s.SourcesFailed(),
		Failures:      s.Failures,
		Elapsed:       s.Elapsed,
	}
	if s.Refresh != nil {
		report.Channels = s.Refresh.Channels
	}
	if s.Probe != nil {
		report.Channels = s.Probe.Total
		report.Probed = s.Probe.Probed
		report.Live = s.Probe.LiveCount
	}
	return report
}
