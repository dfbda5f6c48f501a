package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"livemon/internal/config"
)

// Requirement defines an external binary livemon relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// ForProbe returns the binaries the probe configuration needs. The demuxer is
// optional when tier 2 is switched off.
func ForProbe(cfg config.Probe) []Requirement {
	return []Requirement{
		{
			Name:        "Demuxer",
			Command:     cfg.DemuxerBinary,
			Description: fmt.Sprintf("Tier-2 stream probing (probe.demuxer = %s)", cfg.Demuxer),
			Optional:    cfg.Demuxer == config.DemuxerOff,
		},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}
