package preflight

import (
	"context"
	"fmt"
	"net/http"

	"livemon/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	// Optional failures are reported but do not fail the preflight.
	Optional bool   `json:"optional,omitempty"`
	Detail   string `json:"detail"`
}

// Options tunes RunAll.
type Options struct {
	// Online enables the source root reachability checks.
	Online     bool
	HTTPClient *http.Client
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config, opts Options) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))

	for _, status := range CheckSystemDeps(cfg) {
		detail := status.Detail
		if status.Available {
			detail = fmt.Sprintf("%s (found)", status.Command)
		}
		results = append(results, Result{
			Name:     status.Name,
			Passed:   status.Available,
			Optional: status.Optional,
			Detail:   detail,
		})
	}

	if len(cfg.Sources.Roots) == 0 {
		results = append(results, Result{Name: "Source roots", Detail: "none configured (set sources.roots or LIVEMON_SOURCES)"})
		return results
	}
	results = append(results, Result{Name: "Source roots", Passed: true, Detail: fmt.Sprintf("%d configured", len(cfg.Sources.Roots))})

	if opts.Online {
		client := opts.HTTPClient
		if client == nil {
			client = &http.Client{}
		}
		for _, root := range cfg.Sources.Roots {
			results = append(results, CheckSourceRoot(ctx, client, root, cfg.Sources.Suffix, cfg.Sources.UserAgent))
		}
	}
	return results
}

// Failed reports whether any required check failed.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed && !r.Optional {
			return true
		}
	}
	return false
}
