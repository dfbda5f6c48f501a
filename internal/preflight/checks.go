package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"livemon/internal/config"
	"livemon/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the external binaries needed by the probe
// configuration. The demuxer is optional when tier-2 probing is off.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(deps.ForProbe(cfg.Probe))
}

// CheckSourceRoot requests the index document of one source root. Any status
// below 400 passes; the freshness gates are not applied here.
func CheckSourceRoot(ctx context.Context, client *http.Client, root, suffix, userAgent string) Result {
	name := "Source " + root
	target := strings.TrimSpace(root) + suffix

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, target, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("invalid url (%v)", err)}
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeFetchError(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return Result{Name: name, Detail: fmt.Sprintf("index fetch failed (%d)", resp.StatusCode)}
	}
	lm := resp.Header.Get("Last-Modified")
	if lm == "" {
		return Result{Name: name, Passed: true, Detail: "Reachable, no Last-Modified header (payload will be treated as stale)"}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable, last modified " + lm}
}

func summarizeFetchError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "index fetch timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "index fetch timed out"
	}
	return err.Error()
}
