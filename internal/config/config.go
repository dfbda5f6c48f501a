package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains data and log locations. File names that are not absolute
// resolve under DataDir.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	LogDir    string `toml:"log_dir"`
	TreeFile  string `toml:"tree_file"`
	LiveFile  string `toml:"live_file"`
	HistoryDB string `toml:"history_db"`
}

// Sources describes the federation of remote catalogues.
type Sources struct {
	Roots           []string `toml:"roots"`
	Suffix          string   `toml:"suffix"`
	Ignore          []string `toml:"ignore"`
	RequestTimeout  float64  `toml:"request_timeout"`
	Concurrency     int      `toml:"concurrency"`
	StaleAfterHours float64  `toml:"stale_after_hours"`
	// FingerprintGate treats a payload whose body has not changed for
	// StaleAfterHours as stale even when Last-Modified looks fresh.
	FingerprintGate bool   `toml:"fingerprint_gate"`
	UserAgent       string `toml:"user_agent"`
}

// Keys maps catalogue concepts to the JSON field names used on the wire and in
// the persisted snapshots.
type Keys struct {
	Platform string `toml:"platform"`
	Channel  string `toml:"channel"`
	Result   string `toml:"result"`
	Address  string `toml:"address"`
	Name     string `toml:"name"`
}

// Probe contains liveness probe tuning. Timeouts are in seconds.
type Probe struct {
	Workers           int      `toml:"workers"`
	BatchSize         int      `toml:"batch_size"`
	ChannelTimeout    float64  `toml:"channel_timeout"`
	TCPTimeout        float64  `toml:"tcp_timeout"`
	HTTPTimeout       float64  `toml:"http_timeout"`
	DemuxerTimeout    float64  `toml:"demuxer_timeout"`
	RTMPHandshake     bool     `toml:"rtmp_handshake"`
	RecordingSuffixes []string `toml:"recording_suffixes"`
	// Demuxer selects which addresses escalate to the demuxer probe:
	// "off", "rtmp", or "all".
	Demuxer        string  `toml:"demuxer"`
	DemuxerBinary  string  `toml:"demuxer_binary"`
	CaptureSeconds float64 `toml:"capture_seconds"`
	UserAgent      string  `toml:"user_agent"`
}

// History contains configuration for the SQLite run history.
type History struct {
	Enabled  bool `toml:"enabled"`
	KeepRuns int  `toml:"keep_runs"`
}

// Daemon configures `livemon watch`, which repeats cycles on an interval.
type Daemon struct {
	IntervalMinutes int    `toml:"interval_minutes"`
	Mode            string `toml:"mode"`
}

// Interval returns the loop interval as a duration.
func (d Daemon) Interval() time.Duration {
	return time.Duration(d.IntervalMinutes) * time.Minute
}

// API configures the read-only HTTP status API served by `livemon watch`.
type API struct {
	// Bind is host:port; empty disables the API.
	Bind string `toml:"bind"`
	// Token, when set, is required as "Authorization: Bearer <token>".
	Token string `toml:"token"`
}

// Notifications configures cycle notifications sent to an ntfy topic.
type Notifications struct {
	// NtfyTopic is the full topic URL; empty disables notifications.
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	// OnComplete also notifies after successful cycles, not only failures.
	OnComplete bool `toml:"on_complete"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for livemon.
//
// Configuration sections by subsystem:
//   - Paths: data directory, snapshot file names, log directory
//   - Sources: root URLs, index suffix, ignore set, fetch tuning, staleness
//   - Keys: JSON field-name mapping for catalogue payloads and snapshots
//   - Probe: worker pool, batching, per-tier timeouts, demuxer escalation
//   - History: run history retention
//   - Daemon: interval loop for `livemon watch`
//   - API: status API bind address and token
//   - Notifications: ntfy cycle notifications
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Sources       Sources       `toml:"sources"`
	Keys          Keys          `toml:"keys"`
	Probe         Probe         `toml:"probe"`
	History       History       `toml:"history"`
	Daemon        Daemon        `toml:"daemon"`
	API           API           `toml:"api"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/livemon/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("livemon.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// TreePath returns the absolute path of the persisted source tree.
func (c *Config) TreePath() string {
	return c.dataFile(c.Paths.TreeFile)
}

// LivePath returns the absolute path of the persisted live-channel list.
func (c *Config) LivePath() string {
	return c.dataFile(c.Paths.LiveFile)
}

// HistoryPath returns the absolute path of the run history database.
func (c *Config) HistoryPath() string {
	return c.dataFile(c.Paths.HistoryDB)
}

// LockPath returns the path of the lock file guarding the data directory.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "livemon.lock")
}

// LogFilePattern matches the daily log files written under LogDir.
const LogFilePattern = "livemon-*.log"

// LogPath returns the path of the current day's log file.
func (c *Config) LogPath() string {
	return c.LogPathAt(time.Now())
}

// LogPathAt returns the log file path for the day containing ts.
func (c *Config) LogPathAt(ts time.Time) string {
	return filepath.Join(c.Paths.LogDir, "livemon-"+ts.Format("20060102")+".log")
}

func (c *Config) dataFile(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Paths.DataDir, name)
}

// RequestTimeoutDuration returns the per-request catalogue fetch timeout.
func (s Sources) RequestTimeoutDuration() time.Duration {
	return seconds(s.RequestTimeout)
}

// StaleAfter returns the staleness threshold.
func (s Sources) StaleAfter() time.Duration {
	return time.Duration(s.StaleAfterHours * float64(time.Hour))
}

// ChannelCeiling returns the hard per-channel wall-clock ceiling.
func (p Probe) ChannelCeiling() time.Duration { return seconds(p.ChannelTimeout) }

// TCPTimeoutDuration returns the transport handshake timeout.
func (p Probe) TCPTimeoutDuration() time.Duration { return seconds(p.TCPTimeout) }

// HTTPTimeoutDuration returns the HTTP range probe timeout.
func (p Probe) HTTPTimeoutDuration() time.Duration { return seconds(p.HTTPTimeout) }

// DemuxerTimeoutDuration returns the demuxer subprocess timeout.
func (p Probe) DemuxerTimeoutDuration() time.Duration { return seconds(p.DemuxerTimeout) }

// CaptureDuration returns how long the demuxer listens to the stream.
func (p Probe) CaptureDuration() time.Duration { return seconds(p.CaptureSeconds) }

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
