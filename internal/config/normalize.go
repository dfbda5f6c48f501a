package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSources()
	c.normalizeKeys()
	c.normalizeProbe()
	c.normalizeLogging()
	if c.History.KeepRuns < 0 {
		c.History.KeepRuns = 0
	}
	c.Daemon.Mode = strings.ToLower(strings.TrimSpace(c.Daemon.Mode))
	if c.Daemon.Mode == "" {
		c.Daemon.Mode = defaultDaemonMode
	}
	if c.Daemon.IntervalMinutes <= 0 {
		c.Daemon.IntervalMinutes = defaultDaemonInterval
	}
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	c.API.Token = strings.TrimSpace(c.API.Token)
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyTimeout
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.TreeFile = trimOr(c.Paths.TreeFile, defaultTreeFile)
	c.Paths.LiveFile = trimOr(c.Paths.LiveFile, defaultLiveFile)
	c.Paths.HistoryDB = trimOr(c.Paths.HistoryDB, defaultHistoryDB)
	for _, name := range []*string{&c.Paths.TreeFile, &c.Paths.LiveFile, &c.Paths.HistoryDB} {
		if strings.HasPrefix(*name, "~") {
			if *name, err = expandPath(*name); err != nil {
				return fmt.Errorf("paths: %w", err)
			}
		}
	}
	return nil
}

func (c *Config) normalizeSources() {
	if len(c.Sources.Roots) == 0 {
		if value, ok := os.LookupEnv("LIVEMON_SOURCES"); ok {
			c.Sources.Roots = strings.Split(value, ",")
		}
	}
	c.Sources.Roots = dedupeTrimmed(c.Sources.Roots)
	c.Sources.Ignore = dedupeTrimmed(c.Sources.Ignore)
	c.Sources.Suffix = strings.TrimSpace(c.Sources.Suffix)
	if c.Sources.RequestTimeout <= 0 {
		c.Sources.RequestTimeout = defaultRequestTimeout
	}
	if c.Sources.Concurrency <= 0 {
		c.Sources.Concurrency = defaultSourceConcurrency
	}
	c.Sources.UserAgent = trimOr(c.Sources.UserAgent, defaultUserAgent)
}

func (c *Config) normalizeKeys() {
	c.Keys.Platform = trimOr(c.Keys.Platform, defaultKeyPlatform)
	c.Keys.Channel = trimOr(c.Keys.Channel, defaultKeyChannel)
	c.Keys.Result = trimOr(c.Keys.Result, defaultKeyResult)
	c.Keys.Address = trimOr(c.Keys.Address, defaultKeyAddress)
	c.Keys.Name = trimOr(c.Keys.Name, defaultKeyName)
}

func (c *Config) normalizeProbe() {
	c.Probe.Demuxer = strings.ToLower(strings.TrimSpace(c.Probe.Demuxer))
	if c.Probe.Demuxer == "" {
		c.Probe.Demuxer = defaultDemuxerMode
	}
	c.Probe.DemuxerBinary = trimOr(c.Probe.DemuxerBinary, defaultDemuxerBinary)
	c.Probe.UserAgent = trimOr(c.Probe.UserAgent, defaultUserAgent)
	suffixes := make([]string, 0, len(c.Probe.RecordingSuffixes))
	for _, suffix := range dedupeTrimmed(c.Probe.RecordingSuffixes) {
		suffix = strings.ToLower(suffix)
		if !strings.HasPrefix(suffix, ".") {
			suffix = "." + suffix
		}
		suffixes = append(suffixes, suffix)
	}
	c.Probe.RecordingSuffixes = suffixes
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func trimOr(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}

func dedupeTrimmed(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
