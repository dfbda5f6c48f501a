package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strings"

	"github.com/agnivade/levenshtein"
)

const maxSuggestDistance = 2

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSources(); err != nil {
		return err
	}
	if err := c.validateKeys(); err != nil {
		return err
	}
	if err := c.validateProbe(); err != nil {
		return err
	}
	if err := oneOf("daemon.mode", c.Daemon.Mode, "run", "refresh", "probe"); err != nil {
		return err
	}
	if bind := c.API.Bind; bind != "" {
		if _, _, err := net.SplitHostPort(bind); err != nil {
			return fmt.Errorf("api.bind: %q must be host:port: %w", bind, err)
		}
	}
	if topic := c.Notifications.NtfyTopic; topic != "" {
		parsed, err := url.Parse(topic)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return fmt.Errorf("notifications.ntfy_topic: %q must be an http(s) topic url", topic)
		}
	}
	return nil
}

// RequireRoots reports an error when no root source URLs are configured.
// Refreshing without roots would drop every persisted source.
func (c *Config) RequireRoots() error {
	if len(c.Sources.Roots) == 0 {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/livemon/config.toml"
		}
		return fmt.Errorf("sources.roots is empty. Set LIVEMON_SOURCES or edit %s (create with 'livemon config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateSources() error {
	for _, root := range c.Sources.Roots {
		parsed, err := url.Parse(root)
		if err != nil {
			return fmt.Errorf("sources.roots: invalid url %q: %w", root, err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("sources.roots: %q must be an http(s) url", root)
		}
		if parsed.Host == "" {
			return fmt.Errorf("sources.roots: %q has no host", root)
		}
	}
	if c.Sources.StaleAfterHours <= 0 {
		return errors.New("sources.stale_after_hours must be positive")
	}
	return nil
}

func (c *Config) validateKeys() error {
	seen := make(map[string]string, 5)
	for name, value := range map[string]string{
		"keys.platform": c.Keys.Platform,
		"keys.channel":  c.Keys.Channel,
		"keys.result":   c.Keys.Result,
		"keys.address":  c.Keys.Address,
		"keys.name":     c.Keys.Name,
	} {
		if other, dup := seen[value]; dup {
			first, second := other, name
			if second < first {
				first, second = second, first
			}
			return fmt.Errorf("%s and %s must differ (both %q)", first, second, value)
		}
		seen[value] = name
	}
	return nil
}

func (c *Config) validateProbe() error {
	if err := ensurePositiveMap(map[string]float64{
		"probe.channel_timeout": c.Probe.ChannelTimeout,
		"probe.tcp_timeout":     c.Probe.TCPTimeout,
		"probe.http_timeout":    c.Probe.HTTPTimeout,
		"probe.demuxer_timeout": c.Probe.DemuxerTimeout,
		"probe.capture_seconds": c.Probe.CaptureSeconds,
	}); err != nil {
		return err
	}
	if c.Probe.Workers <= 0 {
		return errors.New("probe.workers must be positive")
	}
	if c.Probe.BatchSize <= 0 {
		return errors.New("probe.batch_size must be positive")
	}
	if err := oneOf("probe.demuxer", c.Probe.Demuxer, DemuxerOff, DemuxerRTMP, DemuxerAll); err != nil {
		return err
	}
	if c.Probe.Demuxer != DemuxerOff && c.Probe.CaptureSeconds >= c.Probe.DemuxerTimeout {
		return errors.New("probe.capture_seconds must be shorter than probe.demuxer_timeout")
	}
	if strings.TrimSpace(c.Probe.DemuxerBinary) == "" {
		return errors.New("probe.demuxer_binary must be set")
	}
	return nil
}

func ensurePositiveMap(values map[string]float64) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

// oneOf rejects values outside options, suggesting the closest option when
// the value looks like a typo.
func oneOf(key, value string, options ...string) error {
	if slices.Contains(options, value) {
		return nil
	}
	msg := fmt.Sprintf("%s: %q must be one of %s", key, value, strings.Join(options, ", "))
	if guess := closest(value, options); guess != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", guess)
	}
	return errors.New(msg)
}

func closest(value string, options []string) string {
	best, bestDist := "", maxSuggestDistance+1
	for _, opt := range options {
		if d := levenshtein.ComputeDistance(value, opt); d < bestDist {
			best, bestDist = opt, d
		}
	}
	return best
}
