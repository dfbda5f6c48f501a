package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"livemon/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("LIVEMON_SOURCES", "http://a.example/live/, http://b.example/feed/")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "livemon")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.TreePath() != filepath.Join(wantData, "pt.json") {
		t.Fatalf("unexpected tree path: %q", cfg.TreePath())
	}
	if cfg.LivePath() != filepath.Join(wantData, "ch.json") {
		t.Fatalf("unexpected live path: %q", cfg.LivePath())
	}
	if len(cfg.Sources.Roots) != 2 || cfg.Sources.Roots[1] != "http://b.example/feed/" {
		t.Fatalf("expected roots from env, got %v", cfg.Sources.Roots)
	}
	if cfg.Keys.Platform != "pingtai" || cfg.Keys.Channel != "zhubo" || cfg.Keys.Name != "title" {
		t.Fatalf("unexpected default keys: %+v", cfg.Keys)
	}
	if cfg.Probe.Demuxer != config.DemuxerRTMP {
		t.Fatalf("unexpected demuxer mode: %q", cfg.Probe.Demuxer)
	}
	if cfg.Probe.TCPTimeoutDuration() != time.Second {
		t.Fatalf("unexpected tcp timeout: %v", cfg.Probe.TCPTimeoutDuration())
	}
	if cfg.Sources.StaleAfter() != 6*time.Hour {
		t.Fatalf("unexpected stale threshold: %v", cfg.Sources.StaleAfter())
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "livemon.toml")

	type payload struct {
		Paths struct {
			DataDir  string `toml:"data_dir"`
			TreeFile string `toml:"tree_file"`
		} `toml:"paths"`
		Sources struct {
			Roots  []string `toml:"roots"`
			Ignore []string `toml:"ignore"`
		} `toml:"sources"`
		Keys struct {
			Platform string `toml:"platform"`
		} `toml:"keys"`
		Probe struct {
			Workers           int      `toml:"workers"`
			Demuxer           string   `toml:"demuxer"`
			RecordingSuffixes []string `toml:"recording_suffixes"`
		} `toml:"probe"`
	}
	custom := payload{}
	custom.Paths.DataDir = filepath.Join(tempDir, "data")
	custom.Paths.TreeFile = "tree.json"
	custom.Sources.Roots = []string{"https://feeds.example/"}
	custom.Sources.Ignore = []string{"jsonlongzhu.txt", " jsonlongzhu.txt ", ""}
	custom.Keys.Platform = "platforms"
	custom.Probe.Workers = 8
	custom.Probe.Demuxer = "OFF"
	custom.Probe.RecordingSuffixes = []string{"MP4", ".flv"}

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("unexpected resolution: %q exists=%v", resolved, exists)
	}
	if cfg.TreePath() != filepath.Join(tempDir, "data", "tree.json") {
		t.Fatalf("unexpected tree path: %q", cfg.TreePath())
	}
	if len(cfg.Sources.Ignore) != 1 || cfg.Sources.Ignore[0] != "jsonlongzhu.txt" {
		t.Fatalf("expected deduped ignore set, got %v", cfg.Sources.Ignore)
	}
	if cfg.Keys.Platform != "platforms" || cfg.Keys.Channel != "zhubo" {
		t.Fatalf("unexpected keys: %+v", cfg.Keys)
	}
	if cfg.Probe.Workers != 8 || cfg.Probe.Demuxer != config.DemuxerOff {
		t.Fatalf("unexpected probe settings: %+v", cfg.Probe)
	}
	if got := strings.Join(cfg.Probe.RecordingSuffixes, ","); got != ".mp4,.flv" {
		t.Fatalf("unexpected recording suffixes: %q", got)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"non-http root", func(c *config.Config) { c.Sources.Roots = []string{"ftp://x/"} }, "sources.roots"},
		{"zero workers", func(c *config.Config) { c.Probe.Workers = 0 }, "probe.workers"},
		{"zero batch", func(c *config.Config) { c.Probe.BatchSize = 0 }, "probe.batch_size"},
		{"unknown demuxer", func(c *config.Config) { c.Probe.Demuxer = "sometimes" }, "probe.demuxer"},
		{"capture too long", func(c *config.Config) { c.Probe.CaptureSeconds = 10 }, "probe.capture_seconds"},
		{"negative timeout", func(c *config.Config) { c.Probe.TCPTimeout = -1 }, "probe.tcp_timeout"},
		{"duplicate keys", func(c *config.Config) { c.Keys.Channel = c.Keys.Platform }, "keys.channel and keys.platform"},
		{"stale threshold", func(c *config.Config) { c.Sources.StaleAfterHours = 0 }, "sources.stale_after_hours"},
		{"demuxer typo", func(c *config.Config) { c.Probe.Demuxer = "rtpm" }, `did you mean "rtmp"?`},
		{"api bind", func(c *config.Config) { c.API.Bind = "7980" }, "api.bind"},
		{"daemon mode", func(c *config.Config) { c.Daemon.Mode = "hourly" }, "daemon.mode"},
		{"ntfy topic", func(c *config.Config) { c.Notifications.NtfyTopic = "ntfy.sh/topic" }, "notifications.ntfy_topic"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in %q", tc.want, err.Error())
			}
		})
	}
}

func TestRequireRoots(t *testing.T) {
	cfg := config.Default()
	if err := cfg.RequireRoots(); err == nil {
		t.Fatal("expected error without roots")
	}
	cfg.Sources.Roots = []string{"http://a.example/"}
	if err := cfg.RequireRoots(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateSampleLoads(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(target); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(target)
	if err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Probe.Workers != config.Default().Probe.Workers {
		t.Fatalf("sample workers %d differ from default", cfg.Probe.Workers)
	}
}
