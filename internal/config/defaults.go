package config

const (
	defaultDataDir            = "~/.local/share/livemon"
	defaultLogDir             = "~/.local/share/livemon/logs"
	defaultTreeFile           = "pt.json"
	defaultLiveFile           = "ch.json"
	defaultHistoryDB          = "history.db"
	defaultSourceSuffix       = "json.txt"
	defaultRequestTimeout     = 3.0
	defaultSourceConcurrency  = 10
	defaultStaleAfterHours    = 6.0
	defaultUserAgent          = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	defaultKeyPlatform        = "pingtai"
	defaultKeyChannel         = "zhubo"
	defaultKeyResult          = "result"
	defaultKeyAddress         = "address"
	defaultKeyName            = "title"
	defaultProbeWorkers       = 50
	defaultProbeBatchSize     = 1000
	defaultChannelTimeout     = 5.0
	defaultTCPTimeout         = 1.0
	defaultHTTPTimeout        = 3.0
	defaultDemuxerTimeout     = 3.0
	defaultCaptureSeconds     = 1.0
	defaultDemuxerMode        = DemuxerRTMP
	defaultDemuxerBinary      = "ffprobe"
	defaultHistoryKeepRuns    = 200
	defaultNtfyTimeout        = 10
	defaultDaemonInterval     = 30
	defaultDaemonMode         = "run"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLogRetentionDays   = 30
	defaultRecordingExtension = ".mp4"
)

// Demuxer escalation modes.
const (
	DemuxerOff  = "off"
	DemuxerRTMP = "rtmp"
	DemuxerAll  = "all"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			LogDir:    defaultLogDir,
			TreeFile:  defaultTreeFile,
			LiveFile:  defaultLiveFile,
			HistoryDB: defaultHistoryDB,
		},
		Sources: Sources{
			Suffix:          defaultSourceSuffix,
			RequestTimeout:  defaultRequestTimeout,
			Concurrency:     defaultSourceConcurrency,
			StaleAfterHours: defaultStaleAfterHours,
			UserAgent:       defaultUserAgent,
		},
		Keys: Keys{
			Platform: defaultKeyPlatform,
			Channel:  defaultKeyChannel,
			Result:   defaultKeyResult,
			Address:  defaultKeyAddress,
			Name:     defaultKeyName,
		},
		Probe: Probe{
			Workers:           defaultProbeWorkers,
			BatchSize:         defaultProbeBatchSize,
			ChannelTimeout:    defaultChannelTimeout,
			TCPTimeout:        defaultTCPTimeout,
			HTTPTimeout:       defaultHTTPTimeout,
			DemuxerTimeout:    defaultDemuxerTimeout,
			RTMPHandshake:     true,
			RecordingSuffixes: []string{defaultRecordingExtension},
			Demuxer:           defaultDemuxerMode,
			DemuxerBinary:     defaultDemuxerBinary,
			CaptureSeconds:    defaultCaptureSeconds,
			UserAgent:         defaultUserAgent,
		},
		History: History{
			Enabled:  true,
			KeepRuns: defaultHistoryKeepRuns,
		},
		Daemon: Daemon{
			IntervalMinutes: defaultDaemonInterval,
			Mode:            defaultDaemonMode,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
