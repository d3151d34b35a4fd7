package config

// Object store backend names.
const (
	BackendFS = "fs"
	BackendS3 = "s3"
)

const (
	defaultDataDir            = "~/.local/share/fieldtag/data"
	defaultStagingDir         = "~/.local/share/fieldtag/staging"
	defaultLogDir             = "~/.local/share/fieldtag/logs"
	defaultMediaDir           = "~/.local/share/fieldtag/media"
	defaultAPIBind            = "127.0.0.1:7519"
	defaultDelimiter          = ","
	defaultPlaceholderName    = ".keep"
	defaultMinFreeGiB         = 2
	defaultScratchMaxAgeHours = 24
	defaultNotifyTimeout      = 10
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

var defaultAllowedExtensions = []string{".mp3", ".mp4", ".wav", ".m4a", ".ogg", ".webm", ".mov"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
			MediaDir:   defaultMediaDir,
			APIBind:    defaultAPIBind,
		},
		Storage: Storage{
			Backend: BackendFS,
		},
		Ingest: Ingest{
			Delimiter:          defaultDelimiter,
			AllowedExtensions:  append([]string(nil), defaultAllowedExtensions...),
			PlaceholderName:    defaultPlaceholderName,
			MinFreeGiB:         defaultMinFreeGiB,
			ScratchMaxAgeHours: defaultScratchMaxAgeHours,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Ingest:         true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
