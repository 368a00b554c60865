package config

const (
	defaultOutputDir          = "~/.local/share/clipforge/output"
	defaultTempDir            = "~/.local/share/clipforge/temp"
	defaultLogDir             = "~/.local/share/clipforge/logs"
	defaultAPIBind            = "127.0.0.1:7843"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultQueuePollInterval  = 5
	defaultErrorRetryInterval = 10
	defaultPublishStepDelay   = 2
	defaultObjectStoreTimeout = 60
	defaultNotifyTimeout      = 10
	defaultAudioQuality       = "high"
	defaultVideoQuality       = "high"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			TempDir:   defaultTempDir,
			LogDir:    defaultLogDir,
			APIBind:   defaultAPIBind,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			PublishStepDelay:   defaultPublishStepDelay,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		ObjectStore: ObjectStore{
			RequestTimeout: defaultObjectStoreTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Completion:     true,
			Errors:         true,
		},
		Quality: Quality{
			Audio: defaultAudioQuality,
			Video: defaultVideoQuality,
		},
	}
}
