package config

const (
	defaultConfigPath             = "~/.config/articlesync/config.toml"
	defaultEnvFilePath            = "~/.config/articlesync/articlesync.env"
	defaultProjectConfigName      = "articlesync.toml"
	defaultStateDir               = "~/.local/share/articlesync"
	defaultLogDir                 = "~/.local/share/articlesync/logs"
	defaultRemoteRequestTimeout   = 30
	defaultSyncPollInterval       = 60
	defaultSyncErrorRetryInterval = 120
	defaultSyncMaxBatchSize       = 500
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultLogMaxSizeMB           = 20
	defaultLogMaxBackups          = 5
	defaultLogRetentionDays       = 30
	defaultRemoteStatusesEndpoint = "/statuses"
	apiTokenEnv                   = "ARTICLESYNC_API_TOKEN"
	remoteBaseURLEnv              = "ARTICLESYNC_REMOTE_URL"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Remote: Remote{
			StatusesPath:   defaultRemoteStatusesEndpoint,
			RequestTimeout: defaultRemoteRequestTimeout,
		},
		Sync: Sync{
			Enabled:            true,
			PollInterval:       defaultSyncPollInterval,
			ErrorRetryInterval: defaultSyncErrorRetryInterval,
			MaxBatchSize:       defaultSyncMaxBatchSize,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			MaxSizeMB:     defaultLogMaxSizeMB,
			MaxBackups:    defaultLogMaxBackups,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
