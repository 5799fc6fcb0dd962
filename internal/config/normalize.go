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
	c.normalizeRemote()
	c.normalizeSync()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeRemote() {
	c.Remote.BaseURL = strings.TrimSpace(c.Remote.BaseURL)
	if c.Remote.BaseURL == "" {
		if value, ok := os.LookupEnv(remoteBaseURLEnv); ok {
			c.Remote.BaseURL = strings.TrimSpace(value)
		}
	}
	c.Remote.BaseURL = strings.TrimRight(c.Remote.BaseURL, "/")
	c.Remote.StatusesPath = strings.TrimSpace(c.Remote.StatusesPath)
	if c.Remote.StatusesPath == "" {
		c.Remote.StatusesPath = defaultRemoteStatusesEndpoint
	}
	if !strings.HasPrefix(c.Remote.StatusesPath, "/") {
		c.Remote.StatusesPath = "/" + c.Remote.StatusesPath
	}
	c.Remote.APIToken = strings.TrimSpace(c.Remote.APIToken)
	if c.Remote.APIToken == "" {
		if value, ok := os.LookupEnv(apiTokenEnv); ok {
			c.Remote.APIToken = strings.TrimSpace(value)
		}
	}
	if c.Remote.RequestTimeout <= 0 {
		c.Remote.RequestTimeout = defaultRemoteRequestTimeout
	}
}

func (c *Config) normalizeSync() {
	if c.Sync.PollInterval <= 0 {
		c.Sync.PollInterval = defaultSyncPollInterval
	}
	if c.Sync.ErrorRetryInterval <= 0 {
		c.Sync.ErrorRetryInterval = defaultSyncErrorRetryInterval
	}
	if c.Sync.MaxBatchSize < 0 {
		c.Sync.MaxBatchSize = 0
	}
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
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = defaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups < 0 {
		c.Logging.MaxBackups = 0
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
