package config

import "time"

// DefaultLanguages is the code-sample language set used when none is requested.
var DefaultLanguages = []string{"curl", "python"}

const (
	defaultOutputDir     = "./site"
	defaultCacheDir      = ".cache/specblocks"
	defaultCacheBackend  = "fs"
	defaultFetchTimeout  = 30 * time.Second
	defaultMaxBytes      = 64 << 20
	defaultRetryInitial  = 500 * time.Millisecond
	defaultRetryMax      = 8 * time.Second
	defaultRetryAttempts = 3
	defaultNotifySubject = "specblocks.builds"
	defaultNotifyStream  = "SPECBLOCKS"
	defaultWatchInterval = 15 * time.Minute
	defaultWatchDebounce = time.Second
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Output.Directory == "" {
		c.Output.Directory = defaultOutputDir
	}
	if c.Cache.Directory == "" {
		c.Cache.Directory = defaultCacheDir
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = defaultCacheBackend
	}
	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = defaultFetchTimeout
	}
	if c.Fetch.MaxBytes <= 0 {
		c.Fetch.MaxBytes = defaultMaxBytes
	}
	if mode := NormalizeRetryBackoff(string(c.Fetch.Retry.Mode)); mode != "" {
		c.Fetch.Retry.Mode = mode
	} else if c.Fetch.Retry.Mode == "" {
		c.Fetch.Retry.Mode = RetryBackoffExponential
	}
	if c.Fetch.Retry.Initial <= 0 {
		c.Fetch.Retry.Initial = defaultRetryInitial
	}
	if c.Fetch.Retry.Max <= 0 {
		c.Fetch.Retry.Max = defaultRetryMax
	}
	if c.Fetch.Retry.Attempts == 0 {
		c.Fetch.Retry.Attempts = defaultRetryAttempts
	}
	if len(c.Render.Languages) == 0 {
		c.Render.Languages = append([]string(nil), DefaultLanguages...)
	}
	if c.Notify.NATSURL != "" && c.Notify.Subject == "" {
		c.Notify.Subject = defaultNotifySubject
	}
	if c.Notify.NATSURL != "" && c.Notify.Stream == "" {
		c.Notify.Stream = defaultNotifyStream
	}
	if c.Watch.Interval == 0 {
		c.Watch.Interval = defaultWatchInterval
	}
	if c.Watch.Debounce == 0 {
		c.Watch.Debounce = defaultWatchDebounce
	}
}
