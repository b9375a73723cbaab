package config

import "time"

// Config holds runtime settings for the fieldsync CLI.
//
// Fields:
//   - ServerURL: base URL of the sync server, e.g. http://127.0.0.1:8080.
//   - DBPath: location of the local SQLite database.
//   - IconDir: directory where downloaded icon images are cached.
//   - LogFile, LogLevel: destination and verbosity of the rotated log file.
//   - OnlineCheckInterval: how often the client probes server reachability.
//   - SyncTimeout: watchdog budget of one sync cycle before the user is asked
//     whether to keep waiting.
//   - HTTPTimeout, RetryCount, RetryWait: transport tuning for each request.
type Config struct {
	ServerURL           string
	DBPath              string
	IconDir             string
	LogFile             string
	LogLevel            string
	OnlineCheckInterval time.Duration
	SyncTimeout         time.Duration
	HTTPTimeout         time.Duration
	RetryCount          int
	RetryWait           time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.DBPath = "fieldsync.db"
	c.IconDir = "icons"
	c.LogFile = "fieldsync.log"
	c.LogLevel = "info"
	c.OnlineCheckInterval = 3 * time.Second
	c.SyncTimeout = 25 * time.Second
	c.HTTPTimeout = 10 * time.Second
	c.RetryCount = 2
	c.RetryWait = 500 * time.Millisecond
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
