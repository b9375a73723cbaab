package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/fieldsync/internal/flagx"
	"github.com/dmitrijs2005/fieldsync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Intervals use
// timex.Duration, so they may be strings like "3s" or integer nanoseconds.
type JsonConfig struct {
	ServerURL           string         `json:"server_url"`
	DBPath              string         `json:"db_path"`
	IconDir             string         `json:"icon_dir"`
	LogFile             string         `json:"log_file"`
	LogLevel            string         `json:"log_level"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
	SyncTimeout         timex.Duration `json:"sync_timeout"`
	HTTPTimeout         timex.Duration `json:"http_timeout"`
	RetryCount          *int           `json:"retry_count"`
	RetryWait           timex.Duration `json:"retry_wait"`
}

// parseJson overlays Config with values loaded from a JSON file. The path
// comes from -c/-config or FIELDSYNC_CONFIG; with neither set nothing is
// loaded. Keys absent from the file keep their current value.
//
// Panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.ConfigPath(os.Args[1:])
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.ServerURL, jc.ServerURL)
	setString(&cfg.DBPath, jc.DBPath)
	setString(&cfg.IconDir, jc.IconDir)
	setString(&cfg.LogFile, jc.LogFile)
	setString(&cfg.LogLevel, jc.LogLevel)
	if jc.OnlineCheckInterval.Duration > 0 {
		cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	}
	if jc.SyncTimeout.Duration > 0 {
		cfg.SyncTimeout = jc.SyncTimeout.Duration
	}
	if jc.HTTPTimeout.Duration > 0 {
		cfg.HTTPTimeout = jc.HTTPTimeout.Duration
	}
	if jc.RetryCount != nil {
		cfg.RetryCount = *jc.RetryCount
	}
	if jc.RetryWait.Duration > 0 {
		cfg.RetryWait = jc.RetryWait.Duration
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
