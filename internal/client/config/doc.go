// Package config loads runtime configuration for the fieldsync CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c/-config or FIELDSYNC_CONFIG.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the sync server
//	-d string   local database path
//	-i int      online status check interval (seconds)
//	-t int      sync timeout (seconds)
//	-l string   log level
//
// # JSON schema
//
//	{
//	  "server_url": "http://127.0.0.1:8080",
//	  "db_path": "fieldsync.db",
//	  "icon_dir": "icons",
//	  "log_file": "fieldsync.log",
//	  "log_level": "info",
//	  "online_check_interval": "3s",
//	  "sync_timeout": "25s",
//	  "http_timeout": "10s",
//	  "retry_count": 2,
//	  "retry_wait": "500ms"
//	}
package config
