// Package config loads invbf device settings.
//
// # Resolution Order
//
//  1. Built-in defaults (see Default)
//  2. ~/.config/invbf/config.toml, or the path passed to Load
//  3. A .env file in the working directory, loaded with godotenv without
//     overriding variables already set
//  4. INVBF_* environment variables (INVBF_SERVER, INVBF_RETRY_DELAY, ...)
//
// A missing config file is not an error. Durations use Go duration strings
// ("8s", "2m"). The result is checked with validator before it is returned.
//
// # TOML Format
//
//	server = "inventory.local:8080"
//	device = "counter-1"
//	data_dir = "~/.local/share/invbf"
//	storage_capacity_mb = 10
//	catalog_codec = "snappy"   # snappy | zstd | lz4 | none
//	controlled_hardware = false
//	probe_timeout = "8s"
//	version_timeout = "10s"
//	catalog_timeout = "2m"
//	request_timeout = "15s"
//	retry_delay = "5s"
//	monitor_interval = "15s"
//	liveness_interval = "30s"
//	log_level = "info"
package config
