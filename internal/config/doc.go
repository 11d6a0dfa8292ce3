// Package config loads newsdesk configuration.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/newsdesk/config.toml (default)
//  3. If the config file doesn't exist, fall back to defaults
//  4. If the file exists but fields are missing/empty, use defaults
//  5. NEWSDESK_* environment variables override both
//
// # Example
//
//	api_base = "https://news.example.org"
//	attempt_timeout = "12s"
//	poll_interval = "30s"
//
//	[retry]
//	max_attempts = 3
//	initial_delay = "500ms"
//	cascade_retries = 1
//
//	[actor]
//	id = "u-42"
//	role = "editor"
//
//	[credentials]
//	file = "~/.config/newsdesk/credentials.toml"
//	keys = ["token", "authToken"]
//
//	[mirror]
//	driver = "sqlite"
//	path = "~/.local/share/newsdesk/mirror.db"
//
//	[submission]
//	unknown_field_markers = ["unknown column", "schema cache"]
//
//	[[endpoints.list_pending]]
//	name = "v3-pending"
//	method = "GET"
//	path = "/api/v3/news?status=pending"
//
// An [endpoints.<op>] list replaces the built-in candidates for that
// operation only; other operations keep their defaults.
//
// # Environment Overrides
//
//   - NEWSDESK_API_BASE, NEWSDESK_USER_AGENT
//   - NEWSDESK_ACTOR_ID, NEWSDESK_ACTOR_ROLE
//   - NEWSDESK_MIRROR_DRIVER, NEWSDESK_MIRROR_PATH
//   - NEWSDESK_RETRY_MAX_ATTEMPTS, NEWSDESK_CASCADE_RETRIES
//   - NEWSDESK_ATTEMPT_TIMEOUT, NEWSDESK_POLL_INTERVAL (seconds or "15s")
//
// Paths accept a leading ~ and are made absolute.
package config
