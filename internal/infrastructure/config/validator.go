package config

import (
	"fmt"
	"strings"
	"time"
)

// reloadableKeys defines the whitelist of configuration keys that can be hot-reloaded.
var reloadableKeys = map[string]bool{
	"logging.level": true,
}

// staticKeys defines configuration keys that require application restart.
var staticKeys = map[string]string{
	"logging.format":      "Log handler recreation required",
	"bot.modules":         "Module registry is built once at startup",
	"slack":               "Socket Mode session recreation required",
	"server.port":         "HTTP listener restart required",
	"storage.type":        "Storage backend initialization required",
	"storage.sqlite.path": "Database connection recreation required",
	"storage.mysql":       "Database connection pool recreation required",
}

// IsReloadable returns true if the given config key can be hot-reloaded.
func IsReloadable(key string) bool {
	return reloadableKeys[key]
}

// getRestartReason returns the reason why a static config key requires restart.
func getRestartReason(key string) string {
	if reason, ok := staticKeys[key]; ok {
		return reason
	}
	return "unknown configuration requires restart"
}

// ValidateLogLevel checks if the log level is valid.
func ValidateLogLevel(level string) error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", level)
	}
	return nil
}

// ValidateLogFormat checks if the log format is valid.
func ValidateLogFormat(format string) error {
	validFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validFormats[format] {
		return fmt.Errorf("invalid log format: %s (must be json or text)", format)
	}
	return nil
}

// ValidateNonEmpty checks if a string is non-empty.
func ValidateNonEmpty(value string, fieldName string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	return nil
}

// ValidateDuration checks if a duration is greater than zero.
func ValidateDuration(duration time.Duration, fieldName string) error {
	if duration <= 0 {
		return fmt.Errorf("%s must be greater than 0", fieldName)
	}
	return nil
}

// ValidatePort checks if a port number is valid.
func ValidatePort(port int, fieldName string) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535, got %d", fieldName, port)
	}
	return nil
}

// ValidateStorageType checks if the storage type is valid.
func ValidateStorageType(storageType string) error {
	validTypes := map[string]bool{
		"sqlite": true,
		"mysql":  true,
	}
	if !validTypes[storageType] {
		return fmt.Errorf("invalid storage type: %s (must be sqlite or mysql)", storageType)
	}
	return nil
}

// ValidateIcon checks that an icon is an emoji shortcode or an http(s) URL.
func ValidateIcon(icon string) error {
	if strings.HasPrefix(icon, ":") && strings.HasSuffix(icon, ":") && len(icon) > 2 {
		return nil
	}
	if strings.HasPrefix(icon, "http://") || strings.HasPrefix(icon, "https://") {
		return nil
	}
	return fmt.Errorf("invalid bot.icon: %q (must be an :emoji: or an http(s) URL)", icon)
}

// Validate performs comprehensive validation on the configuration.
// Credentials of the live engine are checked separately by ValidateLive,
// so offline runs need no tokens.
func (c *Config) Validate() error {
	var errors []string

	// Bot validation
	if err := ValidateNonEmpty(c.Bot.Name, "bot.name"); err != nil {
		errors = append(errors, err.Error())
	}
	if err := ValidateIcon(c.Bot.Icon); err != nil {
		errors = append(errors, err.Error())
	}
	if c.Bot.MaxConcurrentInvocations < 1 {
		errors = append(errors, "bot.max_concurrent_invocations must be at least 1")
	}
	if c.Bot.InvocationTimeout < 0 {
		errors = append(errors, "bot.invocation_timeout cannot be negative")
	}
	if c.Bot.SendRetries < 1 {
		errors = append(errors, "bot.send_retries must be at least 1")
	}

	// Local engine validation
	if c.Local.StartupDelay < 0 {
		errors = append(errors, "local.startup_delay cannot be negative")
	}
	if c.Local.ItemUserID != "" && c.Local.ItemUserID == c.Local.UserID {
		errors = append(errors, "local.item_user_id must differ from local.user_id")
	}

	// Slack reconnect validation
	if c.Slack.Reconnect.MaxBackoff > 0 && c.Slack.Reconnect.InitialBackoff > c.Slack.Reconnect.MaxBackoff {
		errors = append(errors, "slack.reconnect.initial_backoff cannot exceed slack.reconnect.max_backoff")
	}
	if c.Slack.Reconnect.MaxFailures < 0 {
		errors = append(errors, "slack.reconnect.max_failures cannot be negative")
	}

	// Outbound HTTP validation
	if err := ValidateDuration(c.HTTP.Timeout, "http.timeout"); err != nil {
		errors = append(errors, err.Error())
	}
	if c.HTTP.CacheSize < 1 {
		errors = append(errors, "http.cache_size must be at least 1")
	}

	// Server validation
	if c.Server.Enabled {
		if err := ValidatePort(c.Server.Port, "server.port"); err != nil {
			errors = append(errors, err.Error())
		}
		if err := ValidateDuration(c.Server.ReadTimeout, "server.read_timeout"); err != nil {
			errors = append(errors, err.Error())
		}
		if err := ValidateDuration(c.Server.WriteTimeout, "server.write_timeout"); err != nil {
			errors = append(errors, err.Error())
		}
		if err := ValidateDuration(c.Server.ShutdownTimeout, "server.shutdown_timeout"); err != nil {
			errors = append(errors, err.Error())
		}
	}

	// Storage validation
	if err := ValidateStorageType(c.Storage.Type); err != nil {
		errors = append(errors, err.Error())
	}

	// SQLite-specific validation
	if c.Storage.Type == "sqlite" {
		if err := ValidateNonEmpty(c.Storage.SQLite.Path, "storage.sqlite.path"); err != nil {
			errors = append(errors, err.Error())
		}
	}

	// MySQL-specific validation
	if c.Storage.Type == "mysql" {
		if err := ValidateNonEmpty(c.Storage.MySQL.Host, "storage.mysql.host"); err != nil {
			errors = append(errors, err.Error())
		}
		if err := ValidatePort(c.Storage.MySQL.Port, "storage.mysql.port"); err != nil {
			errors = append(errors, err.Error())
		}
		if err := ValidateNonEmpty(c.Storage.MySQL.Database, "storage.mysql.database"); err != nil {
			errors = append(errors, err.Error())
		}
		if err := ValidateNonEmpty(c.Storage.MySQL.Username, "storage.mysql.username"); err != nil {
			errors = append(errors, err.Error())
		}
		if err := ValidateNonEmpty(c.Storage.MySQL.Password, "storage.mysql.password"); err != nil {
			errors = append(errors, err.Error())
		}

		// Connection pool validation
		if c.Storage.MySQL.Pool.MaxOpenConns < 1 {
			errors = append(errors, "storage.mysql.pool.max_open_conns must be at least 1")
		}
		if c.Storage.MySQL.Pool.MaxIdleConns < 0 {
			errors = append(errors, "storage.mysql.pool.max_idle_conns cannot be negative")
		}
		if c.Storage.MySQL.Pool.MaxIdleConns > c.Storage.MySQL.Pool.MaxOpenConns {
			errors = append(errors, "storage.mysql.pool.max_idle_conns cannot exceed max_open_conns")
		}
	}

	// PagerDuty validation
	for _, id := range c.PagerDuty.ScheduleIDs {
		if strings.TrimSpace(id) == "" {
			errors = append(errors, "pagerduty.schedule_ids contains an empty id")
		}
	}

	// Logging validation
	if err := ValidateLogLevel(c.Logging.Level); err != nil {
		errors = append(errors, err.Error())
	}
	if err := ValidateLogFormat(c.Logging.Format); err != nil {
		errors = append(errors, err.Error())
	}

	// Return all validation errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", joinErrors(errors))
	}

	return nil
}

// ValidateLive checks the credentials required by the live Slack engine.
func (c *Config) ValidateLive() error {
	var errors []string

	if err := ValidateNonEmpty(c.Slack.BotToken, "slack.bot_token"); err != nil {
		errors = append(errors, err.Error())
	} else if !strings.HasPrefix(c.Slack.BotToken, "xoxb-") {
		errors = append(errors, "slack.bot_token must be a bot token (xoxb-)")
	}
	if err := ValidateNonEmpty(c.Slack.AppToken, "slack.app_token"); err != nil {
		errors = append(errors, err.Error())
	} else if !strings.HasPrefix(c.Slack.AppToken, "xapp-") {
		errors = append(errors, "slack.app_token must be an app-level token (xapp-)")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", joinErrors(errors))
	}
	return nil
}

// joinErrors joins multiple error messages with newlines and bullets.
func joinErrors(errors []string) string {
	if len(errors) == 0 {
		return ""
	}
	result := errors[0]
	for i := 1; i < len(errors); i++ {
		result += "\n  - " + errors[i]
	}
	return result
}
