package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Bot       BotConfig       `yaml:"bot"`
	Slack     SlackConfig     `yaml:"slack"`
	Local     LocalConfig     `yaml:"local"`
	Storage   StorageConfig   `yaml:"storage"`
	PagerDuty PagerDutyConfig `yaml:"pagerduty"`
	HTTP      HTTPConfig      `yaml:"http"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// BotConfig holds bot identity and dispatch settings.
type BotConfig struct {
	Name string `yaml:"name"`

	// Icon is an emoji shortcode (":cat:") or an image URL.
	Icon string `yaml:"icon"`

	// Modules lists the enabled modules by command. Empty enables all.
	Modules []string `yaml:"modules"`

	MaxConcurrentInvocations int           `yaml:"max_concurrent_invocations"`
	InvocationTimeout        time.Duration `yaml:"invocation_timeout"` // 0 disables the timeout
	SendRetries              int           `yaml:"send_retries"`
}

// SlackConfig holds Slack Socket Mode settings.
type SlackConfig struct {
	BotToken  string          `yaml:"bot_token"`
	AppToken  string          `yaml:"app_token"`
	APIURL    string          `yaml:"api_url"` // Overrides the Web API base URL (testing)
	Debug     bool            `yaml:"debug"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
}

// ReconnectConfig holds Socket Mode reconnection settings.
type ReconnectConfig struct {
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	MaxFailures    int           `yaml:"max_failures"`
}

// LocalConfig holds settings of the offline engine.
type LocalConfig struct {
	StartupDelay time.Duration `yaml:"startup_delay"`
	ChannelID    string        `yaml:"channel_id"`
	UserID       string        `yaml:"user_id"`

	// ItemUserID authors the message a synthesized reaction points at.
	ItemUserID string `yaml:"item_user_id"`
}

// StorageConfig holds persistence storage settings.
type StorageConfig struct {
	Type   string       `yaml:"type"` // "sqlite" or "mysql"
	SQLite SQLiteConfig `yaml:"sqlite"`
	MySQL  MySQLConfig  `yaml:"mysql"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path string `yaml:"path"` // Database file path, use ":memory:" for in-memory
}

// MySQLConfig holds MySQL-specific settings. All reads and writes share one pool.
type MySQLConfig struct {
	Host      string          `yaml:"host"`
	Port      int             `yaml:"port"`
	Database  string          `yaml:"database"`
	Username  string          `yaml:"username"`
	Password  string          `yaml:"password"`
	Pool      MySQLPoolConfig `yaml:"pool"`
	Timeout   time.Duration   `yaml:"timeout"`
	ParseTime bool            `yaml:"parse_time"`
	Charset   string          `yaml:"charset"`
}

// MySQLPoolConfig holds MySQL connection pool settings.
type MySQLPoolConfig struct {
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// PagerDutyConfig holds settings of the on-call lookup.
type PagerDutyConfig struct {
	APIToken    string   `yaml:"api_token"`
	APIURL      string   `yaml:"api_url"` // Overrides the REST API endpoint (testing)
	ScheduleIDs []string `yaml:"schedule_ids"`
}

// HTTPConfig holds settings of the outbound HTTP client shared by network modules.
type HTTPConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
	CacheSize int           `yaml:"cache_size"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

// ServerConfig holds HTTP server settings for health and metrics.
type ServerConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads configuration from file and environment.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	// Load from file if exists
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err == nil {
			// Expand environment variables in YAML
			expandedData := os.ExpandEnv(string(data))
			if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	cfg.overrideFromEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// overrideFromEnv overrides config values from environment variables.
func (c *Config) overrideFromEnv() {
	// Bot
	if v := os.Getenv("SLACKCAT_BOT_NAME"); v != "" {
		c.Bot.Name = v
	}
	if v := os.Getenv("SLACKCAT_BOT_ICON"); v != "" {
		c.Bot.Icon = v
	}
	if v := os.Getenv("SLACKCAT_MODULES"); v != "" {
		c.Bot.Modules = splitList(v)
	}
	if v := os.Getenv("SLACKCAT_MAX_CONCURRENT_INVOCATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Bot.MaxConcurrentInvocations = n
		}
	}

	// Slack
	if v := os.Getenv("SLACK_BOT_TOKEN"); v != "" {
		c.Slack.BotToken = v
	}
	if v := os.Getenv("SLACK_APP_TOKEN"); v != "" {
		c.Slack.AppToken = v
	}
	if v := os.Getenv("SLACK_API_URL"); v != "" {
		c.Slack.APIURL = v
	}
	if v := os.Getenv("SLACK_DEBUG"); v != "" {
		c.Slack.Debug = strings.ToLower(v) == "true"
	}

	// PagerDuty
	if v := os.Getenv("PAGERDUTY_API_TOKEN"); v != "" {
		c.PagerDuty.APIToken = v
	}
	if v := os.Getenv("PAGERDUTY_API_URL"); v != "" {
		c.PagerDuty.APIURL = v
	}
	if v := os.Getenv("PAGERDUTY_SCHEDULE_IDS"); v != "" {
		c.PagerDuty.ScheduleIDs = splitList(v)
	}

	// Server
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("SERVER_ENABLED"); v != "" {
		c.Server.Enabled = strings.ToLower(v) == "true"
	}

	// Logging
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}

	// Storage
	if v := os.Getenv("STORAGE_TYPE"); v != "" {
		c.Storage.Type = v
	}
	if v := os.Getenv("SQLITE_DATABASE_PATH"); v != "" {
		c.Storage.SQLite.Path = v
	}

	// MySQL
	if v := os.Getenv("MYSQL_HOST"); v != "" {
		c.Storage.MySQL.Host = v
	}
	if v := os.Getenv("MYSQL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Storage.MySQL.Port = port
		}
	}
	if v := os.Getenv("MYSQL_DATABASE"); v != "" {
		c.Storage.MySQL.Database = v
	}
	if v := os.Getenv("MYSQL_USERNAME"); v != "" {
		c.Storage.MySQL.Username = v
	}
	if v := os.Getenv("MYSQL_PASSWORD"); v != "" {
		c.Storage.MySQL.Password = v
	}
	if v := os.Getenv("MYSQL_MAX_OPEN_CONNS"); v != "" {
		if conns, err := strconv.Atoi(v); err == nil {
			c.Storage.MySQL.Pool.MaxOpenConns = conns
		}
	}
	if v := os.Getenv("MYSQL_MAX_IDLE_CONNS"); v != "" {
		if conns, err := strconv.Atoi(v); err == nil {
			c.Storage.MySQL.Pool.MaxIdleConns = conns
		}
	}
}

// applyDefaults sets default values for unset config options.
func (c *Config) applyDefaults() {
	// Bot defaults
	if c.Bot.Name == "" {
		c.Bot.Name = "slackcat"
	}
	if c.Bot.Icon == "" {
		c.Bot.Icon = ":cat:"
	}
	if c.Bot.MaxConcurrentInvocations == 0 {
		c.Bot.MaxConcurrentInvocations = 32
	}
	if c.Bot.SendRetries == 0 {
		c.Bot.SendRetries = 3
	}

	// Local engine defaults
	if c.Local.StartupDelay == 0 {
		c.Local.StartupDelay = 500 * time.Millisecond
	}
	if c.Local.ChannelID == "" {
		c.Local.ChannelID = "local"
	}
	if c.Local.UserID == "" {
		c.Local.UserID = "local-user"
	}
	if c.Local.ItemUserID == "" {
		c.Local.ItemUserID = "local-author"
	}

	// Outbound HTTP defaults
	if c.HTTP.Timeout == 0 {
		c.HTTP.Timeout = 10 * time.Second
	}
	if c.HTTP.UserAgent == "" {
		c.HTTP.UserAgent = "slackcat"
	}
	if c.HTTP.CacheSize == 0 {
		c.HTTP.CacheSize = 128
	}
	if c.HTTP.CacheTTL == 0 {
		c.HTTP.CacheTTL = 5 * time.Minute
	}

	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 5 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	// Storage defaults
	if c.Storage.Type == "" {
		c.Storage.Type = "sqlite"
	}
	if c.Storage.SQLite.Path == "" {
		c.Storage.SQLite.Path = "./data/slackcat.db"
	}

	// MySQL defaults
	if c.Storage.MySQL.Pool.MaxOpenConns == 0 {
		c.Storage.MySQL.Pool.MaxOpenConns = 25
	}
	if c.Storage.MySQL.Pool.MaxIdleConns == 0 {
		c.Storage.MySQL.Pool.MaxIdleConns = 5
	}
	if c.Storage.MySQL.Pool.ConnMaxLifetime == 0 {
		c.Storage.MySQL.Pool.ConnMaxLifetime = 3 * time.Minute
	}
	if c.Storage.MySQL.Pool.ConnMaxIdleTime == 0 {
		c.Storage.MySQL.Pool.ConnMaxIdleTime = 1 * time.Minute
	}
	if c.Storage.MySQL.Timeout == 0 {
		c.Storage.MySQL.Timeout = 5 * time.Second
	}
	if !c.Storage.MySQL.ParseTime {
		c.Storage.MySQL.ParseTime = true
	}
	if c.Storage.MySQL.Charset == "" {
		c.Storage.MySQL.Charset = "utf8mb4"
	}
	if c.Storage.MySQL.Port == 0 {
		c.Storage.MySQL.Port = 3306
	}
}

// IsModuleEnabled returns true if the module with the given command is enabled.
func (c *Config) IsModuleEnabled(command string) bool {
	if len(c.Bot.Modules) == 0 {
		return true
	}
	for _, m := range c.Bot.Modules {
		if strings.EqualFold(m, command) {
			return true
		}
	}
	return false
}

// IsPagerDutyEnabled returns true if an on-call lookup can be made.
func (c *Config) IsPagerDutyEnabled() bool {
	return c.PagerDuty.APIToken != ""
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
