package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Bot      BotConfig      `mapstructure:"bot"`
	Agent    AgentConfig    `mapstructure:"agent"`
	Export   ExportConfig   `mapstructure:"export"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// TelegramConfig holds Telegram Bot API configuration
type TelegramConfig struct {
	BotToken    string        `mapstructure:"bot_token"`
	WebhookPath string        `mapstructure:"webhook_path"`
	APITimeout  time.Duration `mapstructure:"api_timeout"`
	DownloadDir string        `mapstructure:"download_dir"`
	// DedupCapacity bounds the recently-seen update id set
	DedupCapacity int `mapstructure:"dedup_capacity"`
}

// OpenAIConfig holds OpenAI API configuration
type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
	// Timeout bounds every completion call; per-task sampling settings
	// live in the prompts file.
	Timeout     time.Duration `mapstructure:"timeout"`
	PromptsPath string        `mapstructure:"prompts_path"`
}

// BotConfig holds conversation behaviour configuration
type BotConfig struct {
	DefaultCurrency  string `mapstructure:"default_currency"`
	RequireWhitelist bool   `mapstructure:"require_whitelist"`
}

// AgentConfig holds query-answering agent configuration
type AgentConfig struct {
	MaxRetries     int           `mapstructure:"max_retries"`
	NoticeInterval time.Duration `mapstructure:"notice_interval"`
}

// ExportConfig holds expense export configuration
type ExportConfig struct {
	OutputDir string `mapstructure:"output_dir"`
	Format    string `mapstructure:"format"` // csv or xlsx
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	viper.SetDefault("database.path", "data/expenses.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("database.migrations_dir", "migrations")

	// Telegram defaults
	viper.SetDefault("telegram.webhook_path", "/webhook/telegram")
	viper.SetDefault("telegram.api_timeout", 30*time.Second)
	viper.SetDefault("telegram.download_dir", "downloads")
	viper.SetDefault("telegram.dedup_capacity", 512)

	// OpenAI defaults
	viper.SetDefault("openai.model", "gpt-4o-mini")
	viper.SetDefault("openai.timeout", 60*time.Second)
	viper.SetDefault("openai.prompts_path", "configs/prompts.yaml")

	// Bot defaults
	viper.SetDefault("bot.default_currency", "SGD")
	viper.SetDefault("bot.require_whitelist", true)

	// Agent defaults
	viper.SetDefault("agent.max_retries", 3)
	viper.SetDefault("agent.notice_interval", 1500*time.Millisecond)

	// Export defaults
	viper.SetDefault("export.output_dir", "exports")
	viper.SetDefault("export.format", "csv")

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	// Sensitive credentials from environment
	viper.BindEnv("telegram.bot_token", "TELE_BOT_TOKEN")
	viper.BindEnv("openai.api_key", "OPENAI_API_KEY")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.api_key is required")
	}
	if c.OpenAI.Timeout <= 0 {
		return fmt.Errorf("openai.timeout must be positive")
	}
	if c.Agent.MaxRetries < 1 {
		return fmt.Errorf("agent.max_retries must be at least 1")
	}
	if c.Export.Format != "csv" && c.Export.Format != "xlsx" {
		return fmt.Errorf("export.format must be csv or xlsx")
	}
	if len(c.Bot.DefaultCurrency) != 3 {
		return fmt.Errorf("bot.default_currency must be a 3-letter code")
	}
	return nil
}
