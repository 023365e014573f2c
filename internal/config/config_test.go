package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{BotToken: "token"},
		OpenAI: OpenAIConfig{
			APIKey:  "key",
			Model:   "gpt-4o-mini",
			Timeout: 60 * time.Second,
		},
		Bot:    BotConfig{DefaultCurrency: "SGD"},
		Agent:  AgentConfig{MaxRetries: 3},
		Export: ExportConfig{Format: "csv"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"complete config", func(c *Config) {}, true},
		{"missing bot token", func(c *Config) { c.Telegram.BotToken = "" }, false},
		{"missing api key", func(c *Config) { c.OpenAI.APIKey = "" }, false},
		{"zero completion timeout", func(c *Config) { c.OpenAI.Timeout = 0 }, false},
		{"negative completion timeout", func(c *Config) { c.OpenAI.Timeout = -time.Second }, false},
		{"zero retries", func(c *Config) { c.Agent.MaxRetries = 0 }, false},
		{"unknown export format", func(c *Config) { c.Export.Format = "pdf" }, false},
		{"bad default currency", func(c *Config) { c.Bot.DefaultCurrency = "DOLLARS" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
