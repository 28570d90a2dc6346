package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Fetcher implementation names accepted by the FETCHER key.
const (
	FetcherHTTP    = "http"
	FetcherBrowser = "browser"
)

// Config holds all configuration for the application. Values are read by
// viper from a config file or environment variables.
type Config struct {
	TelegramBotToken string `mapstructure:"TELEGRAM_BOT_TOKEN"`
	BadgerDBPath     string `mapstructure:"BADGERDB_PATH"`
	LogLevel         string `mapstructure:"LOG_LEVEL"`

	// Fetcher selects the metadata fetcher implementation: "http" for plain
	// HTTP, "browser" for the headless-browser fetcher.
	Fetcher             string `mapstructure:"FETCHER"`
	FetchTimeoutSeconds int    `mapstructure:"FETCH_TIMEOUT_SECONDS"`

	RetryBatchSize              int `mapstructure:"RETRY_BATCH_SIZE"`
	RetryGlobalIntervalSeconds  int `mapstructure:"RETRY_GLOBAL_INTERVAL_SECONDS"`
	RetryPerLinkIntervalSeconds int `mapstructure:"RETRY_PER_LINK_INTERVAL_SECONDS"`
}

// FetchTimeout returns the fetch timeout as a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// RetryGlobalInterval returns the global retry debounce as a duration.
func (c Config) RetryGlobalInterval() time.Duration {
	return time.Duration(c.RetryGlobalIntervalSeconds) * time.Second
}

// RetryPerLinkInterval returns the per-link retry debounce as a duration.
func (c Config) RetryPerLinkInterval() time.Duration {
	return time.Duration(c.RetryPerLinkIntervalSeconds) * time.Second
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("BADGERDB_PATH", "./badger_data")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("FETCHER", FetcherHTTP)
	viper.SetDefault("FETCH_TIMEOUT_SECONDS", 10)
	viper.SetDefault("RETRY_BATCH_SIZE", 10)
	viper.SetDefault("RETRY_GLOBAL_INTERVAL_SECONDS", 1)
	viper.SetDefault("RETRY_PER_LINK_INTERVAL_SECONDS", 60)

	err = viper.ReadInConfig()
	if err != nil {
		// A missing config file is fine when env vars carry the settings.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return Config{}, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if config.TelegramBotToken == "" {
		return Config{}, fmt.Errorf("TELEGRAM_BOT_TOKEN is not set")
	}
	if config.Fetcher != FetcherHTTP && config.Fetcher != FetcherBrowser {
		return Config{}, fmt.Errorf("FETCHER must be %q or %q, got %q", FetcherHTTP, FetcherBrowser, config.Fetcher)
	}

	return config, nil
}
