/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the transfer engine.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                  string `mapstructure:"SERVER_PORT"`
	DatabaseURL                 string `mapstructure:"DATABASE_URL"`
	RedisURL                    string `mapstructure:"REDIS_URL"`
	RabbitMQURL                 string `mapstructure:"RABBITMQ_URL"`
	TransferEventExchange       string `mapstructure:"TRANSFER_EVENT_EXCHANGE"`
	PaystackAPIBaseURL          string `mapstructure:"PAYSTACK_API_BASE_URL"`
	PaystackSecretKey           string `mapstructure:"PAYSTACK_SECRET_KEY"`
	PaystackWebhookSecret       string `mapstructure:"PAYSTACK_WEBHOOK_SECRET"`
	InternalAPIKey              string `mapstructure:"INTERNAL_API_KEY"`
	FrequentSweepSchedule       string `mapstructure:"FREQUENT_SWEEP_SCHEDULE"`
	WideSweepSchedule           string `mapstructure:"WIDE_SWEEP_SCHEDULE"`
	FrequentSweepLookbackMin    int    `mapstructure:"FREQUENT_SWEEP_LOOKBACK_MINUTES"`
	WideSweepLookbackDays       int    `mapstructure:"WIDE_SWEEP_LOOKBACK_DAYS"`
	WebhookDedupTTLMin          int    `mapstructure:"WEBHOOK_DEDUP_TTL_MINUTES"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("TRANSFER_EVENT_EXCHANGE", "blacktax.events")
	viper.SetDefault("PAYSTACK_API_BASE_URL", "https://api.paystack.co")
	viper.SetDefault("FREQUENT_SWEEP_SCHEDULE", "*/10 * * * *")
	viper.SetDefault("WIDE_SWEEP_SCHEDULE", "0 * * * *")
	viper.SetDefault("FREQUENT_SWEEP_LOOKBACK_MINUTES", 30)
	viper.SetDefault("WIDE_SWEEP_LOOKBACK_DAYS", 7)
	viper.SetDefault("WEBHOOK_DEDUP_TTL_MINUTES", 1440)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("TRANSFER_EVENT_EXCHANGE")
	_ = viper.BindEnv("PAYSTACK_API_BASE_URL")
	_ = viper.BindEnv("PAYSTACK_SECRET_KEY")
	_ = viper.BindEnv("PAYSTACK_WEBHOOK_SECRET")
	_ = viper.BindEnv("INTERNAL_API_KEY")
	_ = viper.BindEnv("FREQUENT_SWEEP_SCHEDULE")
	_ = viper.BindEnv("WIDE_SWEEP_SCHEDULE")
	_ = viper.BindEnv("FREQUENT_SWEEP_LOOKBACK_MINUTES")
	_ = viper.BindEnv("WIDE_SWEEP_LOOKBACK_DAYS")
	_ = viper.BindEnv("WEBHOOK_DEDUP_TTL_MINUTES")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}

	// The webhook secret defaults to the API secret key, matching Paystack's
	// signature scheme which signs with the account's secret key.
	config.PaystackSecretKey = strings.TrimSpace(config.PaystackSecretKey)
	config.PaystackWebhookSecret = strings.TrimSpace(config.PaystackWebhookSecret)
	if config.PaystackWebhookSecret == "" {
		config.PaystackWebhookSecret = config.PaystackSecretKey
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)

	if config.FrequentSweepLookbackMin <= 0 {
		config.FrequentSweepLookbackMin = 30
	}
	if config.WideSweepLookbackDays <= 0 {
		config.WideSweepLookbackDays = 7
	}
	if config.WebhookDedupTTLMin <= 0 {
		config.WebhookDedupTTLMin = 1440
	}

	return
}
