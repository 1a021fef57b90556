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
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the finance-service.
// These values are loaded from environment variables. Money amounts are
// stored in cents.
type Config struct {
	ServerPort                   string  `mapstructure:"SERVER_PORT"`
	DatabaseURL                  string  `mapstructure:"DATABASE_URL"`
	RedisURL                     string  `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix         string  `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL                  string  `mapstructure:"RABBITMQ_URL"`
	StripeAPIKey                 string  `mapstructure:"STRIPE_API_KEY"`
	StripeWebhookSecret          string  `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	JWTJWKSURL                   string  `mapstructure:"JWT_JWKS_URL"`
	JWTIssuer                    string  `mapstructure:"JWT_ISSUER"`
	JWTAudience                  string  `mapstructure:"JWT_AUDIENCE"`
	FrontendURL                  string  `mapstructure:"FRONTEND_URL"`
	ListingServiceURL            string  `mapstructure:"LISTING_SERVICE_URL"`
	ListingServiceInternalAPIKey string  `mapstructure:"LISTING_SERVICE_INTERNAL_API_KEY"`
	PlatformFeePercent           int64   `mapstructure:"PLATFORM_FEE_PERCENT"`
	MinWithdrawalCents           int64   `mapstructure:"MIN_WITHDRAWAL_CENTS"`
	MinWithdrawalEuros           float64 `mapstructure:"MIN_WITHDRAWAL_AMOUNT"`
	CheckoutRateLimitPerMinute   int     `mapstructure:"CHECKOUT_RATE_LIMIT_PER_MINUTE"`
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
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "vyzio:rate_limit")
	viper.SetDefault("PLATFORM_FEE_PERCENT", 5)
	viper.SetDefault("MIN_WITHDRAWAL_AMOUNT", 10.0)
	viper.SetDefault("FRONTEND_URL", "https://vyzio.com")
	viper.SetDefault("CHECKOUT_RATE_LIMIT_PER_MINUTE", 10)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("STRIPE_API_KEY", "STRIPE_API_KEY", "STRIPE_SECRET_KEY")
	_ = viper.BindEnv("STRIPE_WEBHOOK_SECRET")
	_ = viper.BindEnv("JWT_JWKS_URL")
	_ = viper.BindEnv("JWT_ISSUER")
	_ = viper.BindEnv("JWT_AUDIENCE")
	_ = viper.BindEnv("FRONTEND_URL")
	_ = viper.BindEnv("LISTING_SERVICE_URL")
	_ = viper.BindEnv("LISTING_SERVICE_INTERNAL_API_KEY", "LISTING_SERVICE_INTERNAL_API_KEY", "INTERNAL_API_KEY")
	_ = viper.BindEnv("PLATFORM_FEE_PERCENT")
	_ = viper.BindEnv("MIN_WITHDRAWAL_CENTS")
	_ = viper.BindEnv("MIN_WITHDRAWAL_AMOUNT")
	_ = viper.BindEnv("CHECKOUT_RATE_LIMIT_PER_MINUTE")

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
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "vyzio:rate_limit"
	}
	config.FrontendURL = strings.TrimRight(strings.TrimSpace(config.FrontendURL), "/")

	if config.PlatformFeePercent < 0 {
		log.Printf("level=warn component=config msg=\"negative platform fee configured; coercing to zero\" fee_percent=%d", config.PlatformFeePercent)
		config.PlatformFeePercent = 0
	}
	if config.PlatformFeePercent > 100 {
		log.Printf("level=warn component=config msg=\"platform fee percent too high; capping at 100\" fee_percent=%d", config.PlatformFeePercent)
		config.PlatformFeePercent = 100
	}

	// The minimum withdrawal may be given in whole euros via
	// MIN_WITHDRAWAL_AMOUNT or directly in cents via MIN_WITHDRAWAL_CENTS.
	if config.MinWithdrawalCents <= 0 {
		amountStr := strings.TrimSpace(viper.GetString("MIN_WITHDRAWAL_AMOUNT"))
		if amountStr != "" {
			amountValue, parseErr := strconv.ParseFloat(amountStr, 64)
			if parseErr != nil {
				log.Printf("level=warn component=config msg=\"invalid MIN_WITHDRAWAL_AMOUNT\" value=%q err=%v", amountStr, parseErr)
				config.MinWithdrawalCents = 1000
			} else {
				config.MinWithdrawalCents = int64(math.Round(amountValue * 100))
			}
		}
	}
	if config.MinWithdrawalCents < 0 {
		log.Printf("level=warn component=config msg=\"negative minimum withdrawal configured; coercing to zero\" cents=%d", config.MinWithdrawalCents)
		config.MinWithdrawalCents = 0
	}

	if config.CheckoutRateLimitPerMinute <= 0 {
		config.CheckoutRateLimitPerMinute = 10
	}

	return
}
