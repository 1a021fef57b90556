package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "SERVER_PORT")
	unsetEnvWithCleanup(t, "PORT")
	unsetEnvWithCleanup(t, "PLATFORM_FEE_PERCENT")
	unsetEnvWithCleanup(t, "MIN_WITHDRAWAL_AMOUNT")
	unsetEnvWithCleanup(t, "MIN_WITHDRAWAL_CENTS")
	unsetEnvWithCleanup(t, "CHECKOUT_RATE_LIMIT_PER_MINUTE")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Fatalf("expected default ServerPort 8080, got %q", cfg.ServerPort)
	}
	if cfg.PlatformFeePercent != 5 {
		t.Fatalf("expected default PlatformFeePercent 5, got %d", cfg.PlatformFeePercent)
	}
	if cfg.MinWithdrawalCents != 1000 {
		t.Fatalf("expected default MinWithdrawalCents 1000, got %d", cfg.MinWithdrawalCents)
	}
	if cfg.CheckoutRateLimitPerMinute != 10 {
		t.Fatalf("expected default CheckoutRateLimitPerMinute 10, got %d", cfg.CheckoutRateLimitPerMinute)
	}
}

func TestLoadConfig_MinWithdrawalEurosConvertedToCents(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "MIN_WITHDRAWAL_CENTS")
	setEnvWithCleanup(t, "MIN_WITHDRAWAL_AMOUNT", "25.50")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.MinWithdrawalCents != 2550 {
		t.Fatalf("expected MinWithdrawalCents 2550, got %d", cfg.MinWithdrawalCents)
	}
}

func TestLoadConfig_MinWithdrawalCentsTakesPrecedence(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "MIN_WITHDRAWAL_CENTS", "500")
	setEnvWithCleanup(t, "MIN_WITHDRAWAL_AMOUNT", "25")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.MinWithdrawalCents != 500 {
		t.Fatalf("expected MinWithdrawalCents 500, got %d", cfg.MinWithdrawalCents)
	}
}

func TestLoadConfig_UsesStripeSecretKeyAlias(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "STRIPE_API_KEY")
	setEnvWithCleanup(t, "STRIPE_SECRET_KEY", "sk_test_alias")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.StripeAPIKey != "sk_test_alias" {
		t.Fatalf("expected StripeAPIKey from alias env var, got %q", cfg.StripeAPIKey)
	}
}

func TestLoadConfig_PlatformFeePercentCapped(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "PLATFORM_FEE_PERCENT", "250")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.PlatformFeePercent != 100 {
		t.Fatalf("expected PlatformFeePercent capped at 100, got %d", cfg.PlatformFeePercent)
	}
}

func TestLoadConfig_FrontendURLTrailingSlashTrimmed(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "FRONTEND_URL", "https://example.com/")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.FrontendURL != "https://example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.FrontendURL)
	}
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}
