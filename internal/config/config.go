// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
// One Config serves all binaries; each reads only the fields it needs.
type Config struct {
	// HTTPAddr is the address the userserv HTTP server listens on (e.g. :3001).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GatewayAddr is the address the API gateway listens on (e.g. :3000).
	GatewayAddr string `mapstructure:"GATEWAY_ADDR"`
	// UserservURL is the base URL the gateway proxies customer traffic to.
	UserservURL string `mapstructure:"USERSERV_URL"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisAddr is the Redis address for OTP issue rate limiting; empty disables the limiter.
	RedisAddr string `mapstructure:"REDIS_ADDR"`
	// RedisPassword is the Redis auth password, if any.
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	// OTPTTL is the OTP validity window (e.g. "5m").
	OTPTTL string `mapstructure:"OTP_TTL"`
	// OTPReturnToClient when true enables dev OTP mode: the issue response carries the
	// plain code instead of delivering it by SMS. Must not be true when Env is production.
	OTPReturnToClient bool `mapstructure:"OTP_RETURN_TO_CLIENT"`
	// OTPMaxPerWindow is the max OTP issue requests per identity per window; 0 disables the limiter.
	OTPMaxPerWindow int `mapstructure:"OTP_MAX_PER_WINDOW"`
	// OTPRateWindow is the rate-limit window for OTP issuance (e.g. "10m").
	OTPRateWindow string `mapstructure:"OTP_RATE_WINDOW"`
	// OTPCooldown is the minimum gap between two OTP issue requests (e.g. "30s").
	OTPCooldown string `mapstructure:"OTP_COOLDOWN"`
	// SMSAPIKey is the API key for the SMS provider. Required when dev OTP mode is off.
	SMSAPIKey string `mapstructure:"SMS_API_KEY"`
	// SMSSender is the optional sender ID for outbound OTP SMS.
	SMSSender string `mapstructure:"SMS_SENDER"`
	// SMSBaseURL is the SMS provider API base URL.
	SMSBaseURL string `mapstructure:"SMS_BASE_URL"`
	// JWTSecret is the HS256 secret the gateway uses to guard customer routes; empty disables the guard.
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// GatewayRatePerMin is the per-IP request budget at the gateway.
	GatewayRatePerMin int `mapstructure:"GATEWAY_RATE_PER_MIN"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":3001")
	v.SetDefault("GATEWAY_ADDR", ":3000")
	v.SetDefault("USERSERV_URL", "http://localhost:3001")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("OTP_TTL", "5m")
	v.SetDefault("OTP_RETURN_TO_CLIENT", false)
	v.SetDefault("OTP_MAX_PER_WINDOW", 5)
	v.SetDefault("OTP_RATE_WINDOW", "10m")
	v.SetDefault("OTP_COOLDOWN", "30s")
	v.SetDefault("SMS_API_KEY", "")
	v.SetDefault("SMS_SENDER", "")
	v.SetDefault("SMS_BASE_URL", "https://www.smslocal.com/dev/bulkV2")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("GATEWAY_RATE_PER_MIN", 120)
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.GatewayAddr == "" {
		return nil, errors.New("config: GATEWAY_ADDR must be set")
	}

	if cfg.OTPReturnToClient && cfg.Env == "production" {
		return nil, errors.New("config: OTP_RETURN_TO_CLIENT must not be true when APP_ENV=production")
	}

	if cfg.GatewayRatePerMin < 0 {
		return nil, errors.New("config: GATEWAY_RATE_PER_MIN must not be negative")
	}

	return &cfg, nil
}

// OTPValidity parses OTPTTL as a time.Duration. Returns 5m if unset or invalid.
func (c *Config) OTPValidity() time.Duration {
	d, err := time.ParseDuration(c.OTPTTL)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// OTPWindow parses OTPRateWindow as a time.Duration. Returns 10m if unset or invalid.
func (c *Config) OTPWindow() time.Duration {
	d, err := time.ParseDuration(c.OTPRateWindow)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

// OTPCooldownDuration parses OTPCooldown as a time.Duration. Returns 30s if unset or invalid.
func (c *Config) OTPCooldownDuration() time.Duration {
	d, err := time.ParseDuration(c.OTPCooldown)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}
