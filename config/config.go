package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/robfig/cron/v3"
)

type Config struct {
	Port        string `koanf:"port"`
	DatabaseURL string `koanf:"db_url"`
	JWTSecret   string `koanf:"supabase_jwt_secret"`
	ScanKeyHash string `koanf:"scan_key_hash"`
	CORSOrigins string `koanf:"cors_origins"`

	ResendAPIKey       string `koanf:"resend_api_key"`
	EmailFrom          string `koanf:"email_from"`
	EmailTestRecipient string `koanf:"email_test_recipient"`
	EmailRatePerSec    int    `koanf:"email_rate_per_sec"`

	DeepSeekAPIKey string `koanf:"deepseek_api_key"`
	DeepSeekModel  string `koanf:"deepseek_model"`

	TwilioAccountSID  string `koanf:"twilio_account_sid"`
	TwilioAuthToken   string `koanf:"twilio_auth_token"`
	TwilioPhoneNumber string `koanf:"twilio_phone_number"`

	Timezone               string `koanf:"timezone"`
	ScanSchedule           string `koanf:"scan_schedule"`
	ScanConcurrency        int    `koanf:"scan_concurrency"`
	DispatchTimeoutSeconds int    `koanf:"dispatch_timeout_seconds"`
	ScanDedup              bool   `koanf:"scan_dedup"`

	LogLevel   string `koanf:"log_level"`
	LogConsole bool   `koanf:"log_console"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"port":                     "8080",
		"cors_origins":             "*",
		"email_from":               "Cheerful Reminder <onboarding@resend.dev>",
		"email_rate_per_sec":       2,
		"deepseek_model":           "deepseek-chat",
		"timezone":                 "UTC",
		"scan_schedule":            "0 9 * * *",
		"scan_concurrency":         4,
		"dispatch_timeout_seconds": 10,
		"scan_dedup":               true,
		"log_level":                "info",
		"log_console":              false,
	}
}

// Load reads defaults and then the process environment. Environment names are
// matched case-insensitively against the koanf keys, e.g. DB_URL -> db_url.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	known := defaults()
	for _, key := range secretKeys() {
		known[key] = ""
	}
	if err := k.Load(env.Provider("", ".", func(s string) string {
		key := strings.ToLower(s)
		if _, ok := known[key]; !ok {
			return ""
		}
		return key
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// secretKeys have no default but are still read from the environment.
func secretKeys() []string {
	return []string{
		"db_url", "supabase_jwt_secret", "scan_key_hash",
		"resend_api_key", "email_test_recipient", "deepseek_api_key",
		"twilio_account_sid", "twilio_auth_token", "twilio_phone_number",
	}
}

func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	if c.ScanConcurrency <= 0 {
		return fmt.Errorf("SCAN_CONCURRENCY must be positive")
	}
	if c.DispatchTimeoutSeconds <= 0 {
		return fmt.Errorf("DISPATCH_TIMEOUT_SECONDS must be positive")
	}
	if c.EmailRatePerSec <= 0 {
		return fmt.Errorf("EMAIL_RATE_PER_SEC must be positive")
	}
	if c.ScanSchedule != "" {
		if _, err := cron.ParseStandard(c.ScanSchedule); err != nil {
			return fmt.Errorf("invalid SCAN_SCHEDULE: %w", err)
		}
	}
	return nil
}

func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) DispatchTimeout() time.Duration {
	return time.Duration(c.DispatchTimeoutSeconds) * time.Second
}

// AllowedOrigins splits CORS_ORIGINS on commas. "*" allows all origins.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
