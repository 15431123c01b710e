package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment key, e.g. WELLNESS_DATABASE_PATH.
const EnvPrefix = "WELLNESS"

// Config keys
const (
	KeyTelegramToken   = "telegram_bot_token"
	KeyDatabasePath    = "database_path"
	KeyTimezone        = "timezone"
	KeyWorkStartHour   = "work_start_hour"
	KeyWorkEndHour     = "work_end_hour"
	KeyMonitorInterval = "monitor_interval"
	KeyAdvisorURL      = "advisor_url"
	KeyAdvisorAPIKey   = "advisor_api_key"
	KeyAdvisorTimeout  = "advisor_timeout"
	KeyHTTPAddr        = "http_addr"
)

// Config holds application configuration
type Config struct {
	TelegramToken   string
	DatabasePath    string
	WorkingHours    WorkingHours
	MonitorInterval time.Duration
	AdvisorURL      string
	AdvisorAPIKey   string
	AdvisorTimeout  time.Duration
	HTTPAddr        string
}

// WorkingHours defines the default daily window for users without their own
type WorkingHours struct {
	StartHour int
	EndHour   int
	Location  *time.Location
}

// SetDefaults registers default values and environment bindings on v
func SetDefaults(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	// the bare token name keeps older .env files working
	_ = v.BindEnv(KeyTelegramToken, EnvPrefix+"_TELEGRAM_BOT_TOKEN", "TELEGRAM_BOT_TOKEN")

	v.SetDefault(KeyDatabasePath, "./wellness_bot.db")
	v.SetDefault(KeyTimezone, "Local")
	v.SetDefault(KeyWorkStartHour, 9)
	v.SetDefault(KeyWorkEndHour, 18)
	v.SetDefault(KeyMonitorInterval, 30*time.Minute)
	v.SetDefault(KeyAdvisorTimeout, 3*time.Second)
	v.SetDefault(KeyHTTPAddr, ":8080")
}

// Load loads configuration from .env and the environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if not exists)
	_ = godotenv.Load()

	v := viper.GetViper()
	SetDefaults(v)
	return FromViper(v)
}

// FromViper builds and validates a Config from v
func FromViper(v *viper.Viper) (*Config, error) {
	loc, err := time.LoadLocation(v.GetString(KeyTimezone))
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", v.GetString(KeyTimezone), err)
	}

	cfg := &Config{
		TelegramToken: v.GetString(KeyTelegramToken),
		DatabasePath:  v.GetString(KeyDatabasePath),
		WorkingHours: WorkingHours{
			StartHour: v.GetInt(KeyWorkStartHour),
			EndHour:   v.GetInt(KeyWorkEndHour),
			Location:  loc,
		},
		MonitorInterval: v.GetDuration(KeyMonitorInterval),
		AdvisorURL:      v.GetString(KeyAdvisorURL),
		AdvisorAPIKey:   v.GetString(KeyAdvisorAPIKey),
		AdvisorTimeout:  v.GetDuration(KeyAdvisorTimeout),
		HTTPAddr:        v.GetString(KeyHTTPAddr),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	wh := c.WorkingHours
	if wh.StartHour < 0 || wh.EndHour > 24 || wh.StartHour >= wh.EndHour {
		return fmt.Errorf("invalid working hours %d-%d", wh.StartHour, wh.EndHour)
	}
	if c.MonitorInterval <= 0 {
		return fmt.Errorf("monitor interval must be positive, got %s", c.MonitorInterval)
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database path is required")
	}
	return nil
}

// RequireToken reports a missing bot token for commands that talk to Telegram
func (c *Config) RequireToken() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("%s_TELEGRAM_BOT_TOKEN is not set", EnvPrefix)
	}
	return nil
}

// IsWorkingHours checks if t falls within the default working hours
func (c *Config) IsWorkingHours(t time.Time) bool {
	hour := t.In(c.WorkingHours.Location).Hour()
	return hour >= c.WorkingHours.StartHour && hour < c.WorkingHours.EndHour
}
