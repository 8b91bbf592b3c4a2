package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"delta-guard/internal/logging"
)

// Config materialises the watchdog configuration. All fields are read once at
// startup and never mutated afterwards.
type Config struct {
	// Required monitoring keys. The config file is a flat `key: value` list;
	// keys are case-insensitive, values may be quoted.
	Currency        string  `mapstructure:"currency"`
	RequestInterval int     `mapstructure:"request_interval"` // seconds
	MaxDelta        float64 `mapstructure:"max_delta"`
	DeviationTime   int     `mapstructure:"deviation_time"` // seconds
	MainProcess     string  `mapstructure:"main_process"`
	TeleTok         string  `mapstructure:"tele_tok"`
	TeleChat        string  `mapstructure:"tele_chat"`
	SecretKey       string  `mapstructure:"secret_key"`
	APIKey          string  `mapstructure:"api_key"`
	Passphrase      string  `mapstructure:"passphrase"`

	Logging  logging.Config `mapstructure:"logging"`
	API      APIConfig      `mapstructure:"api"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Database DatabaseConfig `mapstructure:"database"`
}

// APIConfig covers exchange connectivity.
type APIConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Simulated bool          `mapstructure:"simulated"`
}

// TelegramConfig covers alert delivery.
type TelegramConfig struct {
	APIBase string        `mapstructure:"api_base"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DatabaseConfig encapsulates the optional PostgreSQL event store.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// Interval returns the poll cadence.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.RequestInterval) * time.Second
}

// Hold returns how long the delta must stay out of band before action is taken.
func (c *Config) Hold() time.Duration {
	return time.Duration(c.DeviationTime) * time.Second
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DELTAGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		// The monitor config is a flat key: value file, which parses as YAML
		// regardless of its extension.
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("deltaguard")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("api.base_url", "https://www.okx.com")
	v.SetDefault("api.timeout", "10s")
	v.SetDefault("api.simulated", false)

	v.SetDefault("telegram.api_base", "https://api.telegram.org")
	v.SetDefault("telegram.timeout", "10s")

	v.SetDefault("database.max_open_conns", 5)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		// Values in the key: value file may be quoted, so numeric fields
		// must also accept their string forms.
		dc.WeaklyTypedInput = true
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		)
	}
}

// Validate checks that every required key is present and sane. It reports all
// missing keys at once so a broken file can be fixed in one pass.
func (c *Config) Validate() error {
	var missing []string
	for key, value := range map[string]string{
		"currency":     c.Currency,
		"main_process": c.MainProcess,
		"tele_tok":     c.TeleTok,
		"tele_chat":    c.TeleChat,
		"secret_key":   c.SecretKey,
		"api_key":      c.APIKey,
		"passphrase":   c.Passphrase,
	} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing required config keys: %s", strings.Join(missing, ", "))
	}

	if c.RequestInterval <= 0 {
		return fmt.Errorf("request_interval must be a positive number of seconds")
	}
	if c.MaxDelta <= 0 {
		return fmt.Errorf("max_delta must be greater than zero")
	}
	if c.DeviationTime <= 0 {
		return fmt.Errorf("deviation_time must be a positive number of seconds")
	}
	return nil
}
