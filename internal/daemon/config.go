package daemon

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"github.com/moose-rewards/moose/internal/domain"
)

// Config is the moose configuration, read from $MOOSE_HOME/config.toml.
// Durations are strings ("24h", "90s") so the file stays hand editable.
type Config struct {
	API      APIConfig      `toml:"api"`
	Database DatabaseConfig `toml:"database"`
	Points   PointsConfig   `toml:"points"`
	Bank     BankConfig     `toml:"bank"`
	Dispatch DispatchConfig `toml:"dispatch"`
	Log      LogConfig      `toml:"log"`
}

// APIConfig configures the HTTP transport.
type APIConfig struct {
	Host           string `toml:"host" env:"MOOSE_API_HOST"`
	Port           int    `toml:"port" env:"MOOSE_API_PORT"`
	Metrics        bool   `toml:"metrics" env:"MOOSE_API_METRICS"`
	RequestTimeout string `toml:"request_timeout" env:"MOOSE_API_REQUEST_TIMEOUT"`
}

// DatabaseConfig locates the SQLite file.
type DatabaseConfig struct {
	Dir string `toml:"dir" env:"MOOSE_DATABASE_DIR"` // empty means $MOOSE_HOME
}

// PointsConfig configures the rewards bot.
type PointsConfig struct {
	Enabled       bool   `toml:"enabled" env:"MOOSE_POINTS_ENABLED"`
	Validity      string `toml:"validity" env:"MOOSE_POINTS_VALIDITY"`
	ReferralBonus int64  `toml:"referral_bonus" env:"MOOSE_POINTS_REFERRAL_BONUS"`
	ReferralQuota int64  `toml:"referral_quota" env:"MOOSE_POINTS_REFERRAL_QUOTA"`
	SweepInterval string `toml:"sweep_interval" env:"MOOSE_POINTS_SWEEP_INTERVAL"`
}

// BankConfig configures the bank bot.
type BankConfig struct {
	Enabled  bool   `toml:"enabled" env:"MOOSE_BANK_ENABLED"`
	PageSize int    `toml:"page_size" env:"MOOSE_BANK_PAGE_SIZE"`
	ViewTTL  string `toml:"view_ttl" env:"MOOSE_BANK_VIEW_TTL"`
}

// DispatchConfig configures command dispatch.
type DispatchConfig struct {
	ReplyTimeout string `toml:"reply_timeout" env:"MOOSE_DISPATCH_REPLY_TIMEOUT"`
	MaxSpans     int    `toml:"max_spans" env:"MOOSE_DISPATCH_MAX_SPANS"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level  string `toml:"level" env:"MOOSE_LOG_LEVEL"`   // debug, info, warn, error
	Format string `toml:"format" env:"MOOSE_LOG_FORMAT"` // text or json
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host:           "127.0.0.1",
			Port:           8420,
			Metrics:        true,
			RequestTimeout: "30s",
		},
		Points: PointsConfig{
			Enabled:       true,
			Validity:      "4320h",
			ReferralBonus: 50,
			ReferralQuota: 8,
			SweepInterval: "24h",
		},
		Bank: BankConfig{
			Enabled:  true,
			PageSize: 5,
			ViewTTL:  "15m",
		},
		Dispatch: DispatchConfig{
			ReplyTimeout: "5s",
			MaxSpans:     1000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Home returns the moose home directory.
func Home() string {
	if h := os.Getenv("MOOSE_HOME"); h != "" {
		return h
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".moose")
}

// ConfigPath returns the path of the config file.
func ConfigPath() string {
	return filepath.Join(Home(), "config.toml")
}

// LoadConfig reads path over the defaults and applies environment overrides.
// A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// SaveConfig writes cfg as TOML.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return cfg.Encode(f)
}

// Encode writes cfg as TOML to w.
func (c Config) Encode(w io.Writer) error {
	if err := toml.NewEncoder(w).Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

// Validate checks value ranges and duration syntax.
func (c Config) Validate() error {
	durations := map[string]string{
		"api.request_timeout":    c.API.RequestTimeout,
		"points.validity":        c.Points.Validity,
		"points.sweep_interval":  c.Points.SweepInterval,
		"bank.view_ttl":          c.Bank.ViewTTL,
		"dispatch.reply_timeout": c.Dispatch.ReplyTimeout,
	}
	for key, v := range durations {
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config %s: %w", key, err)
		}
		if d <= 0 {
			return fmt.Errorf("config %s: must be positive", key)
		}
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("config api.port: %d out of range", c.API.Port)
	}
	if c.Points.ReferralBonus < 0 || c.Points.ReferralQuota < 0 {
		return fmt.Errorf("config points: referral values must not be negative")
	}
	if c.Points.ReferralBonus > domain.MaxPointsAmount {
		return fmt.Errorf("config points.referral_bonus: above %d", domain.MaxPointsAmount)
	}
	if c.Bank.PageSize <= 0 {
		return fmt.Errorf("config bank.page_size: must be positive")
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("config log.format: %q is not text or json", c.Log.Format)
	}
	return nil
}

// DatabaseDir returns the directory holding moose.db.
func (c Config) DatabaseDir() string {
	if c.Database.Dir != "" {
		return c.Database.Dir
	}
	return Home()
}

// Addr returns the API listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

// parseDuration parses s, falling back to def when empty or invalid.
func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// ─── Logging ────────────────────────────────────────────────────────────────

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("config log.level: unknown level %q", s)
}

// NewLogger builds the process logger from the [log] section.
func NewLogger(c LogConfig, w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.Level)
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
