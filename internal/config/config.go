// Package config loads service settings from an optional YAML file and
// the environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"refillplan/internal/opt"
)

type Config struct {
	Server    Server    `yaml:"server"`
	Log       Log       `yaml:"log"`
	Database  Database  `yaml:"database"`
	Redis     Redis     `yaml:"redis"`
	Game      Game      `yaml:"game"`
	Auth      Auth      `yaml:"auth"`
	Webhook   Webhook   `yaml:"webhook"`
	Optimizer Optimizer `yaml:"optimizer"`
}

type Server struct {
	Port         string `yaml:"port"`
	AllowOrigins string `yaml:"allowOrigins"`
}

type Log struct {
	Development bool   `yaml:"development"`
	Level       string `yaml:"level"`
}

type Database struct {
	URL           string `yaml:"url"`
	Migrate       bool   `yaml:"migrate"`
	MigrationsDir string `yaml:"migrationsDir"`
}

type Redis struct {
	URL      string        `yaml:"url"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// Game configures the remote game service and the local data fallback.
type Game struct {
	APIURL    string        `yaml:"apiURL"`
	APIKey    string        `yaml:"apiKey"`
	DataDir   string        `yaml:"dataDir"`
	RateRPS   float64       `yaml:"rateRPS"`
	RateBurst int           `yaml:"rateBurst"`
	Timeout   time.Duration `yaml:"timeout"`
}

type Auth struct {
	Mode       string `yaml:"mode"` // dev or hmac
	HMACSecret string `yaml:"hmacSecret"`
}

type Webhook struct {
	URL         string `yaml:"url"`
	Secret      string `yaml:"secret"`
	MaxAttempts int    `yaml:"maxAttempts"`
}

type Optimizer struct {
	BeamWidth     int           `yaml:"beamWidth"`
	Passes        int           `yaml:"passes"`
	BruteForceMax int           `yaml:"bruteForceMax"`
	Alternate     bool          `yaml:"alternate"`
	TimeBudget    time.Duration `yaml:"timeBudget"`
	Refine        bool          `yaml:"refine"`
	RequireDevice bool          `yaml:"requireDevice"`
}

func Default() Config {
	d := opt.DefaultOptions()
	return Config{
		Server:   Server{Port: "8080"},
		Log:      Log{Level: "info"},
		Database: Database{Migrate: true, MigrationsDir: "db/migrations"},
		Redis:    Redis{CacheTTL: 10 * time.Minute},
		Game: Game{
			RateRPS:   2,
			RateBurst: 1,
			Timeout:   30 * time.Second,
		},
		Auth:    Auth{Mode: "dev"},
		Webhook: Webhook{MaxAttempts: 10},
		Optimizer: Optimizer{
			BeamWidth:     d.BeamWidth,
			Passes:        d.Passes,
			BruteForceMax: d.BruteForceMax,
			Alternate:     d.Alternate,
		},
	}
}

// Load reads path (if non-empty) over the defaults and then applies the
// environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config YAML: %w", err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("PORT", &c.Server.Port)
	str("ALLOW_ORIGINS", &c.Server.AllowOrigins)
	str("DATABASE_URL", &c.Database.URL)
	str("REDIS_URL", &c.Redis.URL)
	str("GAME_API_URL", &c.Game.APIURL)
	str("API_KEY", &c.Game.APIKey)
	str("MAP_DATA_DIR", &c.Game.DataDir)
	str("AUTH_MODE", &c.Auth.Mode)
	str("AUTH_HMAC_SECRET", &c.Auth.HMACSecret)
	str("WEBHOOK_URL", &c.Webhook.URL)
	str("WEBHOOK_SECRET", &c.Webhook.Secret)
	str("LOG_LEVEL", &c.Log.Level)

	if v, ok := lookup("DB_MIGRATE"); ok && v != "" {
		c.Database.Migrate = v != "false"
	}
	if v, ok := lookup("LOG_DEVELOPMENT"); ok && v != "" {
		c.Log.Development = v == "true" || v == "1"
	}
	if v, ok := lookup("RATE_RPS"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RATE_RPS: %w", err)
		}
		c.Game.RateRPS = f
	}
	if v, ok := lookup("RATE_BURST"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RATE_BURST: %w", err)
		}
		c.Game.RateBurst = n
	}
	if v, ok := lookup("WEBHOOK_MAX_ATTEMPTS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("WEBHOOK_MAX_ATTEMPTS: %w", err)
		}
		c.Webhook.MaxAttempts = n
	}
	if v, ok := lookup("CACHE_TTL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CACHE_TTL: %w", err)
		}
		c.Redis.CacheTTL = d
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.Auth.Mode {
	case "dev", "hmac":
	default:
		errs = append(errs, fmt.Errorf("auth.mode must be dev or hmac, got %q", c.Auth.Mode))
	}
	if c.Auth.Mode == "hmac" && c.Auth.HMACSecret == "" {
		errs = append(errs, errors.New("auth.hmacSecret is required in hmac mode"))
	}
	if c.Optimizer.BeamWidth < 1 {
		errs = append(errs, errors.New("optimizer.beamWidth must be >= 1"))
	}
	if c.Optimizer.Passes < 1 {
		errs = append(errs, errors.New("optimizer.passes must be >= 1"))
	}
	if c.Optimizer.BruteForceMax < 0 {
		errs = append(errs, errors.New("optimizer.bruteForceMax must be >= 0"))
	}
	if c.Game.RateRPS <= 0 || c.Game.RateBurst < 1 {
		errs = append(errs, errors.New("game.rateRPS must be > 0 and game.rateBurst >= 1"))
	}
	if c.Webhook.MaxAttempts < 1 {
		errs = append(errs, errors.New("webhook.maxAttempts must be >= 1"))
	}
	return errors.Join(errs...)
}

// Options converts the optimizer section into optimizer options.
func (o Optimizer) Options() opt.Options {
	return opt.Options{
		BeamWidth:     o.BeamWidth,
		Passes:        o.Passes,
		BruteForceMax: o.BruteForceMax,
		Alternate:     o.Alternate,
		TimeBudget:    o.TimeBudget,
	}
}

// Public returns the settings safe to expose on debug endpoints.
func (c Config) Public() map[string]any {
	return map[string]any{
		"PORT":                 c.Server.Port,
		"AUTH_MODE":            c.Auth.Mode,
		"ALLOW_ORIGINS":        c.Server.AllowOrigins,
		"RATE_RPS":             c.Game.RateRPS,
		"RATE_BURST":           c.Game.RateBurst,
		"WEBHOOK_MAX_ATTEMPTS": c.Webhook.MaxAttempts,
		"HAS_DATABASE_URL":     c.Database.URL != "",
		"HAS_REDIS_URL":        c.Redis.URL != "",
		"HAS_API_KEY":          c.Game.APIKey != "",
		"GAME_API_URL":         c.Game.APIURL,
		"MAP_DATA_DIR":         c.Game.DataDir,
	}
}
