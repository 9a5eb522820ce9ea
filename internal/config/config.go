package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"xraymed-saas/internal/domain/model"
)

type RuntimeConfig struct {
	Dev bool
}

// Duration accepts human-readable YAML values like "30m" or "1h".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	PoolSize int    `yaml:"pool_size"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      Duration `yaml:"ttl"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type GatewayConfig struct {
	KeyID     string `yaml:"key_id"`
	KeySecret string `yaml:"key_secret"`
	BaseURL   string `yaml:"base_url"`
	Sandbox   bool   `yaml:"sandbox"`
}

// PlanConfig declares one purchasable tier with its local price table per
// cadence, in integer minor currency units.
type PlanConfig struct {
	ID         string           `yaml:"id"`
	Credits    int64            `yaml:"credits"`
	GatewayRef string           `yaml:"gateway_ref"`
	Prices     map[string]int64 `yaml:"prices"` // cadence -> amount
}

type BillingConfig struct {
	Currency string       `yaml:"currency"`
	Plans    []PlanConfig `yaml:"plans"`
}

type SchedulerConfig struct {
	ExpirySweepInterval Duration `yaml:"expiry_sweep_interval"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Billing   BillingConfig   `yaml:"billing"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.PoolSize <= 0 {
		cfg.Database.PoolSize = 10
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = Duration(time.Hour)
	}
	if cfg.Billing.Currency == "" {
		cfg.Billing.Currency = "INR"
	}
	if cfg.Scheduler.ExpirySweepInterval <= 0 {
		cfg.Scheduler.ExpirySweepInterval = Duration(time.Hour)
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is required")
	}
	if cfg.Gateway.KeySecret == "" {
		return nil, errors.New("gateway.key_secret is required")
	}
	if len(cfg.Billing.Plans) == 0 {
		return nil, errors.New("billing.plans must not be empty")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

// PlanTable materializes the configured plans into domain objects, validating
// tier names and cadences up front so bad config fails at startup.
func (c *Config) PlanTable() (map[string]*model.Plan, error) {
	out := make(map[string]*model.Plan, len(c.Billing.Plans))
	for _, pc := range c.Billing.Plans {
		prices := make(map[model.BillingCadence]int64, len(pc.Prices))
		for cad, amount := range pc.Prices {
			prices[model.BillingCadence(cad)] = amount
		}
		tier := model.AccountTier(pc.ID)
		plan, err := model.NewPlan(pc.ID, tier, pc.Credits, pc.GatewayRef, prices)
		if err != nil {
			return nil, fmt.Errorf("billing.plans[%s]: %w", pc.ID, err)
		}
		out[plan.ID] = plan
	}
	return out, nil
}
