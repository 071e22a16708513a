package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type ServerConfig struct {
	Port      int    `yaml:"port"`
	JWTSecret string `yaml:"jwt_secret"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// GatewayConfig carries the Przelewy24 credentials. All of it is validated at
// startup; nothing is read per-request.
type GatewayConfig struct {
	MerchantID    int    `yaml:"merchant_id"`
	PosID         int    `yaml:"pos_id"`
	CRC           string `yaml:"crc"`      // shared secret for request signing
	APIKey        string `yaml:"api_key"`  // REST API key (basic auth password)
	Sandbox       bool   `yaml:"sandbox"`  // switches host between sandbox and production
	CallbackBase  string `yaml:"callback_base"`  // base URL for urlReturn/urlStatus
	WebhookSecret string `yaml:"webhook_secret"` // optional HMAC secret for inbound notifications
}

type MailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Sender   string `yaml:"sender"`
}

type SchedulerConfig struct {
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	PendingExpiry     time.Duration `yaml:"pending_expiry"`
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Mail      MailConfig      `yaml:"mail"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads and validates the YAML config file.
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
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = time.Hour
	}
	if cfg.Scheduler.ReconcileInterval <= 0 {
		cfg.Scheduler.ReconcileInterval = 15 * time.Minute
	}
	if cfg.Scheduler.PendingExpiry <= 0 {
		cfg.Scheduler.PendingExpiry = 24 * time.Hour
	}
	if cfg.Mail.Port == 0 {
		cfg.Mail.Port = 587
	}

	if err := cfg.validate(dev); err != nil {
		return nil, err
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func (c *Config) validate(dev bool) error {
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.Server.JWTSecret == "" {
		return errors.New("server.jwt_secret is required")
	}
	// In dev mode the noop gateway is substituted, so credentials may be absent.
	if dev {
		return nil
	}
	if c.Gateway.MerchantID == 0 {
		return errors.New("gateway.merchant_id is required")
	}
	if c.Gateway.PosID == 0 {
		return errors.New("gateway.pos_id is required")
	}
	if c.Gateway.CRC == "" {
		return errors.New("gateway.crc is required")
	}
	if c.Gateway.APIKey == "" {
		return errors.New("gateway.api_key is required")
	}
	if c.Gateway.CallbackBase == "" {
		return errors.New("gateway.callback_base is required")
	}
	if _, err := url.Parse(c.Gateway.CallbackBase); err != nil {
		return fmt.Errorf("gateway.callback_base: %w", err)
	}
	return nil
}
