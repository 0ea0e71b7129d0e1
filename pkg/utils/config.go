package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "DEALDESK"

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	GRPC       GRPCConfig       `mapstructure:"grpc"`
	Mirror     MirrorConfig     `mapstructure:"mirror"`
	CRM        CRMConfig        `mapstructure:"crm"`
	Aggregator AggregatorConfig `mapstructure:"aggregator"`
	DB         DBConfig         `mapstructure:"db"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type GRPCConfig struct {
	Addr string `mapstructure:"addr"`
}

type MirrorConfig struct {
	Addr     string `mapstructure:"addr"`
	Fixtures string `mapstructure:"fixtures"`
}

type CRMConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	AccessToken string        `mapstructure:"access_token"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type AggregatorConfig struct {
	DealFetchPolicy string        `mapstructure:"deal_fetch_policy"` // strict | lenient
	Timeout         time.Duration `mapstructure:"timeout"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type AuthConfig struct {
	JWTSecret   string        `mapstructure:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer"`
	JWTDuration time.Duration `mapstructure:"jwt_ttl"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// LoadConfig reads .env (if present), then config.yaml (if present), then
// DEALDESK_* environment variables, on top of built-in defaults.
func LoadConfig() (*Config, error) {
	// a missing .env is the normal case outside local dev
	_ = godotenv.Load()
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/dealdesk")

	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// the CRM's own tooling exports the private app token under this name
	_ = v.BindEnv("crm.access_token", envPrefix+"_CRM_ACCESS_TOKEN", "PRIVATE_APP_ACCESS_TOKEN")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("grpc.addr", ":9090")
	v.SetDefault("mirror.addr", ":9000")
	v.SetDefault("mirror.fixtures", "data/crm-fixtures.json")
	v.SetDefault("crm.base_url", "https://api.hubapi.com")
	v.SetDefault("crm.access_token", "")
	v.SetDefault("crm.timeout", 15*time.Second)
	v.SetDefault("aggregator.deal_fetch_policy", "strict")
	v.SetDefault("aggregator.timeout", 30*time.Second)
	v.SetDefault("db.path", defaultDBPath())
	// dev default (change for production)
	v.SetDefault("auth.jwt_secret", "dev-secret-change-me")
	v.SetDefault("auth.jwt_issuer", "dealdesk")
	v.SetDefault("auth.jwt_ttl", 24*time.Hour)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "dealdesk.lineitems")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Validate rejects settings the services cannot start with.
func (c *Config) Validate() error {
	switch c.Aggregator.DealFetchPolicy {
	case "strict", "lenient":
	default:
		return fmt.Errorf("aggregator.deal_fetch_policy must be strict or lenient, got %q", c.Aggregator.DealFetchPolicy)
	}
	if c.Aggregator.Timeout <= 0 {
		return fmt.Errorf("aggregator.timeout must be positive")
	}
	if c.CRM.Timeout <= 0 {
		return fmt.Errorf("crm.timeout must be positive")
	}
	if c.Auth.JWTDuration <= 0 {
		return fmt.Errorf("auth.jwt_ttl must be positive")
	}
	if strings.TrimSpace(c.CRM.BaseURL) == "" {
		return fmt.Errorf("crm.base_url required")
	}
	return nil
}

func defaultDBPath() string {
	// local default: ~/.dealdesk/data.db
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".dealdesk", "data.db")
}

// splitList flattens "a,b" entries, which is how brokers arrive from env vars.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
