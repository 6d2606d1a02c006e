package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type HTTP struct {
	Addr string `yaml:"addr"`
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|prod
	Service   string `yaml:"service"`   // match-service
	Version   string `yaml:"version"`   // v0.1.0
	Backend   string `yaml:"backend"`   // std|zap
	AddSource bool   `yaml:"addSource"` // false|true
	Debug     bool   `yaml:"debug"`     // false|true
}

type Postgres struct {
	DSN string `yaml:"dsn"`
}

// Voting — тайминги ядра; пустые значения получают дефолты в validate().
type Voting struct {
	DebounceWindow string `yaml:"debounceWindow"` // окно схлопывания ресинков
	DisconnectTTL  string `yaml:"disconnectTTL"`  // TTL записи после disconnect
	SweepInterval  string `yaml:"sweepInterval"`  // период уборки просроченных
	PerVoteETA     string `yaml:"perVoteETA"`     // наивный ETA на один голос
	RetryAttempts  int    `yaml:"retryAttempts"`
	RetryBaseDelay string `yaml:"retryBaseDelay"`
}

type Config struct {
	HTTP     HTTP     `yaml:"http"`
	Logging  Logging  `yaml:"logging"`
	Postgres Postgres `yaml:"postgres"`
	Voting   Voting   `yaml:"voting"`
}

func LoadConfig() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if c.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	// установка дефолтов, если значения не указаны
	if c.Logging.Service == "" {
		c.Logging.Service = "match-service"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}
	if c.Voting.RetryAttempts <= 0 {
		c.Voting.RetryAttempts = 3
	}
	return nil
}

func (c *Config) DebounceWindow() time.Duration {
	return parseDurationOr(time.Second, c.Voting.DebounceWindow)
}

func (c *Config) DisconnectTTL() time.Duration {
	return parseDurationOr(30*time.Second, c.Voting.DisconnectTTL)
}

func (c *Config) SweepInterval() time.Duration {
	return parseDurationOr(30*time.Second, c.Voting.SweepInterval)
}

func (c *Config) PerVoteETA() time.Duration {
	return parseDurationOr(30*time.Second, c.Voting.PerVoteETA)
}

func (c *Config) RetryBaseDelay() time.Duration {
	return parseDurationOr(100*time.Millisecond, c.Voting.RetryBaseDelay)
}

// helper для парсинга timeout-ов
func parseDurationOr(def time.Duration, s string) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return def
}
