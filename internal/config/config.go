package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	domain "github.com/bryanwahyu/insight-relay/internal/domain/insights"
)

type Config struct {
	Server struct {
		Port           int           `yaml:"port"`
		ReadTimeout    time.Duration `yaml:"readTimeout"`
		WriteTimeout   time.Duration `yaml:"writeTimeout"`
		IdleTimeout    time.Duration `yaml:"idleTimeout"`
		AllowedOrigins []string      `yaml:"allowedOrigins"`
		APIKeys        []string      `yaml:"apiKeys"`
		RateLimit      struct {
			Capacity   int `yaml:"capacity"`
			RefillRate int `yaml:"refillRate"`
		} `yaml:"rateLimit"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	CrewAI struct {
		BaseURL        string        `yaml:"baseURL"`
		BearerToken    string        `yaml:"bearerToken"`
		RequestTimeout time.Duration `yaml:"requestTimeout"`
		PollInterval   time.Duration `yaml:"pollInterval"`
		MaxPolls       int           `yaml:"maxPolls"`
		MaxWait        time.Duration `yaml:"maxWait"`
		SuccessStates  []string      `yaml:"successStates"`
		FailureStates  []string      `yaml:"failureStates"`
	} `yaml:"crewai"`

	Database struct {
		Driver   string `yaml:"driver"` // "", mysql, postgres
		DSN      string `yaml:"dsn"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
	} `yaml:"database"`

	Minio struct {
		Enabled    bool   `yaml:"enabled"`
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`
}

// Load baca .env (kalau ada), lalu file config.yaml (opsional), lalu override dari env
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// env-only deployment
	default:
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.CrewAI.BearerToken, "BEARER_TOKEN")
	setString(&c.CrewAI.BaseURL, "BASE_URL")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")
	setString(&c.Database.Driver, "DATABASE_DRIVER")
	setString(&c.Database.DSN, "DATABASE_DSN")
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = port
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}
	if c.Server.RateLimit.Capacity == 0 {
		c.Server.RateLimit.Capacity = 10
	}
	if c.Server.RateLimit.RefillRate == 0 {
		c.Server.RateLimit.RefillRate = 1
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.CrewAI.RequestTimeout == 0 {
		c.CrewAI.RequestTimeout = 30 * time.Second
	}
	if c.CrewAI.PollInterval == 0 {
		c.CrewAI.PollInterval = domain.DefaultPollInterval
	}
	// a write deadline must outlast the poll budget; with no budget there is none
	if c.Server.WriteTimeout == 0 && c.CrewAI.MaxWait > 0 {
		c.Server.WriteTimeout = c.CrewAI.MaxWait + c.CrewAI.RequestTimeout + time.Minute
	}
	if len(c.CrewAI.SuccessStates) == 0 {
		c.CrewAI.SuccessStates = []string{string(domain.StateSuccess)}
	}
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if c.Database.Port == 0 {
		switch c.Database.Driver {
		case "mysql":
			c.Database.Port = 3306
		case "postgres":
			c.Database.Port = 5432
		}
	}
}

// Validate checks the settings the relay cannot start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.CrewAI.BaseURL) == "" {
		return errors.New("crewai base URL is required (BASE_URL)")
	}
	if strings.TrimSpace(c.CrewAI.BearerToken) == "" {
		return errors.New("crewai bearer token is required (BEARER_TOKEN)")
	}
	if c.CrewAI.MaxPolls < 0 || c.CrewAI.MaxWait < 0 {
		return errors.New("crewai maxPolls and maxWait must not be negative")
	}
	if w := c.Server.WriteTimeout; w > 0 && (c.CrewAI.MaxWait == 0 || c.CrewAI.MaxWait >= w) {
		return fmt.Errorf("server writeTimeout %s would cut off polling: set crewai.maxWait below it or writeTimeout to 0", w)
	}
	switch c.Database.Driver {
	case "", "mysql", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Minio.Enabled && (c.Minio.Endpoint == "" || c.Minio.BucketName == "") {
		return errors.New("minio endpoint and bucketName are required when minio is enabled")
	}
	return nil
}

// PollPolicy builds the status loop policy from the crewai section.
func (c *Config) PollPolicy() domain.PollPolicy {
	return domain.PollPolicy{
		Interval:      c.CrewAI.PollInterval,
		MaxPolls:      c.CrewAI.MaxPolls,
		MaxWait:       c.CrewAI.MaxWait,
		SuccessStates: c.CrewAI.SuccessStates,
		FailureStates: c.CrewAI.FailureStates,
	}
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	if c.Database.DSN != "" {
		return c.Database.DSN
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// Helper untuk build DSN Postgres
func (c *Config) PostgresDSN() string {
	if c.Database.DSN != "" {
		return c.Database.DSN
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
	)
}
