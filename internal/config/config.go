// Package config loads dicompixel settings from a YAML file, a .env file and
// DICOMPIXEL_* environment variables, in that order of precedence (lowest
// first).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "DICOMPIXEL_"

// Config is the complete dicompixel configuration.
type Config struct {
	Output   OutputConfig   `yaml:"output"`
	Decode   DecodeConfig   `yaml:"decode"`
	Log      LogConfig      `yaml:"log"`
	Server   ServerConfig   `yaml:"server"`
	CORS     CORSConfig     `yaml:"cors"`
	Cache    CacheConfig    `yaml:"cache"`
	Redis    RedisConfig    `yaml:"redis"`
	Database DatabaseConfig `yaml:"database"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type OutputConfig struct {
	Root         string `yaml:"root"`
	Workers      int    `yaml:"workers"`
	Policy       string `yaml:"policy"` // fail-fast or per-file
	JPEGQuality  int    `yaml:"jpeg_quality"`
	MaxDimension int    `yaml:"max_dimension"` // 0 keeps the source geometry
}

type DecodeConfig struct {
	DefaultTransferSyntax string `yaml:"default_transfer_syntax"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

type ServerConfig struct {
	Host          string        `yaml:"host"`
	Port          int           `yaml:"port"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	MaxUploadSize int64         `yaml:"max_upload_size"` // bytes
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Type    string        `yaml:"type"` // memory or redis
	TTL     time.Duration `yaml:"ttl"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	LogLevel string `yaml:"log_level"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DefaultConfig returns the settings used when nothing else is configured.
func DefaultConfig() *Config {
	return &Config{
		Output: OutputConfig{
			Root:        "dicompixel-output",
			Policy:      "fail-fast",
			JPEGQuality: 90,
		},
		Decode: DecodeConfig{
			DefaultTransferSyntax: "1.2.840.10008.1.2",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Server: ServerConfig{
			Host:          "0.0.0.0",
			Port:          8080,
			ReadTimeout:   30 * time.Second,
			WriteTimeout:  120 * time.Second,
			MaxUploadSize: 256 << 20,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		},
		Cache: CacheConfig{
			Enabled: false,
			Type:    "memory",
			TTL:     time.Hour,
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "dicompixel",
			DBName:   "dicompixel",
			SSLMode:  "disable",
			LogLevel: "warn",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Load reads the YAML file at path on top of DefaultConfig, then applies a
// .env file from the working directory (if any) and DICOMPIXEL_* variables.
// An empty path or a missing file leaves the defaults in place.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	// .env is optional
	_ = godotenv.Load()

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as YAML, creating parent directories as needed.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	e := envReader{lookup: lookup}

	e.setString("OUTPUT_ROOT", &c.Output.Root)
	e.setInt("WORKERS", &c.Output.Workers)
	e.setString("POLICY", &c.Output.Policy)
	e.setInt("JPEG_QUALITY", &c.Output.JPEGQuality)
	e.setInt("MAX_DIMENSION", &c.Output.MaxDimension)
	e.setString("DEFAULT_TRANSFER_SYNTAX", &c.Decode.DefaultTransferSyntax)

	e.setString("LOG_LEVEL", &c.Log.Level)
	e.setString("LOG_FORMAT", &c.Log.Format)

	e.setString("SERVER_HOST", &c.Server.Host)
	e.setInt("SERVER_PORT", &c.Server.Port)
	e.setDuration("SERVER_READ_TIMEOUT", &c.Server.ReadTimeout)
	e.setDuration("SERVER_WRITE_TIMEOUT", &c.Server.WriteTimeout)
	e.setList("CORS_ALLOWED_ORIGINS", &c.CORS.AllowedOrigins)

	e.setBool("CACHE_ENABLED", &c.Cache.Enabled)
	e.setString("CACHE_TYPE", &c.Cache.Type)
	e.setDuration("CACHE_TTL", &c.Cache.TTL)

	e.setString("REDIS_HOST", &c.Redis.Host)
	e.setInt("REDIS_PORT", &c.Redis.Port)
	e.setString("REDIS_PASSWORD", &c.Redis.Password)
	e.setInt("REDIS_DB", &c.Redis.DB)

	e.setBool("DB_ENABLED", &c.Database.Enabled)
	e.setString("DB_HOST", &c.Database.Host)
	e.setInt("DB_PORT", &c.Database.Port)
	e.setString("DB_USER", &c.Database.User)
	e.setString("DB_PASSWORD", &c.Database.Password)
	e.setString("DB_NAME", &c.Database.DBName)
	e.setString("DB_SSLMODE", &c.Database.SSLMode)

	e.setBool("METRICS_ENABLED", &c.Metrics.Enabled)

	return e.err
}

// envReader collects the first conversion error so applyEnv stays flat.
type envReader struct {
	lookup lookupFunc
	err    error
}

func (e *envReader) get(key string) (string, bool) {
	if e.err != nil {
		return "", false
	}
	v, ok := e.lookup(EnvPrefix + key)
	return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
}

func (e *envReader) fail(key, value string, err error) {
	e.err = fmt.Errorf("invalid %s%s=%q: %w", EnvPrefix, key, value, err)
}

func (e *envReader) setString(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) setInt(key string, dst *int) {
	if v, ok := e.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) setBool(key string, dst *bool) {
	if v, ok := e.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = b
	}
}

func (e *envReader) setDuration(key string, dst *time.Duration) {
	if v, ok := e.get(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = d
	}
}

func (e *envReader) setList(key string, dst *[]string) {
	if v, ok := e.get(key); ok {
		var out []string
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		*dst = out
	}
}

// Validate checks the values that cannot be fixed up silently.
func (c *Config) Validate() error {
	if c.Output.Root == "" {
		return fmt.Errorf("output.root is required")
	}
	if c.Output.Workers < 0 {
		return fmt.Errorf("output.workers must be >= 0, got %d", c.Output.Workers)
	}
	switch c.Output.Policy {
	case "", "fail-fast", "per-file":
	default:
		return fmt.Errorf("output.policy must be fail-fast or per-file, got %q", c.Output.Policy)
	}
	if c.Output.JPEGQuality < 1 || c.Output.JPEGQuality > 100 {
		return fmt.Errorf("output.jpeg_quality must be between 1 and 100, got %d", c.Output.JPEGQuality)
	}
	if c.Output.MaxDimension < 0 {
		return fmt.Errorf("output.max_dimension must be >= 0, got %d", c.Output.MaxDimension)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Cache.Enabled && c.Cache.Type != "memory" && c.Cache.Type != "redis" {
		return fmt.Errorf("cache.type must be memory or redis, got %q", c.Cache.Type)
	}
	if c.Database.Enabled && c.Database.DBName == "" {
		return fmt.Errorf("database.dbname is required when the database is enabled")
	}
	return nil
}
