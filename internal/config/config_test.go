package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mrsinham/dicompixel/internal/convert"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	def := DefaultConfig()
	if cfg.Output.JPEGQuality != def.Output.JPEGQuality || cfg.Server.Port != def.Server.Port {
		t.Errorf("expected defaults, got %+v", cfg.Output)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dicompixel.yaml")

	cfg := DefaultConfig()
	cfg.Output.Root = "/srv/out"
	cfg.Output.Policy = "per-file"
	cfg.Output.Workers = 3
	cfg.Server.ReadTimeout = 5 * time.Second
	cfg.Cache.Enabled = true
	cfg.Cache.Type = "redis"

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "read_timeout: 5s") {
		t.Errorf("durations should be written as strings:\n%s", data)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Output.Root != "/srv/out" || loaded.Output.Policy != "per-file" || loaded.Output.Workers != 3 {
		t.Errorf("output section not restored: %+v", loaded.Output)
	}
	if loaded.Server.ReadTimeout != 5*time.Second {
		t.Errorf("ReadTimeout = %v", loaded.Server.ReadTimeout)
	}
	if !loaded.Cache.Enabled || loaded.Cache.Type != "redis" {
		t.Errorf("cache section not restored: %+v", loaded.Cache)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	if err := os.WriteFile(path, []byte("output:\n  jpeg_quality: 75\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Output.JPEGQuality != 75 {
		t.Errorf("JPEGQuality = %d, want 75", cfg.Output.JPEGQuality)
	}
	if cfg.Output.Root != DefaultConfig().Output.Root {
		t.Errorf("unset fields should keep defaults, Root = %q", cfg.Output.Root)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("output: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"DICOMPIXEL_OUTPUT_ROOT":          "/data",
		"DICOMPIXEL_WORKERS":              "8",
		"DICOMPIXEL_CACHE_ENABLED":        "true",
		"DICOMPIXEL_CACHE_TTL":            "10m",
		"DICOMPIXEL_CORS_ALLOWED_ORIGINS": "https://a.example, https://b.example",
		"DICOMPIXEL_LOG_LEVEL":            "  ",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	cfg := DefaultConfig()
	if err := cfg.applyEnv(lookup); err != nil {
		t.Fatalf("applyEnv failed: %v", err)
	}
	if cfg.Output.Root != "/data" || cfg.Output.Workers != 8 {
		t.Errorf("output = %+v", cfg.Output)
	}
	if !cfg.Cache.Enabled || cfg.Cache.TTL != 10*time.Minute {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("origins = %v", cfg.CORS.AllowedOrigins)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("blank variable should be ignored, level = %q", cfg.Log.Level)
	}
}

func TestApplyEnv_InvalidValue(t *testing.T) {
	lookup := func(key string) (string, bool) {
		if key == "DICOMPIXEL_SERVER_PORT" {
			return "eighty", true
		}
		return "", false
	}
	err := DefaultConfig().applyEnv(lookup)
	if err == nil || !strings.Contains(err.Error(), "DICOMPIXEL_SERVER_PORT") {
		t.Errorf("expected error naming the variable, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty root", func(c *Config) { c.Output.Root = "" }},
		{"negative workers", func(c *Config) { c.Output.Workers = -1 }},
		{"unknown policy", func(c *Config) { c.Output.Policy = "sometimes" }},
		{"quality zero", func(c *Config) { c.Output.JPEGQuality = 0 }},
		{"quality too high", func(c *Config) { c.Output.JPEGQuality = 101 }},
		{"negative max dimension", func(c *Config) { c.Output.MaxDimension = -5 }},
		{"log format", func(c *Config) { c.Log.Format = "xml" }},
		{"port", func(c *Config) { c.Server.Port = 70000 }},
		{"cache type", func(c *Config) { c.Cache.Enabled = true; c.Cache.Type = "memcached" }},
		{"db name", func(c *Config) { c.Database.Enabled = true; c.Database.DBName = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestConvertOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output.Policy = "per-file"
	cfg.Output.Workers = 2
	cfg.Output.JPEGQuality = 80

	opts, err := cfg.ConvertOptions()
	if err != nil {
		t.Fatal(err)
	}
	if opts.Policy != convert.PerFile || opts.Workers != 2 || opts.Encode.JPEGQuality != 80 {
		t.Errorf("options = %+v", opts)
	}
	if opts.Decode.DefaultTransferSyntax != "1.2.840.10008.1.2" {
		t.Errorf("transfer syntax = %q", opts.Decode.DefaultTransferSyntax)
	}

	cfg.Output.Policy = "never"
	if _, err := cfg.ConvertOptions(); err == nil {
		t.Error("expected error for unknown policy")
	}
}
