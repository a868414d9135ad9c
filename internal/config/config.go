package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Mode string

const (
	ModeLocal Mode = "local"
	ModeGCP   Mode = "gcp"
)

type Config struct {
	Mode Mode `yaml:"mode"`

	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`

	// BackendURL points at the upstream agent backend. Empty means the
	// in-process agentflow backend is used.
	BackendURL     string        `yaml:"backend_url"`
	BackendTimeout time.Duration `yaml:"backend_timeout"`

	DefaultJurisdiction string        `yaml:"default_jurisdiction"`
	StatusInterval      time.Duration `yaml:"status_interval"`
	RefreshDelay        time.Duration `yaml:"refresh_delay"`

	GCPProjectID string `yaml:"gcp_project"`
	GCPLocation  string `yaml:"gcp_location"`
	ModelName    string `yaml:"model_name"`

	StorageBackend string `yaml:"storage_backend"` // "memory" o "firestore"
	UseMockLLM     bool   `yaml:"use_mock_llm"`    // true = use mock even on GCP

	RedisAddr string `yaml:"redis_addr"`

	AMQPURL      string `yaml:"amqp_url"`
	AMQPExchange string `yaml:"amqp_exchange"`

	AllowedOrigins []string `yaml:"allowed_origins"`
}

func defaults() *Config {
	return &Config{
		Mode:                ModeLocal,
		Port:                "8080",
		LogLevel:            "info",
		BackendTimeout:      90 * time.Second,
		DefaultJurisdiction: "missouri",
		StatusInterval:      2500 * time.Millisecond,
		RefreshDelay:        1500 * time.Millisecond,
		GCPLocation:         "us-central1",
		ModelName:           "gemini-2.5-flash-lite",
		StorageBackend:      "memory",
		AMQPExchange:        "lawyrs.events",
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if v == "1" || v == "true" || v == "TRUE" {
		return true
	}
	return false
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// Load builds the config from defaults, then the YAML file, then env vars.
func Load() (*Config, error) {
	cfg := defaults()

	path := getEnv("LAWYRS_CONFIG", defaultConfigPath())
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.applyEnv()

	if cfg.Mode == ModeGCP && cfg.GCPProjectID == "" {
		return nil, fmt.Errorf("LAWYRS_GCP_PROJECT must be set in gcp mode")
	}
	if cfg.StorageBackend == "firestore" && cfg.GCPProjectID == "" {
		return nil, fmt.Errorf("LAWYRS_GCP_PROJECT is required for firestore storage")
	}
	return cfg, nil
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".lawyrs.yaml")
}

// loadFile overlays the YAML file at path. A missing file is not an error.
// String values still holding an unexpanded "${...}" template are ignored.
func (c *Config) loadFile(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config %s: %w", path, err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	c.merge(&file)
	return nil
}

func (c *Config) merge(f *Config) {
	setStr := func(dst *string, v string) {
		if v != "" && !strings.HasPrefix(v, "${") {
			*dst = v
		}
	}
	setDur := func(dst *time.Duration, v time.Duration) {
		if v > 0 {
			*dst = v
		}
	}

	if f.Mode != "" {
		c.Mode = f.Mode
	}
	setStr(&c.Port, f.Port)
	setStr(&c.LogLevel, f.LogLevel)
	setStr(&c.BackendURL, f.BackendURL)
	setDur(&c.BackendTimeout, f.BackendTimeout)
	setStr(&c.DefaultJurisdiction, f.DefaultJurisdiction)
	setDur(&c.StatusInterval, f.StatusInterval)
	setDur(&c.RefreshDelay, f.RefreshDelay)
	setStr(&c.GCPProjectID, f.GCPProjectID)
	setStr(&c.GCPLocation, f.GCPLocation)
	setStr(&c.ModelName, f.ModelName)
	setStr(&c.StorageBackend, f.StorageBackend)
	setStr(&c.RedisAddr, f.RedisAddr)
	setStr(&c.AMQPURL, f.AMQPURL)
	setStr(&c.AMQPExchange, f.AMQPExchange)
	if f.UseMockLLM {
		c.UseMockLLM = true
	}
	if len(f.AllowedOrigins) > 0 {
		c.AllowedOrigins = f.AllowedOrigins
	}
}

func (c *Config) applyEnv() {
	if getEnv("LAWYRS_MODE", string(c.Mode)) == string(ModeGCP) {
		c.Mode = ModeGCP
	} else {
		c.Mode = ModeLocal
	}

	c.Port = getEnv("LAWYRS_PORT", getEnv("PORT", c.Port))
	c.LogLevel = getEnv("LAWYRS_LOG_LEVEL", c.LogLevel)
	c.BackendURL = getEnv("LAWYRS_BACKEND_URL", c.BackendURL)
	c.BackendTimeout = getDurationEnv("LAWYRS_BACKEND_TIMEOUT", c.BackendTimeout)
	c.DefaultJurisdiction = getEnv("LAWYRS_DEFAULT_JURISDICTION", c.DefaultJurisdiction)
	c.StatusInterval = getDurationEnv("LAWYRS_STATUS_INTERVAL", c.StatusInterval)
	c.RefreshDelay = getDurationEnv("LAWYRS_REFRESH_DELAY", c.RefreshDelay)

	c.GCPProjectID = getEnv("LAWYRS_GCP_PROJECT", c.GCPProjectID)
	c.GCPLocation = getEnv("LAWYRS_GCP_LOCATION", c.GCPLocation)
	c.ModelName = getEnv("LAWYRS_MODEL_NAME", c.ModelName)

	c.StorageBackend = getEnv("LAWYRS_STORAGE_BACKEND", c.StorageBackend)
	c.UseMockLLM = getBoolEnv("LAWYRS_USE_MOCK_LLM", c.UseMockLLM || c.Mode == ModeLocal)

	c.RedisAddr = getEnv("LAWYRS_REDIS_ADDR", c.RedisAddr)
	c.AMQPURL = getEnv("LAWYRS_AMQP_URL", c.AMQPURL)
	c.AMQPExchange = getEnv("LAWYRS_AMQP_EXCHANGE", c.AMQPExchange)

	if v := os.Getenv("LAWYRS_ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, o)
			}
		}
	}
}
