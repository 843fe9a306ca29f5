package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds service configuration loaded from YAML and env.
// Env vars win over the file; secrets come from env only.
type Config struct {
	ServerPort string

	WeatherAPIKey  string
	WeatherAPIBase string
	RequestTimeout time.Duration // per provider call

	PoolWidth           int           // concurrent provider calls per batch
	PacerInterval       time.Duration // min spacing between provider call starts
	RecentBatchCapacity int

	StorageEngine   string // "mysql" or "sqlite"
	StorageHost     string
	StoragePort     string
	StorageDatabase string
	StorageUser     string
	StoragePassword string
	StorageDebug    bool

	CacheBackend          string // "in_memory" or "memcached"
	CacheTTL              time.Duration
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RateLimitRPS   int
	RateLimitBurst int

	ShutdownTimeout               time.Duration
	ShutdownInFlightTimeout       time.Duration
	ShutdownInFlightCheckInterval time.Duration

	TrackedCities []string
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Provider struct {
		BaseURL     string `yaml:"base_url"`
		Timeout     string `yaml:"timeout"`
		MinInterval string `yaml:"min_interval"`
		PoolWidth   int    `yaml:"pool_width"`
	} `yaml:"provider"`

	Batches struct {
		RecentCapacity int `yaml:"recent_capacity"`
	} `yaml:"batches"`

	Storage struct {
		Engine   string `yaml:"engine"`
		Host     string `yaml:"host"`
		Port     string `yaml:"port"`
		Database string `yaml:"database"`
		User     string `yaml:"user"`
		Debug    bool   `yaml:"debug"`
	} `yaml:"storage"`

	Cache struct {
		Backend   string `yaml:"backend"`
		TTL       string `yaml:"ttl"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Reliability struct {
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"in_flight_timeout"`
		InFlightCheckInterval string `yaml:"in_flight_check_interval"`
	} `yaml:"shutdown"`

	Metrics struct {
		TrackedCities []string `yaml:"tracked_cities"`
	} `yaml:"metrics"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev; the
// file is optional, env-only deployments are fine) with env-var overrides.
// A .env file is honored for local runs.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	var fc fileConfig
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg := &Config{}

	cfg.ServerPort = envDefault("PORT", fc.Server.Port)
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	cfg.WeatherAPIKey = os.Getenv("WEATHER_API_KEY")
	if cfg.WeatherAPIKey == "" {
		return nil, fmt.Errorf("WEATHER_API_KEY required")
	}

	cfg.WeatherAPIBase = envDefault("WEATHER_API_BASE", fc.Provider.BaseURL)
	if cfg.WeatherAPIBase == "" {
		cfg.WeatherAPIBase = "https://api.weatherapi.com/v1"
	}
	cfg.WeatherAPIBase = strings.TrimRight(cfg.WeatherAPIBase, "/")

	// REQUEST_TIMEOUT is whole seconds, matching the dashboard deployment
	// manifests; the YAML field takes a duration string.
	cfg.RequestTimeout = parseDuration(fc.Provider.Timeout, 10*time.Second)
	if v := envInt("REQUEST_TIMEOUT", 0); v > 0 {
		cfg.RequestTimeout = time.Duration(v) * time.Second
	}

	cfg.PoolWidth = fc.Provider.PoolWidth
	if v := envInt("MAX_CONCURRENT_REQUESTS", 0); v > 0 {
		cfg.PoolWidth = v
	}
	if cfg.PoolWidth <= 0 {
		cfg.PoolWidth = 5
	}

	cfg.PacerInterval = parseDuration(fc.Provider.MinInterval, 100*time.Millisecond)
	if s := os.Getenv("PROVIDER_MIN_INTERVAL"); s != "" {
		cfg.PacerInterval = parseDuration(s, cfg.PacerInterval)
	}

	cfg.RecentBatchCapacity = fc.Batches.RecentCapacity
	if cfg.RecentBatchCapacity <= 0 {
		cfg.RecentBatchCapacity = 100
	}

	cfg.StorageEngine = strings.ToLower(envDefault("DB_ENGINE", fc.Storage.Engine))
	if cfg.StorageEngine == "" {
		cfg.StorageEngine = "mysql"
	}
	cfg.StorageHost = envDefault("DB_HOST", fc.Storage.Host)
	cfg.StoragePort = envDefault("DB_PORT", fc.Storage.Port)
	cfg.StorageDatabase = envDefault("DB_NAME", fc.Storage.Database)
	cfg.StorageUser = envDefault("DB_USR", fc.Storage.User)
	cfg.StoragePassword = os.Getenv("DB_PASSWORD")
	cfg.StorageDebug = fc.Storage.Debug

	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(envDefault("CACHE_BACKEND", fc.Cache.Backend)))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "in_memory"
	}
	cfg.CacheTTL = parseDuration(fc.Cache.TTL, 30*time.Second)
	cfg.MemcachedAddrs = strings.TrimSpace(envDefault("MEMCACHED_ADDRS", fc.Cache.Memcached.Addrs))
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 100
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 250
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.ShutdownInFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 10*time.Second)
	cfg.ShutdownInFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 100*time.Millisecond)

	cfg.TrackedCities = fc.Metrics.TrackedCities

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// BatchWriteTimeout bounds how long one batch response may take to write.
// The worst case is maxCities fetches draining through the pool in waves,
// each wave bounded by the per-call timeout, plus pacing delay between
// call starts; 30s of headroom covers persistence and serialization.
func (c *Config) BatchWriteTimeout(maxCities int) time.Duration {
	poolWidth := c.PoolWidth
	if poolWidth <= 0 {
		poolWidth = 1
	}
	waves := (maxCities + poolWidth - 1) / poolWidth
	return time.Duration(waves)*c.RequestTimeout +
		time.Duration(maxCities)*c.PacerInterval +
		30*time.Second
}

// envDefault returns the env value when set, otherwise the file value.
func envDefault(key, fileVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fileVal
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// parseDuration parses a duration string and returns defaultVal if parsing
// fails or the result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

// validate performs post-load validation of configuration values.
func validate(cfg *Config) error {
	switch cfg.StorageEngine {
	case "mysql":
		if cfg.StorageHost == "" || cfg.StorageDatabase == "" {
			return fmt.Errorf("DB_HOST and DB_NAME required for mysql storage")
		}
	case "sqlite":
		// database path may be empty; the store falls back to a default file
	default:
		return fmt.Errorf("storage.engine must be mysql or sqlite, got %q", cfg.StorageEngine)
	}

	switch cfg.CacheBackend {
	case "in_memory", "memcached":
		// valid
	default:
		return fmt.Errorf("cache.backend must be in_memory or memcached, got %q", cfg.CacheBackend)
	}

	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("provider timeout must be positive")
	}
	return nil
}
