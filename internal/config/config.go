package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Storage struct {
		// memory | postgres
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxConns int `yaml:"max_conns"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		// memory | redis
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	JWT struct {
		Issuer      string `yaml:"issuer"`
		AccessTTL   string `yaml:"access_ttl"`
		RefreshTTL  string `yaml:"refresh_ttl"`
		Ed25519Seed string `yaml:"ed25519_seed"` // base64(32 bytes)
	} `yaml:"jwt"`

	Wiki struct {
		// BaseURL is the wiki's script path, e.g. "https://wiki.example.org/w".
		BaseURL        string `yaml:"base_url"`
		ConsumerKey    string `yaml:"consumer_key"`
		ConsumerSecret string `yaml:"consumer_secret"`
		HandshakeTTL   string `yaml:"handshake_ttl"`
		SweepInterval  string `yaml:"sweep_interval"`
		HTTPTimeout    string `yaml:"http_timeout"`
		// Optional frontend URLs; when set, the callback redirects the
		// browser there instead of answering JSON.
		SuccessRedirect string `yaml:"success_redirect"`
		ErrorRedirect   string `yaml:"error_redirect"`
	} `yaml:"wiki"`
}

func Load(path string) (*Config, error) {
	var c Config

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "2m"
	}
	if c.JWT.Issuer == "" {
		c.JWT.Issuer = "sourcewiki"
	}
	if c.JWT.AccessTTL == "" {
		c.JWT.AccessTTL = "15m"
	}
	if c.JWT.RefreshTTL == "" {
		c.JWT.RefreshTTL = "720h" // 30d
	}
	if c.Wiki.HandshakeTTL == "" {
		c.Wiki.HandshakeTTL = "10m"
	}
	if c.Wiki.SweepInterval == "" {
		c.Wiki.SweepInterval = "1m"
	}
	if c.Wiki.HTTPTimeout == "" {
		c.Wiki.HTTPTimeout = "15s"
	}

	c.applyEnvOverrides()

	return &c, nil
}

// Validate checks the settings the service cannot run without. Missing
// consumer credentials are fatal at startup rather than at first use.
func (c *Config) Validate() error {
	if c.Wiki.BaseURL == "" {
		return fmt.Errorf("config: wiki.base_url is required")
	}
	if c.Wiki.ConsumerKey == "" || c.Wiki.ConsumerSecret == "" {
		return fmt.Errorf("config: wiki.consumer_key and wiki.consumer_secret are required")
	}
	if c.Storage.Driver == "postgres" && c.Storage.DSN == "" {
		return fmt.Errorf("config: storage.dsn is required for the postgres driver")
	}
	return nil
}

// Duration helpers: the yaml keeps human strings; these parse with a
// fallback so a typo degrades to the default instead of a panic.

func (c *Config) HandshakeTTL() time.Duration  { return durOr(c.Wiki.HandshakeTTL, 10*time.Minute) }
func (c *Config) SweepInterval() time.Duration { return durOr(c.Wiki.SweepInterval, time.Minute) }
func (c *Config) WikiHTTPTimeout() time.Duration {
	return durOr(c.Wiki.HTTPTimeout, 15*time.Second)
}
func (c *Config) AccessTTL() time.Duration  { return durOr(c.JWT.AccessTTL, 15*time.Minute) }
func (c *Config) RefreshTTL() time.Duration { return durOr(c.JWT.RefreshTTL, 720*time.Hour) }
func (c *Config) CacheDefaultTTL() time.Duration {
	return durOr(c.Cache.Memory.DefaultTTL, 2*time.Minute)
}

func durOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func getEnvStr(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	return v, ok && v != ""
}

func getEnvInt(key string) (int, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}

func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = v
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("JWT_ISSUER"); ok {
		c.JWT.Issuer = v
	}
	if v, ok := getEnvStr("JWT_ED25519_SEED"); ok {
		c.JWT.Ed25519Seed = v
	}
	if v, ok := getEnvStr("WIKI_BASE_URL"); ok {
		c.Wiki.BaseURL = v
	}
	if v, ok := getEnvStr("WIKI_CONSUMER_KEY"); ok {
		c.Wiki.ConsumerKey = v
	}
	if v, ok := getEnvStr("WIKI_CONSUMER_SECRET"); ok {
		c.Wiki.ConsumerSecret = v
	}
	if v, ok := getEnvStr("WIKI_SUCCESS_REDIRECT"); ok {
		c.Wiki.SuccessRedirect = v
	}
	if v, ok := getEnvStr("WIKI_ERROR_REDIRECT"); ok {
		c.Wiki.ErrorRedirect = v
	}
}
