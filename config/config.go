// Package config loads tpctl settings from an optional YAML file overlaid by
// environment variables.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/trafficportal/linkshortener/models"
	"gopkg.in/yaml.v3"
)

const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"

	defaultHTTPTimeout = 30 * time.Second
	defaultCacheTTL    = 24 * time.Hour
	defaultLinksDB     = "tpctl.db"
	defaultLogLevel    = "info"
	defaultURLScheme   = "https"
)

type ServiceConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

type CacheConfig struct {
	Backend string        `yaml:"backend"`
	DSN     string        `yaml:"dsn"`
	TTL     time.Duration `yaml:"ttl"`
}

type Config struct {
	ShortCode     ServiceConfig `yaml:"shortcode"`
	SnapCapture   ServiceConfig `yaml:"snapcapture"`
	TrafficPortal ServiceConfig `yaml:"trafficportal"`

	HTTPTimeout time.Duration `yaml:"http_timeout"`
	Cache       CacheConfig   `yaml:"cache"`

	UID            int64    `yaml:"uid"`
	DefaultDomain  string   `yaml:"default_domain"`
	AllowedDomains []string `yaml:"allowed_domains"`
	ShortCodeTier  string   `yaml:"shortcode_tier"`
	URLScheme      string   `yaml:"url_scheme"`

	LinksDB  string `yaml:"links_db"`
	LogLevel string `yaml:"log_level"`
}

type stringSpec struct {
	key string
	dst *string
}

type durationSpec struct {
	key string
	dst *time.Duration
}

// Load reads path (or $TP_CONFIG when path is empty) if set, applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Config{
		HTTPTimeout: defaultHTTPTimeout,
		Cache: CacheConfig{
			Backend: BackendMemory,
			TTL:     defaultCacheTTL,
		},
		URLScheme: defaultURLScheme,
		LinksDB:   defaultLinksDB,
		LogLevel:  defaultLogLevel,
	}

	if path == "" {
		path = env("TP_CONFIG")
	}
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := loadEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigFile, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrConfigFile, path, err)
	}
	return nil
}

func loadEnv(cfg *Config) error {
	strs := []stringSpec{
		{key: "SHORTCODE_API_URL", dst: &cfg.ShortCode.BaseURL},
		{key: "SHORTCODE_API_KEY", dst: &cfg.ShortCode.APIKey},
		{key: "SNAPCAPTURE_API_URL", dst: &cfg.SnapCapture.BaseURL},
		{key: "SNAPCAPTURE_API_KEY", dst: &cfg.SnapCapture.APIKey},
		{key: "TRAFFICPORTAL_API_URL", dst: &cfg.TrafficPortal.BaseURL},
		{key: "TRAFFICPORTAL_API_KEY", dst: &cfg.TrafficPortal.APIKey},
		{key: "CACHE_BACKEND", dst: &cfg.Cache.Backend},
		{key: "CACHE_DSN", dst: &cfg.Cache.DSN},
		{key: "DEFAULT_DOMAIN", dst: &cfg.DefaultDomain},
		{key: "SHORTCODE_TIER", dst: &cfg.ShortCodeTier},
		{key: "URL_SCHEME", dst: &cfg.URLScheme},
		{key: "LINKS_DB", dst: &cfg.LinksDB},
		{key: "LOG_LEVEL", dst: &cfg.LogLevel},
	}
	for _, spec := range strs {
		if v := env(spec.key); v != "" {
			*spec.dst = v
		}
	}

	durations := []durationSpec{
		{key: "HTTP_TIMEOUT", dst: &cfg.HTTPTimeout},
		{key: "CACHE_TTL", dst: &cfg.Cache.TTL},
	}
	for _, spec := range durations {
		d, err := parseDurationEnv(spec.key, *spec.dst)
		if err != nil {
			return err
		}
		if d <= 0 {
			return fmt.Errorf("%w: %s=%s", ErrInvalidDuration, spec.key, d)
		}
		*spec.dst = d
	}

	uid, err := parseInt64Env("TP_UID", cfg.UID)
	if err != nil {
		return err
	}
	cfg.UID = uid

	if raw := env("ALLOWED_DOMAINS"); raw != "" {
		cfg.AllowedDomains = splitList(raw)
	}
	return nil
}

func (c *Config) validate() error {
	c.Cache.Backend = strings.ToLower(c.Cache.Backend)
	switch c.Cache.Backend {
	case BackendMemory, BackendSQLite:
	case BackendPostgres:
		if c.Cache.DSN == "" {
			return ErrCacheDSNEmpty
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidCacheBackend, c.Cache.Backend)
	}

	if _, err := c.Tier(); err != nil {
		return err
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.LogLevel)
	}

	if c.HTTPTimeout <= 0 || c.Cache.TTL <= 0 {
		return fmt.Errorf("%w: http_timeout=%s cache_ttl=%s", ErrInvalidDuration, c.HTTPTimeout, c.Cache.TTL)
	}

	for _, svc := range c.services() {
		svc.cfg.BaseURL = normalizeBaseURL(svc.cfg.BaseURL)
		if svc.cfg.BaseURL == "" {
			continue
		}
		if err := validateBaseURL(svc.cfg.BaseURL); err != nil {
			return fmt.Errorf("%w: %s", err, svc.name)
		}
	}
	return nil
}

// RequireServices fails when any of the three remote services has no base url.
func (c Config) RequireServices() error {
	for _, svc := range c.services() {
		if svc.cfg.BaseURL == "" {
			return fmt.Errorf("%w: %s", ErrServiceURLEmpty, svc.name)
		}
	}
	return nil
}

func (c Config) Tier() (models.ShortCodeTier, error) {
	tier, err := models.ParseShortCodeTier(c.ShortCodeTier)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidTier, c.ShortCodeTier)
	}
	return tier, nil
}

func (c Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

type namedService struct {
	name string
	cfg  *ServiceConfig
}

func (c *Config) services() []namedService {
	return []namedService{
		{name: "shortcode", cfg: &c.ShortCode},
		{name: "snapcapture", cfg: &c.SnapCapture},
		{name: "trafficportal", cfg: &c.TrafficPortal},
	}
}

func normalizeBaseURL(v string) string {
	return strings.TrimRight(strings.TrimSpace(v), "/")
}

func validateBaseURL(v string) error {
	u, err := url.Parse(v)
	if err != nil {
		return ErrInvalidBaseURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ErrInvalidBaseURL
	}
	if u.Hostname() == "" || u.RawQuery != "" || u.Fragment != "" {
		return ErrInvalidBaseURL
	}
	return nil
}

// env helpers

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// typed parsers

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := env(key)
	if raw == "" {
		return def, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidDuration, key, raw)
	}
	return d, nil
}

func parseInt64Env(key string, def int64) (int64, error) {
	raw := env(key)
	if raw == "" {
		return def, nil
	}

	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidInt, key, raw)
	}
	return n, nil
}
