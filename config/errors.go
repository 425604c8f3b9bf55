package config

import "errors"

var (
	ErrConfigFile = errors.New("cannot read config file")

	ErrServiceURLEmpty = errors.New("service base url is empty")
	ErrInvalidBaseURL  = errors.New("service base url is invalid")

	ErrInvalidDuration = errors.New("invalid duration env")
	ErrInvalidInt      = errors.New("invalid int env")

	ErrInvalidCacheBackend = errors.New("CACHE_BACKEND must be memory, sqlite or postgres")
	ErrCacheDSNEmpty       = errors.New("CACHE_DSN is empty")
	ErrInvalidTier         = errors.New("SHORTCODE_TIER is invalid")
	ErrInvalidLogLevel     = errors.New("LOG_LEVEL is invalid")
)
