package utils

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/rs/zerolog"
)

var (
	ErrInvalidShortURL = errors.New("short url must be scheme://domain/key")

	tpKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

func ValidateURLScheme(urlStr string) error {
	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL format: %v", err)
	}

	validSchemes := []string{"http", "https"}
	if slices.Contains(validSchemes, u.Scheme) {
		return nil
	}

	return fmt.Errorf("link has invalid scheme. Must have schemes %v", validSchemes)
}

// IsValidKey reports whether key only holds characters Traffic Portal accepts in a tpKey.
func IsValidKey(key string) bool {
	return tpKeyPattern.MatchString(key)
}

func CleanHost(logger zerolog.Logger, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("host is required")
	}

	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("host is required")
	}
	logger.Debug().
		Str("host", host).
		Msg("Cleaned host")

	return host, nil
}

// IsHostAllowed reports whether host is on the allow list. An empty list allows every host.
func IsHostAllowed(allowList []string, host string) bool {
	if len(allowList) == 0 {
		return true
	}

	host = strings.ToLower(strings.TrimSpace(host))
	for _, allowed := range allowList {
		allowed = strings.ToLower(strings.TrimSpace(allowed))
		if host == allowed {
			return true
		}
	}
	return false
}

// NormalizeCacheURL is the URL form used when deriving cache keys.
func NormalizeCacheURL(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// NormalizeDestination lowercases scheme and host and leaves path and query alone.
func NormalizeDestination(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	return u.String()
}

// SplitShortURL breaks a short link into its domain and key.
func SplitShortURL(raw string) (string, string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "", "", ErrInvalidShortURL
	}

	pathParts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(pathParts) != 1 || pathParts[0] == "" {
		return "", "", ErrInvalidShortURL
	}

	return strings.ToLower(u.Hostname()), pathParts[0], nil
}
