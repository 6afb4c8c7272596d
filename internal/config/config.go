package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/operately/pagedata/internal/adapters/cache"
)

var ErrMissingRequiredValue = errors.New("missing required value")
var ErrInvalidValue = errors.New("invalid value")

type environment string

const (
	production  environment = "production"
	staging     environment = "staging"
	development environment = "development"
)

const (
	defaultPort            = "8080"
	defaultCacheTTL        = 5 * time.Minute
	defaultCacheMaxEntries = 1000
)

var defaultAllowedOrigins = []string{"operately.com"}

type Config struct {
	port            string
	sentryDSN       string
	apiURL          string
	apiToken        string
	cachePolicy     cache.Policy
	cacheTTL        time.Duration
	cacheMaxEntries int
	otelEnabled     bool
	allowedOrigins  []string
	env             environment
}

func (c *Config) Port() string {
	return c.port
}

func (c *Config) SentryDSN() string {
	return c.sentryDSN
}

func (c *Config) APIURL() string {
	return c.apiURL
}

func (c *Config) APIToken() string {
	return c.apiToken
}

func (c *Config) CacheStoreSettings() cache.StoreSettings {
	return cache.StoreSettings{
		Policy:     c.cachePolicy,
		TTL:        c.cacheTTL,
		MaxEntries: c.cacheMaxEntries,
	}
}

func (c *Config) OTelEnabled() bool {
	return c.otelEnabled
}

// AllowedOrigins are the domain suffixes browsers may call the service from
func (c *Config) AllowedOrigins() []string {
	return slices.Clone(c.allowedOrigins)
}

func (c *Config) Environment() string {
	return string(c.env)
}

func (c *Config) IsProduction() bool {
	return c.env == production
}

func (c *Config) IsStaging() bool {
	return c.env == staging
}

func (c *Config) IsDevelopment() bool {
	return c.env == development
}

// Return a string representation suitable for logging etc
func (c *Config) NonSensitiveString() string {
	return fmt.Sprintf(
		"Config{env: %s, port: %s, apiURL: %s, cachePolicy: %s, cacheTTL: %s, cacheMaxEntries: %d, otelEnabled: %t, allowedOrigins: %v, ...}",
		string(c.env), c.port, c.apiURL, string(c.cachePolicy), c.cacheTTL, c.cacheMaxEntries, c.otelEnabled, c.allowedOrigins,
	)
}

func ConfigFromEnv() (Config, error) {
	missingKey := func(key string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s", ErrMissingRequiredValue, key)
	}
	invalidValue := func(key string, value string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s (%s)", ErrInvalidValue, key, value)
	}

	var env environment
	rawEnv, ok := os.LookupEnv("PAGEDATA_ENVIRONMENT")
	if !ok {
		return missingKey("PAGEDATA_ENVIRONMENT")
	}
	switch rawEnv {
	case "production":
		env = production
	case "staging":
		env = staging
	case "development":
		env = development
	default:
		return invalidValue("PAGEDATA_ENVIRONMENT", rawEnv)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}
	if _, err := strconv.Atoi(port); err != nil {
		return invalidValue("PORT", port)
	}

	sentryDSN := os.Getenv("SENTRY_DSN")
	apiURL := os.Getenv("OPERATELY_API_URL")
	apiToken := os.Getenv("OPERATELY_API_TOKEN")

	cachePolicy := cache.PolicyUnbounded
	if rawPolicy := os.Getenv("PAGEDATA_CACHE_POLICY"); rawPolicy != "" {
		policy, err := cache.ParsePolicy(rawPolicy)
		if err != nil {
			return invalidValue("PAGEDATA_CACHE_POLICY", rawPolicy)
		}
		cachePolicy = policy
	}

	cacheTTL := defaultCacheTTL
	if rawTTL := os.Getenv("PAGEDATA_CACHE_TTL"); rawTTL != "" {
		ttl, err := time.ParseDuration(rawTTL)
		if err != nil || ttl <= 0 {
			return invalidValue("PAGEDATA_CACHE_TTL", rawTTL)
		}
		cacheTTL = ttl
	}

	cacheMaxEntries := defaultCacheMaxEntries
	if rawMaxEntries := os.Getenv("PAGEDATA_CACHE_MAX_ENTRIES"); rawMaxEntries != "" {
		maxEntries, err := strconv.Atoi(rawMaxEntries)
		if err != nil || maxEntries <= 0 {
			return invalidValue("PAGEDATA_CACHE_MAX_ENTRIES", rawMaxEntries)
		}
		cacheMaxEntries = maxEntries
	}

	otelEnabled := false
	if rawOTel := os.Getenv("OTEL_ENABLED"); rawOTel != "" {
		enabled, err := strconv.ParseBool(rawOTel)
		if err != nil {
			return invalidValue("OTEL_ENABLED", rawOTel)
		}
		otelEnabled = enabled
	}

	allowedOrigins := defaultAllowedOrigins
	if rawOrigins := os.Getenv("PAGEDATA_ALLOWED_ORIGINS"); rawOrigins != "" {
		allowedOrigins = []string{}
		for _, origin := range strings.Split(rawOrigins, ",") {
			origin = strings.TrimSpace(origin)
			if origin == "" {
				continue
			}
			allowedOrigins = append(allowedOrigins, origin)
		}
		if len(allowedOrigins) == 0 {
			return invalidValue("PAGEDATA_ALLOWED_ORIGINS", rawOrigins)
		}
	}

	if env == production || env == staging {
		if sentryDSN == "" {
			return missingKey("SENTRY_DSN")
		}
		if apiURL == "" {
			return missingKey("OPERATELY_API_URL")
		}
		if apiToken == "" {
			return missingKey("OPERATELY_API_TOKEN")
		}
	}

	return Config{
		port:            port,
		sentryDSN:       sentryDSN,
		apiURL:          apiURL,
		apiToken:        apiToken,
		cachePolicy:     cachePolicy,
		cacheTTL:        cacheTTL,
		cacheMaxEntries: cacheMaxEntries,
		otelEnabled:     otelEnabled,
		allowedOrigins:  allowedOrigins,
		env:             env,
	}, nil
}
