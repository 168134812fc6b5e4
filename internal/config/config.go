// Package config loads and validates eventable configuration from environment
// variables and an optional catalog file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Config holds all eventable configuration.
type Config struct {
	// Database settings.
	DatabaseURL string // Postgres URL or SQLite DSN.
	Driver      string // "postgres" or "sqlite"; inferred from DatabaseURL when empty.
	Table       string
	AutoMigrate bool

	// Event type catalog.
	CatalogPath string
	EventTypes  map[string]string // alias -> type id, e.g. "order" -> "github.com/acme/shop.OrderEvent"

	// Polymorphic discriminator for event rows acting as owners.
	RegisterMorphMap bool
	MorphAlias       string

	// Default zone for today/week/month scopes.
	Timezone string

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	// PruneTimeout bounds one prune run; zero means no limit.
	PruneTimeout time.Duration

	LogLevel string
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		DatabaseURL:      "file:eventable.db",
		Table:            "events",
		AutoMigrate:      true,
		EventTypes:       map[string]string{},
		RegisterMorphMap: true,
		MorphAlias:       "event",
		Timezone:         "UTC",
		ServiceName:      "eventable",
		LogLevel:         "info",
	}
}

// Load reads configuration from the environment with sensible defaults. When
// EVENTABLE_CATALOG names a file its values are applied first and environment
// variables override them. Unparseable values are reported together; the
// result is not validated, so callers apply their overrides and then call
// Validate.
func Load() (Config, error) {
	cfg := Defaults()
	var errs []error

	cfg.CatalogPath = envStr("EVENTABLE_CATALOG", "")
	if cfg.CatalogPath != "" {
		cat, err := LoadCatalog(cfg.CatalogPath)
		if err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		cat.Apply(&cfg)
	}

	cfg.DatabaseURL = envStr("DATABASE_URL", cfg.DatabaseURL)
	cfg.Driver = envStr("EVENTABLE_DRIVER", cfg.Driver)
	cfg.Table = envStr("EVENTABLE_TABLE", cfg.Table)
	cfg.MorphAlias = envStr("EVENTABLE_MORPH_ALIAS", cfg.MorphAlias)
	cfg.Timezone = envStr("EVENTABLE_TIMEZONE", cfg.Timezone)
	cfg.OTELEndpoint = envStr("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTELEndpoint)
	cfg.ServiceName = envStr("OTEL_SERVICE_NAME", cfg.ServiceName)
	cfg.LogLevel = envStr("EVENTABLE_LOG_LEVEL", cfg.LogLevel)

	var err error
	if cfg.RegisterMorphMap, err = envBool("EVENTABLE_REGISTER_MORPH_MAP", cfg.RegisterMorphMap); err != nil {
		errs = append(errs, err)
	}
	if cfg.AutoMigrate, err = envBool("EVENTABLE_AUTO_MIGRATE", cfg.AutoMigrate); err != nil {
		errs = append(errs, err)
	}
	if cfg.OTELInsecure, err = envBool("OTEL_EXPORTER_OTLP_INSECURE", cfg.OTELInsecure); err != nil {
		errs = append(errs, err)
	}

	if cfg.PruneTimeout, err = envDuration("EVENTABLE_PRUNE_TIMEOUT", cfg.PruneTimeout); err != nil {
		errs = append(errs, err)
	}

	inline, err := envCatalog("EVENTABLE_EVENT_TYPES")
	if err != nil {
		errs = append(errs, err)
	}
	for alias, id := range inline {
		cfg.EventTypes[alias] = id
	}

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.Driver != "" && c.Driver != "postgres" && c.Driver != "sqlite" {
		errs = append(errs, fmt.Errorf("EVENTABLE_DRIVER=%q must be postgres or sqlite", c.Driver))
	}
	if !identPattern.MatchString(c.Table) {
		errs = append(errs, fmt.Errorf("EVENTABLE_TABLE=%q is not a valid table name", c.Table))
	}
	if c.RegisterMorphMap && c.MorphAlias == "" {
		errs = append(errs, errors.New("EVENTABLE_MORPH_ALIAS is required when EVENTABLE_REGISTER_MORPH_MAP is on"))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("EVENTABLE_TIMEZONE=%q is not a known time zone", c.Timezone))
	}
	if c.PruneTimeout < 0 {
		errs = append(errs, errors.New("EVENTABLE_PRUNE_TIMEOUT must not be negative"))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	for _, alias := range sortedKeys(c.EventTypes) {
		if alias == "" || c.EventTypes[alias] == "" {
			errs = append(errs, fmt.Errorf("event type catalog entry %q=%q is incomplete", alias, c.EventTypes[alias]))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Location returns the configured default zone, or UTC if it cannot be loaded.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SlogLevel returns the configured log level, or info if it is invalid.
func (c Config) SlogLevel() slog.Level {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("EVENTABLE_LOG_LEVEL=%q is not a valid log level", s)
	}
	return level, nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid duration", key, v)
	}
	return d, nil
}

func envBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s=%q is not a valid boolean", key, v)
	}
	return b, nil
}

// envCatalog parses "alias=TypeID,alias=TypeID".
func envCatalog(key string) (map[string]string, error) {
	v := os.Getenv(key)
	out := map[string]string{}
	if strings.TrimSpace(v) == "" {
		return out, nil
	}
	for _, pair := range strings.Split(v, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		alias, id, ok := strings.Cut(pair, "=")
		alias, id = strings.TrimSpace(alias), strings.TrimSpace(id)
		if !ok || alias == "" || id == "" {
			return nil, fmt.Errorf("%s=%q is not a valid alias=TypeID list", key, v)
		}
		out[alias] = id
	}
	return out, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
