package config

import (
	"errors"
	"fmt"
	"strings"
)

// Config holds every server-level option plus the effective cache policy table
// once the loader resolves the configured sources.
type Config struct {
	Server   ServerConfig            `koanf:"server"`
	Policies map[string]PolicyConfig `koanf:"policies"`

	// InlinePolicies preserves the policies declared directly in the main
	// configuration document so a policies-file reload can re-merge them. It is
	// excluded from koanf because it reflects loader bookkeeping, not input.
	InlinePolicies map[string]PolicyConfig `koanf:"-"`

	// PolicySources records which files contributed policy definitions once the
	// loader resolves the configured sources.
	PolicySources []string `koanf:"-"`
}

// ServerConfig collects the bootstrap knobs owned by the service lifecycle.
type ServerConfig struct {
	Listen  ListenConfig  `koanf:"listen"`
	Logging LoggingConfig `koanf:"logging"`
	Cache   CacheConfig   `koanf:"cache"`

	// ShutdownGraceSeconds bounds how long in-flight requests may drain on
	// shutdown before the listener is torn down.
	ShutdownGraceSeconds int `koanf:"shutdownGraceSeconds"`
}

// ListenConfig instructs the diagnostics HTTP listener about bind address and port.
type ListenConfig struct {
	Address string `koanf:"address"`
	Port    int    `koanf:"port"`
}

// LoggingConfig expresses log level and format.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// CacheConfig selects the durable tier backend and sizes the fast tier.
type CacheConfig struct {
	Backend        string       `koanf:"backend"`
	FastMaxEntries int          `koanf:"fastMaxEntries"`
	PoliciesFile   string       `koanf:"policiesFile"`
	Valkey         ValkeyConfig `koanf:"valkey"`
	Bolt           BoltConfig   `koanf:"bolt"`
}

// ValkeyConfig carries connection settings for the valkey-backed durable tier.
type ValkeyConfig struct {
	Address  string          `koanf:"address"`
	Username string          `koanf:"username"`
	Password string          `koanf:"password"`
	DB       int             `koanf:"db"`
	TLS      ValkeyTLSConfig `koanf:"tls"`
}

type ValkeyTLSConfig struct {
	Enabled bool   `koanf:"enabled"`
	CAFile  string `koanf:"caFile"`
}

// BoltConfig points the file-backed durable tier at its database file.
type BoltConfig struct {
	Path string `koanf:"path"`
}

// PolicyConfig declares the expiration policy for one content type tag.
type PolicyConfig struct {
	TTLSeconds int    `koanf:"ttlSeconds"`
	Prefix     string `koanf:"prefix"`
}

// DefaultConfig returns the baseline configuration applied before file and
// environment overrides. The policy table mirrors the content types served by
// the catalog: long-lived title details, shorter episode lists, and short-lived
// search and trending results.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Listen: ListenConfig{
				Address: "0.0.0.0",
				Port:    8080,
			},
			Logging: LoggingConfig{
				Level:  "info",
				Format: "json",
			},
			Cache: CacheConfig{
				Backend:        "memory",
				FastMaxEntries: 1000,
			},
			ShutdownGraceSeconds: 5,
		},
		Policies: map[string]PolicyConfig{
			"movies":   {TTLSeconds: 1800, Prefix: "movie:"},
			"shows":    {TTLSeconds: 3600, Prefix: "show:"},
			"episodes": {TTLSeconds: 900, Prefix: "episodes:"},
			"search":   {TTLSeconds: 300, Prefix: "search:"},
			"trending": {TTLSeconds: 600, Prefix: "trending:"},
		},
	}
}

// Validate rejects configurations the runtime cannot act on.
func (c Config) Validate() error {
	if c.Server.Listen.Port <= 0 || c.Server.Listen.Port > 65535 {
		return fmt.Errorf("config: listen port %d out of range", c.Server.Listen.Port)
	}
	switch strings.ToLower(c.Server.Cache.Backend) {
	case "memory", "valkey", "bolt":
	default:
		return fmt.Errorf("config: unsupported cache backend %q", c.Server.Cache.Backend)
	}
	if strings.EqualFold(c.Server.Cache.Backend, "valkey") && c.Server.Cache.Valkey.Address == "" {
		return errors.New("config: valkey backend requires an address")
	}
	if strings.EqualFold(c.Server.Cache.Backend, "bolt") && c.Server.Cache.Bolt.Path == "" {
		return errors.New("config: bolt backend requires a path")
	}
	if c.Server.Cache.FastMaxEntries <= 0 {
		return fmt.Errorf("config: fastMaxEntries must be positive, got %d", c.Server.Cache.FastMaxEntries)
	}
	if c.Server.ShutdownGraceSeconds <= 0 {
		return fmt.Errorf("config: shutdownGraceSeconds must be positive, got %d", c.Server.ShutdownGraceSeconds)
	}
	for tag, policy := range c.Policies {
		if err := policy.validate(tag); err != nil {
			return err
		}
	}
	return nil
}

func (p PolicyConfig) validate(tag string) error {
	if strings.TrimSpace(tag) == "" {
		return errors.New("config: policy tag must not be empty")
	}
	if p.TTLSeconds <= 0 {
		return fmt.Errorf("config: policy %q ttlSeconds must be positive, got %d", tag, p.TTLSeconds)
	}
	return nil
}

func clonePolicyMap(in map[string]PolicyConfig) map[string]PolicyConfig {
	if in == nil {
		return nil
	}
	out := make(map[string]PolicyConfig, len(in))
	for tag, policy := range in {
		out[tag] = policy
	}
	return out
}
