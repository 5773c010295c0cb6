package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Loader hydrates the runtime configuration while respecting env > file > default precedence.
type Loader struct {
	envPrefix string
	files     []string
}

// NewLoader prepares a config hydrator that honors the env-first contract before touching files or defaults.
func NewLoader(envPrefix string, files ...string) *Loader {
	return &Loader{
		envPrefix: envPrefix,
		files:     files,
	}
}

// Load assembles the effective snapshot using the documented precedence rules,
// then merges any external policies file over the inline policy table.
func (l *Loader) Load(ctx context.Context) (Config, error) {
	defaultCfg := DefaultConfig()
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(structToMap(defaultCfg), "."), nil); err != nil {
		return Config{}, fmt.Errorf("config: load defaults: %w", err)
	}

	for _, path := range l.files {
		if path == "" {
			continue
		}
		select {
		case <-ctx.Done():
			return Config{}, ctx.Err()
		default:
		}
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("config: file %s not found", path)
			}
			return Config{}, fmt.Errorf("config: stat %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	if l.envPrefix != "" {
		canonical := map[string]string{
			"server.cache.fastmaxentries":    "server.cache.fastMaxEntries",
			"server.cache.policiesfile":      "server.cache.policiesFile",
			"server.cache.valkey.tls.cafile": "server.cache.valkey.tls.caFile",
			"server.shutdowngraceseconds":    "server.shutdownGraceSeconds",
		}
		transform := func(s string) string {
			// Double underscores signal a nested path (SERVER__LISTEN__PORT -> server.listen.port).
			key := strings.TrimPrefix(s, l.envPrefix+"_")
			key = strings.ReplaceAll(key, "__", ".")
			lower := strings.ToLower(key)
			if mapped, ok := canonical[lower]; ok {
				return mapped
			}
			// Single underscores are removed so LISTEN_PORT collapses into listenport when callers
			// choose not to use double underscores for object nesting.
			key = strings.ReplaceAll(key, "_", "")
			return strings.ToLower(key)
		}
		if err := k.Load(env.Provider(l.envPrefix, ".", transform), nil); err != nil {
			return Config{}, fmt.Errorf("config: load env: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.InlinePolicies = clonePolicyMap(cfg.Policies)

	bundle, err := buildPolicyBundle(ctx, cfg.InlinePolicies, cfg.Server.Cache.PoliciesFile)
	if err != nil {
		return Config{}, err
	}
	cfg.Policies = bundle.Policies
	cfg.PolicySources = bundle.Sources

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// structToMap converts DefaultConfig into a map for the koanf confmap provider.
func structToMap(cfg Config) map[string]any {
	policies := make(map[string]any, len(cfg.Policies))
	for tag, policy := range cfg.Policies {
		policies[tag] = map[string]any{
			"ttlSeconds": policy.TTLSeconds,
			"prefix":     policy.Prefix,
		}
	}
	return map[string]any{
		"server": map[string]any{
			"shutdownGraceSeconds": cfg.Server.ShutdownGraceSeconds,
			"listen": map[string]any{
				"address": cfg.Server.Listen.Address,
				"port":    cfg.Server.Listen.Port,
			},
			"logging": map[string]any{
				"level":  cfg.Server.Logging.Level,
				"format": cfg.Server.Logging.Format,
			},
			"cache": map[string]any{
				"backend":        cfg.Server.Cache.Backend,
				"fastMaxEntries": cfg.Server.Cache.FastMaxEntries,
				"policiesFile":   cfg.Server.Cache.PoliciesFile,
				"valkey": map[string]any{
					"address":  cfg.Server.Cache.Valkey.Address,
					"username": cfg.Server.Cache.Valkey.Username,
					"password": cfg.Server.Cache.Valkey.Password,
					"db":       cfg.Server.Cache.Valkey.DB,
					"tls": map[string]any{
						"enabled": cfg.Server.Cache.Valkey.TLS.Enabled,
						"caFile":  cfg.Server.Cache.Valkey.TLS.CAFile,
					},
				},
				"bolt": map[string]any{
					"path": cfg.Server.Cache.Bolt.Path,
				},
			},
		},
		"policies": policies,
	}
}
