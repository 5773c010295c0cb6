package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "port out of range",
			mutate:  func(cfg *Config) { cfg.Server.Listen.Port = 70000 },
			wantErr: "out of range",
		},
		{
			name:    "unknown backend",
			mutate:  func(cfg *Config) { cfg.Server.Cache.Backend = "memcached" },
			wantErr: "unsupported cache backend",
		},
		{
			name: "valkey without address",
			mutate: func(cfg *Config) {
				cfg.Server.Cache.Backend = "valkey"
			},
			wantErr: "requires an address",
		},
		{
			name: "bolt without path",
			mutate: func(cfg *Config) {
				cfg.Server.Cache.Backend = "bolt"
			},
			wantErr: "requires a path",
		},
		{
			name:    "non-positive fast tier bound",
			mutate:  func(cfg *Config) { cfg.Server.Cache.FastMaxEntries = 0 },
			wantErr: "fastMaxEntries",
		},
		{
			name:    "non-positive shutdown grace",
			mutate:  func(cfg *Config) { cfg.Server.ShutdownGraceSeconds = -1 },
			wantErr: "shutdownGraceSeconds",
		},
		{
			name: "policy without ttl",
			mutate: func(cfg *Config) {
				cfg.Policies["broken"] = PolicyConfig{Prefix: "x:"}
			},
			wantErr: "ttlSeconds must be positive",
		},
		{
			name: "blank policy tag",
			mutate: func(cfg *Config) {
				cfg.Policies["  "] = PolicyConfig{TTLSeconds: 60}
			},
			wantErr: "tag must not be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}
