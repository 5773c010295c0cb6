package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// PolicyBundle is the merged view of inline policies and the optional external
// policies document. Sources lists the files that contributed definitions.
type PolicyBundle struct {
	Policies map[string]PolicyConfig
	Sources  []string
}

// policyDocument mirrors the schema of an external policies file:
//
//	policies:
//	  movies:
//	    ttlSeconds: 1800
//	    prefix: "movie:"
type policyDocument struct {
	Policies map[string]PolicyConfig `koanf:"policies"`
}

// buildPolicyBundle merges the external policies file (when configured) over the
// inline table. File definitions win: an operator editing the watched file is
// expressing the most current intent.
func buildPolicyBundle(ctx context.Context, inline map[string]PolicyConfig, policiesFile string) (PolicyBundle, error) {
	bundle := PolicyBundle{Policies: clonePolicyMap(inline)}
	if bundle.Policies == nil {
		bundle.Policies = make(map[string]PolicyConfig)
	}

	path := strings.TrimSpace(policiesFile)
	if path == "" {
		return bundle, nil
	}

	select {
	case <-ctx.Done():
		return PolicyBundle{}, ctx.Err()
	default:
	}

	if _, err := os.Stat(path); err != nil {
		return PolicyBundle{}, fmt.Errorf("config: policies file %s: %w", path, err)
	}

	parser, err := parserFor(path)
	if err != nil {
		return PolicyBundle{}, err
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parser); err != nil {
		return PolicyBundle{}, fmt.Errorf("config: load policies file %s: %w", path, err)
	}

	var doc policyDocument
	if err := k.Unmarshal("", &doc); err != nil {
		return PolicyBundle{}, fmt.Errorf("config: unmarshal policies file %s: %w", path, err)
	}
	for tag, policy := range doc.Policies {
		if err := policy.validate(tag); err != nil {
			return PolicyBundle{}, fmt.Errorf("%w (from %s)", err, path)
		}
		bundle.Policies[tag] = policy
	}
	bundle.Sources = append(bundle.Sources, path)
	return bundle, nil
}

func parserFor(path string) (koanf.Parser, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return kjson.Parser(), nil
	case ".toml", ".tml":
		return toml.Parser(), nil
	default:
		return nil, fmt.Errorf("config: unsupported policies file extension %s", ext)
	}
}
