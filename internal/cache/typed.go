package cache

import (
	"context"
	"encoding/json"
	"fmt"
)

// The typed helpers parameterize the cache over a declared value type per call
// site while keeping the wire format between tiers as serialized JSON bytes.

// GetAs runs the fallback chain and decodes the result into T. The provider,
// when supplied, produces a typed value that is serialized on the way through
// the tiers.
func GetAs[T any](ctx context.Context, m *Manager, key, contentType string, provider func(ctx context.Context) (T, bool, error)) (T, bool, error) {
	var zero T
	raw, ok, err := m.Get(ctx, key, contentType, wrapProvider(provider))
	if err != nil || !ok {
		return zero, false, err
	}
	return decodeValue[T](raw)
}

// SetAs serializes value and writes it through both tiers. The only error a
// caller can see is a serialization failure; tier write failures follow the
// manager's logged best-effort contract.
func SetAs[T any](ctx context.Context, m *Manager, key string, value T, contentType string) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %s value: %w", contentType, err)
	}
	m.Set(ctx, key, raw, contentType)
	return nil
}

// CacheAsideAs is CacheAside with call-site typing.
func CacheAsideAs[T any](ctx context.Context, m *Manager, key, contentType string, provider func(ctx context.Context) (T, bool, error), opts AsideOptions) (T, bool, error) {
	var zero T
	raw, ok, err := m.CacheAside(ctx, key, contentType, wrapProvider(provider), opts)
	if err != nil || !ok {
		return zero, false, err
	}
	return decodeValue[T](raw)
}

func wrapProvider[T any](provider func(ctx context.Context) (T, bool, error)) ProviderFunc {
	if provider == nil {
		return nil
	}
	return func(ctx context.Context) ([]byte, bool, error) {
		value, ok, err := provider(ctx)
		if err != nil || !ok {
			return nil, false, err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, false, fmt.Errorf("cache: encode provider value: %w", err)
		}
		return raw, true, nil
	}
}

func decodeValue[T any](raw []byte) (T, bool, error) {
	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		var zero T
		return zero, false, fmt.Errorf("cache: decode cached value: %w", err)
	}
	return value, true, nil
}
