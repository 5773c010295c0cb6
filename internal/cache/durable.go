package cache

import (
	"context"
	"sync"
	"time"
)

// DurableTier is the narrow contract the manager consumes from the external
// key/value service. The tier enforces its own expiry: Get returns absent once
// the requested TTL elapses, with no partial or stale reads. Implementations
// must be safe for concurrent use.
type DurableTier interface {
	// Get returns (value, true, nil) on hit and (nil, false, nil) on miss.
	// I/O failures surface as errors; the manager decides how to degrade.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Put stores value under key for the given TTL.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the tier.
	Close(ctx context.Context) error
}

type memoryRecord struct {
	payload   []byte
	expiresAt time.Time
}

// memoryDurable is a process-local DurableTier used for development and tests.
// It honors the TTL contract by checking expiry on read.
type memoryDurable struct {
	mu      sync.RWMutex
	records map[string]memoryRecord
}

// NewMemoryDurable returns an in-process durable tier stand-in.
func NewMemoryDurable() DurableTier {
	return &memoryDurable{records: make(map[string]memoryRecord)}
}

func (m *memoryDurable) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[key]
	if !ok {
		return nil, false, nil
	}
	if !time.Now().Before(record.expiresAt) {
		delete(m.records, key)
		return nil, false, nil
	}
	return append([]byte(nil), record.payload...), true, nil
}

func (m *memoryDurable) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[key] = memoryRecord{
		payload:   append([]byte(nil), value...),
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

func (m *memoryDurable) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, key)
	return nil
}

func (m *memoryDurable) Close(context.Context) error {
	return nil
}
