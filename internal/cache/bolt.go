package cache

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var boltBucket = []byte("contentcache")

// boltDurable is a file-backed DurableTier for single-node deployments that
// cannot run a valkey server. bbolt has no native TTL, so each record carries
// an absolute expiry: Get enforces it on read and a background sweep purges
// records that are never read again.
type boltDurable struct {
	db     *bolt.DB
	cancel context.CancelFunc
	done   chan struct{}
}

// NewBoltDurable opens (or creates) the database file and starts the expiry
// sweeper.
func NewBoltDurable(path string) (DurableTier, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("cache: bolt open %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cache: bolt bucket: %w", err)
	}

	sweepCtx, cancel := context.WithCancel(context.Background())
	tier := &boltDurable{db: db, cancel: cancel, done: make(chan struct{})}
	go tier.sweep(sweepCtx)
	return tier, nil
}

// Record layout: 8 bytes big-endian unix-milli expiry, then the raw payload.
func encodeBoltRecord(value []byte, expiresAt time.Time) []byte {
	buf := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(buf[:8], uint64(expiresAt.UnixMilli()))
	copy(buf[8:], value)
	return buf
}

func decodeBoltRecord(raw []byte) (value []byte, expiresAt time.Time, ok bool) {
	if len(raw) < 8 {
		return nil, time.Time{}, false
	}
	millis := int64(binary.BigEndian.Uint64(raw[:8]))
	return raw[8:], time.UnixMilli(millis), true
}

func (c *boltDurable) Get(_ context.Context, key string) ([]byte, bool, error) {
	var out []byte
	var found bool
	err := c.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(boltBucket).Get([]byte(key))
		if raw == nil {
			return nil
		}
		value, expiresAt, ok := decodeBoltRecord(raw)
		if !ok || !time.Now().Before(expiresAt) {
			return nil
		}
		out = append([]byte(nil), value...)
		found = true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("cache: bolt get: %w", err)
	}
	return out, found, nil
}

func (c *boltDurable) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	record := encodeBoltRecord(value, time.Now().Add(ttl))
	err := c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put([]byte(key), record)
	})
	if err != nil {
		return fmt.Errorf("cache: bolt put: %w", err)
	}
	return nil
}

func (c *boltDurable) Delete(_ context.Context, key string) error {
	err := c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("cache: bolt delete: %w", err)
	}
	return nil
}

func (c *boltDurable) Close(context.Context) error {
	c.cancel()
	<-c.done
	return c.db.Close()
}

// sweep periodically removes records whose expiry elapsed without a read.
func (c *boltDurable) sweep(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweepOnce(time.Now())
		}
	}
}

func (c *boltDurable) sweepOnce(now time.Time) {
	_ = c.db.Update(func(tx *bolt.Tx) error {
		cursor := tx.Bucket(boltBucket).Cursor()
		for key, raw := cursor.First(); key != nil; key, raw = cursor.Next() {
			_, expiresAt, ok := decodeBoltRecord(raw)
			if !ok || !now.Before(expiresAt) {
				if err := cursor.Delete(); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
