package cache

import (
	"encoding/json"
	"time"
)

// Entry wraps a serialized value with its creation timestamp and absolute
// expiry. It is the atomic unit stored in the fast tier; the durable tier
// stores raw value bytes and enforces expiry on its own.
type Entry struct {
	Value     json.RawMessage `json:"value"`
	CreatedAt time.Time       `json:"createdAt"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

// Live reports whether the entry is still valid at the given instant. An
// expired entry is logically absent regardless of physical presence.
func (e Entry) Live(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

func newEntry(value []byte, now time.Time, ttl time.Duration) Entry {
	return Entry{
		Value:     append(json.RawMessage(nil), value...),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// cloneEntry detaches the value from the stored backing array so callers
// cannot mutate cached bytes through a returned slice.
func cloneEntry(in Entry) Entry {
	in.Value = append(json.RawMessage(nil), in.Value...)
	return in
}
