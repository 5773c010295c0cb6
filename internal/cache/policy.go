package cache

import (
	"time"

	"github.com/sparrowflix/contentcache/internal/config"
)

// DefaultPolicy applies to content types absent from the table: one hour of
// freshness under the shared key namespace.
var DefaultPolicy = Policy{TTL: time.Hour, Prefix: ""}

// Policy pairs the time-to-live with the key namespace prefix for one content
// type tag.
type Policy struct {
	TTL    time.Duration
	Prefix string
}

// PolicyTable resolves content type tags to their expiration policies. The
// table is immutable after construction; the manager swaps whole tables on
// configuration reload.
type PolicyTable struct {
	policies map[string]Policy
}

// NewPolicyTable builds an immutable table from validated configuration.
func NewPolicyTable(policies map[string]config.PolicyConfig) *PolicyTable {
	table := make(map[string]Policy, len(policies))
	for tag, p := range policies {
		table[tag] = Policy{
			TTL:    time.Duration(p.TTLSeconds) * time.Second,
			Prefix: p.Prefix,
		}
	}
	return &PolicyTable{policies: table}
}

// Resolve returns the policy for the given content type tag. Unknown tags are
// never an error; they resolve to DefaultPolicy.
func (t *PolicyTable) Resolve(contentType string) Policy {
	if t != nil {
		if policy, ok := t.policies[contentType]; ok {
			return policy
		}
	}
	return DefaultPolicy
}

// FullKey prepends the content type's namespace prefix to a logical key.
func (t *PolicyTable) FullKey(contentType, key string) string {
	return t.Resolve(contentType).Prefix + key
}

// Snapshot copies the table's contents for diagnostics.
func (t *PolicyTable) Snapshot() map[string]Policy {
	if t == nil {
		return nil
	}
	out := make(map[string]Policy, len(t.policies))
	for tag, policy := range t.policies {
		out[tag] = policy
	}
	return out
}
