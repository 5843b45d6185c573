package keyringcore

import (
	"sync"
	"time"

	"github.com/KeychainPGP/keyringcore/internal/model"
)

// passphraseCacheEntry is the in-memory record of a cached passphrase. It is
// never persisted — PassphraseCache backs entirely onto process memory.
type passphraseCacheEntry struct {
	passphrase []byte
	storedAt   time.Time
	deadline   time.Time
}

// PassphraseCache is a bounded, self-pruning cache of passphrase bytes keyed
// by fingerprint. "Self-pruning" means Get removes an entry the moment it
// observes that entry past its deadline, rather than relying on a separate
// sweep goroutine. Changing the TTL takes effect immediately for future
// inserts; entries already cached keep the deadline they were given at
// insertion time.
type PassphraseCache struct {
	mu  sync.Mutex
	ttl time.Duration
	m   map[model.Fingerprint]passphraseCacheEntry
}

// NewPassphraseCache constructs a cache with the given TTL. A non-positive
// ttl disables caching: every Put is immediately expired and every Get
// misses.
func NewPassphraseCache(ttl time.Duration) *PassphraseCache {
	return &PassphraseCache{ttl: ttl, m: map[model.Fingerprint]passphraseCacheEntry{}}
}

// SetTTL changes the TTL applied to entries inserted from now on. Entries
// already present retain the deadline computed at their own insertion time.
func (c *PassphraseCache) SetTTL(ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ttl = ttl
}

// Put caches passphrase for fp, copying the bytes so the caller's buffer can
// be released independently.
func (c *PassphraseCache) Put(fp model.Fingerprint, passphrase []byte) {
	cp := make([]byte, len(passphrase))
	copy(cp, passphrase)

	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	c.m[fp] = passphraseCacheEntry{passphrase: cp, storedAt: now, deadline: now.Add(c.ttl)}
}

// Get returns the cached passphrase for fp. An entry found past its
// deadline is zeroized and evicted on this same call — the access that
// observes the expiry is the access that prunes it — and Get reports a
// miss.
func (c *PassphraseCache) Get(fp model.Fingerprint) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.m[fp]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.deadline) {
		zero(entry.passphrase)
		delete(c.m, fp)
		return nil, false
	}

	out := make([]byte, len(entry.passphrase))
	copy(out, entry.passphrase)
	return out, true
}

// Forget zeroizes and evicts fp's entry, if any. Safe to call when fp has no
// cached entry.
func (c *PassphraseCache) Forget(fp model.Fingerprint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.m[fp]; ok {
		zero(entry.passphrase)
		delete(c.m, fp)
	}
}

// Clear zeroizes and evicts every entry.
func (c *PassphraseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for fp, entry := range c.m {
		zero(entry.passphrase)
		delete(c.m, fp)
	}
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
