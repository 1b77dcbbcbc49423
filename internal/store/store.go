package store

import (
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"expiring-kv/internal/clock"
	"expiring-kv/internal/config"
	"expiring-kv/internal/expiry"
	"expiring-kv/internal/metrics"
)

// Store is a concurrency-safe in-memory key–value map with per-entry
// TTL and max-idle expiration.
//
// Design principles:
// - Keys are striped over shards; each shard owns its records and its own
//   expiration index behind one RWMutex, so a record and its index entry
//   always change together and unrelated shards never wait on each other.
// - Expired records are removed lazily by foreground operations and
//   proactively by the reaper, both through removeLocked.
// - Time comes from an injected clock.Clock.
type Store struct {
	name    string
	shards  []*shard
	clock   clock.Clock
	metrics *metrics.Registry

	defaultTTL expiry.Duration
	maxIdle    expiry.Duration

	// set by Close before the shards are emptied, read under a shard lock
	closed atomic.Bool
}

type shard struct {
	mu      sync.RWMutex
	records map[string]*Record
	index   *expiry.Index
}

// NewStore initializes a Store for the named map.
func NewStore(
	name string,
	cfg config.MapConfig,
	clk clock.Clock,
	metricsRegistry *metrics.Registry,
) *Store {
	n := cfg.Shards
	if n <= 0 {
		n = config.DefaultShards
	}

	shards := make([]*shard, n)
	for i := range shards {
		shards[i] = &shard{
			records: make(map[string]*Record),
			index:   expiry.NewIndex(),
		}
	}

	return &Store{
		name:       name,
		shards:     shards,
		clock:      clk,
		metrics:    metricsRegistry,
		defaultTTL: expiry.FromStd(cfg.DefaultTTL),
		maxIdle:    expiry.FromStd(cfg.MaxIdle),
	}
}

func (s *Store) Name() string { return s.name }

func (s *Store) shardFor(key string) *shard {
	return s.shards[xxhash.Sum64String(key)%uint64(len(s.shards))]
}

// Put inserts or overwrites a key.
//
// ttl semantics:
// - expiry.Unset keeps the record's TTL (map default for a new record)
// - expiry.Eternal removes any TTL
// - a finite value replaces the TTL
func (s *Store) Put(key, value string, ttl expiry.Duration) {
	s.PutWithMaxIdle(key, value, ttl, expiry.Unset)
}

// PutWithMaxIdle is Put with a per-entry max-idle override following the
// same Unset/Eternal/finite rules, defaulting to the map's max-idle.
func (s *Store) PutWithMaxIdle(key, value string, ttl, maxIdle expiry.Duration) {
	now := s.clock.NowMillis()
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if s.closed.Load() {
		return
	}
	s.metrics.Inc(metrics.MapPutsTotal)

	rec, exists := sh.records[key]
	if exists && rec.IsExpired(now) {
		// logically gone already: this put re-creates the entry
		s.removeLocked(sh, key, true)
		s.metrics.Inc(metrics.ExpiredLazyTotal)
		exists = false
	}

	if !exists {
		rec = newRecord(value, now, ttl.Or(s.defaultTTL), maxIdle.Or(s.maxIdle))
		sh.records[key] = rec
		s.metrics.Inc(metrics.MapEntries)
	} else {
		rec.onWrite(value, now, ttl, maxIdle)
	}

	sh.index.Upsert(key, rec.expirationTime)
}

// Get retrieves a value and counts as an access.
//
// Behavior:
// - Returns (value, true) if the key exists and is not expired
// - An expired key is removed and treated as missing
func (s *Store) Get(key string) (string, bool) {
	s.metrics.Inc(metrics.MapGetsTotal)
	return s.access(key)
}

// ContainsKey has the same expiration and access semantics as Get.
func (s *Store) ContainsKey(key string) bool {
	_, ok := s.access(key)
	return ok
}

func (s *Store) access(key string) (string, bool) {
	now := s.clock.NowMillis()
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec, ok := s.liveLocked(sh, key, now)
	if !ok {
		s.metrics.Inc(metrics.MapMissesTotal)
		return "", false
	}

	rec.onAccess(now)
	sh.index.Upsert(key, rec.expirationTime)
	s.metrics.Inc(metrics.MapHitsTotal)

	return rec.value, true
}

// Replace swaps the value only if the key is live and currently holds
// expected. The TTL and max-idle of the record are kept. On failure
// nothing about the record changes.
func (s *Store) Replace(key, expected, value string) bool {
	now := s.clock.NowMillis()
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec, ok := s.liveLocked(sh, key, now)
	if !ok || rec.value != expected {
		s.metrics.Inc(metrics.MapReplaceFailures)
		return false
	}

	rec.onWrite(value, now, expiry.Unset, expiry.Unset)
	sh.index.Upsert(key, rec.expirationTime)
	s.metrics.Inc(metrics.MapReplacesTotal)

	return true
}

// liveLocked returns the record for key unless it is absent or expired.
// An expired record is removed on the way. Caller holds sh.mu for writing.
func (s *Store) liveLocked(sh *shard, key string, now int64) (*Record, bool) {
	rec, ok := sh.records[key]
	if !ok {
		return nil, false
	}
	if rec.IsExpired(now) {
		s.removeLocked(sh, key, true)
		s.metrics.Inc(metrics.ExpiredLazyTotal)
		return nil, false
	}
	return rec, true
}

// EntryView returns a snapshot of a live record. It is not an access.
func (s *Store) EntryView(key string) (EntryView, bool) {
	now := s.clock.NowMillis()
	sh := s.shardFor(key)

	sh.mu.RLock()
	defer sh.mu.RUnlock()

	rec, ok := sh.records[key]
	if !ok || rec.IsExpired(now) {
		return EntryView{}, false
	}
	return rec.view(key), true
}

// Remove deletes a key. It reports whether a live entry was removed.
func (s *Store) Remove(key string) bool {
	now := s.clock.NowMillis()
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec, ok := sh.records[key]
	if !ok {
		return false
	}

	s.metrics.Inc(metrics.MapRemovesTotal)
	live := !rec.IsExpired(now)
	s.removeLocked(sh, key, !live)
	return live
}

// ExpireIfDue removes key if its deadline is <= now, re-checked under the
// shard lock so a concurrent write that moved the deadline wins.
func (s *Store) ExpireIfDue(key string, now int64) bool {
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec, ok := sh.records[key]
	if !ok || !rec.IsExpired(now) {
		return false
	}
	s.removeLocked(sh, key, true)
	return true
}

// removeLocked is the single removal path. Caller holds sh.mu for writing.
func (s *Store) removeLocked(sh *shard, key string, expired bool) {
	delete(sh.records, key)
	sh.index.Remove(key)

	s.metrics.Add(metrics.MapEntries, -1)
	if expired {
		s.metrics.Inc(metrics.ExpiredTotal)
	}
}

// Len returns the number of stored records, including expired ones the
// reaper has not reached yet.
func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.records)
		sh.mu.RUnlock()
	}
	return n
}

// List returns a snapshot of all non-expired entries.
// Used by admin APIs and UI. It is not an access.
func (s *Store) List() map[string]string {
	now := s.clock.NowMillis()
	result := make(map[string]string)

	for _, sh := range s.shards {
		sh.mu.RLock()
		for k, rec := range sh.records {
			if !rec.IsExpired(now) {
				result[k] = rec.value
			}
		}
		sh.mu.RUnlock()
	}
	return result
}

// Close empties the store and makes every later put a no-op. Callers that
// still hold the store after it was dropped cannot leak records into it.
func (s *Store) Close() {
	s.closed.Store(true)
	s.Clear()
}

// Clear removes every record.
func (s *Store) Clear() {
	for _, sh := range s.shards {
		sh.mu.Lock()
		s.metrics.Add(metrics.MapEntries, -int64(len(sh.records)))
		sh.records = make(map[string]*Record)
		sh.index.Clear()
		sh.mu.Unlock()
	}
}
