package store

import "expiring-kv/internal/expiry"

// Record is the per-key metadata kept by the store.
//
// Design choices:
// - All times are epoch millis from the store's clock.
// - lastAccessTime == expiry.NeverAccessed means "not read since the last write".
// - expirationTime is a cache of expiry.Compute over the other fields and is
//   refreshed by every method that changes them.
//
// A Record is only touched while its shard lock is held.
type Record struct {
	value          string
	creationTime   int64
	lastUpdateTime int64
	lastAccessTime int64
	ttl            expiry.Duration
	maxIdle        expiry.Duration
	expirationTime expiry.Deadline
	version        int64
	hits           int64
}

func newRecord(value string, now int64, ttl, maxIdle expiry.Duration) *Record {
	r := &Record{
		value:          value,
		creationTime:   now,
		lastUpdateTime: now,
		lastAccessTime: expiry.NeverAccessed,
		ttl:            ttl,
		maxIdle:        maxIdle,
	}
	r.refresh()
	return r
}

// onWrite applies a successful put or replace. Unset durations keep the
// record's current policy.
func (r *Record) onWrite(value string, now int64, ttl, maxIdle expiry.Duration) {
	r.value = value
	r.lastUpdateTime = now
	r.lastAccessTime = expiry.NeverAccessed
	r.ttl = ttl.Or(r.ttl)
	r.maxIdle = maxIdle.Or(r.maxIdle)
	r.version++
	r.refresh()
}

// onAccess applies a successful read.
func (r *Record) onAccess(now int64) {
	r.lastAccessTime = now
	r.hits++
	r.refresh()
}

func (r *Record) refresh() {
	r.expirationTime = expiry.Compute(r.lastUpdateTime, r.lastAccessTime, r.ttl, r.maxIdle)
}

// IsExpired checks whether the record is expired at the given time.
func (r *Record) IsExpired(now int64) bool {
	return r.expirationTime.IsDue(now)
}

// EntryView is an immutable snapshot of a record.
type EntryView struct {
	Key            string          `json:"key"`
	Value          string          `json:"value"`
	CreationTime   int64           `json:"creation_time"`
	LastUpdateTime int64           `json:"last_update_time"`
	LastAccessTime int64           `json:"last_access_time"`
	ExpirationTime expiry.Deadline `json:"expiration_time"`
	TTL            expiry.Duration `json:"ttl_ms"`
	MaxIdle        expiry.Duration `json:"max_idle_ms"`
	Version        int64           `json:"version"`
	Hits           int64           `json:"hits"`
}

func (r *Record) view(key string) EntryView {
	return EntryView{
		Key:            key,
		Value:          r.value,
		CreationTime:   r.creationTime,
		LastUpdateTime: r.lastUpdateTime,
		LastAccessTime: r.lastAccessTime,
		ExpirationTime: r.expirationTime,
		TTL:            r.ttl,
		MaxIdle:        r.maxIdle,
		Version:        r.version,
		Hits:           r.hits,
	}
}
