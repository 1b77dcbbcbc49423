package store

import (
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"expiring-kv/internal/clock"
	"expiring-kv/internal/config"
	"expiring-kv/internal/expiry"
	"expiring-kv/internal/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const start = int64(1_700_000_000_000)

func newTestStore(t *testing.T, cfg config.MapConfig) (*Store, *clock.Manual, *metrics.Registry) {
	t.Helper()
	clk := clock.NewManual(start)
	reg := metrics.NewRegistry()
	return NewStore("test", cfg, clk, reg), clk, reg
}

func idleMap(d time.Duration) config.MapConfig {
	return config.MapConfig{MaxIdle: d, Shards: 4}
}

func view(t *testing.T, s *Store, key string) EntryView {
	t.Helper()
	v, ok := s.EntryView(key)
	require.True(t, ok, "entry %q should be live", key)
	return v
}

func deadline(t *testing.T, v EntryView) int64 {
	t.Helper()
	at, ok := v.ExpirationTime.Millis()
	require.True(t, ok, "entry should have a deadline")
	return at
}

func TestStorePut_Get(t *testing.T) {
	store, _, _ := newTestStore(t, config.MapConfig{})

	t.Run("put and get existing key", func(t *testing.T) {
		store.Put("key1", "hello", expiry.Unset)

		val, ok := store.Get("key1")
		require.True(t, ok)
		assert.Equal(t, "hello", val)
	})

	t.Run("get non-existing key", func(t *testing.T) {
		_, ok := store.Get("missing")
		assert.False(t, ok)
		assert.False(t, store.ContainsKey("missing"))
	})

	t.Run("no policy never expires", func(t *testing.T) {
		assert.True(t, view(t, store, "key1").ExpirationTime.IsNever())
		assert.True(t, store.NextDeadline().IsNever())
	})
}

func TestStoreRemove(t *testing.T) {
	store, clk, reg := newTestStore(t, config.MapConfig{})

	store.Put("key1", "1", expiry.Unset)
	assert.True(t, store.Remove("key1"))
	assert.False(t, store.Remove("key1"))

	_, ok := store.Get("key1")
	assert.False(t, ok)

	t.Run("expired entry is removed but reported as not live", func(t *testing.T) {
		store.Put("k", "v", expiry.Millis(10))
		clk.Advance(10 * time.Millisecond)

		assert.False(t, store.Remove("k"))
		assert.Equal(t, 0, store.Len())
	})

	assert.Equal(t, int64(0), reg.Get(metrics.MapEntries))
}

func TestExpirationTime_WithTTL(t *testing.T) {
	store, _, _ := newTestStore(t, config.MapConfig{})

	store.Put("1", "1", expiry.Of(1, time.Minute))

	v := view(t, store, "1")
	assert.Equal(t, v.CreationTime+time.Minute.Milliseconds(), deadline(t, v))
}

func TestExpirationTime_WithTTL_AfterMultipleUpdates(t *testing.T) {
	store, clk, _ := newTestStore(t, config.MapConfig{})

	store.Put("1", "1", expiry.Of(1, time.Minute))
	clk.Advance(time.Millisecond)
	store.Put("1", "1", expiry.Of(1, time.Minute))
	clk.Advance(time.Millisecond)
	store.Put("1", "1", expiry.Of(1, time.Minute))

	v := view(t, store, "1")
	assert.Equal(t, start, v.CreationTime, "creation time survives updates")
	assert.Equal(t, start+2, v.LastUpdateTime)
	assert.Equal(t, v.LastUpdateTime+time.Minute.Milliseconds(), deadline(t, v))
	assert.Equal(t, int64(2), v.Version)
}

func TestExpirationTime_WithMaxIdle(t *testing.T) {
	store, _, _ := newTestStore(t, idleMap(10*time.Second))

	store.Put("1", "1", expiry.Unset)

	v := view(t, store, "1")
	assert.Equal(t, v.CreationTime+10_000, deadline(t, v))
}

func TestExpirationTime_WithMaxIdle_AfterMultipleAccesses(t *testing.T) {
	store, clk, _ := newTestStore(t, idleMap(10*time.Second))

	store.Put("1", "1", expiry.Unset)
	assert.Equal(t, start+10_000, deadline(t, view(t, store, "1")))

	clk.Advance(999 * time.Millisecond)
	_, ok := store.Get("1")
	require.True(t, ok)

	clk.Advance(23 * time.Millisecond)
	require.True(t, store.ContainsKey("1"))

	v := view(t, store, "1")
	assert.Equal(t, start+1_022, v.LastAccessTime)
	assert.Equal(t, v.LastAccessTime+10_000, deadline(t, v))
	assert.Equal(t, int64(2), v.Hits)
}

func TestExpirationTime_WhenMaxIdleIsSmallerThanTTL(t *testing.T) {
	store, _, _ := newTestStore(t, idleMap(10*time.Second))

	store.Put("1", "1", expiry.Of(100, time.Second))

	v := view(t, store, "1")
	// lastAccessTime is zero after put; the idle window counts from creation
	assert.Equal(t, int64(0), v.LastAccessTime)
	assert.Equal(t, v.LastAccessTime+10_000+v.CreationTime, deadline(t, v))
}

func TestExpirationTime_WhenMaxIdleIsBiggerThanTTL(t *testing.T) {
	store, _, _ := newTestStore(t, idleMap(10*time.Second))

	store.Put("1", "1", expiry.Of(5, time.Second))

	v := view(t, store, "1")
	assert.Equal(t, v.CreationTime+5_000, deadline(t, v))
}

func TestExpirationTime_TTLRemainingBeatsIdleAfterRead(t *testing.T) {
	store, clk, _ := newTestStore(t, idleMap(10*time.Second))

	store.Put("1", "1", expiry.Of(12, time.Second))
	assert.Equal(t, start+10_000, deadline(t, view(t, store, "1")), "idle wins first")

	clk.Advance(5 * time.Second)
	_, ok := store.Get("1")
	require.True(t, ok)

	assert.Equal(t, start+12_000, deadline(t, view(t, store, "1")), "remaining TTL wins after a read")
}

func TestLastAccessTime_IsZeroAfterFirstPut(t *testing.T) {
	store, clk, _ := newTestStore(t, config.MapConfig{})

	store.Put("1", "1", expiry.Unset)
	assert.Equal(t, int64(0), view(t, store, "1").LastAccessTime)

	t.Run("reset by every write", func(t *testing.T) {
		clk.Advance(time.Millisecond)
		store.Get("1")
		assert.Equal(t, start+1, view(t, store, "1").LastAccessTime)

		store.Put("1", "2", expiry.Unset)
		assert.Equal(t, int64(0), view(t, store, "1").LastAccessTime)
	})
}

func TestExpirationTime_PutWithoutTTLKeepsTTL(t *testing.T) {
	store, clk, _ := newTestStore(t, config.MapConfig{})

	store.Put("1", "1", expiry.Of(1, time.Minute))
	clk.Advance(time.Millisecond)
	store.Put("1", "1", expiry.Unset)

	v := view(t, store, "1")
	assert.Equal(t, v.LastUpdateTime+time.Minute.Milliseconds(), deadline(t, v))

	t.Run("eternal drops the TTL", func(t *testing.T) {
		store.Put("1", "1", expiry.Eternal)
		assert.True(t, view(t, store, "1").ExpirationTime.IsNever())
		assert.True(t, store.NextDeadline().IsNever(), "never-expiring keys leave the index")
	})
}

func TestExpirationTime_MapDefaultTTL(t *testing.T) {
	store, _, _ := newTestStore(t, config.MapConfig{DefaultTTL: 30 * time.Second})

	store.Put("a", "1", expiry.Unset)
	store.Put("b", "1", expiry.Of(5, time.Second))

	assert.Equal(t, start+30_000, deadline(t, view(t, store, "a")))
	assert.Equal(t, start+5_000, deadline(t, view(t, store, "b")))
}

func TestPutWithMaxIdle_Override(t *testing.T) {
	store, clk, _ := newTestStore(t, idleMap(10*time.Second))

	store.PutWithMaxIdle("1", "1", expiry.Unset, expiry.Millis(2_000))
	assert.Equal(t, start+2_000, deadline(t, view(t, store, "1")))

	clk.Advance(time.Second)
	store.Put("1", "2", expiry.Unset)
	assert.Equal(t, start+3_000, deadline(t, view(t, store, "1")), "override sticks across puts")

	store.PutWithMaxIdle("1", "3", expiry.Unset, expiry.Eternal)
	assert.True(t, view(t, store, "1").ExpirationTime.IsNever())
}

func TestReplace_ShiftsExpirationTimeWhenSucceeded(t *testing.T) {
	store, clk, reg := newTestStore(t, config.MapConfig{})

	store.Put("1", "1", expiry.Of(100, time.Second))
	before := view(t, store, "1")

	clk.Advance(3 * time.Millisecond)

	assert.True(t, store.Replace("1", "1", "2"))
	after := view(t, store, "1")

	assert.Greater(t, deadline(t, after), deadline(t, before))
	assert.Equal(t, before.CreationTime, after.CreationTime)
	assert.Equal(t, "2", after.Value)
	assert.Equal(t, int64(1), reg.Get(metrics.MapReplacesTotal))
}

func TestReplace_DoesNotShiftExpirationTimeWhenFailed(t *testing.T) {
	store, clk, reg := newTestStore(t, idleMap(time.Minute))

	store.Put("1", "1", expiry.Of(100, time.Second))
	before := view(t, store, "1")
	beforeIndex, ok := store.shardFor("1").index.Deadline("1")
	require.True(t, ok)

	clk.Advance(3 * time.Millisecond)

	assert.False(t, store.Replace("1", "-1", "2"))
	assert.False(t, store.Replace("missing", "1", "2"))

	assert.Equal(t, before, view(t, store, "1"), "failed replace must not touch the record")
	afterIndex, _ := store.shardFor("1").index.Deadline("1")
	assert.Equal(t, beforeIndex, afterIndex)
	assert.Equal(t, int64(2), reg.Get(metrics.MapReplaceFailures))
}

func TestReplace_ExpiredKeyFails(t *testing.T) {
	store, clk, _ := newTestStore(t, config.MapConfig{})

	store.Put("1", "1", expiry.Millis(50))
	clk.Advance(50 * time.Millisecond)

	assert.False(t, store.Replace("1", "1", "2"))
	assert.Equal(t, 0, store.Len())
}

func TestEntryView_IsNotAnAccess(t *testing.T) {
	store, clk, _ := newTestStore(t, idleMap(10*time.Second))

	store.Put("1", "1", expiry.Unset)
	clk.Advance(5 * time.Second)

	v := view(t, store, "1")
	assert.Equal(t, int64(0), v.LastAccessTime)
	assert.Equal(t, int64(0), v.Hits)
	assert.Equal(t, start+10_000, deadline(t, v))
}

func TestStoreGet_ExpiredKeyIsDeleted(t *testing.T) {
	store, clk, reg := newTestStore(t, config.MapConfig{})

	store.Put("temp", "value", expiry.Millis(100))

	clk.Advance(99 * time.Millisecond)
	_, ok := store.Get("temp")
	require.True(t, ok, "one millisecond before the deadline the key is live")

	clk.Advance(time.Millisecond)

	// Call Get → should trigger expiration path
	val, ok := store.Get("temp")
	assert.False(t, ok)
	assert.Equal(t, "", val)

	// Ensure key was deleted
	assert.Equal(t, 0, store.Len())
	_, ok = store.EntryView("temp")
	assert.False(t, ok)

	// Verify metrics side-effects
	snap := reg.Snapshot()
	assert.Equal(t, int64(1), snap[string(metrics.ExpiredLazyTotal)])
	assert.Equal(t, int64(1), snap[string(metrics.ExpiredTotal)])
	assert.Equal(t, int64(0), snap[string(metrics.MapEntries)])
}

func TestStoreGet_IdleExpiry(t *testing.T) {
	store, clk, _ := newTestStore(t, idleMap(time.Second))

	store.Put("k", "v", expiry.Unset)
	clk.Advance(900 * time.Millisecond)
	require.True(t, store.ContainsKey("k"))

	clk.Advance(900 * time.Millisecond)
	require.True(t, store.ContainsKey("k"), "read refreshed the idle window")

	clk.Advance(time.Second)
	assert.False(t, store.ContainsKey("k"))
}

func TestStorePut_AfterExpiryRecreates(t *testing.T) {
	store, clk, _ := newTestStore(t, config.MapConfig{})

	store.Put("k", "old", expiry.Millis(10))
	clk.Advance(20 * time.Millisecond)
	store.Put("k", "new", expiry.Unset)

	v := view(t, store, "k")
	assert.Equal(t, start+20, v.CreationTime)
	assert.Equal(t, int64(0), v.Version)
	assert.True(t, v.ExpirationTime.IsNever(), "a re-created entry does not inherit the old TTL")
}

func TestStoreDueBefore_AscendingAcrossShards(t *testing.T) {
	store, clk, _ := newTestStore(t, config.MapConfig{Shards: 8})

	for i := 0; i < 20; i++ {
		store.Put(fmt.Sprintf("k%02d", i), "v", expiry.Millis(int64(100-i)))
	}
	store.Put("forever", "v", expiry.Unset)
	store.Put("later", "v", expiry.Millis(10_000))

	now := clk.NowMillis() + 100
	keys := slices.Collect(store.DueBefore(now))
	require.Len(t, keys, 20)

	var last int64
	for _, k := range keys {
		d := deadline(t, view(t, store, k))
		assert.GreaterOrEqual(t, d, last)
		last = d
	}
	assert.Equal(t, "k19", keys[0])
	assert.Equal(t, expiry.At(start+81), store.NextDeadline())
}

func TestStoreExpireIfDue_Rechecks(t *testing.T) {
	store, clk, reg := newTestStore(t, idleMap(time.Second))

	store.Put("a", "v", expiry.Unset)
	store.Put("b", "v", expiry.Unset)
	clk.Advance(time.Second)
	now := clk.NowMillis()

	due := slices.Collect(store.DueBefore(now))
	require.ElementsMatch(t, []string{"a", "b"}, due)

	// a is refreshed by a write between the scan and the removal
	store.Put("a", "v2", expiry.Unset)

	assert.False(t, store.ExpireIfDue("a", now))
	assert.True(t, store.ExpireIfDue("b", now))
	assert.False(t, store.ExpireIfDue("b", now))
	assert.False(t, store.ExpireIfDue("missing", now))

	_, ok := store.EntryView("a")
	assert.True(t, ok)
	assert.Equal(t, int64(1), reg.Get(metrics.MapEntries))
}

func TestStoreList_FiltersExpiredKeys(t *testing.T) {
	store, clk, _ := newTestStore(t, config.MapConfig{})

	store.Put("alive", "ok", expiry.Of(1, time.Second))
	store.Put("expired", "gone", expiry.Millis(1))
	clk.Advance(time.Millisecond)

	result := store.List()

	_, okAlive := result["alive"]
	_, okExpired := result["expired"]

	assert.True(t, okAlive, "non-expired key should be listed")
	assert.False(t, okExpired, "expired key should not be listed")
	assert.Equal(t, 2, store.Len(), "listing does not remove anything")
}

func TestStoreClear(t *testing.T) {
	store, _, reg := newTestStore(t, idleMap(time.Second))

	for i := 0; i < 10; i++ {
		store.Put(fmt.Sprint(i), "v", expiry.Unset)
	}
	store.Clear()

	assert.Equal(t, 0, store.Len())
	assert.True(t, store.NextDeadline().IsNever())
	assert.Equal(t, int64(0), reg.Get(metrics.MapEntries))
}

func TestStoreClose_IgnoresLaterPuts(t *testing.T) {
	store, _, reg := newTestStore(t, idleMap(time.Second))

	store.Put("a", "v", expiry.Unset)
	store.Close()

	store.Put("b", "v", expiry.Unset)
	store.PutWithMaxIdle("c", "v", expiry.Unset, expiry.Eternal)

	assert.Equal(t, 0, store.Len())
	assert.False(t, store.ContainsKey("b"))
	assert.True(t, store.NextDeadline().IsNever())
	assert.Equal(t, int64(0), reg.Get(metrics.MapEntries))
}

func TestStoreConcurrentOperations(t *testing.T) {
	store, clk, _ := newTestStore(t, config.MapConfig{MaxIdle: time.Minute, Shards: 4})

	var wg sync.WaitGroup
	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("key-%d", i%10)
				switch (w + i) % 5 {
				case 0:
					store.Put(key, "a", expiry.Of(int64(i%3), time.Second))
				case 1:
					store.Get(key)
				case 2:
					store.ContainsKey(key)
				case 3:
					store.Replace(key, "a", "b")
				case 4:
					clk.Advance(time.Millisecond)
					store.EntryView(key)
				}
			}
		}(w)
	}
	wg.Wait()

	// every record's cached deadline matches its fields and its index entry
	for _, sh := range store.shards {
		for key, rec := range sh.records {
			want := expiry.Compute(rec.lastUpdateTime, rec.lastAccessTime, rec.ttl, rec.maxIdle)
			assert.Equal(t, want, rec.expirationTime, key)

			indexed, ok := sh.index.Deadline(key)
			if rec.expirationTime.IsNever() {
				assert.False(t, ok, key)
			} else {
				assert.True(t, ok, key)
				assert.Equal(t, rec.expirationTime, indexed, key)
			}
		}
		assert.LessOrEqual(t, sh.index.Len(), len(sh.records))
	}
}
