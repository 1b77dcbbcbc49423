package expiry

import (
	"iter"
	"sync"

	"github.com/google/btree"
)

// Entry is one (deadline, key) pair held by an Index.
type Entry struct {
	Key      string
	Deadline int64
}

func lessEntry(a, b Entry) bool {
	if a.Deadline != b.Deadline {
		return a.Deadline < b.Deadline
	}
	return a.Key < b.Key
}

// Index orders keys by their finite expiration deadline.
//
// Keys whose deadline is Never are not stored. Every key appears at most
// once. All methods are safe for concurrent use.
type Index struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[Entry]
	keys map[string]int64
}

const btreeDegree = 32

func NewIndex() *Index {
	return &Index{
		tree: btree.NewG(btreeDegree, lessEntry),
		keys: make(map[string]int64),
	}
}

// Upsert places key at deadline, moving it if it was indexed elsewhere.
// A Never deadline removes the key.
func (x *Index) Upsert(key string, deadline Deadline) {
	at, ok := deadline.Millis()
	if !ok {
		x.Remove(key)
		return
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if old, exists := x.keys[key]; exists {
		if old == at {
			return
		}
		x.tree.Delete(Entry{Key: key, Deadline: old})
	}
	x.tree.ReplaceOrInsert(Entry{Key: key, Deadline: at})
	x.keys[key] = at
}

// Remove drops key from the index. It reports whether the key was present.
func (x *Index) Remove(key string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	old, exists := x.keys[key]
	if !exists {
		return false
	}
	x.tree.Delete(Entry{Key: key, Deadline: old})
	delete(x.keys, key)
	return true
}

// Deadline returns the indexed deadline of key.
func (x *Index) Deadline(key string) (Deadline, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	at, ok := x.keys[key]
	if !ok {
		return Never, false
	}
	return At(at), true
}

// Earliest returns the entry with the smallest deadline.
func (x *Index) Earliest() (Entry, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.tree.Min()
}

func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.tree.Len()
}

// Clear empties the index.
func (x *Index) Clear() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.tree.Clear(false)
	clear(x.keys)
}

// DueBefore yields, in ascending deadline order, the entries whose deadline
// is <= now.
//
// The sequence is lazy and restartable. The lock is held only while
// looking up the next entry, never while the consumer runs, so the consumer
// may mutate the index. Each step resumes strictly after the last yielded
// entry: removed entries are not yielded, entries moved behind the cursor
// are left for the next pass.
func (x *Index) DueBefore(now int64) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		var (
			cursor  Entry
			started bool
		)
		for {
			next, ok := x.nextDue(cursor, started, now)
			if !ok {
				return
			}
			cursor, started = next, true
			if !yield(next) {
				return
			}
		}
	}
}

func (x *Index) nextDue(cursor Entry, started bool, now int64) (Entry, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var (
		found Entry
		ok    bool
	)
	visit := func(e Entry) bool {
		if e.Deadline > now {
			return false
		}
		if started && !lessEntry(cursor, e) {
			return true
		}
		found, ok = e, true
		return false
	}

	if started {
		x.tree.AscendGreaterOrEqual(cursor, visit)
	} else {
		x.tree.Ascend(visit)
	}
	return found, ok
}
