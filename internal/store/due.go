package store

import (
	"container/heap"
	"iter"

	"expiring-kv/internal/expiry"
)

// DueBefore yields keys whose deadline is <= now, ascending by deadline
// across all shards.
//
// No shard lock is held while the consumer runs, so the consumer may call
// ExpireIfDue or any other Store method. Keys may be stale by the time
// they are yielded; ExpireIfDue re-checks them.
func (s *Store) DueBefore(now int64) iter.Seq[string] {
	return func(yield func(string) bool) {
		h := make(cursorHeap, 0, len(s.shards))
		for _, sh := range s.shards {
			next, stop := iter.Pull(sh.index.DueBefore(now))
			defer stop()

			if e, ok := next(); ok {
				h = append(h, &cursor{head: e, next: next})
			}
		}
		heap.Init(&h)

		for h.Len() > 0 {
			c := h[0]
			if !yield(c.head.Key) {
				return
			}
			if e, ok := c.next(); ok {
				c.head = e
				heap.Fix(&h, 0)
			} else {
				heap.Pop(&h)
			}
		}
	}
}

// NextDeadline returns the earliest indexed deadline of the store.
func (s *Store) NextDeadline() expiry.Deadline {
	next := expiry.Never
	for _, sh := range s.shards {
		if e, ok := sh.index.Earliest(); ok {
			next = expiry.Earlier(next, expiry.At(e.Deadline))
		}
	}
	return next
}

type cursor struct {
	head expiry.Entry
	next func() (expiry.Entry, bool)
}

type cursorHeap []*cursor

func (h cursorHeap) Len() int { return len(h) }

func (h cursorHeap) Less(i, j int) bool {
	if h[i].head.Deadline != h[j].head.Deadline {
		return h[i].head.Deadline < h[j].head.Deadline
	}
	return h[i].head.Key < h[j].head.Key
}

func (h cursorHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *cursorHeap) Push(x any) { *h = append(*h, x.(*cursor)) }

func (h *cursorHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}
