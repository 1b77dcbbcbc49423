package expiry

// NeverAccessed is the lastAccessTime of a record that has not been read
// since its last write.
const NeverAccessed int64 = 0

// Compute returns the expiration deadline of a record.
//
// The TTL counts from lastUpdate. Max-idle counts from lastAccess, except
// that a record never read since its last write counts from lastUpdate.
// When both apply the earlier deadline wins; when neither applies the
// record never expires.
func Compute(lastUpdate, lastAccess int64, ttl, maxIdle Duration) Deadline {
	deadline := Never

	if ms, ok := ttl.Millis(); ok {
		deadline = Earlier(deadline, after(lastUpdate, ms))
	}

	if ms, ok := maxIdle.Millis(); ok {
		base := lastAccess
		if base == NeverAccessed {
			base = lastUpdate
		}
		deadline = Earlier(deadline, after(base, ms))
	}

	return deadline
}
