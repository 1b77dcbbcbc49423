package clock

import (
	"sync/atomic"
	"time"
)

// Clock returns the current wall-clock time in milliseconds since the Unix epoch.
//
// Implementations are expected not to go backwards. The expiration engine
// does not compensate for a regressing clock: deadlines already computed
// simply stay where they are.
type Clock interface {
	NowMillis() int64
}

// System reads time.Now.
type System struct{}

func (System) NowMillis() int64 {
	return time.Now().UnixMilli()
}

// Manual is a Clock that only moves when told to.
// Safe for concurrent use.
type Manual struct {
	now atomic.Int64
}

// NewManual creates a Manual clock starting at the given epoch millis.
func NewManual(startMillis int64) *Manual {
	m := &Manual{}
	m.now.Store(startMillis)
	return m
}

func (m *Manual) NowMillis() int64 {
	return m.now.Load()
}

// Advance moves the clock forward by d, truncated to milliseconds.
func (m *Manual) Advance(d time.Duration) int64 {
	return m.now.Add(d.Milliseconds())
}

// Set jumps the clock to an absolute epoch millis value.
func (m *Manual) Set(millis int64) {
	m.now.Store(millis)
}
