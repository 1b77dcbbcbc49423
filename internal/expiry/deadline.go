package expiry

import (
	"math"
	"strconv"
)

// Deadline is an absolute instant in epoch millis, or Never.
type Deadline struct {
	at  int64
	set bool
}

// Never is the deadline of a record that does not expire.
var Never = Deadline{}

func At(millis int64) Deadline {
	return Deadline{at: millis, set: true}
}

// after returns base + d, or Never when the sum overflows.
func after(base, d int64) Deadline {
	if d > math.MaxInt64-base {
		return Never
	}
	return At(base + d)
}

// Millis returns the instant and true unless the deadline is Never.
func (d Deadline) Millis() (int64, bool) {
	return d.at, d.set
}

func (d Deadline) IsNever() bool { return !d.set }

// IsDue reports whether the deadline has been reached at now.
func (d Deadline) IsDue(now int64) bool {
	return d.set && d.at <= now
}

// Earlier returns the earlier of two deadlines; Never loses to any instant.
func Earlier(a, b Deadline) Deadline {
	switch {
	case !a.set:
		return b
	case !b.set:
		return a
	case b.at < a.at:
		return b
	}
	return a
}

func (d Deadline) String() string {
	if !d.set {
		return "never"
	}
	return strconv.FormatInt(d.at, 10)
}

func (d Deadline) MarshalJSON() ([]byte, error) {
	if !d.set {
		return []byte("null"), nil
	}
	return strconv.AppendInt(nil, d.at, 10), nil
}
