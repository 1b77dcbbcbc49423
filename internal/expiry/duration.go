package expiry

import (
	"math"
	"strconv"
	"time"
)

type durationKind uint8

const (
	kindUnset durationKind = iota
	kindEternal
	kindFinite
)

// Duration is a TTL or max-idle length normalized to milliseconds.
//
// The zero value is Unset, meaning "inherit whatever applies already"
// (the record's current setting or the map default). Eternal is an
// explicit "no limit" and is never confused with a zero-length duration.
type Duration struct {
	millis int64
	kind   durationKind
}

var (
	Unset   = Duration{}
	Eternal = Duration{kind: kindEternal}
)

// Of normalizes a per-call (value, unit) pair:
//   - value < 0  -> Unset
//   - value == 0 -> Eternal
//   - value > 0  -> finite, at least one millisecond
//   - unit <= 0  -> Unset, whatever the value
//
// A product that does not fit in int64 nanoseconds saturates to Eternal.
func Of(value int64, unit time.Duration) Duration {
	switch {
	case value < 0, unit <= 0:
		return Unset
	case value == 0:
		return Eternal
	}
	if value > math.MaxInt64/int64(unit) {
		return Eternal
	}
	d := time.Duration(value) * unit
	ms := d.Milliseconds()
	if d%time.Millisecond != 0 {
		ms++
	}
	return Millis(ms)
}

// Millis builds a finite duration; ms <= 0 yields Eternal.
func Millis(ms int64) Duration {
	if ms <= 0 {
		return Eternal
	}
	return Duration{millis: ms, kind: kindFinite}
}

// FromStd converts a configured time.Duration; d <= 0 means no limit.
func FromStd(d time.Duration) Duration {
	if d <= 0 {
		return Eternal
	}
	return Of(int64(d), time.Nanosecond)
}

func (d Duration) IsUnset() bool   { return d.kind == kindUnset }
func (d Duration) IsEternal() bool { return d.kind == kindEternal }

// Millis returns the length and true for finite durations.
func (d Duration) Millis() (int64, bool) {
	if d.kind != kindFinite {
		return 0, false
	}
	return d.millis, true
}

// Or returns d unless it is Unset.
func (d Duration) Or(fallback Duration) Duration {
	if d.kind == kindUnset {
		return fallback
	}
	return d
}

func (d Duration) String() string {
	switch d.kind {
	case kindUnset:
		return "unset"
	case kindEternal:
		return "eternal"
	}
	return strconv.FormatInt(d.millis, 10) + "ms"
}

// MarshalJSON writes finite durations as millis and everything else as null.
func (d Duration) MarshalJSON() ([]byte, error) {
	if d.kind != kindFinite {
		return []byte("null"), nil
	}
	return strconv.AppendInt(nil, d.millis, 10), nil
}
