package epoch

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
)

const (
	// DefaultPeriod is one day, the length the vault is deployed with.
	DefaultPeriod uint64 = 86_400
	// MaxPeriod is ten years.
	MaxPeriod uint64 = 10 * 365 * DefaultPeriod
)

var (
	errZeroPeriod = errors.New("epoch: period must be greater than zero")
	// ErrPeriodTooLong rejects periods above MaxPeriod.
	ErrPeriodTooLong = fmt.Errorf("epoch: period exceeds %d seconds", MaxPeriod)
)

func checkPeriod(period uint64) error {
	if period == 0 {
		return errZeroPeriod
	}
	if period > MaxPeriod {
		return ErrPeriodTooLong
	}
	return nil
}

// Segment describes a run of equally sized epochs. Epoch FromEpoch opens at
// FromTime and every later epoch in the segment is Period seconds long.
type Segment struct {
	FromEpoch uint64
	FromTime  uint64
	Period    uint64
}

// Clock maps unix timestamps to epoch indices. Elapsed boundaries never move:
// a period change only takes effect from the epoch after the one in progress.
type Clock struct {
	Segments []Segment
}

// NewClock returns a clock whose epoch zero opens at start.
func NewClock(start, period uint64) (Clock, error) {
	if err := checkPeriod(period); err != nil {
		return Clock{}, err
	}
	return Clock{Segments: []Segment{{FromEpoch: 0, FromTime: start, Period: period}}}, nil
}

// Validate ensures the segments are ordered and contiguous.
func (c Clock) Validate() error {
	if len(c.Segments) == 0 {
		return fmt.Errorf("epoch: clock has no segments")
	}
	if c.Segments[0].FromEpoch != 0 {
		return fmt.Errorf("epoch: first segment must start at epoch 0")
	}
	for i, seg := range c.Segments {
		if seg.Period == 0 {
			return errZeroPeriod
		}
		if i == 0 {
			continue
		}
		prev := c.Segments[i-1]
		if seg.FromEpoch <= prev.FromEpoch {
			return fmt.Errorf("epoch: segment %d out of order", i)
		}
		if want := prev.FromTime + (seg.FromEpoch-prev.FromEpoch)*prev.Period; seg.FromTime != want {
			return fmt.Errorf("epoch: segment %d opens at %d, expected %d", i, seg.FromTime, want)
		}
	}
	return nil
}

// Start is the opening timestamp of epoch zero.
func (c Clock) Start() uint64 {
	if len(c.Segments) == 0 {
		return 0
	}
	return c.Segments[0].FromTime
}

// Period returns the most recently configured epoch length.
func (c Clock) Period() uint64 {
	if len(c.Segments) == 0 {
		return 0
	}
	return c.Segments[len(c.Segments)-1].Period
}

// PeriodOf returns the length of the given epoch.
func (c Clock) PeriodOf(epoch uint64) uint64 {
	seg, ok := c.segmentForEpoch(epoch)
	if !ok {
		return 0
	}
	return seg.Period
}

// EpochOf returns floor((ts - start) / period) evaluated against the segment
// active at ts. Timestamps before the start belong to epoch zero.
func (c Clock) EpochOf(ts uint64) uint64 {
	if len(c.Segments) == 0 || ts < c.Segments[0].FromTime {
		return 0
	}
	seg := c.Segments[0]
	for _, candidate := range c.Segments[1:] {
		if candidate.FromTime > ts {
			break
		}
		seg = candidate
	}
	return seg.FromEpoch + (ts-seg.FromTime)/seg.Period
}

// StartOf returns the opening timestamp of epoch. Epochs beyond the uint64
// time range saturate at math.MaxUint64.
func (c Clock) StartOf(epoch uint64) uint64 {
	seg, ok := c.segmentForEpoch(epoch)
	if !ok {
		return 0
	}
	hi, offset := bits.Mul64(epoch-seg.FromEpoch, seg.Period)
	if hi != 0 {
		return math.MaxUint64
	}
	start, carry := bits.Add64(seg.FromTime, offset, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return start
}

// WithPeriod returns a copy of the clock whose epochs after the one active at
// now are period seconds long. A change that has not yet taken effect is
// replaced rather than stacked.
func (c Clock) WithPeriod(now, period uint64) (Clock, error) {
	if err := checkPeriod(period); err != nil {
		return c, err
	}
	if len(c.Segments) == 0 {
		return NewClock(now, period)
	}
	segments := append([]Segment(nil), c.Segments...)
	last := &segments[len(segments)-1]
	if last.FromTime > now {
		last.Period = period
		if n := len(segments); n >= 2 && segments[n-2].Period == period {
			segments = segments[:n-1]
		}
		return Clock{Segments: segments}, nil
	}
	if last.Period == period {
		return Clock{Segments: segments}, nil
	}
	next := c.EpochOf(now) + 1
	segments = append(segments, Segment{FromEpoch: next, FromTime: c.StartOf(next), Period: period})
	return Clock{Segments: segments}, nil
}

func (c Clock) segmentForEpoch(epoch uint64) (Segment, bool) {
	if len(c.Segments) == 0 {
		return Segment{}, false
	}
	seg := c.Segments[0]
	for _, candidate := range c.Segments[1:] {
		if candidate.FromEpoch > epoch {
			break
		}
		seg = candidate
	}
	return seg, true
}
