package timeslot

import "fmt"

// Interval is a half-open range [Start, End) within a single day.
type Interval struct {
	Start TimeOfDay `json:"startTime"`
	End   TimeOfDay `json:"endTime"`
}

// NewInterval validates that start and end lie within one day and start < end.
func NewInterval(start, end TimeOfDay) (Interval, error) {
	if !start.Valid() || !end.Valid() {
		return Interval{}, ErrInvalidTime
	}
	if !start.Before(end) {
		return Interval{}, fmt.Errorf("start time %s must be before end time %s", start, end)
	}
	return Interval{Start: start, End: end}, nil
}

// Minutes returns the length of the interval.
func (i Interval) Minutes() int { return int(i.End - i.Start) }

// Empty reports whether the interval covers no time.
func (i Interval) Empty() bool { return i.End <= i.Start }

func (i Interval) String() string { return i.Start.String() + "-" + i.End.String() }

// Overlaps reports whether a and b share any instant. Intervals that only
// touch at an endpoint (a.End == b.Start) do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start < b.End && b.Start < a.End
}
