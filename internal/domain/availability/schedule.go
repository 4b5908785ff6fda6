package availability

import (
	"sort"
	"time"
)

// WorkingWindow is a provider's recurring weekly open-hours rule.
// Minutes are counted from midnight UTC.
type WorkingWindow struct {
	Weekday       time.Weekday
	StartMinute   int
	EndMinute     int
	EffectiveFrom *time.Time
	EffectiveTo   *time.Time
}

func (w WorkingWindow) activeOn(day time.Time) bool {
	if day.Weekday() != w.Weekday {
		return false
	}
	if w.EffectiveFrom != nil && day.Before(truncateToDay(*w.EffectiveFrom)) {
		return false
	}
	if w.EffectiveTo != nil && day.After(truncateToDay(*w.EffectiveTo)) {
		return false
	}
	return w.StartMinute < w.EndMinute
}

// Schedule is the read-mostly availability configuration for one
// provider: recurring windows minus explicit blackouts. Occupied
// booking intervals are passed in by the caller so the computation
// itself stays side-effect-free and restartable.
type Schedule struct {
	Windows   []WorkingWindow
	Blackouts []Interval
}

// FreeSlots returns the ordered candidate slots of the given duration
// inside [from, to), stepping candidates by step (duration when step
// is zero).
func (s Schedule) FreeSlots(from, to time.Time, duration time.Duration, step time.Duration, busy []Interval) []Interval {
	if duration <= 0 || !from.Before(to) {
		return nil
	}
	if step <= 0 {
		step = duration
	}

	free := s.openIntervals(from, to)
	free = subtract(free, s.Blackouts)
	free = subtract(free, busy)

	var slots []Interval
	for _, span := range free {
		for start := span.Start; !start.Add(duration).After(span.End); start = start.Add(step) {
			slots = append(slots, Interval{Start: start, End: start.Add(duration)})
		}
	}
	return slots
}

// IsFree reports whether the exact interval is inside working hours and
// clear of blackouts and busy bookings. The reservation path evaluates
// this again inside the provider's critical section; a stale positive
// answer from a concurrent read is resolved there.
func (s Schedule) IsFree(iv Interval, busy []Interval) bool {
	if !iv.Start.Before(iv.End) {
		return false
	}
	for _, b := range busy {
		if iv.Overlaps(b) {
			return false
		}
	}
	for _, b := range s.Blackouts {
		if iv.Overlaps(b) {
			return false
		}
	}
	for _, open := range s.openIntervals(iv.Start, iv.End) {
		if open.Contains(iv) {
			return true
		}
	}
	return false
}

func (s Schedule) openIntervals(from, to time.Time) []Interval {
	var open []Interval
	for day := truncateToDay(from); day.Before(to); day = day.AddDate(0, 0, 1) {
		for _, w := range s.Windows {
			if !w.activeOn(day) {
				continue
			}
			iv := Interval{
				Start: day.Add(time.Duration(w.StartMinute) * time.Minute),
				End:   day.Add(time.Duration(w.EndMinute) * time.Minute),
			}
			iv = clip(iv, from, to)
			if iv.Start.Before(iv.End) {
				open = append(open, iv)
			}
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].Start.Before(open[j].Start) })
	return merge(open)
}

func clip(iv Interval, from, to time.Time) Interval {
	if iv.Start.Before(from) {
		iv.Start = from
	}
	if iv.End.After(to) {
		iv.End = to
	}
	return iv
}

func merge(sorted []Interval) []Interval {
	if len(sorted) == 0 {
		return sorted
	}
	merged := []Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// subtract removes every removal interval from each span, keeping
// half-open semantics so touching edges leave no gap.
func subtract(spans, removals []Interval) []Interval {
	result := spans
	for _, rm := range removals {
		var next []Interval
		for _, span := range result {
			if !span.Overlaps(rm) {
				next = append(next, span)
				continue
			}
			if span.Start.Before(rm.Start) {
				next = append(next, Interval{Start: span.Start, End: rm.Start})
			}
			if rm.End.Before(span.End) {
				next = append(next, Interval{Start: rm.End, End: span.End})
			}
		}
		result = next
	}
	return result
}

func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
