package timeslot

// HasConflict reports whether candidate overlaps any of the existing
// intervals. Callers pass only intervals of active (non-canceled) bookings
// for the same doctor and date.
func HasConflict(candidate Interval, existing []Interval) bool {
	for _, e := range existing {
		if Overlaps(candidate, e) {
			return true
		}
	}
	return false
}

// FilterAvailable returns the slots that do not conflict with any booked
// interval, preserving order.
func FilterAvailable(slots []Slot, booked []Interval) []Slot {
	free := make([]Slot, 0, len(slots))
	for _, s := range slots {
		if !HasConflict(s.Interval(), booked) {
			free = append(free, s)
		}
	}
	return free
}
