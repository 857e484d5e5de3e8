package timeslot

import (
	"fmt"
	"time"
)

// SlotDurations enumerates the slot lengths, in minutes, a doctor may use.
var SlotDurations = []int{15, 30, 45, 60}

// DefaultSlotDuration is applied when a doctor has no explicit slot length.
const DefaultSlotDuration = 30

// ValidSlotDuration reports whether minutes is one of SlotDurations.
func ValidSlotDuration(minutes int) bool {
	for _, d := range SlotDurations {
		if d == minutes {
			return true
		}
	}
	return false
}

// DaySchedule describes a doctor's working hours for one weekday.
type DaySchedule struct {
	IsWorking bool      `json:"isWorking"`
	Start     TimeOfDay `json:"start"`
	End       TimeOfDay `json:"end"`
}

// Validate checks that a working day has a non-empty range within the day.
func (d DaySchedule) Validate() error {
	if !d.IsWorking {
		return nil
	}
	if _, err := NewInterval(d.Start, d.End); err != nil {
		return err
	}
	return nil
}

// WeeklySchedule holds one DaySchedule per weekday, Monday through Sunday.
type WeeklySchedule struct {
	Monday    DaySchedule `json:"monday"`
	Tuesday   DaySchedule `json:"tuesday"`
	Wednesday DaySchedule `json:"wednesday"`
	Thursday  DaySchedule `json:"thursday"`
	Friday    DaySchedule `json:"friday"`
	Saturday  DaySchedule `json:"saturday"`
	Sunday    DaySchedule `json:"sunday"`
}

// Day returns the schedule for the given weekday.
func (w WeeklySchedule) Day(wd time.Weekday) DaySchedule {
	switch wd {
	case time.Monday:
		return w.Monday
	case time.Tuesday:
		return w.Tuesday
	case time.Wednesday:
		return w.Wednesday
	case time.Thursday:
		return w.Thursday
	case time.Friday:
		return w.Friday
	case time.Saturday:
		return w.Saturday
	default:
		return w.Sunday
	}
}

// For returns the schedule that applies on the given date.
func (w WeeklySchedule) For(d Date) DaySchedule { return w.Day(d.Weekday()) }

// Validate checks every weekday.
func (w WeeklySchedule) Validate() error {
	days := []struct {
		name string
		day  DaySchedule
	}{
		{"monday", w.Monday}, {"tuesday", w.Tuesday}, {"wednesday", w.Wednesday},
		{"thursday", w.Thursday}, {"friday", w.Friday}, {"saturday", w.Saturday},
		{"sunday", w.Sunday},
	}
	for _, d := range days {
		if err := d.day.Validate(); err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
	}
	return nil
}

// DefaultWeeklySchedule is Monday to Friday, 09:00 to 17:00.
func DefaultWeeklySchedule() WeeklySchedule {
	workday := DaySchedule{IsWorking: true, Start: TimeOfDay(9 * 60), End: TimeOfDay(17 * 60)}
	return WeeklySchedule{
		Monday: workday, Tuesday: workday, Wednesday: workday,
		Thursday: workday, Friday: workday,
	}
}

// Slot is a candidate booking interval derived from working hours. Slots are
// computed on demand and never stored.
type Slot struct {
	StartTime TimeOfDay `json:"startTime"`
	EndTime   TimeOfDay `json:"endTime"`
}

// Interval returns the slot as a half-open interval.
func (s Slot) Interval() Interval { return Interval{Start: s.StartTime, End: s.EndTime} }

// ComputeSlots splits a working day into contiguous slots of slotMinutes,
// starting at day.Start. A trailing remainder shorter than slotMinutes is
// dropped. A non-working day yields no slots.
func ComputeSlots(day DaySchedule, slotMinutes int) []Slot {
	slots := []Slot{}
	if !day.IsWorking || slotMinutes <= 0 {
		return slots
	}
	for cursor := day.Start; cursor.Add(slotMinutes) <= day.End; cursor = cursor.Add(slotMinutes) {
		slots = append(slots, Slot{StartTime: cursor, EndTime: cursor.Add(slotMinutes)})
	}
	return slots
}
