package detect

import (
	"fmt"
	"time"
)

// TimeOfDay is a wall-clock time expressed as minutes since midnight.
type TimeOfDay int

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Schedule gates a zone or route on days of the week and an optional
// time-of-day window. Start and End are either both nil (time-unrestricted)
// or both set; a window with Start after End wraps midnight.
type Schedule struct {
	TemporalEnabled bool
	Start           *TimeOfDay
	End             *TimeOfDay
	Days            []time.Weekday
	Active          bool
}

// AllDays is every day of the week, the default for a temporal schedule with
// no explicit day restriction.
func AllDays() []time.Weekday {
	return []time.Weekday{
		time.Sunday, time.Monday, time.Tuesday, time.Wednesday,
		time.Thursday, time.Friday, time.Saturday,
	}
}

// ActiveAt reports whether the schedule is active at ts. Without temporal
// gating it falls back to the static Active flag. Window comparisons are
// inclusive on both edges.
func (s Schedule) ActiveAt(ts time.Time) bool {
	if !s.TemporalEnabled {
		return s.Active
	}

	if !s.hasDay(ts.Weekday()) {
		return false
	}

	if s.Start != nil && s.End != nil {
		tod := TimeOfDay(ts.Hour()*60 + ts.Minute())
		if *s.Start <= *s.End {
			// Same-day window, e.g. 08:00-18:00.
			return tod >= *s.Start && tod <= *s.End
		}
		// Window wraps midnight, e.g. 22:00-06:00.
		return tod >= *s.Start || tod <= *s.End
	}

	return s.Active
}

func (s Schedule) hasDay(d time.Weekday) bool {
	for _, day := range s.Days {
		if day == d {
			return true
		}
	}
	return false
}
