package features

import "time"

// DateLayout accepts YYYY/M/D with one- or two-digit month and day.
const DateLayout = "2006/1/2"

// Clock returns the current time. A nil Clock means time.Now.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

// Calendar holds the date-derived features.
type Calendar struct {
	Month     int // 1-12
	DayOfWeek int // Monday=0 .. Sunday=6
}

// FromTime extracts calendar features from t in its own location.
func FromTime(t time.Time) Calendar {
	return Calendar{
		Month:     int(t.Month()),
		DayOfWeek: (int(t.Weekday()) + 6) % 7,
	}
}

// DeriveCalendarFeatures parses date with DateLayout. When parsing fails it
// falls back to the clock's current date and reports parsed=false.
func DeriveCalendarFeatures(date string, clock Clock) (cal Calendar, parsed bool) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return FromTime(clock.now()), false
	}
	return FromTime(t), true
}
