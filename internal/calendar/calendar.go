// Package calendar maps instants onto calendar days and weeks.
//
// All arithmetic steps in fixed 24-hour increments. Daylight-saving
// transitions are not compensated for, so a week key is always exactly
// WeekdayIndex days of 24h before the day start.
package calendar

import (
	"fmt"
	"regexp"
	"time"
)

// Day is the fixed length of a calendar day.
const Day = 24 * time.Hour

// DaysPerWeek is the number of reward slots in a week.
const DaysPerWeek = 7

// FirstWeekday is the weekday with index 0.
const FirstWeekday = time.Sunday

// Layout is the wire format for instants. The trailing Z is literal; the
// fields are wall-clock values in the calendar's location.
const Layout = "2006-01-02T15:04:05Z"

var instantPattern = regexp.MustCompile(
	`^(\d{4}-\d{2}-\d{2})(T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})?)?$`,
)

// Calendar interprets instants in a single fixed location.
type Calendar struct {
	loc *time.Location
}

// New returns a calendar for loc. A nil loc means time.Local.
func New(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.Local
	}
	return Calendar{loc: loc}
}

// Location returns the calendar's location.
func (c Calendar) Location() *time.Location {
	if c.loc == nil {
		return time.Local
	}
	return c.loc
}

// DayStart returns midnight of the calendar day containing t.
func (c Calendar) DayStart(t time.Time) time.Time {
	lt := t.In(c.Location())
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, c.Location())
}

// WeekdayIndex returns 0-6, counting from FirstWeekday.
func (c Calendar) WeekdayIndex(t time.Time) int {
	wd := int(t.In(c.Location()).Weekday())
	return (wd - int(FirstWeekday) + DaysPerWeek) % DaysPerWeek
}

// WeekKey returns midnight of the first day of the week containing t.
func (c Calendar) WeekKey(t time.Time) time.Time {
	return c.DayStart(t).Add(-time.Duration(c.WeekdayIndex(t)) * Day)
}

// WeekSlotInstants returns the availability instant of each slot of the week
// identified by weekKey, in index order.
func (c Calendar) WeekSlotInstants(weekKey time.Time) [DaysPerWeek]time.Time {
	var out [DaysPerWeek]time.Time
	for i := range out {
		out[i] = weekKey.Add(time.Duration(i) * Day)
	}
	return out
}

// NextDay returns t plus one fixed day.
func (c Calendar) NextDay(t time.Time) time.Time {
	return t.Add(Day)
}

// Format renders t's wall-clock fields in the calendar's location.
func (c Calendar) Format(t time.Time) string {
	return t.In(c.Location()).Format(Layout)
}

// Parse reads a date or date-time string and returns local midnight of its
// calendar date. Any time-of-day part is validated and then ignored.
func (c Calendar) Parse(s string) (time.Time, error) {
	m := instantPattern.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, fmt.Errorf("calendar: invalid instant %q", s)
	}
	d, err := time.ParseInLocation("2006-01-02", m[1], c.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("calendar: invalid date %q: %w", m[1], err)
	}
	return d, nil
}
