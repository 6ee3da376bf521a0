package scoring

import (
	"fmt"
	"strings"
	"time"
)

const weekKeyLayout = "2006-01-02"

// Week is a Sunday-to-Saturday bucket identified by its Sunday.
type Week struct {
	Start time.Time
}

// WeekOf returns the week containing t in loc.
func WeekOf(t time.Time, loc *time.Location) Week {
	if loc == nil {
		loc = time.UTC
	}
	lt := t.In(loc)
	day := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
	return Week{Start: day.AddDate(0, 0, -int(day.Weekday()))}
}

// ParseWeek parses a YYYY-MM-DD date and returns the week containing it.
func ParseWeek(s string, loc *time.Location) (Week, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(weekKeyLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return Week{}, fmt.Errorf("invalid week %q, want YYYY-MM-DD: %w", s, err)
	}
	return WeekOf(t, loc), nil
}

// Key is the Sunday date of the week.
func (w Week) Key() string {
	return w.Start.Format(weekKeyLayout)
}

func (w Week) End() time.Time {
	return w.Start.AddDate(0, 0, 7)
}

func (w Week) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End())
}

func (w Week) String() string {
	return fmt.Sprintf("%s to %s", w.Key(), w.End().AddDate(0, 0, -1).Format(weekKeyLayout))
}
