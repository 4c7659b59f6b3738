package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

var clockRx = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

var ErrBadClock = errors.New("time must be HH:MM")

// ParseClock validates "H:MM" / "HH:MM" and returns it zero-padded.
func ParseClock(s string) (string, error) {
	m := clockRx.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", ErrBadClock
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	if h > 23 || min > 59 {
		return "", ErrBadClock
	}
	return fmt.Sprintf("%02d:%02d", h, min), nil
}

// LoadZone resolves an IANA zone name. "Local" and empty names are rejected
// because they depend on the host.
func LoadZone(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "Local" {
		return nil, fmt.Errorf("unknown time zone %q", name)
	}
	return time.LoadLocation(name)
}

// LocalDay returns the calendar date and wall clock of t in loc.
func LocalDay(t time.Time, loc *time.Location) (date, clock string) {
	lt := t.In(loc)
	return lt.Format(DateLayout), lt.Format(ClockLayout)
}

// ShiftDate moves a YYYY-MM-DD date by days.
func ShiftDate(date string, days int) (string, error) {
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", err
	}
	return d.AddDate(0, 0, days).Format(DateLayout), nil
}
