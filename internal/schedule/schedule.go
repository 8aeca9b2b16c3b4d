// Package schedule interprets the free-text date and time fields study sessions are created with.
//
// Sessions carry a date such as "Wednesday, October 22nd" and a time range such as
// "8:00 AM - 10:00 AM". Neither carries a year, so the year of the reference time is assumed.
// The parse is a heuristic: callers that only need "has it started" use EventPassed, which
// fails open (reports false) when the text cannot be understood.
package schedule

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ErrUnparseable is returned when the date or time text does not match a known layout.
var ErrUnparseable = errors.New("unparseable session schedule")

var (
	ordinalSuffix = regexp.MustCompile(`(\d+)(st|nd|rd|th)\b`)
	spaces        = regexp.MustCompile(`\s+`)

	weekdays = map[string]bool{
		"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
		"friday": true, "saturday": true, "sunday": true,
		"mon": true, "tue": true, "tues": true, "wed": true, "thu": true, "thur": true,
		"thurs": true, "fri": true, "sat": true, "sun": true,
	}

	dateLayouts = []string{"January 2", "Jan 2", "2 January", "2 Jan"}
	timeLayouts = []string{"3:04 PM", "3:04PM", "3 PM", "3PM", "15:04"}
)

// ParseStart combines a free-text date and the start of a "start - end" time range into a
// concrete time in ref's location and year.
func ParseStart(date, timeRange string, ref time.Time) (time.Time, error) {
	date = strings.TrimSpace(date)
	timeRange = strings.TrimSpace(timeRange)
	if date == "" || timeRange == "" {
		return time.Time{}, ErrUnparseable
	}

	day, err := parseDay(date)
	if err != nil {
		return time.Time{}, err
	}
	clock, err := parseClock(startOf(timeRange))
	if err != nil {
		return time.Time{}, err
	}

	start := time.Date(ref.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, ref.Location())
	// time.Date normalizes February 29th into March outside leap years
	if start.Day() != day.Day() {
		return time.Time{}, fmt.Errorf("%w: no %s %d in %d", ErrUnparseable, day.Month(), day.Day(), ref.Year())
	}
	return start, nil
}

// EventPassed reports whether the session start lies before now. Unparseable input is
// treated as not passed.
func EventPassed(date, timeRange string, now time.Time) bool {
	start, err := ParseStart(date, timeRange, now)
	if err != nil {
		return false
	}
	return now.After(start)
}

func parseDay(date string) (time.Time, error) {
	if head, rest, ok := strings.Cut(date, ","); ok && weekdays[strings.ToLower(strings.TrimSpace(head))] {
		date = rest
	}
	date = ordinalSuffix.ReplaceAllString(date, "$1")
	date = strings.TrimSpace(spaces.ReplaceAllString(date, " "))
	date = strings.TrimSuffix(date, ",")

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, date); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: date %q", ErrUnparseable, date)
}

func startOf(timeRange string) string {
	start, _, _ := strings.Cut(timeRange, "-")
	return strings.TrimSpace(start)
}

func parseClock(s string) (time.Time, error) {
	s = strings.ToUpper(spaces.ReplaceAllString(strings.TrimSpace(s), " "))
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: time %q", ErrUnparseable, s)
}
