// Package trimester maps calendar dates onto the three billing terms of the academic year.
//
// Trimester 1 runs October to January, trimester 2 February to May, trimester 3 June to September.
package trimester

import (
	"fmt"
	"time"
)

type Trimester int

const (
	First  Trimester = 1
	Second Trimester = 2
	Third  Trimester = 3
)

// All lists the trimesters in order.
var All = [3]Trimester{First, Second, Third}

func (t Trimester) Valid() bool { return t >= First && t <= Third }

func (t Trimester) String() string { return fmt.Sprintf("trimester %d", int(t)) }

// Parse validates a raw trimester number.
func Parse(n int) (Trimester, error) {
	t := Trimester(n)
	if !t.Valid() {
		return 0, fmt.Errorf("invalid trimester %d: allowed values are 1, 2, 3", n)
	}
	return t, nil
}

// Of returns the trimester containing date. Only the month is considered.
func Of(date time.Time) Trimester {
	switch m := date.Month(); {
	case m >= time.October || m == time.January:
		return First
	case m <= time.May:
		return Second
	default:
		return Third
	}
}

// Calendar resolves the current trimester from an injectable clock.
type Calendar struct {
	Now      func() time.Time
	Location *time.Location
}

// NewCalendar returns a calendar on the wall clock in loc (UTC when nil).
func NewCalendar(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return Calendar{Now: time.Now, Location: loc}
}

// Today is the calendar's current instant in its location.
func (c Calendar) Today() time.Time {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return now().In(loc)
}

func (c Calendar) Current() Trimester { return Of(c.Today()) }
