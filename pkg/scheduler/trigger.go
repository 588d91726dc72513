package scheduler

import (
	"fmt"
	"time"
)

// Trigger computes when a job is next due.
type Trigger interface {
	// Next returns the next due time given the dispatch time of the last run
	// (zero if the job never ran) and the current time.
	Next(lastRun, now time.Time) time.Time
	String() string
}

// Interval fires immediately for a job that never ran and then every Period
// after the previous dispatch.
type Interval struct {
	Period time.Duration
}

func Every(seconds int) Interval {
	return Interval{Period: time.Duration(seconds) * time.Second}
}

func (i Interval) Next(lastRun, now time.Time) time.Time {
	if lastRun.IsZero() {
		return now
	}
	return lastRun.Add(i.Period)
}

func (i Interval) String() string {
	return fmt.Sprintf("every %v", i.Period)
}

// DailyAt fires once a day at Hour:Minute in the local time of now.
type DailyAt struct {
	Hour   int
	Minute int
}

func ParseDailyAt(s string) (DailyAt, error) {
	var d DailyAt
	t, err := time.Parse("15:04", s)
	if err != nil {
		return d, fmt.Errorf("invalid time of day %q, expected HH:MM", s)
	}
	d.Hour, d.Minute = t.Hour(), t.Minute()
	return d, nil
}

func (d DailyAt) Next(lastRun, now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), d.Hour, d.Minute, 0, 0, now.Location())
	if !next.After(now) {
		next = time.Date(now.Year(), now.Month(), now.Day()+1, d.Hour, d.Minute, 0, 0, now.Location())
	}
	return next
}

func (d DailyAt) String() string {
	return fmt.Sprintf("daily at %02d:%02d", d.Hour, d.Minute)
}
