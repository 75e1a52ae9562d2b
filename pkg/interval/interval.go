package interval

import (
	"fmt"
	"time"
)

// Granularity identifies one OHLC bucket span.
type Granularity string

// Supported granularities.
const (
	GranularityMinute    Granularity = "minute"
	GranularityHour      Granularity = "hour"
	GranularityDay       Granularity = "day"
	GranularityCustomDay Granularity = "custom-day"
)

// Interval represents a time interval for OHLC bucketing. DayStartHour is
// only meaningful for the custom-day granularity and is fixed at startup.
type Interval struct {
	Granularity  Granularity
	Duration     time.Duration
	DayStartHour int
}

// Standard intervals. CustomDay is built per configuration via NewCustomDay.
var (
	Minute = Interval{Granularity: GranularityMinute, Duration: time.Minute}
	Hour   = Interval{Granularity: GranularityHour, Duration: time.Hour}
	Day    = Interval{Granularity: GranularityDay, Duration: 24 * time.Hour}
)

// NewCustomDay returns the 24h interval anchored at the given UTC start hour.
func NewCustomDay(dayStartHour int) (Interval, error) {
	if dayStartHour < 0 || dayStartHour > 23 {
		return Interval{}, fmt.Errorf("day start hour must be in [0, 23], got %d", dayStartHour)
	}
	return Interval{
		Granularity:  GranularityCustomDay,
		Duration:     24 * time.Hour,
		DayStartHour: dayStartHour,
	}, nil
}

// ParseGranularity validates a granularity name.
func ParseGranularity(name string) (Granularity, error) {
	switch Granularity(name) {
	case GranularityMinute, GranularityHour, GranularityDay, GranularityCustomDay:
		return Granularity(name), nil
	}
	return "", fmt.Errorf("unsupported granularity: %s", name)
}

// Set holds the four intervals this service aggregates, with the custom-day
// anchor taken from configuration.
type Set struct {
	intervals []Interval
}

// NewSet builds the interval set for the given custom-day start hour.
func NewSet(dayStartHour int) (Set, error) {
	customDay, err := NewCustomDay(dayStartHour)
	if err != nil {
		return Set{}, err
	}
	return Set{intervals: []Interval{Minute, Hour, Day, customDay}}, nil
}

// All returns every interval in the set.
func (s Set) All() []Interval {
	return s.intervals
}

// ByGranularity returns the set's interval for the given granularity.
func (s Set) ByGranularity(g Granularity) (Interval, error) {
	for _, iv := range s.intervals {
		if iv.Granularity == g {
			return iv, nil
		}
	}
	return Interval{}, fmt.Errorf("granularity %s not in set", g)
}
