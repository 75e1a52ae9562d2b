package interval

import "time"

// customDayEpoch is the fixed reference date for custom-day buckets. Any
// fixed calendar date works; the Unix epoch keeps the anchor obvious.
var customDayEpoch = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)

// BucketStart maps an instant to the start of its bucket. The result is a
// pure function of the instant and the interval configuration: it never
// depends on any query window, so bucket edges are stable across queries.
func (i Interval) BucketStart(t time.Time) time.Time {
	t = t.UTC()
	switch i.Granularity {
	case GranularityMinute:
		return t.Truncate(time.Minute)
	case GranularityHour:
		return t.Truncate(time.Hour)
	case GranularityDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case GranularityCustomDay:
		// origin + floor((t - origin) / 24h) * 24h, origin anchored to the
		// epoch at the configured start hour.
		origin := customDayEpoch.Add(time.Duration(i.DayStartHour) * time.Hour)
		elapsed := t.Sub(origin)
		days := elapsed / (24 * time.Hour)
		if elapsed < 0 && elapsed%(24*time.Hour) != 0 {
			days--
		}
		return origin.Add(days * 24 * time.Hour)
	default:
		return t.Truncate(i.Duration)
	}
}

// BucketRange returns the half-open [start, end) span of the bucket
// containing t.
func (i Interval) BucketRange(t time.Time) (start, end time.Time) {
	start = i.BucketStart(t)
	end = start.Add(i.Duration)
	return start, end
}

// SameBucket reports whether two instants fall into the same bucket.
func (i Interval) SameBucket(a, b time.Time) bool {
	return i.BucketStart(a).Equal(i.BucketStart(b))
}
