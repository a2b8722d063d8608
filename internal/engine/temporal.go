package engine

import (
	"math"
	"time"

	"github.com/nholm/tlsync/internal/jdoc"
	"github.com/nholm/tlsync/internal/model"
)

// Timeline timestamps count seconds from 0001-01-01T00:00:00 in the
// proleptic Gregorian calendar.
const (
	// EraFloor is the timestamp of 0100-01-01T00:00:00. Timestamps below
	// it cannot be represented as project dates and are treated as "no
	// date"; an event carrying one was placed outside the engine's range
	// on purpose and its timing is never overwritten.
	EraFloor int64 = 3124137600

	// unixOffset is the number of seconds from 0001-01-01 to the Unix
	// epoch: -time.Date(1,1,1,...).Unix().
	unixOffset int64 = 62135596800

	dateLayout     = "2006-01-02"
	timeLayout     = "15:04:05"
	dateTimeLayout = dateLayout + " " + timeLayout
)

func timestampTime(ts int64) time.Time {
	return time.Unix(ts-unixOffset, 0).UTC()
}

func timeTimestamp(t time.Time) int64 {
	return t.Unix() + unixOffset
}

// applyEventTiming sets the scene's date, time, day offset, and duration
// from an event's timestamp and span. Sub-floor timestamps set nothing.
//
// A scene that already uses a relative day keeps that representation: the
// offset is recomputed as whole days from the reference date. A scene with
// a time of day but no date is anchored at offset zero. Anything else gets
// the absolute date.
func applyEventTiming(sc *model.Scene, ts int64, span jdoc.Object, ref time.Time) {
	if ts < EraFloor {
		return
	}
	start := timestampTime(ts)
	switch {
	case sc.Day != nil:
		sc.Day = model.IntPtr(wholeDays(ref, start))
	case sc.Time != nil && sc.Date == nil:
		sc.Day = model.IntPtr(0)
	default:
		sc.Date = model.StrPtr(start.Format(dateLayout))
	}
	sc.Time = model.StrPtr(start.Format(timeLayout))

	days, hours, minutes := expandSpan(span, start)
	sc.LastsDays = model.IntPtr(days)
	sc.LastsHours = model.IntPtr(hours)
	sc.LastsMinutes = model.IntPtr(minutes)
}

// wholeDays returns the number of whole days from ref to t, rounding
// toward negative infinity so that a scene a few hours before the
// reference lands on day -1, not day 0.
func wholeDays(ref, t time.Time) int {
	// Unix arithmetic instead of Sub: a Duration saturates beyond ~292
	// years and valid dates reach back to year 100.
	return int(math.Floor(float64(t.Unix()-ref.Unix()) / 86400))
}

// expandSpan flattens a timeline span into days/hours/minutes. Months and
// years widen first to a coarse day count by differencing calendar dates
// (the end date keeps the start's day-of-month); then weeks, days, hours,
// minutes, and seconds fold in with standard carry.
func expandSpan(span jdoc.Object, start time.Time) (days, hours, minutes int) {
	if span == nil {
		return 0, 0, 0
	}
	years, hasYears := jdoc.Int(span, "years")
	months, hasMonths := jdoc.Int(span, "months")
	if hasYears || hasMonths {
		endYear := start.Year() + int(years)
		endMonth := int(start.Month()) + int(months)
		for endMonth > 12 {
			endMonth -= 12
			endYear++
		}
		end := time.Date(endYear, time.Month(endMonth), start.Day(), 0, 0, 0, 0, time.UTC)
		base := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
		days = int((end.Unix() - base.Unix()) / 86400)
	}
	if w, ok := jdoc.Int(span, "weeks"); ok {
		days += int(w) * 7
	}
	if d, ok := jdoc.Int(span, "days"); ok {
		days += int(d)
	}
	if h, ok := jdoc.Int(span, "hours"); ok {
		days += int(h) / 24
		hours += int(h) % 24
	}
	if m, ok := jdoc.Int(span, "minutes"); ok {
		hours += int(m) / 60
		minutes += int(m) % 60
	}
	if s, ok := jdoc.Int(span, "seconds"); ok {
		minutes += int(s) / 60
	}
	hours += minutes / 60
	minutes %= 60
	days += hours / 24
	hours %= 24
	return days, hours, minutes
}

// sceneSpan rebuilds a span object from the duration fields present and
// non-zero on the scene. Absent fields are omitted, never zeroed: a
// duration entirely absent on the project side produces an empty span.
func sceneSpan(sc *model.Scene) jdoc.Object {
	span := jdoc.Object{}
	if sc.LastsDays != nil && *sc.LastsDays != 0 {
		span["days"] = int64(*sc.LastsDays)
	}
	if sc.LastsHours != nil && *sc.LastsHours != 0 {
		span["hours"] = int64(*sc.LastsHours)
	}
	if sc.LastsMinutes != nil && *sc.LastsMinutes != 0 {
		span["minutes"] = int64(*sc.LastsMinutes)
	}
	return span
}

// sceneTimestamp converts the scene's date and time to a timestamp. When
// the scene has no parseable date the synthetic fallback from next is
// used; next must yield strictly increasing values above every timestamp
// seen so far, so new undated events sort after all dated ones and never
// collide.
func sceneTimestamp(sc *model.Scene, next func() int64) int64 {
	fallback := next()
	if sc.Date == nil {
		return fallback
	}
	iso := *sc.Date
	layout := dateLayout
	if sc.Time != nil {
		iso += " " + *sc.Time
		layout = dateTimeLayout
	}
	t, err := time.ParseInLocation(layout, iso, time.UTC)
	if err != nil {
		// Times without seconds are accepted too.
		t, err = time.ParseInLocation("2006-01-02 15:04", iso, time.UTC)
		if err != nil {
			return fallback
		}
	}
	return timeTimestamp(t)
}
