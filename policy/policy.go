// Package policy decides which scans count against a plan's quota and
// which are due for re-probing. Every function is pure: the reference
// time is always an explicit parameter, never read from the clock.
package policy

import (
	"math"
	"time"

	"linkguard/model"
)

// RecentScans returns the order-preserving subset of scans whose
// CreatedAt falls inside the recency window implied by the plan's
// frequency:
//
//	daily   - created the same calendar day as now
//	weekly  - created strictly less than 7 days before now
//	monthly - created strictly less than one calendar month before now
func RecentScans(freq model.ScanFrequency, scans []model.Scan, now time.Time) []model.Scan {
	recent := make([]model.Scan, 0, len(scans))
	for _, scan := range scans {
		if inWindow(freq, scan.CreatedAt, now) {
			recent = append(recent, scan)
		}
	}
	return recent
}

// Evaluate runs the recency filter and the quota check together. The
// quota is a hard stop: when the count of recent scans meets or exceeds
// the plan ceiling, canScan is false and no scan of that user may be
// probed this pass.
func Evaluate(plan model.SubscriptionPlan, scans []model.Scan, now time.Time) (recent []model.Scan, canScan bool) {
	recent = RecentScans(plan.ScanFrequency, scans, now)
	return recent, len(recent) < plan.MaxURLs
}

// IsDue reports whether a scan should be probed now. A scan that has
// never been probed is always due. Otherwise the elapsed time since
// the last probe must meet or exceed the frequency window, evaluated
// with calendar day/month arithmetic rather than raw seconds.
func IsDue(freq model.ScanFrequency, lastScan *time.Time, now time.Time) bool {
	if lastScan == nil {
		return true
	}

	switch freq {
	case model.FrequencyDaily:
		return !sameCalendarDay(*lastScan, now)
	case model.FrequencyWeekly:
		return calendarDaysBetween(*lastScan, now) >= 7
	case model.FrequencyMonthly:
		return calendarMonthsBetween(*lastScan, now) >= 1
	}
	return false
}

func inWindow(freq model.ScanFrequency, createdAt, now time.Time) bool {
	switch freq {
	case model.FrequencyDaily:
		return sameCalendarDay(createdAt, now)
	case model.FrequencyWeekly:
		return !createdAt.After(now) && calendarDaysBetween(createdAt, now) < 7
	case model.FrequencyMonthly:
		return !createdAt.After(now) && calendarMonthsBetween(createdAt, now) < 1
	}
	return false
}

func sameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.In(b.Location()).Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// calendarDaysBetween counts whole calendar days from a to b by
// comparing midnights, so daylight-saving shifts cannot drift the
// window by an hour.
func calendarDaysBetween(a, b time.Time) int {
	a = a.In(b.Location())
	aMid := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, b.Location())
	bMid := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, b.Location())
	return int(math.Round(bMid.Sub(aMid).Hours() / 24))
}

// calendarMonthsBetween counts whole calendar months from a to b,
// tolerant of variable month length: the month count is decremented
// when b has not yet reached a's day-of-month.
func calendarMonthsBetween(a, b time.Time) int {
	a = a.In(b.Location())
	months := (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())

	// Not a full month until the day-of-month (and time of day) catches up.
	if b.Day() < a.Day() {
		months--
	} else if b.Day() == a.Day() {
		aClock := a.Hour()*3600 + a.Minute()*60 + a.Second()
		bClock := b.Hour()*3600 + b.Minute()*60 + b.Second()
		if bClock < aClock {
			months--
		}
	}
	return months
}
