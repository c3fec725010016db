package etl

import "time"

// ResolveBusinessDate maps a reference instant to the trading day it
// belongs to: Saturday rolls back one day and Sunday rolls back two, so
// weekend references always land on the preceding Friday. The instant must
// already be normalized to the exchange's local calendar. Pure, no I/O.
func ResolveBusinessDate(ref time.Time) BusinessDate {
	d := DateOf(ref)
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDays(-1)
	case time.Sunday:
		return d.AddDays(-2)
	default:
		return d
	}
}

// PreviousSession returns the trading day whose disclosure a scheduled run
// should target: the session before the reference day. Monday targets the
// previous Friday; every other day targets yesterday.
func PreviousSession(ref time.Time) BusinessDate {
	d := DateOf(ref)
	if d.Weekday() == time.Monday {
		return d.AddDays(-3)
	}
	return d.AddDays(-1)
}
