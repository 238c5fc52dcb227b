package core

import (
	"fmt"
	"time"
)

// Billing runs in fixed two-month buckets anchored to odd months:
// Jan-Feb, Mar-Apr, May-Jun, Jul-Aug, Sep-Oct, Nov-Dec. A bucket is
// identified by its start date, always the 1st of an odd month.

var periodNames = [6]string{
	"styczeń-luty",
	"marzec-kwiecień",
	"maj-czerwiec",
	"lipiec-sierpień",
	"wrzesień-październik",
	"listopad-grudzień",
}

// PeriodStartFor maps the end date of a reading pair to the start of the
// bimonthly bucket it closes. A reading taken before the 15th of an odd
// month is deemed to close the previous bucket (e.g. a reading on
// January 3rd settles November-December of the prior year).
func PeriodStartFor(end time.Time) time.Time {
	if end.Day() < 15 && int(end.Month())%2 == 1 {
		shifted := end.AddDate(0, -2, 0)
		return NewDate(shifted.Year(), baseMonth(shifted.Month()), 1)
	}
	return NewDate(end.Year(), baseMonth(end.Month()), 1)
}

func baseMonth(m time.Month) time.Month {
	return time.Month((int(m)-1)/2*2 + 1)
}

// PeriodEnd returns the last day of the bucket starting at start.
func PeriodEnd(start time.Time) time.Time {
	return start.AddDate(0, 2, -1)
}

// PeriodLabel returns a display name such as "styczeń-luty 2025".
func PeriodLabel(start time.Time) string {
	return fmt.Sprintf("%s %d", periodNames[(int(start.Month())-1)/2], start.Year())
}

// PeriodsOfYear returns the six bucket start dates of a calendar year.
func PeriodsOfYear(year int) []time.Time {
	starts := make([]time.Time, 0, 6)
	for m := time.January; m <= time.November; m += 2 {
		starts = append(starts, NewDate(year, m, 1))
	}
	return starts
}
