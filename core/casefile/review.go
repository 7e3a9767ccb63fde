package casefile

import "time"

// ReviewIntervalMonths is the reassessment period of a case file, in calendar months.
const ReviewIntervalMonths = 3

// ReviewDueAt is the instant a case file last reviewed at lastReview becomes overdue.
// Months are added on the calendar (month component + 3, carrying the year); day overflow
// normalizes forward, so Nov 30 + 3 months is Mar 2 (Mar 1 on leap years).
func ReviewDueAt(lastReview time.Time) time.Time {
	return lastReview.AddDate(0, ReviewIntervalMonths, 0)
}

// NeedsReview reports whether cf is due for reassessment at now.
func NeedsReview(cf CaseFile, now time.Time) bool {
	if cf.LastReviewAt.IsZero() {
		return true
	}
	return !now.Before(ReviewDueAt(cf.LastReviewAt))
}
