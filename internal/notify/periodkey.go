package notify

import (
	"fmt"
	"time"
)

// Day returns the daily recurrence bucket, e.g. "2024-03-01".
func Day(t time.Time) string {
	return t.Format("2006-01-02")
}

// Week returns the ISO-week bucket, e.g. "2024-W09". The year is the ISO
// week-year, which differs from the calendar year around January 1st.
func Week(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// MonthDay returns the due-date bucket within a month, e.g. "2024-03-d05":
// one slot per month per due day.
func MonthDay(t time.Time, dueDay int) string {
	return fmt.Sprintf("%s-d%02d", t.Format("2006-01"), dueDay)
}
