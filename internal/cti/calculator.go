package cti

import (
	"fmt"

	"github.com/carebridge/hospicetrack/internal/caldate"
)

// Facts are the admission facts a benefit-period calculation depends on.
// Descriptive patient fields (name, MRN, diagnosis) do not participate in
// period math and live elsewhere.
type Facts struct {
	AdmissionDate caldate.Date
	// StartingBenefitPeriod lets a patient enter mid-sequence, e.g. when
	// transferred from another agency. Values below 1 are clamped to 1.
	StartingBenefitPeriod int
	IsReadmission         bool
	F2FCompleted          bool
}

// BenefitPeriod is one Medicare hospice benefit period, located by its
// day-offset range since admission. Offsets are half-open: the period covers
// days [StartDayOffset, EndDayOffset).
type BenefitPeriod struct {
	Number         int `json:"number"`
	DurationDays   int `json:"duration_days"`
	StartDayOffset int `json:"start_day_offset"`
	EndDayOffset   int `json:"end_day_offset"`
}

// Result is the computed compliance snapshot for a patient's current benefit
// period. It is a pure function of (Facts, today, leadDays) and is recomputed
// on every read; persisted copies are reporting caches only and must be
// treated as stale.
type Result struct {
	Period             BenefitPeriod `json:"period"`
	PeriodName         string        `json:"period_name"`
	DaysIntoPeriod     int           `json:"days_into_period"`
	CertEndDate        caldate.Date  `json:"cert_end_date"`
	NotifyDate         caldate.Date  `json:"notify_date"`
	DaysUntilCertEnd   int           `json:"days_until_cert_end"`
	IsOverdue          bool          `json:"is_overdue"`
	RequiresF2F        bool          `json:"requires_f2f"`
	F2FCompleted       bool          `json:"f2f_completed"`
	F2FOverdue         bool          `json:"f2f_overdue"`
	IsReadmission      bool          `json:"is_readmission"`
	IsInSixtyDayPeriod bool          `json:"is_in_sixty_day_period"`
}

// PeriodDuration returns the Medicare duration for a benefit period: 90 days
// for periods 1 and 2, 60 days for every period after that.
func PeriodDuration(number int) int {
	if number <= 2 {
		return 90
	}
	return 60
}

// Compute walks benefit periods from the admission date and returns the
// snapshot for today. leadDays is the caller's certification lead-time
// policy: the daily sweep passes 14, the weekly report passes 10.
//
// ok is false when the admission date is absent; such patients are excluded
// from compliance reporting entirely.
//
// Future-dated admissions clamp to day 0 of the starting period rather than
// walking with a negative day count.
func Compute(facts Facts, today caldate.Date, leadDays int) (Result, bool) {
	if facts.AdmissionDate.IsZero() {
		return Result{}, false
	}

	start := facts.StartingBenefitPeriod
	if start < 1 {
		start = 1
	}

	daysSinceAdmission := caldate.DaysBetween(facts.AdmissionDate, today)
	if daysSinceAdmission < 0 {
		daysSinceAdmission = 0
	}

	period := locatePeriod(start, daysSinceAdmission)

	certEnd := facts.AdmissionDate.AddDays(period.EndDayOffset)
	requiresF2F := period.Number >= 3 || facts.IsReadmission
	daysUntilCertEnd := caldate.DaysBetween(today, certEnd)

	return Result{
		Period:             period,
		PeriodName:         PeriodName(period.Number),
		DaysIntoPeriod:     daysSinceAdmission - period.StartDayOffset,
		CertEndDate:        certEnd,
		NotifyDate:         certEnd.AddDays(-leadDays),
		DaysUntilCertEnd:   daysUntilCertEnd,
		IsOverdue:          daysUntilCertEnd < 0,
		RequiresF2F:        requiresF2F,
		F2FCompleted:       facts.F2FCompleted,
		F2FOverdue:         requiresF2F && !facts.F2FCompleted,
		IsReadmission:      facts.IsReadmission,
		IsInSixtyDayPeriod: period.Number >= 3,
	}, true
}

// locatePeriod finds the first period at or after start whose cumulative end
// exceeds the elapsed day count.
func locatePeriod(start, daysSinceAdmission int) BenefitPeriod {
	offset := 0
	number := start
	for {
		duration := PeriodDuration(number)
		if daysSinceAdmission < offset+duration {
			return BenefitPeriod{
				Number:         number,
				DurationDays:   duration,
				StartDayOffset: offset,
				EndDayOffset:   offset + duration,
			}
		}
		offset += duration
		number++
	}
}

// PeriodName renders the human label used on documents, e.g. "3rd 60-Day".
func PeriodName(number int) string {
	return fmt.Sprintf("%s %d-Day", ordinal(number), PeriodDuration(number))
}

func ordinal(n int) string {
	suffix := "th"
	if n%100 < 11 || n%100 > 13 {
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", n, suffix)
}
