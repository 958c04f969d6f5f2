// Package compliance runs the recurring checks over the patient census:
// the daily sweep that classifies every patient against the benefit-period
// clock, and the weekly report that rolls those classifications up for
// clinical leadership.
package compliance

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/carebridge/hospicetrack/internal/caldate"
	"github.com/carebridge/hospicetrack/internal/cti"
	"github.com/carebridge/hospicetrack/internal/mergedata"
	"github.com/carebridge/hospicetrack/internal/store"
)

// Status buckets for one patient at one sweep instant.
const (
	StatusExcluded = "excluded" // no admission date; not on the clock
	StatusOK       = "ok"       // before the notify window
	StatusAtRisk   = "at_risk"  // inside the notify window, not yet overdue
	StatusOverdue  = "overdue"  // cert end date has passed
)

// SweepLeadDays is the notify window for the daily sweep. The weekly
// report uses a shorter window; see ReportLeadDays.
const SweepLeadDays = 14

// Finding is one patient's classification.
type Finding struct {
	Patient    mergedata.Patient `json:"patient"`
	Status     string            `json:"status"`
	F2FOverdue bool              `json:"f2f_overdue"`
	Result     *cti.Result       `json:"result,omitempty"`
}

// Alertable reports whether the finding warrants a notification.
func (f Finding) Alertable() bool {
	return f.Status == StatusAtRisk || f.Status == StatusOverdue || f.F2FOverdue
}

// Classify buckets one patient as of the given day. ok=false from the
// calculator (absent admission date) maps to StatusExcluded.
func Classify(p mergedata.Patient, today caldate.Date, leadDays int) Finding {
	res, ok := cti.Compute(p.Facts(), today, leadDays)
	if !ok {
		return Finding{Patient: p, Status: StatusExcluded}
	}
	f := Finding{Patient: p, Result: &res, F2FOverdue: res.F2FOverdue}
	switch {
	case res.IsOverdue:
		f.Status = StatusOverdue
	case res.DaysUntilCertEnd <= leadDays:
		f.Status = StatusAtRisk
	default:
		f.Status = StatusOK
	}
	return f
}

// Notifier receives the alertable findings of a sweep, batched per run.
type Notifier interface {
	NotifyFindings(ctx context.Context, asOf caldate.Date, findings []Finding) error
}

// Sweep classifies the whole census, persists snapshot rows, and hands
// alertable findings to the notifier.
type Sweep struct {
	Store    *store.Store
	Notifier Notifier
	LeadDays int
	Log      zerolog.Logger
}

// Run executes one sweep as of the given day and returns every finding,
// alertable or not. Snapshot persistence failures are logged and skipped;
// a broken reporting cache must not block alerting.
func (s *Sweep) Run(ctx context.Context, asOf caldate.Date) ([]Finding, error) {
	leadDays := s.LeadDays
	if leadDays <= 0 {
		leadDays = SweepLeadDays
	}

	patients, err := s.Store.ListPatients()
	if err != nil {
		return nil, fmt.Errorf("sweep: list patients: %w", err)
	}

	now := time.Now().UTC()
	findings := make([]Finding, 0, len(patients))
	var alertable []Finding
	for _, p := range patients {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f := Classify(p, asOf, leadDays)
		findings = append(findings, f)

		snap := store.Snapshot{PatientID: p.ID, ComputedAt: now, Status: f.Status, Result: f.Result}
		if err := s.Store.SaveSnapshot(snap); err != nil {
			s.Log.Error().Err(err).Str("patient_id", p.ID).Msg("snapshot save failed")
		}
		if f.Alertable() {
			alertable = append(alertable, f)
		}
	}

	s.Log.Info().
		Str("as_of", asOf.ISO()).
		Int("patients", len(findings)).
		Int("alertable", len(alertable)).
		Msg("sweep complete")

	if len(alertable) > 0 && s.Notifier != nil {
		if err := s.Notifier.NotifyFindings(ctx, asOf, alertable); err != nil {
			return findings, fmt.Errorf("sweep: notify: %w", err)
		}
	}
	return findings, nil
}

// Summary is the rollup shape served by the report endpoint.
type Summary struct {
	AsOf     string         `json:"as_of"`
	Counts   map[string]int `json:"counts"`
	Findings []Finding      `json:"findings"`
}

func Summarize(asOf caldate.Date, findings []Finding) Summary {
	counts := map[string]int{
		StatusExcluded: 0,
		StatusOK:       0,
		StatusAtRisk:   0,
		StatusOverdue:  0,
	}
	for _, f := range findings {
		counts[f.Status]++
	}
	return Summary{AsOf: asOf.ISO(), Counts: counts, Findings: findings}
}
