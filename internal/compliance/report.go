package compliance

import (
	"fmt"
	"sort"
	"strings"

	"github.com/carebridge/hospicetrack/internal/caldate"
)

// ReportLeadDays is the notify window for the weekly report. It is
// tighter than the sweep window so the report only lists patients whose
// recert work is genuinely imminent.
const ReportLeadDays = 10

// BuildReportMarkdown renders the weekly compliance report from a set of
// findings classified with ReportLeadDays.
func BuildReportMarkdown(asOf caldate.Date, findings []Finding) string {
	sum := Summarize(asOf, findings)

	var b strings.Builder
	fmt.Fprintf(&b, "# Weekly Hospice Compliance Report\n\n")
	fmt.Fprintf(&b, "- As of: %s\n", asOf.Format())
	fmt.Fprintf(&b, "- Census: %d patients\n\n", len(findings))

	fmt.Fprintf(&b, "## Summary\n\n")
	fmt.Fprintf(&b, "| Status | Count |\n|---|---|\n")
	fmt.Fprintf(&b, "| Overdue | %d |\n", sum.Counts[StatusOverdue])
	fmt.Fprintf(&b, "| At risk | %d |\n", sum.Counts[StatusAtRisk])
	fmt.Fprintf(&b, "| On track | %d |\n", sum.Counts[StatusOK])
	fmt.Fprintf(&b, "| No admission date | %d |\n\n", sum.Counts[StatusExcluded])

	appendStatusSection(&b, "Overdue Recertifications", findings, StatusOverdue,
		"No overdue recertifications.")
	appendStatusSection(&b, "Recertifications Due Soon", findings, StatusAtRisk,
		"No recertifications due within the notice window.")
	appendF2FSection(&b, findings)
	appendExcludedSection(&b, findings)

	return b.String()
}

func appendStatusSection(b *strings.Builder, title string, findings []Finding, status, emptyLine string) {
	fmt.Fprintf(b, "## %s\n\n", title)
	rows := filterStatus(findings, status)
	if len(rows) == 0 {
		fmt.Fprintf(b, "%s\n\n", emptyLine)
		return
	}
	fmt.Fprintf(b, "| Patient | MRN | Period | Cert End | Days Left |\n|---|---|---|---|---|\n")
	for _, f := range rows {
		fmt.Fprintf(b, "| %s | %s | %s | %s | %d |\n",
			f.Patient.FullName(), orDash(f.Patient.MRN),
			f.Result.PeriodName, f.Result.CertEndDate.Format(), f.Result.DaysUntilCertEnd)
	}
	b.WriteString("\n")
}

func appendF2FSection(b *strings.Builder, findings []Finding) {
	fmt.Fprintf(b, "## Outstanding Face-to-Face Encounters\n\n")
	var rows []Finding
	for _, f := range findings {
		if f.F2FOverdue {
			rows = append(rows, f)
		}
	}
	if len(rows) == 0 {
		fmt.Fprintf(b, "All required face-to-face encounters are documented.\n\n")
		return
	}
	sortByUrgency(rows)
	fmt.Fprintf(b, "| Patient | Period | Reason | Cert End |\n|---|---|---|---|\n")
	for _, f := range rows {
		reason := "3rd+ benefit period"
		if f.Result.IsReadmission && !f.Result.IsInSixtyDayPeriod {
			reason = "readmission"
		}
		fmt.Fprintf(b, "| %s | %s | %s | %s |\n",
			f.Patient.FullName(), f.Result.PeriodName, reason, f.Result.CertEndDate.Format())
	}
	b.WriteString("\n")
}

func appendExcludedSection(b *strings.Builder, findings []Finding) {
	rows := filterStatus(findings, StatusExcluded)
	if len(rows) == 0 {
		return
	}
	fmt.Fprintf(b, "## Missing Admission Dates\n\n")
	fmt.Fprintf(b, "These patients are excluded from compliance tracking until an admission date is recorded:\n\n")
	for _, f := range rows {
		fmt.Fprintf(b, "- %s (%s)\n", f.Patient.FullName(), orDash(f.Patient.MRN))
	}
	b.WriteString("\n")
}

func filterStatus(findings []Finding, status string) []Finding {
	var out []Finding
	for _, f := range findings {
		if f.Status == status {
			out = append(out, f)
		}
	}
	sortByUrgency(out)
	return out
}

// sortByUrgency orders findings the way a reviewer works the list: fewest
// days remaining first, then by name for a stable report.
func sortByUrgency(rows []Finding) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Result != nil && b.Result != nil && a.Result.DaysUntilCertEnd != b.Result.DaysUntilCertEnd {
			return a.Result.DaysUntilCertEnd < b.Result.DaysUntilCertEnd
		}
		return a.Patient.FullName() < b.Patient.FullName()
	})
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
