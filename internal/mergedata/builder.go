package mergedata

import (
	"fmt"
	"strconv"

	"github.com/carebridge/hospicetrack/internal/caldate"
	"github.com/carebridge/hospicetrack/internal/cti"
)

// Context maps placeholder keys to display-ready strings. It is built fresh
// per document-generation request and never mutated afterwards. Every value
// is a string; absences resolve to "N/A" or "" here so the layout engine
// never handles missing data.
type Context map[string]string

// Build assembles the merge context in four layers, later layers overriding
// earlier ones by key:
//
//  1. base patient/organization identity fields,
//  2. computed compliance fields (nil res means the patient has no admission
//     date; the fields render as N/A),
//  3. document-type extras from the static table in doctypes.go,
//  4. visit-scoped custom data, which always wins.
func Build(p Patient, res *cti.Result, org Organization, visit Visit, docType DocumentType, today caldate.Date) Context {
	ctx := Context{}

	ctx["PATIENT_NAME"] = orNA(p.FullName())
	ctx["PATIENT_FIRST_NAME"] = p.FirstName
	ctx["PATIENT_LAST_NAME"] = p.LastName
	ctx["MRN"] = orNA(p.MRN)
	ctx["DATE_OF_BIRTH"] = displayDate(p.DateOfBirth)
	ctx["ADMISSION_DATE"] = displayDate(p.AdmissionDate)
	ctx["DIAGNOSIS"] = orNA(p.Diagnosis)
	ctx["ATTENDING_PHYSICIAN"] = orNA(p.AttendingPhysician)
	ctx["ORG_NAME"] = orNA(org.Name)
	ctx["ORG_ADDRESS"] = orNA(org.Address)
	ctx["ORG_PHONE"] = orNA(org.Phone)
	ctx["ORG_FAX"] = orNA(org.Fax)
	ctx["TODAY"] = displayDate(today)
	ctx["GENERATED_DATE"] = displayDate(today)

	applyComplianceFields(ctx, res)

	for _, extra := range docTypeExtras[docType] {
		ctx[extra.key] = extra.value(p, res, visit, today)
	}

	if visit.Provider != "" {
		ctx["VISIT_PROVIDER"] = visit.Provider
	}
	if !visit.VisitDate.IsZero() {
		ctx["VISIT_DATE"] = displayDate(visit.VisitDate)
	}
	if visit.Narrative != "" {
		ctx["NARRATIVE"] = visit.Narrative
	}
	for k, v := range visit.Custom {
		ctx[k] = v
	}

	return ctx
}

func applyComplianceFields(ctx Context, res *cti.Result) {
	if res == nil {
		for _, k := range []string{"BENEFIT_PERIOD", "BENEFIT_PERIOD_NUMBER", "DAYS_INTO_PERIOD",
			"CERT_END_DATE", "NOTIFY_DATE", "DAYS_UNTIL_CERT_END",
			"CERT_OVERDUE", "F2F_REQUIRED", "F2F_COMPLETED", "F2F_OVERDUE", "READMISSION"} {
			ctx[k] = "N/A"
		}
		return
	}
	ctx["BENEFIT_PERIOD"] = res.PeriodName
	ctx["BENEFIT_PERIOD_NUMBER"] = strconv.Itoa(res.Period.Number)
	ctx["DAYS_INTO_PERIOD"] = strconv.Itoa(res.DaysIntoPeriod)
	ctx["CERT_END_DATE"] = displayDate(res.CertEndDate)
	ctx["NOTIFY_DATE"] = displayDate(res.NotifyDate)
	ctx["DAYS_UNTIL_CERT_END"] = strconv.Itoa(res.DaysUntilCertEnd)
	ctx["CERT_OVERDUE"] = yesNo(res.IsOverdue)
	ctx["F2F_REQUIRED"] = yesNo(res.RequiresF2F)
	ctx["F2F_COMPLETED"] = yesNo(res.F2FCompleted)
	ctx["F2F_OVERDUE"] = yesNo(res.F2FOverdue)
	ctx["READMISSION"] = yesNo(res.IsReadmission)
}

// Lookup returns the value for key and whether it is present. Used by the
// layout engine's placeholder substitution.
func (c Context) Lookup(key string) (string, bool) {
	v, ok := c[key]
	return v, ok
}

func displayDate(d caldate.Date) string {
	if d.IsZero() {
		return "N/A"
	}
	return d.Format()
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func certStatement(res *cti.Result) string {
	if res == nil {
		return "N/A"
	}
	return fmt.Sprintf(
		"I certify that this patient is terminally ill with a life expectancy of six months or less "+
			"if the illness runs its normal course. This certification covers the %s benefit period "+
			"ending %s.", res.PeriodName, res.CertEndDate.Format())
}
