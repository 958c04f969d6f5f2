package mergedata

import (
	"fmt"

	"github.com/carebridge/hospicetrack/internal/caldate"
	"github.com/carebridge/hospicetrack/internal/cti"
)

// extraField is one document-type-specific computed merge field.
type extraField struct {
	key   string
	value func(p Patient, res *cti.Result, visit Visit, today caldate.Date) string
}

// docTypeExtras maps each document type to the computed fields that apply
// only to it. Face-to-face encounter fields appear only on the F2F
// attestation; certification language only on the cert.
var docTypeExtras = map[DocumentType][]extraField{
	DocTypeCert: {
		{key: "CERT_STATEMENT", value: func(_ Patient, res *cti.Result, _ Visit, _ caldate.Date) string {
			return certStatement(res)
		}},
		{key: "CERT_PERIOD_RANGE", value: func(p Patient, res *cti.Result, _ Visit, _ caldate.Date) string {
			if res == nil {
				return "N/A"
			}
			start := p.AdmissionDate.AddDays(res.Period.StartDayOffset)
			return fmt.Sprintf("%s through %s", start.Format(), res.CertEndDate.Format())
		}},
	},
	DocTypeFaceToFace: {
		{key: "F2F_DUE_DATE", value: func(_ Patient, res *cti.Result, _ Visit, _ caldate.Date) string {
			if res == nil {
				return "N/A"
			}
			return res.CertEndDate.Format()
		}},
		{key: "F2F_REASON", value: func(_ Patient, res *cti.Result, _ Visit, _ caldate.Date) string {
			switch {
			case res == nil:
				return "N/A"
			case res.IsReadmission:
				return "Readmission to hospice care"
			case res.IsInSixtyDayPeriod:
				return fmt.Sprintf("Recertification for the %s benefit period", res.PeriodName)
			default:
				return "Not required"
			}
		}},
		{key: "F2F_STATEMENT", value: func(p Patient, res *cti.Result, _ Visit, _ caldate.Date) string {
			if res == nil {
				return "N/A"
			}
			return fmt.Sprintf(
				"I attest that I had a face-to-face encounter with %s on the date below, and that the "+
					"clinical findings of that encounter support a life expectancy of six months or less.",
				orNA(p.FullName()))
		}},
	},
	DocTypeVisitNote: {
		{key: "VISIT_DATE", value: func(_ Patient, _ *cti.Result, visit Visit, today caldate.Date) string {
			if !visit.VisitDate.IsZero() {
				return visit.VisitDate.Format()
			}
			return displayDate(today)
		}},
		{key: "VISIT_PROVIDER", value: func(_ Patient, _ *cti.Result, visit Visit, _ caldate.Date) string {
			return orNA(visit.Provider)
		}},
	},
	DocTypeBereavement: {},
}
