package mergedata

import (
	"strings"

	"github.com/carebridge/hospicetrack/internal/caldate"
	"github.com/carebridge/hospicetrack/internal/cti"
)

// DocumentType selects which document a template renders and which extra
// computed merge fields apply. It is a closed set; anything else is rejected
// at the API boundary.
type DocumentType string

const (
	DocTypeCert        DocumentType = "cert"
	DocTypeFaceToFace  DocumentType = "f2f"
	DocTypeVisitNote   DocumentType = "visit_note"
	DocTypeBereavement DocumentType = "bereavement"
)

func (t DocumentType) Valid() bool {
	switch t {
	case DocTypeCert, DocTypeFaceToFace, DocTypeVisitNote, DocTypeBereavement:
		return true
	}
	return false
}

// DocumentTypes lists every supported type, in display order.
func DocumentTypes() []DocumentType {
	return []DocumentType{DocTypeCert, DocTypeFaceToFace, DocTypeVisitNote, DocTypeBereavement}
}

// Patient is the normalized patient record as the generation pipeline sees
// it. Dates are already caldate values; callers run raw payloads through
// caldate.Normalize before constructing one.
type Patient struct {
	ID                    string       `json:"id"`
	OrgID                 string       `json:"org_id"`
	FirstName             string       `json:"first_name"`
	LastName              string       `json:"last_name"`
	MRN                   string       `json:"mrn"`
	DateOfBirth           caldate.Date `json:"date_of_birth"`
	AdmissionDate         caldate.Date `json:"admission_date"`
	StartingBenefitPeriod int          `json:"starting_benefit_period"`
	IsReadmission         bool         `json:"is_readmission"`
	F2FCompleted          bool         `json:"f2f_completed"`
	Diagnosis             string       `json:"diagnosis"`
	AttendingPhysician    string       `json:"attending_physician"`
}

// Facts extracts the fields the period calculator depends on.
func (p Patient) Facts() cti.Facts {
	return cti.Facts{
		AdmissionDate:         p.AdmissionDate,
		StartingBenefitPeriod: p.StartingBenefitPeriod,
		IsReadmission:         p.IsReadmission,
		F2FCompleted:          p.F2FCompleted,
	}
}

func (p Patient) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName))
}

type Organization struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Fax     string `json:"fax"`
	Email   string `json:"email"`
}

// Visit carries the transient visit-scoped data supplied at generation time.
// Its values always win over computed fields: they are the most specific,
// most recent input the system has.
type Visit struct {
	Provider  string            `json:"provider"`
	VisitDate caldate.Date      `json:"visit_date"`
	Narrative string            `json:"narrative"`
	Custom    map[string]string `json:"custom"`
}
