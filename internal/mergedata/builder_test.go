package mergedata

import (
	"testing"
	"time"

	"github.com/carebridge/hospicetrack/internal/caldate"
	"github.com/carebridge/hospicetrack/internal/cti"
)

func samplePatient() Patient {
	return Patient{
		ID:                 "p1",
		FirstName:          "Eleanor",
		LastName:           "Vance",
		MRN:                "MRN-4471",
		DateOfBirth:        caldate.New(1941, time.March, 12),
		AdmissionDate:      caldate.New(2024, time.January, 1),
		Diagnosis:          "End-stage COPD",
		AttendingPhysician: "Dr. Ruiz",
	}
}

func sampleOrg() Organization {
	return Organization{ID: "o1", Name: "Willow Creek Hospice", Address: "14 Main St", Phone: "555-0100"}
}

func computed(t *testing.T, p Patient, today caldate.Date) *cti.Result {
	t.Helper()
	res, ok := cti.Compute(p.Facts(), today, 14)
	if !ok {
		t.Fatal("expected a CTI result")
	}
	return &res
}

func TestBuildBaseAndComplianceLayers(t *testing.T) {
	p := samplePatient()
	today := caldate.New(2024, time.February, 15)
	ctx := Build(p, computed(t, p, today), sampleOrg(), Visit{}, DocTypeCert, today)

	want := map[string]string{
		"PATIENT_NAME":        "Eleanor Vance",
		"MRN":                 "MRN-4471",
		"ADMISSION_DATE":      "01/01/2024",
		"DATE_OF_BIRTH":       "03/12/1941",
		"ORG_NAME":            "Willow Creek Hospice",
		"BENEFIT_PERIOD":      "1st 90-Day",
		"DAYS_INTO_PERIOD":    "45",
		"CERT_OVERDUE":        "No",
		"F2F_REQUIRED":        "No",
		"TODAY":               "02/15/2024",
		"CERT_END_DATE":       "03/31/2024",
		"DAYS_UNTIL_CERT_END": "45",
	}
	for k, v := range want {
		if got := ctx[k]; got != v {
			t.Fatalf("%s: got %q want %q", k, got, v)
		}
	}
}

func TestBuildNoNullValues(t *testing.T) {
	// A patient with everything missing still produces display strings.
	today := caldate.New(2024, time.June, 1)
	ctx := Build(Patient{}, nil, Organization{}, Visit{}, DocTypeCert, today)
	for k, v := range ctx {
		if v == "" && k != "PATIENT_FIRST_NAME" && k != "PATIENT_LAST_NAME" {
			t.Fatalf("key %s resolved to empty string", k)
		}
	}
	if ctx["BENEFIT_PERIOD"] != "N/A" || ctx["CERT_END_DATE"] != "N/A" {
		t.Fatalf("excluded patient must show N/A compliance fields: %v", ctx)
	}
	if ctx["PATIENT_NAME"] != "N/A" {
		t.Fatalf("missing name: got %q", ctx["PATIENT_NAME"])
	}
}

func TestBuildDocTypeExtras(t *testing.T) {
	p := samplePatient()
	p.IsReadmission = true
	today := caldate.New(2024, time.January, 11)
	res := computed(t, p, today)

	certCtx := Build(p, res, sampleOrg(), Visit{}, DocTypeCert, today)
	if _, ok := certCtx["CERT_STATEMENT"]; !ok {
		t.Fatal("cert document must carry CERT_STATEMENT")
	}
	if _, ok := certCtx["F2F_REASON"]; ok {
		t.Fatal("cert document must not carry F2F fields")
	}

	f2fCtx := Build(p, res, sampleOrg(), Visit{}, DocTypeFaceToFace, today)
	if f2fCtx["F2F_REASON"] != "Readmission to hospice care" {
		t.Fatalf("F2F_REASON: %q", f2fCtx["F2F_REASON"])
	}
	if _, ok := f2fCtx["CERT_STATEMENT"]; ok {
		t.Fatal("f2f document must not carry CERT_STATEMENT")
	}
}

func TestBuildVisitDataAlwaysWins(t *testing.T) {
	p := samplePatient()
	today := caldate.New(2024, time.February, 1)
	visit := Visit{
		Provider:  "NP Okafor",
		VisitDate: caldate.New(2024, time.January, 30),
		Narrative: "Patient resting comfortably.",
		Custom:    map[string]string{"ATTENDING_PHYSICIAN": "Dr. Chen (covering)"},
	}
	ctx := Build(p, computed(t, p, today), sampleOrg(), visit, DocTypeVisitNote, today)

	if ctx["VISIT_PROVIDER"] != "NP Okafor" {
		t.Fatalf("VISIT_PROVIDER: %q", ctx["VISIT_PROVIDER"])
	}
	if ctx["VISIT_DATE"] != "01/30/2024" {
		t.Fatalf("visit date must override the computed default: %q", ctx["VISIT_DATE"])
	}
	if ctx["NARRATIVE"] != "Patient resting comfortably." {
		t.Fatalf("NARRATIVE: %q", ctx["NARRATIVE"])
	}
	if ctx["ATTENDING_PHYSICIAN"] != "Dr. Chen (covering)" {
		t.Fatalf("custom visit data must override base fields: %q", ctx["ATTENDING_PHYSICIAN"])
	}
}

func TestBuildVisitNoteDefaultsVisitDateToToday(t *testing.T) {
	p := samplePatient()
	today := caldate.New(2024, time.February, 1)
	ctx := Build(p, computed(t, p, today), sampleOrg(), Visit{}, DocTypeVisitNote, today)
	if ctx["VISIT_DATE"] != "02/01/2024" {
		t.Fatalf("VISIT_DATE: %q", ctx["VISIT_DATE"])
	}
}

func TestDocumentTypeValid(t *testing.T) {
	for _, dt := range DocumentTypes() {
		if !dt.Valid() {
			t.Fatalf("%s should be valid", dt)
		}
	}
	if DocumentType("discharge").Valid() {
		t.Fatal("unknown type must be invalid")
	}
}
