package doctemplate

import "github.com/carebridge/hospicetrack/internal/mergedata"

// Builtin returns the stock template for a document type. Organizations can
// override these with JSON template files; the stock set keeps a fresh
// install able to generate every supported document.
func Builtin(dt mergedata.DocumentType) (*TemplateModel, bool) {
	tpl, ok := builtinTemplates[dt]
	if !ok {
		return nil, false
	}
	cp := tpl
	cp.Sections = append([]Section(nil), tpl.Sections...)
	return &cp, true
}

var patientInfoFields = []FieldRef{
	{Label: "Patient", Key: "PATIENT_NAME"},
	{Label: "MRN", Key: "MRN"},
	{Label: "Date of Birth", Key: "DATE_OF_BIRTH"},
	{Label: "Admission Date", Key: "ADMISSION_DATE"},
	{Label: "Diagnosis", Key: "DIAGNOSIS"},
	{Label: "Attending", Key: "ATTENDING_PHYSICIAN"},
}

var benefitPeriodFields = []FieldRef{
	{Label: "Benefit Period", Key: "BENEFIT_PERIOD"},
	{Label: "Days Into Period", Key: "DAYS_INTO_PERIOD"},
	{Label: "Certification Ends", Key: "CERT_END_DATE"},
	{Label: "Face-to-Face Required", Key: "F2F_REQUIRED"},
}

var builtinTemplates = map[mergedata.DocumentType]TemplateModel{
	mergedata.DocTypeCert: {
		Name:         "Certification of Terminal Illness",
		DocumentType: mergedata.DocTypeCert,
		Layout:       LetterLayout(),
		Header:       Header{Title: "{{ORG_NAME}}", Subtitle: "{{ORG_ADDRESS}}  |  {{ORG_PHONE}}"},
		Sections: []Section{
			{Type: SectionTitle, Text: "Certification of Terminal Illness", Style: Style{FontSize: 16, Bold: true, Align: "center", SpaceAfter: 14}},
			{Type: SectionPatientInfo, Label: "Patient Information", Fields: patientInfoFields, Style: Style{SpaceAfter: 14}},
			{Type: SectionBenefitPeriod, Label: "Benefit Period", Fields: benefitPeriodFields, Style: Style{SpaceAfter: 14}},
			{Type: SectionParagraph, Text: "{{CERT_STATEMENT}}", Style: Style{SpaceAfter: 10}},
			{Type: SectionParagraph, Text: "Certification period: {{CERT_PERIOD_RANGE}}.", Style: Style{SpaceAfter: 18}},
			{Type: SectionField, Label: "Clinical Findings Supporting Terminal Prognosis", FieldName: "NARRATIVE", MinHeight: 120, Style: Style{SpaceAfter: 18}},
			{Type: SectionSignatureBlock, Signers: []string{"Attending Physician", "Hospice Medical Director"}},
		},
		Footer: Footer{Text: "Generated by {{ORG_NAME}} on {{GENERATED_DATE}} — retain per Medicare Conditions of Participation."},
	},
	mergedata.DocTypeFaceToFace: {
		Name:         "Face-to-Face Encounter Attestation",
		DocumentType: mergedata.DocTypeFaceToFace,
		Layout:       LetterLayout(),
		Header:       Header{Title: "{{ORG_NAME}}", Subtitle: "{{ORG_ADDRESS}}  |  {{ORG_PHONE}}"},
		Sections: []Section{
			{Type: SectionTitle, Text: "Face-to-Face Encounter Attestation", Style: Style{FontSize: 16, Bold: true, Align: "center", SpaceAfter: 14}},
			{Type: SectionPatientInfo, Label: "Patient Information", Fields: patientInfoFields, Style: Style{SpaceAfter: 14}},
			{Type: SectionBenefitPeriod, Label: "Encounter Obligation", Fields: []FieldRef{
				{Label: "Benefit Period", Key: "BENEFIT_PERIOD"},
				{Label: "Reason", Key: "F2F_REASON"},
				{Label: "Encounter Due By", Key: "F2F_DUE_DATE"},
				{Label: "Completed", Key: "F2F_COMPLETED"},
			}, Style: Style{SpaceAfter: 14}},
			{Type: SectionParagraph, Text: "{{F2F_STATEMENT}}", Style: Style{SpaceAfter: 10}},
			{Type: SectionField, Label: "Encounter Findings", FieldName: "NARRATIVE", MinHeight: 110, Style: Style{SpaceAfter: 18}},
			{Type: SectionSignatureBlock, Signers: []string{"Physician or Nurse Practitioner"}},
		},
		Footer: Footer{Text: "Generated by {{ORG_NAME}} on {{GENERATED_DATE}}."},
	},
	mergedata.DocTypeVisitNote: {
		Name:         "Clinical Visit Note",
		DocumentType: mergedata.DocTypeVisitNote,
		Layout:       LetterLayout(),
		Header:       Header{Title: "{{ORG_NAME}}", Subtitle: "Clinical Visit Note"},
		Sections: []Section{
			{Type: SectionTitle, Text: "Visit Note — {{VISIT_DATE}}", Style: Style{FontSize: 15, Bold: true, Align: "center", SpaceAfter: 12}},
			{Type: SectionPatientInfo, Label: "Patient Information", Fields: patientInfoFields, Style: Style{SpaceAfter: 12}},
			{Type: SectionAttendingPhysician, Label: "Care Team", Fields: []FieldRef{
				{Label: "Attending Physician", Key: "ATTENDING_PHYSICIAN"},
				{Label: "Visit Provider", Key: "VISIT_PROVIDER"},
				{Label: "Visit Date", Key: "VISIT_DATE"},
			}, Style: Style{SpaceAfter: 12}},
			{Type: SectionField, Label: "Narrative", FieldName: "NARRATIVE", MinHeight: 200, Style: Style{SpaceAfter: 18}},
			{Type: SectionSignatureBlock, Signers: []string{"Visit Provider"}},
		},
		Footer: Footer{Text: "Generated on {{GENERATED_DATE}}."},
	},
	mergedata.DocTypeBereavement: {
		Name:         "Bereavement Letter",
		DocumentType: mergedata.DocTypeBereavement,
		Layout:       LetterLayout(),
		Header:       Header{Title: "{{ORG_NAME}}", Subtitle: "{{ORG_ADDRESS}}"},
		Sections: []Section{
			{Type: SectionParagraph, Text: "{{TODAY}}", Style: Style{Align: "right", SpaceAfter: 20}},
			{Type: SectionParagraph, Text: "Dear family of {{PATIENT_NAME}},", Style: Style{SpaceAfter: 12}},
			{Type: SectionParagraph, Text: "{{NARRATIVE}}", Style: Style{SpaceAfter: 12}},
			{Type: SectionParagraph, Text: "Our bereavement team remains available to you in the months ahead. Please reach us at {{ORG_PHONE}} whenever you would like to talk.", Style: Style{SpaceAfter: 24}},
			{Type: SectionParagraph, Text: "With sympathy,", Style: Style{SpaceAfter: 8}},
			{Type: SectionParagraph, Text: "{{ORG_NAME}}"},
		},
		Footer: Footer{Text: "{{ORG_NAME}}  |  {{ORG_PHONE}}"},
	},
}
