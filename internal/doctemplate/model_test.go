package doctemplate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/carebridge/hospicetrack/internal/mergedata"
)

func TestBuiltinTemplatesValidate(t *testing.T) {
	for _, dt := range mergedata.DocumentTypes() {
		tpl, ok := Builtin(dt)
		if !ok {
			t.Fatalf("no builtin template for %s", dt)
		}
		if err := tpl.Validate(); err != nil {
			t.Fatalf("builtin %s invalid: %v", dt, err)
		}
		if tpl.DocumentType != dt {
			t.Fatalf("builtin %s has wrong document type %s", dt, tpl.DocumentType)
		}
	}
	if _, ok := Builtin(mergedata.DocumentType("nope")); ok {
		t.Fatal("unknown type must have no builtin")
	}
}

func TestBuiltinReturnsCopy(t *testing.T) {
	a, _ := Builtin(mergedata.DocTypeCert)
	a.Sections[0].Text = "mutated"
	b, _ := Builtin(mergedata.DocTypeCert)
	if b.Sections[0].Text == "mutated" {
		t.Fatal("Builtin must not share section slices between callers")
	}
}

func TestValidateRejectsBadSections(t *testing.T) {
	base := func() *TemplateModel {
		return &TemplateModel{
			Name:         "t",
			DocumentType: mergedata.DocTypeCert,
			Sections:     []Section{{Type: SectionTitle, Text: "T"}},
		}
	}

	cases := []struct {
		name   string
		mutate func(*TemplateModel)
	}{
		{"no name", func(m *TemplateModel) { m.Name = "" }},
		{"bad doc type", func(m *TemplateModel) { m.DocumentType = "bogus" }},
		{"no sections", func(m *TemplateModel) { m.Sections = nil }},
		{"empty title", func(m *TemplateModel) { m.Sections = []Section{{Type: SectionTitle}} }},
		{"signature without signers", func(m *TemplateModel) {
			m.Sections = []Section{{Type: SectionSignatureBlock}}
		}},
		{"field without field name", func(m *TemplateModel) {
			m.Sections = []Section{{Type: SectionField}}
		}},
		{"grid without fields", func(m *TemplateModel) {
			m.Sections = []Section{{Type: SectionPatientInfo, Label: "x"}}
		}},
		{"grid field without key", func(m *TemplateModel) {
			m.Sections = []Section{{Type: SectionPatientInfo, Fields: []FieldRef{{Label: "x"}}}}
		}},
	}
	for _, tc := range cases {
		m := base()
		tc.mutate(m)
		if err := m.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestValidateToleratesUnknownSectionType(t *testing.T) {
	m := &TemplateModel{
		Name:         "t",
		DocumentType: mergedata.DocTypeCert,
		Sections: []Section{
			{Type: SectionType("holograph")},
			{Type: SectionTitle, Text: "T"},
		},
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("unknown section type must not fail validation: %v", err)
	}
}

func TestValidateFillsDefaultLayout(t *testing.T) {
	m := &TemplateModel{Name: "t", DocumentType: mergedata.DocTypeCert, Sections: []Section{{Type: SectionTitle, Text: "T"}}}
	if err := m.Validate(); err != nil {
		t.Fatal(err)
	}
	if m.Layout != LetterLayout() {
		t.Fatalf("layout not defaulted: %+v", m.Layout)
	}
}

func TestLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cert.json")
	blob := `{
		"name": "Org Cert",
		"document_type": "cert",
		"header": {"title": "{{ORG_NAME}}"},
		"sections": [
			{"type": "title", "text": "Certification", "style": {"bold": true, "align": "center"}},
			{"type": "signature_block", "signers": ["Attending Physician"]}
		],
		"footer": {"text": "{{GENERATED_DATE}}"}
	}`
	if err := os.WriteFile(path, []byte(blob), 0o644); err != nil {
		t.Fatal(err)
	}
	tpl, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if tpl.Name != "Org Cert" || len(tpl.Sections) != 2 {
		t.Fatalf("unexpected template: %+v", tpl)
	}
	if tpl.Layout.PageWidth != 612 {
		t.Fatalf("layout not defaulted on load: %+v", tpl.Layout)
	}

	if _, err := Load(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatal("missing file must error")
	}
	bad := filepath.Join(dir, "bad.json")
	_ = os.WriteFile(bad, []byte(`{"name":"x"}`), 0o644)
	if _, err := Load(bad); err == nil {
		t.Fatal("invalid template must error")
	}
}
