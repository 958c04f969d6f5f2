package doctemplate

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/carebridge/hospicetrack/internal/mergedata"
)

// SectionType tags the declarative section variants a template may contain.
type SectionType string

const (
	SectionTitle              SectionType = "title"
	SectionParagraph          SectionType = "paragraph"
	SectionPatientInfo        SectionType = "patient_info"
	SectionBenefitPeriod      SectionType = "benefit_period"
	SectionAttendingPhysician SectionType = "attending_physician"
	SectionField              SectionType = "field"
	SectionSignatureBlock     SectionType = "signature_block"
)

// Known reports whether the layout engine has a renderer for this type.
// Unknown types are skipped at render time, not rejected at load time: a
// single bad section must not take the whole template down.
func (t SectionType) Known() bool {
	switch t {
	case SectionTitle, SectionParagraph, SectionPatientInfo, SectionBenefitPeriod,
		SectionAttendingPhysician, SectionField, SectionSignatureBlock:
		return true
	}
	return false
}

// Style is the per-section presentation record.
type Style struct {
	FontSize   float64 `json:"font_size,omitempty"`
	Bold       bool    `json:"bold,omitempty"`
	Italic     bool    `json:"italic,omitempty"`
	Align      string  `json:"align,omitempty"` // left, center, right
	SpaceAfter float64 `json:"space_after,omitempty"`
}

// FieldRef pairs a printed label with the merge-context key that supplies
// its value.
type FieldRef struct {
	Label string `json:"label"`
	Key   string `json:"key"`
}

// Section is one typed block of a template. Only the parameters relevant to
// its Type are consulted.
type Section struct {
	Type SectionType `json:"type"`

	// Text is the heading for title sections and the {{KEY}}-bearing body
	// for paragraphs.
	Text string `json:"text,omitempty"`

	// Label captions patient_info and field boxes.
	Label string `json:"label,omitempty"`

	// Fields drives the label/value grid of patient_info sections and the
	// key-value rows of benefit_period and attending_physician sections.
	Fields []FieldRef `json:"fields,omitempty"`

	// FieldName is the merge key a field section draws its content from.
	FieldName string `json:"field_name,omitempty"`

	// MinHeight is the minimum box height of a field section, in points.
	MinHeight float64 `json:"min_height,omitempty"`

	// Signers are the ordered signer roles of a signature_block.
	Signers []string `json:"signers,omitempty"`

	Style Style `json:"style,omitempty"`
}

// Layout fixes the page geometry. Points throughout.
type Layout struct {
	PageWidth  float64 `json:"page_width"`
	PageHeight float64 `json:"page_height"`
	Margin     float64 `json:"margin"`
}

// LetterLayout is the default page geometry: US Letter with 54pt margins.
func LetterLayout() Layout {
	return Layout{PageWidth: 612, PageHeight: 792, Margin: 54}
}

// Header is emitted once at document start (not repeated per page).
type Header struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
}

// Footer is emitted once on the final page.
type Footer struct {
	Text string `json:"text,omitempty"`
}

// TemplateModel is the declarative description of one document: header,
// ordered sections, footer. It is authored configuration, immutable at
// render time.
type TemplateModel struct {
	Name         string                 `json:"name"`
	DocumentType mergedata.DocumentType `json:"document_type"`
	Layout       Layout                 `json:"layout"`
	Header       Header                 `json:"header"`
	Sections     []Section              `json:"sections"`
	Footer       Footer                 `json:"footer"`
}

// Load reads and validates a template file.
func Load(path string) (*TemplateModel, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	var tpl TemplateModel
	if err := json.Unmarshal(blob, &tpl); err != nil {
		return nil, fmt.Errorf("parse template %s: %w", path, err)
	}
	if err := tpl.Validate(); err != nil {
		return nil, fmt.Errorf("template %s: %w", path, err)
	}
	return &tpl, nil
}

// Validate checks the template's structure and each known section's
// type-specific parameters. It fills the default layout when none is given.
// Unknown section types pass validation; the engine warns and skips them.
func (t *TemplateModel) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("template name is required")
	}
	if !t.DocumentType.Valid() {
		return fmt.Errorf("unknown document type %q", t.DocumentType)
	}
	if len(t.Sections) == 0 {
		return fmt.Errorf("template has no sections")
	}
	if t.Layout.PageWidth <= 0 || t.Layout.PageHeight <= 0 {
		t.Layout = LetterLayout()
	}
	if t.Layout.Margin <= 0 {
		t.Layout.Margin = LetterLayout().Margin
	}
	for i, sec := range t.Sections {
		if err := validateSection(sec); err != nil {
			return fmt.Errorf("section %d (%s): %w", i, sec.Type, err)
		}
	}
	return nil
}

func validateSection(sec Section) error {
	switch sec.Type {
	case SectionTitle:
		if sec.Text == "" {
			return fmt.Errorf("title text is required")
		}
	case SectionParagraph:
		if sec.Text == "" {
			return fmt.Errorf("paragraph text is required")
		}
	case SectionPatientInfo, SectionBenefitPeriod, SectionAttendingPhysician:
		if len(sec.Fields) == 0 {
			return fmt.Errorf("at least one field is required")
		}
		for _, f := range sec.Fields {
			if f.Key == "" {
				return fmt.Errorf("field %q has no merge key", f.Label)
			}
		}
	case SectionField:
		if sec.FieldName == "" {
			return fmt.Errorf("field_name is required")
		}
	case SectionSignatureBlock:
		if len(sec.Signers) == 0 {
			return fmt.Errorf("at least one signer is required")
		}
	}
	return nil
}
