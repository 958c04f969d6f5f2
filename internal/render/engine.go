package render

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/carebridge/hospicetrack/internal/doctemplate"
	"github.com/carebridge/hospicetrack/internal/mergedata"
)

// Layout constants, in points. The bottom reserve is the safety margin an
// ordinary section must clear before it may start on the current page; a
// signature block reserves room for all of its rows because a signature line
// and its date line are never split across pages.
const (
	ordinaryBottomReserve = 150.0
	sigRowHeight          = 40.0
	sigReserveBuffer      = 80.0

	infoBoxPad     = 20.0
	infoRowHeight  = 22.0
	kvRowHeight    = 22.0
	defaultFont    = 10.0
	captionFont    = 9.0
	footerFont     = 8.0
	footerOffset   = 36.0
	headerRuleGap  = 8.0
	fieldBoxPad    = 10.0
	sigLineWidth   = 220.0
	sigDateOffset  = 280.0
	sigDateWidth   = 100.0
	lineHeightMult = 1.45
)

var placeholderRe = regexp.MustCompile(`\{\{([A-Za-z0-9_]+)\}\}`)

// Engine renders a TemplateModel against a merge context into paginated
// output. It is stateless between calls; per-render cursor state lives in a
// renderState owned by a single Render invocation, so concurrent renders
// are independent.
type Engine struct {
	log zerolog.Logger
}

func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{log: log}
}

// renderState tracks the cursor for one render call.
type renderState struct {
	page   int
	y      float64
	pageW  float64
	pageH  float64
	margin float64
}

func (st *renderState) contentWidth() float64 { return st.pageW - 2*st.margin }

func (st *renderState) newPage(c Canvas) {
	c.AddPage()
	st.page++
	st.y = st.margin
}

// Render produces the PDF bytes for one document.
func (e *Engine) Render(tpl *doctemplate.TemplateModel, ctx mergedata.Context) ([]byte, error) {
	c := NewPDFCanvas(tpl.Layout)
	if err := e.RenderTo(c, tpl, ctx); err != nil {
		return nil, err
	}
	return c.Output()
}

// RenderTo drives an arbitrary canvas through the layout state machine:
// header once at document start, each section with a page-break decision
// evaluated before it, footer once on the final page. Sections with an
// unknown type are skipped with a warning; a bad section never aborts the
// document.
func (e *Engine) RenderTo(c Canvas, tpl *doctemplate.TemplateModel, ctx mergedata.Context) error {
	st := &renderState{
		pageW:  tpl.Layout.PageWidth,
		pageH:  tpl.Layout.PageHeight,
		margin: tpl.Layout.Margin,
	}
	st.newPage(c)

	e.renderHeader(c, st, tpl.Header, ctx)

	for i, sec := range tpl.Sections {
		if !sec.Type.Known() {
			e.log.Warn().
				Str("template", tpl.Name).
				Int("section", i).
				Str("type", string(sec.Type)).
				Msg("skipping unrecognized section type")
			continue
		}
		if breakNeeded(st, sec) {
			st.newPage(c)
		}
		e.renderSection(c, st, sec, ctx)
	}

	e.renderFooter(c, st, tpl.Footer, ctx)
	return nil
}

// breakNeeded applies the page-break transition rule before a section is
// rendered. Ordinary sections use the fixed bottom reserve; signature
// blocks reserve proportionally to their signer count so the whole block
// lands on one page.
func breakNeeded(st *renderState, sec doctemplate.Section) bool {
	reserve := ordinaryBottomReserve
	if sec.Type == doctemplate.SectionSignatureBlock {
		reserve = float64(len(sec.Signers))*sigRowHeight + sigReserveBuffer
	}
	return st.y > st.pageH-reserve
}

// substitute resolves {{KEY}} tokens from the merge context. Unresolved
// tokens stay literal in the output: a visible failure that a reviewer will
// notice, rather than silently blanked data.
func substitute(ctx mergedata.Context, s string) string {
	return placeholderRe.ReplaceAllStringFunc(s, func(tok string) string {
		key := tok[2 : len(tok)-2]
		if v, ok := ctx.Lookup(key); ok {
			return v
		}
		return tok
	})
}

func (e *Engine) renderSection(c Canvas, st *renderState, sec doctemplate.Section, ctx mergedata.Context) {
	switch sec.Type {
	case doctemplate.SectionTitle:
		e.renderTitle(c, st, sec, ctx)
	case doctemplate.SectionParagraph:
		e.renderParagraph(c, st, sec, ctx)
	case doctemplate.SectionPatientInfo:
		e.renderPatientInfo(c, st, sec, ctx)
	case doctemplate.SectionBenefitPeriod, doctemplate.SectionAttendingPhysician:
		e.renderKeyValueRows(c, st, sec, ctx)
	case doctemplate.SectionField:
		e.renderField(c, st, sec, ctx)
	case doctemplate.SectionSignatureBlock:
		e.renderSignatureBlock(c, st, sec)
	}
}

func (e *Engine) renderHeader(c Canvas, st *renderState, h doctemplate.Header, ctx mergedata.Context) {
	if h.Title == "" && h.Subtitle == "" {
		return
	}
	if h.Title != "" {
		c.SetFont(13, true, false)
		title := substitute(ctx, h.Title)
		c.Text(st.pageW/2-c.TextWidth(title)/2, st.y+13, title)
		st.y += 13 * lineHeightMult
	}
	if h.Subtitle != "" {
		c.SetFont(captionFont, false, false)
		sub := substitute(ctx, h.Subtitle)
		c.Text(st.pageW/2-c.TextWidth(sub)/2, st.y+captionFont, sub)
		st.y += captionFont * lineHeightMult
	}
	st.y += headerRuleGap
	c.Line(st.margin, st.y, st.pageW-st.margin, st.y)
	st.y += headerRuleGap * 2
}

func (e *Engine) renderFooter(c Canvas, st *renderState, f doctemplate.Footer, ctx mergedata.Context) {
	if f.Text == "" {
		return
	}
	c.SetFont(footerFont, false, false)
	text := substitute(ctx, f.Text)
	c.Text(st.pageW/2-c.TextWidth(text)/2, st.pageH-footerOffset, text)
}

func (e *Engine) renderTitle(c Canvas, st *renderState, sec doctemplate.Section, ctx mergedata.Context) {
	size := sec.Style.FontSize
	if size <= 0 {
		size = 14
	}
	c.SetFont(size, sec.Style.Bold, sec.Style.Italic)
	text := substitute(ctx, sec.Text)
	c.Text(alignX(c, st, text, sec.Style.Align), st.y+size, text)
	st.y += size*lineHeightMult + sec.Style.SpaceAfter
}

func (e *Engine) renderParagraph(c Canvas, st *renderState, sec doctemplate.Section, ctx mergedata.Context) {
	size := sec.Style.FontSize
	if size <= 0 {
		size = defaultFont
	}
	c.SetFont(size, sec.Style.Bold, sec.Style.Italic)
	lineH := size * lineHeightMult
	for _, line := range wrapText(c, substitute(ctx, sec.Text), st.contentWidth()) {
		// Long paragraphs flow across pages line by line; this is the one
		// internal split the layout invariant allows.
		if st.y+lineH > st.pageH-st.margin {
			st.newPage(c)
			c.SetFont(size, sec.Style.Bold, sec.Style.Italic)
		}
		c.Text(alignX(c, st, line, sec.Style.Align), st.y+size, line)
		st.y += lineH
	}
	st.y += sec.Style.SpaceAfter
}

// patientInfoBoxHeight computes the bordered grid height for a field count:
// two columns, one 22pt row per pair, plus 20pt of padding.
func patientInfoBoxHeight(fieldCount int) float64 {
	rows := (fieldCount + 1) / 2
	return infoBoxPad + float64(rows)*infoRowHeight
}

func (e *Engine) renderPatientInfo(c Canvas, st *renderState, sec doctemplate.Section, ctx mergedata.Context) {
	if sec.Label != "" {
		c.SetFont(captionFont, true, false)
		c.Text(st.margin, st.y+captionFont, sec.Label)
		st.y += captionFont * lineHeightMult
	}

	boxH := patientInfoBoxHeight(len(sec.Fields))
	c.Rect(st.margin, st.y, st.contentWidth(), boxH)

	colW := st.contentWidth() / 2
	for i, f := range sec.Fields {
		col := i % 2
		row := i / 2
		x := st.margin + 10 + float64(col)*colW
		y := st.y + infoBoxPad + float64(row)*infoRowHeight - 6

		c.SetFont(defaultFont, true, false)
		label := f.Label + ": "
		c.Text(x, y, label)
		c.SetFont(defaultFont, false, false)
		c.Text(x+c.TextWidth(label)+2, y, substitute(ctx, "{{"+f.Key+"}}"))
	}
	st.y += boxH + sec.Style.SpaceAfter
}

func (e *Engine) renderKeyValueRows(c Canvas, st *renderState, sec doctemplate.Section, ctx mergedata.Context) {
	if sec.Label != "" {
		c.SetFont(captionFont, true, false)
		c.Text(st.margin, st.y+captionFont, sec.Label)
		st.y += captionFont * lineHeightMult
	}
	for _, f := range sec.Fields {
		c.SetFont(defaultFont, true, false)
		c.Text(st.margin, st.y+defaultFont, f.Label)
		c.SetFont(defaultFont, false, false)
		c.Text(st.margin+170, st.y+defaultFont, substitute(ctx, "{{"+f.Key+"}}"))
		st.y += kvRowHeight
	}
	st.y += sec.Style.SpaceAfter
}

func (e *Engine) renderField(c Canvas, st *renderState, sec doctemplate.Section, ctx mergedata.Context) {
	if sec.Label != "" {
		c.SetFont(captionFont, true, false)
		c.Text(st.margin, st.y+captionFont, sec.Label)
		st.y += captionFont * lineHeightMult
	}

	content, _ := ctx.Lookup(sec.FieldName)
	if strings.TrimSpace(content) == "" {
		// Blank clinical fields must be visually obvious, never silently
		// omitted.
		content = "[No content provided]"
	}

	c.SetFont(defaultFont, false, false)
	lineH := defaultFont * lineHeightMult
	lines := wrapText(c, content, st.contentWidth()-2*fieldBoxPad)

	boxH := float64(len(lines))*lineH + 2*fieldBoxPad
	if boxH < sec.MinHeight {
		boxH = sec.MinHeight
	}
	c.Rect(st.margin, st.y, st.contentWidth(), boxH)
	for i, line := range lines {
		c.Text(st.margin+fieldBoxPad, st.y+fieldBoxPad+float64(i)*lineH+defaultFont-2, line)
	}
	st.y += boxH + sec.Style.SpaceAfter
}

// renderSignatureBlock draws one row per signer: signature line with the
// role label beneath it, and an adjacent date line. The block is atomic;
// breakNeeded has already guaranteed it fits on the current page.
func (e *Engine) renderSignatureBlock(c Canvas, st *renderState, sec doctemplate.Section) {
	for _, signer := range sec.Signers {
		lineY := st.y + 20
		c.Line(st.margin, lineY, st.margin+sigLineWidth, lineY)
		c.Line(st.margin+sigDateOffset, lineY, st.margin+sigDateOffset+sigDateWidth, lineY)

		c.SetFont(footerFont, false, false)
		c.Text(st.margin, lineY+10, signer)
		c.Text(st.margin+sigDateOffset, lineY+10, "Date")

		st.y += sigRowHeight
	}
	st.y += sec.Style.SpaceAfter
}

func alignX(c Canvas, st *renderState, text, align string) float64 {
	switch align {
	case "center":
		return st.pageW/2 - c.TextWidth(text)/2
	case "right":
		return st.pageW - st.margin - c.TextWidth(text)
	default:
		return st.margin
	}
}

// wrapText splits text into lines no wider than width, breaking greedily on
// spaces. Words wider than the line stand alone rather than being cut.
func wrapText(c Canvas, text string, width float64) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			if c.TextWidth(line+" "+w) > width {
				lines = append(lines, line)
				line = w
				continue
			}
			line += " " + w
		}
		lines = append(lines, line)
	}
	return lines
}
