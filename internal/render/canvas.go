package render

import (
	"bytes"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/carebridge/hospicetrack/internal/doctemplate"
)

// Canvas is the drawing surface the layout engine writes to. The engine owns
// all pagination and placement decisions; a Canvas only puts ink where it is
// told. Coordinates are points with the origin at the top-left of the page.
type Canvas interface {
	AddPage()
	SetFont(size float64, bold, italic bool)
	Text(x, y float64, s string)
	TextWidth(s string) float64
	Line(x1, y1, x2, y2 float64)
	Rect(x, y, w, h float64)
	Output() ([]byte, error)
}

type pdfCanvas struct {
	pdf *fpdf.Fpdf
}

// NewPDFCanvas builds the production canvas for the given page geometry.
// The creation date is pinned so that rendering the same inputs twice
// produces identical bytes.
func NewPDFCanvas(layout doctemplate.Layout) Canvas {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: layout.PageWidth, Ht: layout.PageHeight},
	})
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCreationDate(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC))
	pdf.SetLineWidth(0.6)
	pdf.SetFont("Helvetica", "", 10)
	return &pdfCanvas{pdf: pdf}
}

func (c *pdfCanvas) AddPage() {
	c.pdf.AddPage()
}

func (c *pdfCanvas) SetFont(size float64, bold, italic bool) {
	style := ""
	if bold {
		style += "B"
	}
	if italic {
		style += "I"
	}
	c.pdf.SetFont("Helvetica", style, size)
}

func (c *pdfCanvas) Text(x, y float64, s string) {
	c.pdf.Text(x, y, s)
}

func (c *pdfCanvas) TextWidth(s string) float64 {
	return c.pdf.GetStringWidth(s)
}

func (c *pdfCanvas) Line(x1, y1, x2, y2 float64) {
	c.pdf.Line(x1, y1, x2, y2)
}

func (c *pdfCanvas) Rect(x, y, w, h float64) {
	c.pdf.Rect(x, y, w, h, "D")
}

func (c *pdfCanvas) Output() ([]byte, error) {
	var buf bytes.Buffer
	if err := c.pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
