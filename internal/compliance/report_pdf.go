package compliance

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// ReportRenderer turns report markdown into styled HTML and prints it to
// PDF through headless Chromium. Clinical documents go through the layout
// engine instead; this path is for the weekly rollup only, where tabular
// GFM output matters more than deterministic placement.
type ReportRenderer struct {
	chromePath string
}

func NewReportRenderer() *ReportRenderer {
	return &ReportRenderer{chromePath: detectChromePath()}
}

// HTML converts report markdown into a standalone HTML document. It is
// exposed separately so the weekly-report binary can emit HTML without a
// Chromium install.
func (r *ReportRenderer) HTML(markdown string) (string, error) {
	var content strings.Builder
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := md.Convert([]byte(markdown), &content); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}
	return "<!doctype html><html><head><meta charset='utf-8'><title>Compliance Report</title>" +
		"<style>" + reportCSS + "</style></head><body><div class='report'>" +
		content.String() +
		"</div></body></html>", nil
}

func (r *ReportRenderer) RenderPDF(ctx context.Context, markdown string) ([]byte, error) {
	htmlDoc, err := r.HTML(markdown)
	if err != nil {
		return nil, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	}
	if r.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(r.chromePath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(timeoutCtx, append(chromedp.DefaultExecAllocatorOptions[:], opts...)...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	var pdf []byte
	dataURL := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(htmlDoc))
	if err := chromedp.Run(taskCtx,
		chromedp.Navigate(dataURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			footer := `<div style="width:100%;text-align:center;font-size:9px;color:#666;">` +
				`Page <span class="pageNumber"></span> of <span class="totalPages"></span></div>`
			out, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithDisplayHeaderFooter(true).
				WithHeaderTemplate(`<div></div>`).
				WithFooterTemplate(footer).
				WithPaperWidth(8.5).
				WithPaperHeight(11).
				WithMarginTop(0.5).
				WithMarginBottom(0.75).
				WithMarginLeft(0.5).
				WithMarginRight(0.5).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = out
			return nil
		}),
	); err != nil {
		return nil, err
	}
	return pdf, nil
}

const reportCSS = `
body{font-family:Helvetica,Arial,sans-serif;color:#1c1917;margin:0;padding:0.6rem;}
.report{max-width:900px;margin:0 auto;}
h1{font-size:1.4rem;border-bottom:2px solid #0f766e;padding-bottom:0.3rem;}
h2{font-size:1.05rem;color:#0f766e;margin-top:1.4rem;}
table{width:100%;border-collapse:collapse;font-size:0.8rem;margin:0.5rem 0;}
th,td{border:1px solid #a8a29e;padding:0.35rem 0.45rem;text-align:left;vertical-align:top;}
thead th{background:#f1f5f9;font-weight:700;}
li{margin:0.15rem 0;}
@media print{ @page{size:letter;margin:12mm;} }
`

func detectChromePath() string {
	candidates := []string{
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/usr/bin/google-chrome",
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
