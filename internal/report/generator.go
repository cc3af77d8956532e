package report

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/sprig/v3"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/fish-not-phish/pixurebyte/internal/schema"
)

//go:embed templates/report.html.tmpl
var reportHTMLTemplate string

var reportTmpl = template.Must(
	template.New("report").
		Funcs(sprig.HtmlFuncMap()).
		Funcs(template.FuncMap{"clip": trimTo}).
		Parse(reportHTMLTemplate),
)

// ---------- Public API ----------

// LoadScan reads a scan record saved by utils.SaveResult.
func LoadScan(fromDir string) (schema.Scan, error) {
	var scan schema.Scan
	data, err := os.ReadFile(filepath.Join(fromDir, "results.json"))
	if err != nil {
		return scan, fmt.Errorf("read results.json: %w", err)
	}
	if err := json.Unmarshal(data, &scan); err != nil {
		return scan, fmt.Errorf("parse results.json: %w", err)
	}
	return scan, nil
}

// Render writes the HTML results page for v.
func Render(w io.Writer, v View) error {
	if err := reportTmpl.Execute(w, v); err != nil {
		return fmt.Errorf("execute template: %w", err)
	}
	return nil
}

func GenerateHTML(v View, outDir string) (string, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", fmt.Errorf("create out dir: %w", err)
	}

	var buf bytes.Buffer
	if err := Render(&buf, v); err != nil {
		return "", err
	}

	htmlPath := filepath.Join(outDir, "report.html")
	if err := os.WriteFile(htmlPath, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("write report.html: %w", err)
	}
	return htmlPath, nil
}

// GeneratePDF prints an HTML report to a PDF next to it using headless
// Chrome.
func GeneratePDF(ctx context.Context, htmlPath string) (string, error) {
	html, err := os.ReadFile(htmlPath)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", htmlPath, err)
	}
	pdf, err := PrintPDF(ctx, string(html))
	if err != nil {
		return "", err
	}
	pdfPath := strings.TrimSuffix(htmlPath, ".html") + ".pdf"
	if err := os.WriteFile(pdfPath, pdf, 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", pdfPath, err)
	}
	return pdfPath, nil
}

// PrintPDF loads html into a blank tab and returns the printed document.
func PrintPDF(ctx context.Context, html string) ([]byte, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	var pdf []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("chrome print: %w", err)
	}
	return pdf, nil
}
