package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fish-not-phish/pixurebyte/internal/config"
	reportpkg "github.com/fish-not-phish/pixurebyte/internal/report"
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "report",
		Short:   "Generate HTML/PDF report from a saved scan directory",
		Example: "pixure report --from ./reports/example.com_20250911_131722 --format html,pdf",
		RunE:    runReport,
	}

	cmd.Flags().String("from", "", "Scan result directory (must contain results.json)")
	cmd.Flags().String("format", "html,pdf", "Output formats: html,pdf,json (json just points to results.json)")

	_ = viper.BindPFlag("report.from", cmd.Flags().Lookup("from"))
	_ = viper.BindPFlag("report.format", cmd.Flags().Lookup("format"))
	return cmd
}

func runReport(cmd *cobra.Command, _ []string) error {
	from := viper.GetString("report.from")
	if from == "" {
		return errors.New("please provide --from pointing to the scan directory (with results.json)")
	}

	formats := strings.Split(viper.GetString("report.format"), ",")
	for i := range formats {
		formats[i] = strings.TrimSpace(strings.ToLower(formats[i]))
	}
	out := cmd.OutOrStdout()

	// Load the saved scan and render HTML
	scan, err := reportpkg.LoadScan(from)
	if err != nil {
		return err
	}
	view := reportpkg.BuildView(scan, reportpkg.Options{
		Now:        time.Now(),
		WindowDays: viper.GetInt(config.KeyWindowDays),
	})
	htmlPath, err := reportpkg.GenerateHTML(view, from)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "📝 HTML report: %s\n", htmlPath)

	// Optional PDF (Chromedp-based)
	if slices.Contains(formats, "pdf") {
		pdfPath, err := reportpkg.GeneratePDF(cmd.Context(), htmlPath)
		if err != nil {
			fmt.Fprintf(out, "⚠️  PDF generation failed: %v\n", err)
		} else {
			fmt.Fprintf(out, "📄 PDF report:  %s\n", pdfPath)
		}
	}

	// Optional JSON passthrough
	if slices.Contains(formats, "json") {
		fmt.Fprintf(out, "📦 JSON already exists at: %s\n", filepath.Join(from, "results.json"))
	}

	return nil
}
