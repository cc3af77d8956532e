package utils

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/fish-not-phish/pixurebyte/internal/schema"
)

// SaveResult writes a scan record into <outputDir>/<host>_<timestamp>/results.json
// and returns the path of the file.
func SaveResult(scan schema.Scan, outputDir string, at time.Time) (string, error) {
	dir := filepath.Join(outputDir, safeName(targetName(scan))+"_"+at.Format("20060102_150405"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}

	file := filepath.Join(dir, "results.json")
	fh, err := os.Create(file)
	if err != nil {
		return "", fmt.Errorf("failed to create results.json: %w", err)
	}
	defer fh.Close()

	enc := json.NewEncoder(fh)
	enc.SetIndent("", "  ")
	if err := enc.Encode(scan); err != nil {
		return "", fmt.Errorf("failed to encode results: %w", err)
	}

	return file, nil
}

// targetName prefers the scanned host and falls back to the scan id.
func targetName(scan schema.Scan) string {
	if u, err := url.Parse(scan.URL); err == nil && u.Host != "" {
		return u.Host
	}
	if scan.URL != "" {
		return scan.URL
	}
	return scan.ScanID
}

// safeName replaces characters not safe for file paths
func safeName(s string) string {
	invalid := []rune{'/', '\\', ':', '*', '?', '"', '<', '>', '|'}
	rs := []rune(s)
	for i, r := range rs {
		for _, bad := range invalid {
			if r == bad {
				rs[i] = '_'
			}
		}
	}
	return string(rs)
}
