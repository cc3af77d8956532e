package utils

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fish-not-phish/pixurebyte/internal/schema"
)

func TestSaveResult(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2025, 9, 11, 13, 17, 22, 0, time.UTC)
	scan := schema.Scan{ScanID: "s1", URL: "https://example.com:8443/a?b=c", Status: schema.StatusComplete}

	file, err := SaveResult(scan, dir, at)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "example.com_8443_20250911_131722", "results.json"), file)

	raw, err := os.ReadFile(file)
	require.NoError(t, err)
	var got schema.Scan
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, scan, got)
}

func TestSafeName(t *testing.T) {
	assert.Equal(t, "a_b_c_d", safeName(`a/b\c:d`))
	assert.Equal(t, "s9", targetName(schema.Scan{ScanID: "s9"}))
	assert.Equal(t, "not a url", targetName(schema.Scan{URL: "not a url"}))
}
