package dashboard

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/fish-not-phish/pixurebyte/internal/poller"
)

type pageData struct {
	Handle  poller.ScanHandle
	URL     string
	Refresh int
}

const layout = `{{ define "head" }}<!DOCTYPE html>
<html lang="en"><head><meta charset="utf-8">
{{ if .Refresh }}<meta http-equiv="refresh" content="{{ .Refresh }}">{{ end }}
<title>{{ template "title" . }}</title>
<style>body{font-family:-apple-system,"Segoe UI",Roboto,sans-serif;margin:3rem;color:#1f2933}.muted{color:#7b8794}</style>
</head><body>{{ end }}`

var processingPage = template.Must(template.New("processing").Parse(layout + `
{{ define "title" }}Scanning…{{ end }}
{{ template "head" . }}
<h1>Scan in progress</h1>
<p>Scan <code>{{ .Handle.ScanID }}</code> is still running. This page refreshes every {{ .Refresh }} seconds.</p>
</body></html>`))

var failedPage = template.Must(template.New("failed").Parse(layout + `
{{ define "title" }}Scan failed{{ end }}
{{ template "head" . }}
<h1>Scan failed</h1>
<p>The scan of <strong>{{ .URL }}</strong> could not be completed.</p>
<p class="muted">Scan {{ .Handle.ScanID }}</p>
</body></html>`))

func (s *Server) renderPage(w http.ResponseWriter, code int, t *template.Template, data pageData) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		s.log.Errorw("render page", "page", t.Name(), "error", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(buf.Bytes())
}
