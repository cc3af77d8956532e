package report

import (
	"net"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/fish-not-phish/pixurebyte/internal/certs"
	"github.com/fish-not-phish/pixurebyte/internal/schema"
	"github.com/fish-not-phish/pixurebyte/internal/scripts"
)

// Options tunes BuildView.
type Options struct {
	Now        time.Time
	WindowDays int
	// Snapshot is the raw HTML the scan stored. It is only parsed when the
	// record itself carries no scripts or links.
	Snapshot string
}

// View is everything the results page and the report templates render.
type View struct {
	ScanID      string
	TeamID      string
	URL         string
	Domain      string
	Status      string
	StatusLabel string
	Title       string
	H1          string
	CreatedAt   string
	LastUpdated string
	Screenshot  string
	FullCode    string

	Scripts    []ScriptRow
	Suspicious int
	Cert       *CertView

	Links     []string
	Requests  []schema.CapturedRequest
	Responses []schema.CapturedResponse
	Downloads []DownloadRow

	Generator   string
	GeneratedAt string
	Year        int
}

type ScriptRow struct {
	Source     string
	Src        string
	Tier       string
	Label      string
	Rank       int
	Suspicious bool
	ThirdParty bool
}

type CertView struct {
	Status      string
	StatusLabel string
	Error       string
	CommonName  string
	IssuerName  string
	Subject     []certs.Attribute
	Issuer      []certs.Attribute
	SAN         []string
	ValidFrom   string
	ValidTo     string
	DaysLeft    int
	HasDaysLeft bool
	ServerIP    string
	ServerPort  int
	WindowDays  int
}

type DownloadRow struct {
	Filename string
	SHA256   string
	Href     string
}

var titleCaser = cases.Title(language.English)

// BuildView turns a scan record into the view model shared by the HTML
// report, the dashboard and the terminal renderer.
func BuildView(scan schema.Scan, opts Options) View {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	v := View{
		ScanID:      scan.ScanID,
		TeamID:      scan.TeamID,
		URL:         scan.URL,
		Domain:      RegistrableDomain(scan.URL),
		Status:      scan.Status,
		StatusLabel: titleCaser.String(emptyFallback(scan.Status, "unknown")),
		Title:       emptyFallback(scan.Title, "-"),
		H1:          emptyFallback(scan.H1, "-"),
		CreatedAt:   scan.CreatedAt,
		LastUpdated: scan.LastUpdated,
		Screenshot:  scan.Screenshot,
		FullCode:    scan.FullCode,
		Links:       scan.Links,
		Requests:    scan.Requests,
		Responses:   scan.Responses,
		Generator:   "pixure",
		GeneratedAt: now.Format(time.RFC3339),
		Year:        now.Year(),
	}

	sources := scan.Scripts
	if (len(sources) == 0 || len(v.Links) == 0) && opts.Snapshot != "" {
		if page, err := scripts.Extract(strings.NewReader(opts.Snapshot), scan.URL); err == nil {
			if len(sources) == 0 {
				sources = page.Scripts
			}
			if len(v.Links) == 0 {
				v.Links = page.Links
			}
		}
	}

	classified := scripts.Classify(sources)
	v.Suspicious = scripts.SuspiciousCount(classified)
	for _, c := range classified {
		src := ScriptSrc(c.Source)
		v.Scripts = append(v.Scripts, ScriptRow{
			Source:     c.Source,
			Src:        src,
			Tier:       c.Tier.String(),
			Label:      c.Tier.Label(),
			Rank:       int(c.Tier),
			Suspicious: c.Tier.Suspicious(),
			ThirdParty: isThirdParty(src, v.Domain),
		})
	}

	if scan.SSLInfo != nil {
		v.Cert = buildCert(*scan.SSLInfo, now, opts.WindowDays)
	}

	origin := mediaOrigin(scan.Screenshot, scan.FullCode)
	for _, d := range scan.Downloads {
		row := DownloadRow{Filename: emptyFallback(d.Filename, "(unnamed)"), SHA256: d.SHA256}
		if key := d.Key(); key != "" && origin != "" {
			row.Href = origin + "/" + strings.TrimLeft(key, "/")
		}
		v.Downloads = append(v.Downloads, row)
	}
	return v
}

func buildCert(info schema.SSLInfo, now time.Time, windowDays int) *CertView {
	ev := certs.Evaluate(info, now, windowDays)
	cv := &CertView{
		Status:      string(ev.Status),
		StatusLabel: ev.Status.Label(),
		Error:       ev.Error,
		WindowDays:  ev.WindowDays,
	}
	if ev.Status == certs.Unavailable {
		return cv
	}
	cv.CommonName = certs.CommonName(info.Subject)
	cv.IssuerName = certs.CommonName(info.Issuer)
	cv.Subject = certs.Attributes(info.Subject)
	cv.Issuer = certs.Attributes(info.Issuer)
	cv.SAN = info.SAN
	cv.ServerIP = info.ServerIP
	cv.ServerPort = info.ServerPort
	if ev.HasValidFrom {
		cv.ValidFrom = time.Unix(ev.ValidFrom, 0).UTC().Format("2006-01-02 15:04 MST")
	}
	if ev.HasValidTo {
		cv.ValidTo = time.Unix(ev.ValidTo, 0).UTC().Format("2006-01-02 15:04 MST")
		cv.DaysLeft = int((ev.ValidTo - now.Unix()) / 86400)
		cv.HasDaysLeft = true
	}
	return cv
}

var srcAttr = regexp.MustCompile(`(?i)\bsrc\s*=\s*["']?([^"'\s>]+)`)

// ScriptSrc returns the src attribute of a recorded <script> tag, or the
// input unchanged when it is already a bare URL.
func ScriptSrc(source string) string {
	if m := srcAttr.FindStringSubmatch(source); m != nil {
		return m[1]
	}
	return strings.TrimSpace(source)
}

// RegistrableDomain returns the eTLD+1 of rawURL's host. IP hosts and hosts
// without a public suffix are returned as-is.
func RegistrableDomain(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if host == "" || net.ParseIP(host) != nil {
		return host
	}
	d, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return d
}

func isThirdParty(src, siteDomain string) bool {
	if siteDomain == "" {
		return false
	}
	if strings.HasPrefix(src, "//") {
		src = "https:" + src
	}
	d := RegistrableDomain(src)
	return d != "" && d != siteDomain
}

// mediaOrigin is scheme://host of the first stored artifact URL.
func mediaOrigin(candidates ...string) string {
	for _, c := range candidates {
		u, err := url.Parse(c)
		if err != nil || u.Scheme == "" || u.Host == "" {
			continue
		}
		return u.Scheme + "://" + u.Host
	}
	return ""
}

func trimTo(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	// cut on a rune boundary
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}

func emptyFallback(s, fb string) string {
	if strings.TrimSpace(s) == "" {
		return fb
	}
	return s
}
