package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fish-not-phish/pixurebyte/internal/report"
	"github.com/fish-not-phish/pixurebyte/internal/schema"
)

func section(w io.Writer, title string) {
	fmt.Fprintln(w, SectionStyle.Render(title))
}

func row(w io.Writer, label, value string) {
	if value == "" {
		value = "-"
	}
	fmt.Fprintf(w, "  %s %s\n", LabelStyle.Render(label), ValueStyle.Render(value))
}

// ScanView prints the results view of one scan.
func ScanView(w io.Writer, v report.View) {
	fmt.Fprintln(w, TitleStyle.Render("Scan "+v.ScanID))
	section(w, "Overview")
	fmt.Fprintf(w, "  %s %s\n", LabelStyle.Render("URL"), URLStyle.Render(v.URL))
	fmt.Fprintf(w, "  %s %s\n", LabelStyle.Render("Status"), StatusStyle(v.Status).Render(v.StatusLabel))
	row(w, "Title", v.Title)
	row(w, "H1", v.H1)
	row(w, "Created", v.CreatedAt)
	row(w, "Updated", v.LastUpdated)
	if v.Screenshot != "" {
		row(w, "Screenshot", v.Screenshot)
	}

	Scripts(w, v)
	if v.Cert != nil {
		Certificate(w, v.Cert)
	}

	if len(v.Downloads) > 0 {
		section(w, fmt.Sprintf("Downloads (%d)", len(v.Downloads)))
		for _, d := range v.Downloads {
			line := "  " + d.Filename + "  " + MutedStyle.Render(d.SHA256)
			if d.Href != "" {
				line += "\n    " + URLStyle.Render(d.Href)
			}
			fmt.Fprintln(w, line)
		}
	}

	section(w, fmt.Sprintf("Links (%d)", len(v.Links)))
	for _, l := range v.Links {
		fmt.Fprintln(w, "  "+l)
	}
	if len(v.Requests) > 0 {
		section(w, fmt.Sprintf("Requests (%d)", len(v.Requests)))
		for _, r := range v.Requests {
			fmt.Fprintf(w, "  %-6s %s\n", strings.ToUpper(r.Method), r.URL)
		}
	}
	if len(v.Responses) > 0 {
		section(w, fmt.Sprintf("Responses (%d)", len(v.Responses)))
		for _, r := range v.Responses {
			code := SuccessStyle
			if !r.OK {
				code = WarningStyle
			}
			fmt.Fprintf(w, "  %s %s\n", code.Render(fmt.Sprintf("%-6d", r.Status)), r.URL)
		}
	}
}

// Scripts prints the classified script list and the suspicious warning.
func Scripts(w io.Writer, v report.View) {
	section(w, fmt.Sprintf("Scripts (%d)", len(v.Scripts)))
	if len(v.Scripts) == 0 {
		fmt.Fprintln(w, MutedStyle.Render("  No external scripts recorded."))
		return
	}
	if v.Suspicious > 0 {
		noun := "script"
		if v.Suspicious > 1 {
			noun = "scripts"
		}
		fmt.Fprintln(w, "  "+WarningStyle.Render(fmt.Sprintf("! %d suspicious %s detected", v.Suspicious, noun)))
	}
	for _, s := range v.Scripts {
		origin := ""
		if s.ThirdParty {
			origin = MutedStyle.Render(" (third-party)")
		}
		fmt.Fprintf(w, "  [%s] %s%s\n", TierStyle(s.Tier).Render(s.Label), s.Src, origin)
	}
}

// Certificate prints the certificate badge and details.
func Certificate(w io.Writer, c *report.CertView) {
	section(w, "Certificate")
	badge := CertStyle(c.Status).Render(c.StatusLabel)
	if c.HasDaysLeft && c.DaysLeft >= 0 {
		badge += MutedStyle.Render(fmt.Sprintf(" (%d days left)", c.DaysLeft))
	}
	fmt.Fprintln(w, "  "+badge)
	if c.Error != "" {
		row(w, "Error", c.Error)
		return
	}
	row(w, "Common name", c.CommonName)
	row(w, "Issued by", c.IssuerName)
	row(w, "Valid from", c.ValidFrom)
	row(w, "Valid to", c.ValidTo)
	if c.ServerIP != "" {
		server := c.ServerIP
		if c.ServerPort != 0 {
			server = fmt.Sprintf("%s:%d", c.ServerIP, c.ServerPort)
		}
		row(w, "Server", server)
	}
	if len(c.SAN) > 0 {
		row(w, "Alt names", strings.Join(c.SAN, ", "))
	}
	if len(c.Subject) > 0 {
		fmt.Fprintln(w, "  "+MutedStyle.Render("Subject"))
		for _, a := range c.Subject {
			row(w, a.Label, a.Value)
		}
	}
	if len(c.Issuer) > 0 {
		fmt.Fprintln(w, "  "+MutedStyle.Render("Issuer"))
		for _, a := range c.Issuer {
			row(w, a.Label, a.Value)
		}
	}
}

// ScanList prints one page of scans.
func ScanList(w io.Writer, page schema.ScanPage, pageNum int) {
	if len(page.Items) == 0 {
		fmt.Fprintln(w, MutedStyle.Render("No scans yet."))
		return
	}
	for _, s := range page.Items {
		fmt.Fprintf(w, "%s  %s  %s  %s\n",
			MutedStyle.Render(s.ScanID),
			StatusStyle(s.Status).Render(fmt.Sprintf("%-10s", s.Status)),
			s.URL,
			MutedStyle.Render(s.CreatedAt),
		)
	}
	fmt.Fprintln(w, MutedStyle.Render(fmt.Sprintf("page %d, %d scans total", pageNum, page.Count)))
}

// Teams prints the user's teams, marking the active one.
func Teams(w io.Writer, teams []schema.Team, activeID string) {
	if len(teams) == 0 {
		fmt.Fprintln(w, MutedStyle.Render("No teams."))
		return
	}
	for _, t := range teams {
		marker := "  "
		if t.ID == activeID {
			marker = SuccessStyle.Render("* ")
		}
		fmt.Fprintf(w, "%s%s  %s\n", marker, t.Name, MutedStyle.Render(t.ID))
	}
}

func Members(w io.Writer, members []schema.Member) {
	for _, m := range members {
		fmt.Fprintf(w, "%-32s %-10s %s\n", m.Email, string(m.Role), MutedStyle.Render(m.ID))
	}
}

// Analytics prints the overview numbers followed by the breakdown tables.
func Analytics(w io.Writer, o schema.Overview, ts schema.Timeseries, status, domains schema.CategoryList) {
	fmt.Fprintln(w, TitleStyle.Render("Analytics"))
	section(w, "Overview")
	row(w, "Total scans", fmt.Sprintf("%d", o.TotalScans))
	row(w, "Success rate", fmt.Sprintf("%.1f%%", o.SuccessRatePct))
	row(w, "Avg duration", fmt.Sprintf("%.1fs", o.AvgDurationSeconds))
	row(w, "Datapoints", fmt.Sprintf("%d", o.TotalDatapoints))
	row(w, "Day over day", delta(o.DayOverDay))
	row(w, "Week over week", delta(o.WeekOverWeek))

	if len(ts.Points) > 0 {
		section(w, "Scans per day")
		for _, p := range ts.Points {
			fmt.Fprintf(w, "  %s  %4d  %6.1fs\n", p.Date, p.Count, p.AvgDurationSeconds)
		}
	}
	if len(status.Items) > 0 {
		section(w, "By status")
		for _, c := range status.Items {
			fmt.Fprintf(w, "  %s %d\n", StatusStyle(c.Name).Render(fmt.Sprintf("%-12s", c.Name)), c.Count)
		}
	}
	if len(domains.Items) > 0 {
		section(w, "Top domains")
		for _, c := range domains.Items {
			fmt.Fprintf(w, "  %-40s %d\n", c.Name, c.Count)
		}
	}
}

func delta(d schema.OverviewDelta) string {
	sign := "+"
	if d.DeltaPct < 0 {
		sign = ""
	}
	return fmt.Sprintf("%.0f (%s%.1f%%)", d.Current, sign, d.DeltaPct)
}
