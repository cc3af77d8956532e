// Package ui renders scan results and team data for the terminal.
package ui

import "github.com/charmbracelet/lipgloss"

var (
	Primary = lipgloss.Color("#7D56F4")
	Accent  = lipgloss.Color("#00D4AA")

	Success = lipgloss.Color("#00D26A")
	Warning = lipgloss.Color("#FFB800")
	Danger  = lipgloss.Color("#FF3838")
	Notice  = lipgloss.Color("#4D96FF")
	Muted   = lipgloss.Color("#6B7280")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(Primary).
			Padding(0, 1)

	SectionStyle = lipgloss.NewStyle().
			Bold(true).
			MarginTop(1)

	LabelStyle = lipgloss.NewStyle().
			Foreground(Muted).
			Width(16)

	ValueStyle = lipgloss.NewStyle()

	URLStyle = lipgloss.NewStyle().
			Foreground(Accent).
			Underline(true)

	MutedStyle = lipgloss.NewStyle().
			Foreground(Muted)

	WarningStyle = lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Danger).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(Success).
			Bold(true)
)

// TierStyle colours a script risk tier by name.
func TierStyle(tier string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	switch tier {
	case "port", "ip":
		return base.Foreground(Danger)
	case "http":
		return base.Foreground(Warning)
	case "async":
		return base.Foreground(Notice)
	case "normal":
		return base.Foreground(Success)
	default:
		return base.Foreground(Muted)
	}
}

// CertStyle colours a certificate status.
func CertStyle(status string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	switch status {
	case "valid":
		return base.Foreground(Success)
	case "expiring_soon":
		return base.Foreground(Warning)
	case "expired", "unavailable":
		return base.Foreground(Danger)
	default:
		return base.Foreground(Muted)
	}
}

// StatusStyle colours a scan status.
func StatusStyle(status string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	switch status {
	case "complete":
		return base.Foreground(Success)
	case "failed":
		return base.Foreground(Danger)
	case "processing":
		return base.Foreground(Notice)
	default:
		return base.Foreground(Muted)
	}
}
