package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/waftester/vulnprobe/pkg/finding"
)

// Color palette
var (
	Primary   = lipgloss.Color("#7D56F4")
	Secondary = lipgloss.Color("#00D4AA")

	// Severity colors
	Critical = lipgloss.Color("#FF0000")
	High     = lipgloss.Color("#FF6B6B")
	Medium   = lipgloss.Color("#FFD93D")
	Low      = lipgloss.Color("#6BCB77")
	Info     = lipgloss.Color("#4D96FF")

	Success = lipgloss.Color("#00D26A")
	Warning = lipgloss.Color("#FFB800")
	Muted   = lipgloss.Color("#6B7280")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(Primary).
			Padding(0, 1)

	BannerStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	VersionStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	SectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Bold(true).
			MarginTop(1)

	LabelStyle = lipgloss.NewStyle().
			Foreground(Muted).
			Width(16)

	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Bold(true)

	// Bracketed metadata, nuclei-style
	BracketStyle = lipgloss.NewStyle().
			Foreground(Muted)

	KindStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#3B3B4F")).
			Padding(0, 1)

	DividerStyle = lipgloss.NewStyle().
			Foreground(Muted)

	HintStyle = lipgloss.NewStyle().
			Foreground(Muted).
			Italic(true)

	URLStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Underline(true)

	SpinnerStyle = lipgloss.NewStyle().Foreground(Primary)

	PresentStyle = lipgloss.NewStyle().Foreground(Success).Bold(true)
	MissingStyle = lipgloss.NewStyle().Foreground(Warning).Bold(true)
)

// SeverityStyle returns the badge style for a severity level.
func SeverityStyle(s finding.Severity) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	switch s {
	case finding.Critical:
		return base.Foreground(lipgloss.Color("#FFFFFF")).Background(Critical)
	case finding.High:
		return base.Foreground(lipgloss.Color("#FFFFFF")).Background(High)
	case finding.Medium:
		return base.Foreground(lipgloss.Color("#000000")).Background(Medium)
	case finding.Low:
		return base.Foreground(lipgloss.Color("#000000")).Background(Low)
	case finding.Info:
		return base.Foreground(lipgloss.Color("#FFFFFF")).Background(Info)
	default:
		return base.Foreground(Muted)
	}
}

// SeverityColor returns the foreground color for s.
func SeverityColor(s finding.Severity) lipgloss.Color {
	switch s {
	case finding.Critical:
		return Critical
	case finding.High:
		return High
	case finding.Medium:
		return Medium
	case finding.Low:
		return Low
	case finding.Info:
		return Info
	}
	return Muted
}
