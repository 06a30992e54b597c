package ui

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/waftester/vulnprobe/pkg/defaults"
	"github.com/waftester/vulnprobe/pkg/finding"
	"github.com/waftester/vulnprobe/pkg/report"
)

// FormatFinding renders one finding on a single line:
//
//	[high] [AUTH_BYPASS] description [endpoint]
func FormatFinding(f finding.Finding) string {
	parts := []string{
		bracket(SeverityStyle(f.Severity).Render(strings.ToLower(f.Severity.String()))),
		bracket(KindStyle.Render(f.Kind.String())),
		f.Description,
	}
	if f.Endpoint != "" {
		parts = append(parts, bracket(URLStyle.Render(f.Endpoint)))
	}
	return strings.Join(parts, " ")
}

func bracket(s string) string {
	return BracketStyle.Render("[") + s + BracketStyle.Render("]")
}

// PrintLiveFinding writes f as it is discovered. Silent mode drops it.
func PrintLiveFinding(w io.Writer, f finding.Finding) {
	if IsSilent() {
		return
	}
	Fprintf(w, "%s\n", FormatFinding(f))
}

// SummaryOptions controls PrintReport.
type SummaryOptions struct {
	// MaxFindings caps the detailed list; 0 uses the report default.
	MaxFindings int
	// ShowFixes prints the fix line under every finding.
	ShowFixes bool
}

// PrintReport writes a console summary of r.
func PrintReport(w io.Writer, r *report.Report, opts SummaryOptions) {
	limit := opts.MaxFindings
	if limit <= 0 {
		limit = defaults.ReportMaxDetailedFindings
	}
	width := min(TerminalWidth(72), 100)
	divider := DividerStyle.Render(strings.Repeat("─", width))

	fmt.Fprintln(w, divider)
	fmt.Fprintln(w, TitleStyle.Render(" Scan Summary "))
	fmt.Fprintln(w)
	row(w, "Target", URLStyle.Render(r.Target))
	row(w, "Scan ID", r.ScanID)
	if r.ScanType != "" {
		row(w, "Scan Type", r.ScanType)
	}
	row(w, "Duration", fmt.Sprintf("%.2fs", float64(r.DurationMs)/1000))
	row(w, "Findings", ValueStyle.Render(fmt.Sprintf("%d", r.Summary.Total)))
	row(w, "Severity Score", ValueStyle.Render(fmt.Sprintf("%d", r.Summary.SeverityScore)))
	row(w, "Risk Level", SeverityStyle(r.Summary.RiskLevel).Render(r.Summary.RiskLevel.String()))

	fmt.Fprintln(w, SectionStyle.Render("Severity Breakdown"))
	for _, s := range finding.Severities {
		n, ok := r.Summary.CountBySeverity[s]
		if !ok {
			continue
		}
		bar := lipgloss.NewStyle().Foreground(SeverityColor(s)).Render(strings.Repeat(Icon("█", "#"), min(n, 40)))
		fmt.Fprintf(w, "  %-9s %3d %s\n", s.String(), n, bar)
	}

	if h := r.SecurityHeaders; h != nil {
		fmt.Fprintln(w, SectionStyle.Render(fmt.Sprintf("Security Headers (%.0f%%)", h.OverallScore*100)))
		names := make([]string, 0, len(h.Status))
		for name := range h.Status {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			st := h.Status[name]
			if st.Present {
				Fprintf(w, "  %s %s\n", PresentStyle.Render(Icon("✓", "+")), name)
			} else {
				Fprintf(w, "  %s %s\n", MissingStyle.Render(Icon("✗", "-")), name)
			}
		}
	}

	if len(r.Findings) > 0 {
		fmt.Fprintln(w, SectionStyle.Render("Findings"))
		sorted := r.SortedFindings()
		for i, f := range sorted {
			if i == limit {
				fmt.Fprintln(w, HintStyle.Render(fmt.Sprintf("  ... %d more findings omitted", len(sorted)-limit)))
				break
			}
			Fprintf(w, "  %s\n", FormatFinding(f))
			if opts.ShowFixes && f.Fix != "" {
				fmt.Fprintln(w, HintStyle.Render("      fix: "+f.Fix))
			}
		}
	}

	if len(r.ProbeErrors) > 0 {
		fmt.Fprintln(w, SectionStyle.Render("Probe Errors"))
		for _, pe := range r.ProbeErrors {
			fmt.Fprintf(w, "  %s: %s\n", pe.Probe, pe.Error)
		}
	}

	if e := r.Enrichment; e != nil {
		fmt.Fprintln(w, SectionStyle.Render("Assessment ("+e.Source+")"))
		fmt.Fprintf(w, "  %s\n", e.Explanation)
		for i, fix := range e.PrioritizedFixes {
			fmt.Fprintf(w, "  %d. %s\n", i+1, fix)
		}
	}
	fmt.Fprintln(w, divider)
}

func row(w io.Writer, label, value string) {
	fmt.Fprintf(w, "  %s %s\n", LabelStyle.Render(label), value)
}
