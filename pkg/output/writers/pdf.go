package writers

import (
	"fmt"
	"io"
	"time"

	gofpdf "github.com/go-pdf/fpdf"

	"github.com/waftester/vulnprobe/pkg/defaults"
	"github.com/waftester/vulnprobe/pkg/finding"
	"github.com/waftester/vulnprobe/pkg/report"
	"github.com/waftester/vulnprobe/pkg/strutil"
)

// pdfSeverityColors maps severities to RGB triples.
var pdfSeverityColors = map[finding.Severity][3]int{
	finding.Critical: {153, 27, 27},
	finding.High:     {220, 38, 38},
	finding.Medium:   {217, 119, 6},
	finding.Low:      {37, 99, 235},
	finding.Info:     {100, 116, 139},
}

func severityColor(s finding.Severity) [3]int {
	if c, ok := pdfSeverityColors[s]; ok {
		return c
	}
	return [3]int{128, 128, 128}
}

// PDFOptions configures PDF rendering.
type PDFOptions struct {
	// Title overrides the document title.
	Title string

	// MaxFindings caps the detailed findings section (default 20).
	MaxFindings int
}

// PDFWriter renders a report as an A4 PDF document.
type PDFWriter struct {
	opts PDFOptions
	tr   func(string) string
}

// NewPDFWriter creates a PDF renderer.
func NewPDFWriter(opts PDFOptions) *PDFWriter {
	if opts.Title == "" {
		opts.Title = "Security Scan Report"
	}
	if opts.MaxFindings <= 0 {
		opts.MaxFindings = defaults.ReportMaxDetailedFindings
	}
	return &PDFWriter{opts: opts}
}

// Render writes the PDF for r to w.
func (pw *PDFWriter) Render(w io.Writer, r *report.Report) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 18)
	pdf.SetTitle(pw.opts.Title, true)
	pdf.SetCreator(defaults.ToolName+" "+defaults.Version, true)
	if !r.ScanTimestamp.IsZero() {
		pdf.SetCreationDate(r.ScanTimestamp)
		pdf.SetModificationDate(r.ScanTimestamp)
	}
	// Core fonts are cp1252; translate UTF-8 input.
	pw.tr = pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 6, fmt.Sprintf("%s | scan %s | page %d", defaults.ToolName, r.ScanID, pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	pw.addTitle(pdf)
	pw.addSummaryTable(pdf, r)
	pw.addSeverityTable(pdf, r)
	pw.addHeaderScore(pdf, r)
	pw.addEnrichment(pdf, r)
	pw.addFindings(pdf, r)
	pw.addProbeErrors(pdf, r)

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("pdf: build: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("pdf: output: %w", err)
	}
	return nil
}

func (pw *PDFWriter) addTitle(pdf *gofpdf.Fpdf) {
	pdf.SetFont("Helvetica", "B", 22)
	pdf.SetTextColor(30, 41, 120)
	pdf.CellFormat(0, 14, pw.tr(pw.opts.Title), "", 1, "C", false, 0, "")
	pdf.Ln(6)
}

func (pw *PDFWriter) addSectionHeader(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetTextColor(30, 41, 59)
	pdf.CellFormat(0, 10, pw.tr(title), "", 1, "L", false, 0, "")
	pdf.SetDrawColor(203, 213, 225)
	x, y := pdf.GetXY()
	pageW, _ := pdf.GetPageSize()
	_, _, right, _ := pdf.GetMargins()
	pdf.Line(x, y, pageW-right, y)
	pdf.Ln(3)
}

func (pw *PDFWriter) tableHeader(pdf *gofpdf.Fpdf, fill [3]int, widths []float64, cols ...string) {
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetFillColor(fill[0], fill[1], fill[2])
	pdf.SetTextColor(255, 255, 255)
	pdf.SetDrawColor(0, 0, 0)
	for i, c := range cols {
		pdf.CellFormat(widths[i], 9, c, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
}

func (pw *PDFWriter) addSummaryTable(pdf *gofpdf.Fpdf, r *report.Report) {
	widths := []float64{50, 120}
	pw.tableHeader(pdf, [3]int{100, 116, 139}, widths, "Metric", "Value")

	rows := [][2]string{
		{"Target", r.Target},
		{"Scan Date", r.ScanTimestamp.UTC().Format(time.RFC3339)},
		{"Total Issues", fmt.Sprint(r.Summary.Total)},
		{"Risk Level", string(r.Summary.RiskLevel)},
		{"Severity Score", fmt.Sprint(r.Summary.SeverityScore)},
	}
	if r.ScanType != "" {
		rows = append(rows, [2]string{"Scan Type", r.ScanType})
	}

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetFillColor(245, 245, 220)
	for _, row := range rows {
		pdf.SetTextColor(30, 30, 30)
		pdf.CellFormat(widths[0], 8, row[0], "1", 0, "C", true, 0, "")
		if row[0] == "Risk Level" {
			c := severityColor(r.Summary.RiskLevel)
			pdf.SetTextColor(c[0], c[1], c[2])
			pdf.SetFont("Helvetica", "B", 10)
		}
		pdf.CellFormat(widths[1], 8, pw.tr(strutil.Truncate(row[1], 80)), "1", 0, "C", true, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.Ln(-1)
	}
	pdf.Ln(8)
}

func (pw *PDFWriter) addSeverityTable(pdf *gofpdf.Fpdf, r *report.Report) {
	pw.addSectionHeader(pdf, "Vulnerabilities by Severity")

	widths := []float64{60, 50, 60}
	pw.tableHeader(pdf, [3]int{139, 0, 0}, widths, "Severity", "Count", "Score")

	pdf.SetFont("Helvetica", "", 10)
	for _, sev := range finding.Severities {
		count, ok := r.Summary.CountBySeverity[sev]
		if !ok {
			continue
		}
		c := severityColor(sev)
		pdf.SetTextColor(c[0], c[1], c[2])
		pdf.CellFormat(widths[0], 8, string(sev), "1", 0, "C", false, 0, "")
		pdf.SetTextColor(30, 30, 30)
		pdf.CellFormat(widths[1], 8, fmt.Sprint(count), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[2], 8, fmt.Sprint(count*sev.Weight()), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.Ln(8)
}

func (pw *PDFWriter) addHeaderScore(pdf *gofpdf.Fpdf, r *report.Report) {
	h := r.SecurityHeaders
	if h == nil || len(h.Status) == 0 {
		return
	}
	pw.addSectionHeader(pdf, "Security Headers")

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(80, 80, 80)
	pdf.CellFormat(0, 7, fmt.Sprintf("Overall score: %.0f%% (%d of %d headers present)",
		h.OverallScore*100, h.HeadersPresent, len(h.Status)), "", 1, "L", false, 0, "")

	for _, name := range sortedKeys(h.Status) {
		st := h.Status[name]
		mark, c := "missing", [3]int{220, 38, 38}
		if st.Present {
			mark, c = "present", [3]int{22, 163, 74}
		}
		pdf.SetTextColor(30, 30, 30)
		pdf.CellFormat(80, 6, name, "", 0, "L", false, 0, "")
		pdf.SetTextColor(c[0], c[1], c[2])
		pdf.CellFormat(0, 6, mark, "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)
}

func (pw *PDFWriter) addEnrichment(pdf *gofpdf.Fpdf, r *report.Report) {
	e := r.Enrichment
	if e == nil {
		return
	}
	pw.addSectionHeader(pdf, "Risk Assessment")

	pdf.SetFont("Helvetica", "B", 10)
	c := severityColor(e.RiskAssessment)
	pdf.SetTextColor(c[0], c[1], c[2])
	pdf.CellFormat(0, 7, fmt.Sprintf("%s (source: %s)", e.RiskAssessment, e.Source), "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(80, 80, 80)
	if e.Explanation != "" {
		pdf.MultiCell(0, 5, pw.tr(e.Explanation), "", "L", false)
		pdf.Ln(2)
	}
	if len(e.PrioritizedFixes) > 0 {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(0, 6, "Prioritized fixes", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		for i, fix := range e.PrioritizedFixes {
			pdf.MultiCell(0, 5, pw.tr(fmt.Sprintf("%d. %s", i+1, fix)), "", "L", false)
		}
		pdf.Ln(2)
	}
	for _, para := range [][2]string{
		{"Attack scenario", e.AttackScenario},
		{"Business impact", e.BusinessImpact},
	} {
		if para[1] == "" {
			continue
		}
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(0, 6, para[0], "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 5, pw.tr(para[1]), "", "L", false)
		pdf.Ln(2)
	}
	pdf.Ln(4)
}

func (pw *PDFWriter) addFindings(pdf *gofpdf.Fpdf, r *report.Report) {
	pw.addSectionHeader(pdf, "Detailed Findings")

	fs := r.SortedFindings()
	if len(fs) == 0 {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 8, "No vulnerabilities found.", "", 1, "L", false, 0, "")
		return
	}

	shown := min(len(fs), pw.opts.MaxFindings)
	for _, f := range fs[:shown] {
		c := severityColor(f.Severity)
		pdf.SetFont("Helvetica", "B", 11)
		pdf.SetTextColor(c[0], c[1], c[2])
		pdf.CellFormat(0, 7, pw.tr(fmt.Sprintf("%s (%s)", kindTitle(f.Kind), f.Severity)), "", 1, "L", false, 0, "")

		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(50, 50, 50)
		pdf.MultiCell(0, 5, pw.tr(f.Description), "", "L", false)

		if f.Endpoint != "" {
			pdf.SetFont("Helvetica", "I", 9)
			pdf.SetTextColor(80, 80, 80)
			pdf.MultiCell(0, 5, pw.tr("Endpoint: "+f.Endpoint), "", "L", false)
		}
		if cwe := kindCWE(f.Kind); cwe != "" {
			pdf.SetFont("Helvetica", "I", 8)
			pdf.SetTextColor(37, 99, 235)
			pdf.CellFormat(0, 5, cwe, "", 1, "L", false, 0, "")
		}
		if f.Fix != "" {
			pdf.SetFont("Helvetica", "B", 9)
			pdf.SetTextColor(30, 41, 59)
			pdf.CellFormat(8, 5, "Fix:", "", 0, "L", false, 0, "")
			pdf.SetFont("Helvetica", "", 9)
			pdf.MultiCell(0, 5, pw.tr(f.Fix), "", "L", false)
		}
		pdf.Ln(4)
	}
	if len(fs) > shown {
		pdf.SetFont("Helvetica", "I", 9)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 6, fmt.Sprintf("%d more findings omitted; see the JSON report.", len(fs)-shown), "", 1, "L", false, 0, "")
	}
}

func (pw *PDFWriter) addProbeErrors(pdf *gofpdf.Fpdf, r *report.Report) {
	if len(r.ProbeErrors) == 0 {
		return
	}
	pdf.Ln(4)
	pw.addSectionHeader(pdf, "Probe Errors")
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(100, 116, 139)
	for _, pe := range r.ProbeErrors {
		pdf.MultiCell(0, 5, pw.tr(pe.Probe+": "+pe.Error), "", "L", false)
	}
}
