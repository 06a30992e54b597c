// Package writers renders a finished report into its output formats.
package writers

import (
	"fmt"
	"io"
	"strings"

	"github.com/waftester/vulnprobe/pkg/defaults"
	"github.com/waftester/vulnprobe/pkg/report"
)

// Format names an output format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatPDF      Format = "pdf"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

// Formats lists every supported format.
var Formats = []Format{FormatJSON, FormatPDF, FormatMarkdown, FormatText}

// ParseFormat resolves a format name, accepting "md" and "txt" aliases.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "json", "":
		return FormatJSON, nil
	case "pdf":
		return FormatPDF, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "text", "txt", "text-summary":
		return FormatText, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatPDF:
		return defaults.ContentTypePDF
	case FormatMarkdown:
		return defaults.ContentTypeMarkdown
	case FormatText:
		return defaults.ContentTypePlain
	default:
		return defaults.ContentTypeJSON
	}
}

// Ext returns the file extension for f, without the dot.
func (f Format) Ext() string {
	switch f {
	case FormatMarkdown:
		return "md"
	case FormatText:
		return "txt"
	default:
		return string(f)
	}
}

// Render writes r to w in format f.
func Render(w io.Writer, f Format, r *report.Report) error {
	switch f {
	case FormatJSON:
		return WriteJSON(w, r, JSONOptions{Pretty: true})
	case FormatPDF:
		return NewPDFWriter(PDFOptions{}).Render(w, r)
	case FormatMarkdown, FormatText:
		builtIn := "markdown"
		if f == FormatText {
			builtIn = "text-summary"
		}
		tw, err := NewTemplateWriter(TemplateConfig{BuiltIn: builtIn})
		if err != nil {
			return err
		}
		return tw.Render(w, r)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}
