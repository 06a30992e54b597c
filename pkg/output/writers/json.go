package writers

import (
	"fmt"
	"io"
	"strings"

	"github.com/waftester/vulnprobe/pkg/finding"
	"github.com/waftester/vulnprobe/pkg/jsonutil"
	"github.com/waftester/vulnprobe/pkg/report"
)

// JSONOptions configures JSON rendering.
type JSONOptions struct {
	// OmitEvidence drops evidence from every finding to reduce size.
	OmitEvidence bool

	// Pretty enables indented JSON output.
	Pretty bool

	// IndentSize sets the number of spaces for indentation (default 2).
	IndentSize int
}

// WriteJSON encodes r as a single JSON document.
func WriteJSON(w io.Writer, r *report.Report, opts JSONOptions) error {
	if opts.IndentSize == 0 {
		opts.IndentSize = 2
	}
	if opts.OmitEvidence {
		cp := *r
		cp.Findings = make([]finding.Finding, len(r.Findings))
		for i, f := range r.Findings {
			f.Evidence = finding.Evidence{}
			cp.Findings[i] = f
		}
		r = &cp
	}

	encoder := jsonutil.NewStreamEncoder(w)
	if opts.Pretty {
		encoder.SetIndent("", strings.Repeat(" ", opts.IndentSize))
	}
	if err := encoder.Encode(r); err != nil {
		return fmt.Errorf("json: encode: %w", err)
	}
	return nil
}
