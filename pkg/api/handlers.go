package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/waftester/vulnprobe/pkg/defaults"
	"github.com/waftester/vulnprobe/pkg/engine"
	"github.com/waftester/vulnprobe/pkg/finding"
	"github.com/waftester/vulnprobe/pkg/idor"
	"github.com/waftester/vulnprobe/pkg/jsonutil"
	"github.com/waftester/vulnprobe/pkg/output/writers"
	"github.com/waftester/vulnprobe/pkg/report"
	"github.com/waftester/vulnprobe/pkg/scoring"
	"github.com/waftester/vulnprobe/pkg/store"
)

// ScanURLResponse is returned by POST /api/scan/url.
type ScanURLResponse struct {
	ScanID     string            `json:"scan_id"`
	Summary    scoring.Summary   `json:"summary"`
	Findings   []finding.Finding `json:"findings"`
	AISeverity int               `json:"ai_severity"`
	PDFReport  string            `json:"pdf_report,omitempty"`
	JSONReport string            `json:"json_report,omitempty"`
}

// ScanRawResponse is returned by POST /api/scan/raw.
type ScanRawResponse struct {
	Target          string         `json:"target"`
	Analysis        *report.Report `json:"analysis"`
	Recommendations []string       `json:"recommendations"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleScanURL(w http.ResponseWriter, r *http.Request) {
	var req engine.ScanRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Target == "" {
		writeError(w, http.StatusBadRequest, "target is required")
		return
	}

	rep, err := s.engine.ScanURL(r.Context(), req)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	resp := ScanURLResponse{
		ScanID:   rep.ScanID,
		Summary:  rep.Summary,
		Findings: rep.Findings,
	}
	if rep.Enrichment != nil {
		resp.AISeverity = rep.Enrichment.AISeverity
	}
	if s.engine.HasStore() {
		resp.PDFReport = reportPath(rep.ScanID, writers.FormatPDF)
		resp.JSONReport = reportPath(rep.ScanID, writers.FormatJSON)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleScanRaw(w http.ResponseWriter, r *http.Request) {
	var req idor.RawRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	rep, err := s.engine.ScanRaw(r.Context(), req)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ScanRawResponse{
		Target:          req.URL,
		Analysis:        rep,
		Recommendations: Recommendations(rep),
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	f, err := writers.ParseFormat(r.PathValue("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, err := s.engine.Load(r.Context(), id, f)
	switch {
	case errors.Is(err, store.ErrInvalidID):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, store.ErrNotFound), errors.Is(err, engine.ErrNoStore):
		writeError(w, http.StatusNotFound, "report not found")
		return
	case err != nil:
		s.logger.Error("loading report failed", slog.String("scan_id", id), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "loading report failed")
		return
	}

	w.Header().Set("Content-Type", f.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s_report.%s", id, f.Ext()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	if errors.Is(err, engine.ErrInvalidRequest) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Error("scan failed", slog.String("error", err.Error()))
	writeError(w, http.StatusInternalServerError, "scan failed")
}

// Recommendations collects the distinct fix recommendations of r's
// findings, most severe first.
func Recommendations(r *report.Report) []string {
	out := []string{}
	for _, f := range r.SortedFindings() {
		recs := f.FixRecommendations
		if len(recs) == 0 && f.Fix != "" {
			recs = []string{f.Fix}
		}
		for _, rec := range recs {
			if !slices.Contains(out, rec) {
				out = append(out, rec)
			}
		}
	}
	return out
}

func reportPath(id string, f writers.Format) string {
	return "/api/report/" + id + "/" + string(f)
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	ct := r.Header.Get("Content-Type")
	if ct != "" && !strings.HasPrefix(ct, defaults.ContentTypeJSON) {
		return fmt.Errorf("%w: content type must be %s", ErrBadRequest, defaults.ContentTypeJSON)
	}
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := jsonutil.UnmarshalRead(body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := jsonutil.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"encoding response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", defaults.ContentTypeJSON)
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
