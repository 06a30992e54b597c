package hooks

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/waftester/vulnprobe/pkg/finding"
	"github.com/waftester/vulnprobe/pkg/report"
)

func newTestOTelHook(t *testing.T) (*OTelHook, *tracetest.InMemoryExporter) {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	hook, err := NewOTelHook(OTelOptions{
		Exporter:        exp,
		ShutdownTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("NewOTelHook failed: %v", err)
	}
	t.Cleanup(func() { hook.Close() })
	return hook, exp
}

func TestOTelHook_Defaults(t *testing.T) {
	hook, _ := newTestOTelHook(t)
	if hook.ServiceName() != "vulnprobe" {
		t.Errorf("expected default service name 'vulnprobe', got %q", hook.ServiceName())
	}
	if hook.Endpoint() != "localhost:4317" {
		t.Errorf("expected endpoint 'localhost:4317', got %q", hook.Endpoint())
	}
}

func TestOTelHook_SpanPerReport(t *testing.T) {
	hook, exp := newTestOTelHook(t)
	ctx := context.Background()

	r := testReport(
		finding.MustNew(finding.KindJWTNoneAlg, finding.Critical, "none"),
		finding.MustNew(finding.KindMissingHeader, finding.Medium, "csp"),
	)
	r.ProbeErrors = []report.ProbeError{{Probe: "crawl", Error: "no browser"}}
	if err := hook.OnReport(ctx, r); err != nil {
		t.Fatalf("OnReport: %v", err)
	}
	if err := hook.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name != "vulnprobe.report" {
		t.Errorf("span name = %q", span.Name)
	}
	if len(span.Events) != 3 {
		t.Errorf("expected 3 span events, got %d", len(span.Events))
	}
	if span.Status.Code != codes.Error {
		t.Errorf("status = %v, want Error for a HIGH+ report", span.Status.Code)
	}
	if got := span.EndTime.Sub(span.StartTime); got != 1500*time.Millisecond {
		t.Errorf("span duration = %v, want 1.5s", got)
	}

	attrs := map[string]string{}
	for _, kv := range span.Attributes {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs["scan_id"] != "scan-1" || attrs["risk_level"] != "HIGH" {
		t.Errorf("unexpected attributes %v", attrs)
	}
}

func TestOTelHook_LowRiskIsOk(t *testing.T) {
	hook, exp := newTestOTelHook(t)
	ctx := context.Background()
	if err := hook.OnReport(ctx, testReport()); err != nil {
		t.Fatalf("OnReport: %v", err)
	}
	_ = hook.Flush(ctx)

	spans := exp.GetSpans()
	if len(spans) != 1 || spans[0].Status.Code != codes.Ok {
		t.Fatalf("expected one Ok span, got %+v", spans)
	}
}

func TestOTelHook_CloseIsIdempotent(t *testing.T) {
	hook, exp := newTestOTelHook(t)
	if err := hook.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := hook.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := hook.OnReport(context.Background(), testReport()); err != nil {
		t.Fatalf("OnReport after close: %v", err)
	}
	if n := len(exp.GetSpans()); n != 0 {
		t.Errorf("expected no spans after close, got %d", n)
	}
}
