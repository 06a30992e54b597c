package hooks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/waftester/vulnprobe/pkg/defaults"
	"github.com/waftester/vulnprobe/pkg/duration"
	"github.com/waftester/vulnprobe/pkg/finding"
	"github.com/waftester/vulnprobe/pkg/report"
)

var _ Hook = (*OTelHook)(nil)

// OTelHook exports one span per report to an OpenTelemetry collector, with
// one span event per finding.
type OTelHook struct {
	opts           OTelOptions
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer

	mu     sync.Mutex
	closed bool
}

// OTelOptions configures the OpenTelemetry hook.
type OTelOptions struct {
	// Endpoint is the OTLP gRPC endpoint (default: "localhost:4317").
	Endpoint string

	// ServiceName is the service name for traces (default: "vulnprobe").
	ServiceName string

	// Insecure uses a plaintext connection.
	Insecure bool

	// Headers are sent with every export request.
	Headers map[string]string

	// ShutdownTimeout bounds the final flush (default: 5s).
	ShutdownTimeout time.Duration

	// ConnectionTimeout bounds exporter setup (default: 10s).
	ConnectionTimeout time.Duration

	// Exporter replaces the OTLP exporter, e.g. with an in-memory one.
	Exporter sdktrace.SpanExporter

	// SetGlobal installs the provider as the global tracer provider so
	// probe spans created by the scanner are exported too.
	SetGlobal bool
}

// NewOTelHook creates the hook. The exporter connects lazily; an
// unreachable collector never blocks a scan.
func NewOTelHook(opts OTelOptions) (*OTelHook, error) {
	if opts.ServiceName == "" {
		opts.ServiceName = defaults.ToolName
	}
	if opts.Endpoint == "" {
		opts.Endpoint = "localhost:4317"
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = duration.HookShutdown
	}
	if opts.ConnectionTimeout == 0 {
		opts.ConnectionTimeout = duration.HookConnect
	}

	exporter := opts.Exporter
	if exporter == nil {
		var grpcOpts []grpc.DialOption
		if opts.Insecure {
			grpcOpts = append(grpcOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
		}
		exporterOpts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(opts.Endpoint),
			otlptracegrpc.WithDialOption(grpcOpts...),
		}
		if opts.Insecure {
			exporterOpts = append(exporterOpts, otlptracegrpc.WithInsecure())
		}
		if len(opts.Headers) > 0 {
			exporterOpts = append(exporterOpts, otlptracegrpc.WithHeaders(opts.Headers))
		}

		ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectionTimeout)
		defer cancel()
		exp, err := otlptracegrpc.New(ctx, exporterOpts...)
		if err != nil {
			return nil, fmt.Errorf("otel: create exporter: %w", err)
		}
		exporter = exp
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(opts.ServiceName),
		semconv.ServiceVersion(defaults.Version),
		attribute.String("service.component", "scanner"),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	if opts.SetGlobal {
		otel.SetTracerProvider(tp)
	}

	return &OTelHook{
		opts:           opts,
		tracerProvider: tp,
		tracer:         tp.Tracer("vulnprobe/report"),
	}, nil
}

// OnReport records the report as a span covering the scan's duration.
func (h *OTelHook) OnReport(ctx context.Context, r *report.Report) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}

	end := r.ScanTimestamp
	if end.IsZero() {
		end = time.Now()
	}
	start := end.Add(-time.Duration(r.DurationMs) * time.Millisecond)

	_, span := h.tracer.Start(ctx, "vulnprobe.report",
		trace.WithTimestamp(start),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("scan_id", r.ScanID),
			attribute.String("target", r.Target),
			attribute.String("scan_type", r.ScanType),
			attribute.Int("findings", r.Summary.Total),
			attribute.Int("severity_score", r.Summary.SeverityScore),
			attribute.String("risk_level", string(r.Summary.RiskLevel)),
		),
	)

	for _, f := range r.Findings {
		span.AddEvent("finding", trace.WithAttributes(
			attribute.String("kind", string(f.Kind)),
			attribute.String("severity", string(f.Severity)),
			attribute.String("endpoint", f.Endpoint),
		))
	}
	for _, pe := range r.ProbeErrors {
		span.AddEvent("probe_error", trace.WithAttributes(
			attribute.String("probe", pe.Probe),
			attribute.String("error", pe.Error),
		))
	}

	if r.Summary.RiskLevel.AtLeast(finding.High) {
		span.SetStatus(codes.Error, "risk level "+string(r.Summary.RiskLevel))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(end))
	return nil
}

// Flush forces export of finished spans.
func (h *OTelHook) Flush(ctx context.Context) error {
	return h.tracerProvider.ForceFlush(ctx)
}

// Close shuts down the tracer provider and flushes pending spans.
func (h *OTelHook) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	ctx, cancel := context.WithTimeout(context.Background(), h.opts.ShutdownTimeout)
	defer cancel()
	if err := h.tracerProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("otel: shutdown tracer provider: %w", err)
	}
	return nil
}

// Endpoint returns the OTLP endpoint in use.
func (h *OTelHook) Endpoint() string {
	return h.opts.Endpoint
}

// ServiceName returns the service name in use.
func (h *OTelHook) ServiceName() string {
	return h.opts.ServiceName
}
