// Package runner executes independent probes concurrently against one target
// and collects every outcome, success or failure.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/waftester/vulnprobe/pkg/finding"
	"github.com/waftester/vulnprobe/pkg/httpclient"
)

// ProbeFunc runs one detector. It returns its own findings or a failure.
type ProbeFunc func(ctx context.Context) ([]finding.Finding, error)

// Probe is a named detector invocation.
type Probe struct {
	Name string
	Run  ProbeFunc
}

// Outcome is the result of one probe: findings on success, Err on failure,
// never both.
type Outcome struct {
	Probe    string
	Findings []finding.Finding
	Err      error
	Duration time.Duration
}

// Failed reports whether the probe failed.
func (o Outcome) Failed() bool { return o.Err != nil }

// AsFindings returns the outcome's findings. A failed outcome becomes a
// single INFO finding: NETWORK_ERROR when the cause is a transport error,
// PROBE_ERROR otherwise.
func (o Outcome) AsFindings() []finding.Finding {
	if o.Err == nil {
		return o.Findings
	}
	kind := finding.KindProbeError
	desc := fmt.Sprintf("Probe %s failed: %v", o.Probe, o.Err)
	if httpclient.IsNetworkError(o.Err) {
		kind = finding.KindNetworkError
		desc = fmt.Sprintf("Could not reach target: %v", o.Err)
	}
	return []finding.Finding{finding.MustNew(kind, finding.Info, desc)}
}

// Stats tracks execution statistics
type Stats struct {
	Total      int64
	Completed  int64
	Successful int64
	Failed     int64
	StartTime  time.Time
}

// Progress returns completion percentage (0-100)
func (s *Stats) Progress() float64 {
	total := atomic.LoadInt64(&s.Total)
	if total == 0 {
		return 0
	}
	return float64(atomic.LoadInt64(&s.Completed)) / float64(total) * 100
}

// Runner fans probes out and gathers their outcomes. It never cancels a
// probe because a sibling failed and never retries.
type Runner struct {
	// Logger receives one warning per failed probe.
	Logger *slog.Logger

	// Stats is reset on every Run.
	Stats Stats

	// OnOutcome is called as each probe completes. It may be called from
	// several goroutines at once.
	OnOutcome func(Outcome)
}

// New creates a runner that logs to logger (slog.Default when nil).
func New(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{Logger: logger}
}

// Run executes every probe in its own goroutine and returns the outcomes in
// completion order once all have settled. Panics are recovered into
// ErrProbePanic.
func (r *Runner) Run(ctx context.Context, probes []Probe) []Outcome {
	if len(probes) == 0 {
		return nil
	}
	if r.Logger == nil {
		r.Logger = slog.Default()
	}
	r.Stats = Stats{Total: int64(len(probes)), StartTime: time.Now()}

	results := make(chan Outcome, len(probes))
	var wg sync.WaitGroup
	for _, p := range probes {
		wg.Add(1)
		go func(p Probe) {
			defer wg.Done()
			o := r.runOne(ctx, p)

			atomic.AddInt64(&r.Stats.Completed, 1)
			if o.Failed() {
				atomic.AddInt64(&r.Stats.Failed, 1)
				r.Logger.Warn("probe failed",
					slog.String("probe", o.Probe),
					slog.String("error", o.Err.Error()),
					slog.Duration("duration", o.Duration))
			} else {
				atomic.AddInt64(&r.Stats.Successful, 1)
			}
			if r.OnOutcome != nil {
				r.OnOutcome(o)
			}
			results <- o
		}(p)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	outcomes := make([]Outcome, 0, len(probes))
	for o := range results {
		outcomes = append(outcomes, o)
	}
	return outcomes
}

func (r *Runner) runOne(ctx context.Context, p Probe) (o Outcome) {
	start := time.Now()
	o.Probe = p.Name
	defer func() {
		o.Duration = time.Since(start)
		if rec := recover(); rec != nil {
			r.Logger.Error("probe panicked",
				slog.String("probe", p.Name),
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())))
			o.Findings = nil
			o.Err = fmt.Errorf("%w: %s: %v", ErrProbePanic, p.Name, rec)
		}
	}()

	if p.Run == nil {
		o.Err = fmt.Errorf("%w: %s", ErrNilProbe, p.Name)
		return o
	}
	found, err := p.Run(ctx)
	if err != nil {
		o.Err = err
		return o
	}
	o.Findings = found
	return o
}

// Collect flattens outcomes into one finding list, converting failures with
// AsFindings.
func Collect(outcomes []Outcome) []finding.Finding {
	var out []finding.Finding
	for _, o := range outcomes {
		out = append(out, o.AsFindings()...)
	}
	return out
}
