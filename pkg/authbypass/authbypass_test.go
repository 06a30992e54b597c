package authbypass

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/waftester/vulnprobe/pkg/attackconfig"
	"github.com/waftester/vulnprobe/pkg/finding"
	"github.com/waftester/vulnprobe/pkg/httpclient"
)

func newDetector(t *testing.T, srv *httptest.Server) *Detector {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Client = httpclient.Wrap(srv.Client())
	return NewDetector(cfg)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if len(cfg.AdminPaths) != 5 {
		t.Errorf("AdminPaths = %d, want 5", len(cfg.AdminPaths))
	}
	if len(cfg.PollutionCases) != 4 {
		t.Errorf("PollutionCases = %d, want 4", len(cfg.PollutionCases))
	}
	if len(cfg.EscalationParams) != 3 {
		t.Errorf("EscalationParams = %d, want 3", len(cfg.EscalationParams))
	}
	if len(cfg.DebugPaths) != 10 {
		t.Errorf("DebugPaths = %d, want 10", len(cfg.DebugPaths))
	}
	if cfg.DebugTimeout != httpclient.TimeoutProbing {
		t.Errorf("DebugTimeout = %v, want %v", cfg.DebugTimeout, httpclient.TimeoutProbing)
	}
}

func TestNewDetector_FillsDefaults(t *testing.T) {
	d := NewDetector(Config{})
	if d == nil {
		t.Fatal("NewDetector returned nil")
	}
	if len(d.config.AdminPaths) != 5 || d.config.Client == nil || d.config.Logger == nil {
		t.Error("NewDetector should fill unset fields")
	}
}

func TestMissingAuth_OpenAdmin(t *testing.T) {
	var sawAuth atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			sawAuth.Store(true)
		}
		if r.URL.Path == "/admin" {
			w.Write([]byte("admin console"))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	hc := httpclient.New(httpclient.Config{AuthHeaders: http.Header{"Authorization": {"Bearer t"}}})
	cfg := DefaultConfig()
	cfg.Client = httpclient.Wrap(hc)
	d := NewDetector(cfg)

	got, err := d.MissingAuth(context.Background(), srv.URL+"/")
	if err != nil {
		t.Fatalf("MissingAuth error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("findings = %d, want 1", len(got))
	}
	f := got[0]
	if f.Kind != finding.KindBrokenAuth || f.Severity != finding.High {
		t.Errorf("got %s/%s, want BROKEN_AUTH/HIGH", f.Kind, f.Severity)
	}
	if f.Description != "Admin endpoint accessible without authentication: /admin" {
		t.Errorf("Description = %q", f.Description)
	}
	if f.Endpoint != srv.URL+"/admin" {
		t.Errorf("Endpoint = %q, want trailing slash trimmed", f.Endpoint)
	}
	if sawAuth.Load() {
		t.Error("missing-auth requests must not carry credentials")
	}
}

func TestParameterPollution(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("role") == "admin" {
			w.Write([]byte("Welcome ADMIN"))
			return
		}
		w.Write([]byte("hello guest"))
	}))
	defer srv.Close()

	got, err := newDetector(t, srv).ParameterPollution(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("ParameterPollution error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("findings = %d, want 1", len(got))
	}
	f := got[0]
	if f.Kind != finding.KindAuthBypass || f.Severity != finding.Medium {
		t.Errorf("got %s/%s, want AUTH_BYPASS/MEDIUM", f.Kind, f.Severity)
	}
	if f.Evidence.Parameters["role"] != "admin" {
		t.Errorf("evidence parameters = %v", f.Evidence.Parameters)
	}
}

func TestRoleBypass_OneFindingPerParam(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("permission") == "full" {
			// both keywords present; still one finding
			w.Write([]byte("access granted: admin"))
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	got, err := newDetector(t, srv).RoleBypass(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("RoleBypass error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("findings = %d, want 1", len(got))
	}
	if got[0].Description != "Vertical privilege escalation via permission=full" {
		t.Errorf("Description = %q", got[0].Description)
	}
	if got[0].Kind != finding.KindPrivilegeEscalation {
		t.Errorf("Kind = %s", got[0].Kind)
	}
}

func TestDebugEndpoints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/actuator", "/metrics":
			w.Write([]byte("{}"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	got, err := newDetector(t, srv).DebugEndpoints(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("DebugEndpoints error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("findings = %d, want 2", len(got))
	}
	for _, f := range got {
		if f.Kind != finding.KindExposedDebug || f.Severity != finding.High {
			t.Errorf("got %s/%s", f.Kind, f.Severity)
		}
		if !strings.HasPrefix(f.Description, "Debug endpoint exposed: /") {
			t.Errorf("Description = %q", f.Description)
		}
	}
}

func TestRun_HardenedTargetHasNoFindings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	if got := newDetector(t, srv).Run(context.Background(), srv.URL); len(got) != 0 {
		t.Errorf("findings = %d, want 0", len(got))
	}
}

func TestRun_UnreachableTargetIsFailSoft(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	cfg := DefaultConfig()
	cfg.Client = httpclient.NewClient(httpclient.WithTimeout(httpclient.TimeoutProbing))
	got := NewDetector(cfg).Run(context.Background(), url)
	if len(got) != 0 {
		t.Errorf("findings = %d, want 0 for unreachable target", len(got))
	}
}

func TestRun_NotifiesEachFinding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	var notified atomic.Int32
	cfg := Config{Base: attackconfig.Base{
		Client:    httpclient.Wrap(srv.Client()),
		OnFinding: func(finding.Finding) { notified.Add(1) },
	}}
	got := NewDetector(cfg).Run(context.Background(), srv.URL)

	// every admin and debug path answers 200; bodies lack keywords except "ok"
	want := 5 + 10
	if len(got) != want {
		t.Fatalf("findings = %d, want %d", len(got), want)
	}
	if int(notified.Load()) != len(got) {
		t.Errorf("notified %d times, want %d", notified.Load(), len(got))
	}
}
