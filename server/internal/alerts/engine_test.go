package alerts

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/guidesense/guidesense/pkg/types"
	"github.com/guidesense/guidesense/server/internal/config"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestEngine(cfg config.AlertsConfig) (*Engine, *fakeClock) {
	clk := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	e := New(cfg)
	e.now = clk.now
	return e, clk
}

func lowHealthRule() config.AlertRule {
	return config.AlertRule{Name: "low-health", Condition: "health_score < 60", Severity: "critical", Cooldown: time.Minute}
}

func TestEvaluate_NoRules_NoOp(t *testing.T) {
	e, _ := newTestEngine(config.AlertsConfig{})
	e.Evaluate(sampleReport())
	if n := len(e.Active()); n != 0 {
		t.Errorf("Active: got %d, want 0", n)
	}
}

func TestEvaluate_FiresAndResolves(t *testing.T) {
	e, clk := newTestEngine(config.AlertsConfig{Rules: []config.AlertRule{lowHealthRule()}})

	e.Evaluate(sampleReport())
	active := e.Active()
	if len(active) != 1 {
		t.Fatalf("Active: got %d, want 1", len(active))
	}
	a := active[0]
	if a.State != StateFiring || a.Subject != "guide-3" || a.Value != 55 || a.Severity != "critical" {
		t.Errorf("alert: %+v", a)
	}
	if e.Firing() != 1 {
		t.Errorf("Firing: got %d, want 1", e.Firing())
	}

	healthy := sampleReport()
	healthy.ID = "r2"
	healthy.HealthScore = 90
	clk.advance(time.Minute)
	e.Evaluate(healthy)

	active = e.Active()
	if len(active) != 1 || active[0].State != StateResolved || active[0].ResolvedAt == nil {
		t.Fatalf("after recovery: %+v", active)
	}
	if active[0].ReportID != "r2" {
		t.Errorf("ReportID: got %q, want r2", active[0].ReportID)
	}
	if e.Firing() != 0 {
		t.Errorf("Firing: got %d, want 0", e.Firing())
	}

	clk.advance(2 * time.Hour)
	if n := len(e.Active()); n != 0 {
		t.Errorf("resolved alert older than an hour still listed: %d", n)
	}
}

func TestEvaluate_StillFiring_DoesNotDuplicate(t *testing.T) {
	e, clk := newTestEngine(config.AlertsConfig{Rules: []config.AlertRule{lowHealthRule()}})
	e.Evaluate(sampleReport())
	clk.advance(10 * time.Minute)
	e.Evaluate(sampleReport())
	if n := len(e.Active()); n != 1 {
		t.Errorf("Active: got %d, want 1", n)
	}
}

func TestEvaluate_Cooldown(t *testing.T) {
	rule := lowHealthRule()
	rule.Cooldown = time.Hour
	e, clk := newTestEngine(config.AlertsConfig{Rules: []config.AlertRule{rule}})

	healthy := sampleReport()
	healthy.HealthScore = 95

	e.Evaluate(sampleReport())
	clk.advance(time.Minute)
	e.Evaluate(healthy)
	clk.advance(time.Minute)
	e.Evaluate(sampleReport())
	if e.Firing() != 0 {
		t.Errorf("re-fired inside cooldown")
	}

	clk.advance(2 * time.Hour)
	e.Evaluate(sampleReport())
	if e.Firing() != 1 {
		t.Errorf("did not fire after cooldown elapsed")
	}
}

func TestEvaluate_SubjectsAreIndependent(t *testing.T) {
	e, _ := newTestEngine(config.AlertsConfig{Rules: []config.AlertRule{lowHealthRule()}})
	a := sampleReport()
	b := sampleReport()
	b.GuideSpecID = 0
	b.Source = "press-line-2"
	e.Evaluate(a)
	e.Evaluate(b)
	if e.Firing() != 2 {
		t.Errorf("Firing: got %d, want 2", e.Firing())
	}
}

func TestSubject(t *testing.T) {
	tests := []struct {
		r    types.DiagnosisReport
		want string
	}{
		{types.DiagnosisReport{GuideSpecID: 7, Source: "s", Series: "HRC25"}, "guide-7"},
		{types.DiagnosisReport{Source: "s", Series: "HRC25"}, "s"},
		{types.DiagnosisReport{Series: "HRC25"}, "HRC25"},
	}
	for _, tc := range tests {
		if got := Subject(&tc.r); got != tc.want {
			t.Errorf("Subject(%+v): got %q, want %q", tc.r, got, tc.want)
		}
	}
}

func TestDeliver_Webhooks(t *testing.T) {
	var mu sync.Mutex
	bodies := map[string]map[string]interface{}{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode webhook body: %v", err)
		}
		mu.Lock()
		bodies[r.URL.Path] = body
		mu.Unlock()
	}))
	defer srv.Close()

	t.Setenv("SLACK_URL", srv.URL+"/slack")
	t.Setenv("TEAMS_URL", srv.URL+"/teams")
	t.Setenv("HOOK_URL", srv.URL+"/http")
	t.Setenv("CRIT_ONLY_URL", srv.URL+"/critical-only")

	rule := lowHealthRule()
	rule.Severity = "warning"
	e, _ := newTestEngine(config.AlertsConfig{
		Rules: []config.AlertRule{rule},
		Webhooks: []config.WebhookConfig{
			{Type: "slack", URLEnv: "SLACK_URL"},
			{Type: "teams", URLEnv: "TEAMS_URL"},
			{Type: "http", URLEnv: "HOOK_URL"},
			{Type: "http", URLEnv: "CRIT_ONLY_URL", MinSeverity: "critical"},
			{Type: "slack", URLEnv: "UNSET_URL"},
		},
	})
	e.Evaluate(sampleReport())
	e.Wait()

	mu.Lock()
	defer mu.Unlock()
	if text, _ := bodies["/slack"]["text"].(string); !strings.Contains(text, "[WARNING]") || !strings.Contains(text, "low-health") {
		t.Errorf("slack body: %v", bodies["/slack"])
	}
	if title, _ := bodies["/teams"]["title"].(string); !strings.Contains(title, "guide-3") {
		t.Errorf("teams body: %v", bodies["/teams"])
	}
	alert, _ := bodies["/http"]["alert"].(map[string]interface{})
	if alert["rule_name"] != "low-health" || alert["state"] != StateFiring {
		t.Errorf("http body: %v", bodies["/http"])
	}
	if _, ok := bodies["/critical-only"]; ok {
		t.Error("warning alert delivered to critical-only webhook")
	}
}

func TestPost_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	e := New(config.AlertsConfig{})
	if err := e.post(srv.URL, []byte(`{}`)); err == nil {
		t.Fatal("expected error for 502, got nil")
	}
}

func TestPayloads_Resolved(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := &Alert{RuleName: "low-health", Subject: "guide-3", Severity: "critical", State: StateResolved, ReportID: "r9", FiredAt: now}

	if text, _ := slackPayload(a)["text"].(string); !strings.HasPrefix(text, "*[RESOLVED]*") {
		t.Errorf("slack text: %q", text)
	}
	teams := teamsPayload(a)
	if title, _ := teams["title"].(string); !strings.Contains(title, "Resolved") {
		t.Errorf("teams title: %q", title)
	}
	if teams["themeColor"] != "2EB67D" {
		t.Errorf("teams color: %v", teams["themeColor"])
	}
}
