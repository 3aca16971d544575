package alerts

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/guidesense/guidesense/pkg/types"
	"github.com/guidesense/guidesense/server/internal/config"
)

const (
	defaultCooldown   = 15 * time.Minute
	maxHistoryLen     = 200
	recentWindowHours = 1
)

// Alert states.
const (
	StateFiring   = "firing"
	StateResolved = "resolved"
)

// Alert represents a single alert event produced by the rule engine.
type Alert struct {
	ID          string     `json:"id"`
	RuleName    string     `json:"rule_name"`
	Subject     string     `json:"subject"`
	GuideSpecID int64      `json:"guide_spec_id"`
	ReportID    string     `json:"report_id"`
	Severity    string     `json:"severity"`
	Message     string     `json:"message"`
	Value       float64    `json:"value"`
	FiredAt     time.Time  `json:"fired_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	State       string     `json:"state"` // "firing" | "resolved"
}

// Engine evaluates alert rules against incoming diagnosis reports and
// delivers webhook notifications when rules fire or resolve.
//
// Engine is safe for concurrent use.
type Engine struct {
	rules    []config.AlertRule
	webhooks []config.WebhookConfig
	now      func() time.Time

	mu       sync.Mutex
	active   map[string]*Alert    // key: "ruleName:subject"
	lastFire map[string]time.Time // last fire time per key (for cooldown)
	history  []*Alert             // recently resolved alerts
	client   *http.Client
	wg       sync.WaitGroup
}

// New creates an Engine from the server alert configuration.
// An Engine with empty rules is valid; Evaluate becomes a no-op.
func New(cfg config.AlertsConfig) *Engine {
	return &Engine{
		rules:    cfg.Rules,
		webhooks: cfg.Webhooks,
		now:      time.Now,
		active:   make(map[string]*Alert),
		lastFire: make(map[string]time.Time),
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Subject names the monitored unit a report belongs to: the registered guide
// spec when there is one, else the capture source, else the series.
func Subject(r *types.DiagnosisReport) string {
	switch {
	case r.GuideSpecID > 0:
		return "guide-" + strconv.FormatInt(r.GuideSpecID, 10)
	case r.Source != "":
		return r.Source
	default:
		return r.Series
	}
}

// Evaluate tests all configured rules against r.
// Alerts that fire are stored and webhook delivery is triggered asynchronously.
// Alerts that were firing but whose condition is now false are resolved.
func (e *Engine) Evaluate(r *types.DiagnosisReport) {
	if len(e.rules) == 0 {
		return
	}

	now := e.now()
	subject := Subject(r)
	for _, rule := range e.rules {
		key := rule.Name + ":" + subject
		fires, value := evalCondition(rule.Condition, r)

		e.mu.Lock()

		if fires {
			cooldown := rule.Cooldown
			if cooldown <= 0 {
				cooldown = defaultCooldown
			}
			if _, firing := e.active[key]; !firing && now.Sub(e.lastFire[key]) > cooldown {
				sev := rule.Severity
				if sev == "" {
					sev = "warning"
				}
				a := &Alert{
					ID:          fmt.Sprintf("%s:%s:%d", rule.Name, subject, now.UnixNano()),
					RuleName:    rule.Name,
					Subject:     subject,
					GuideSpecID: r.GuideSpecID,
					ReportID:    r.ID,
					Severity:    sev,
					Value:       value,
					Message: fmt.Sprintf("%s fired on %s (%s %s): %s = %.2f",
						rule.Name, subject, r.Series, r.Severity, rule.Condition, value),
					FiredAt: now,
					State:   StateFiring,
				}
				e.active[key] = a
				e.lastFire[key] = now
				alertCopy := *a
				e.mu.Unlock()

				slog.Warn("alert fired",
					"rule", rule.Name,
					"subject", subject,
					"value", value,
					"severity", sev,
				)
				e.send(&alertCopy)
			} else {
				e.mu.Unlock()
			}
		} else {
			if a, ok := e.active[key]; ok {
				resolved := now
				a.State = StateResolved
				a.ResolvedAt = &resolved
				a.ReportID = r.ID
				delete(e.active, key)

				e.history = append(e.history, a)
				if len(e.history) > maxHistoryLen {
					e.history = e.history[len(e.history)-maxHistoryLen:]
				}
				alertCopy := *a
				e.mu.Unlock()

				slog.Info("alert resolved",
					"rule", rule.Name,
					"subject", subject,
				)
				e.send(&alertCopy)
			} else {
				e.mu.Unlock()
			}
		}
	}
}

func (e *Engine) send(a *Alert) {
	if len(e.webhooks) == 0 {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.deliver(a)
	}()
}

// Wait blocks until every in-flight webhook delivery has finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Active returns copies of all currently firing alerts plus any alerts
// resolved within the past hour, sorted newest first.
func (e *Engine) Active() []*Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-recentWindowHours * time.Hour)
	out := make([]*Alert, 0, len(e.active))

	for _, a := range e.active {
		cp := *a
		out = append(out, &cp)
	}
	for _, a := range e.history {
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FiredAt.After(out[j].FiredAt) })
	return out
}

// Firing returns the number of currently firing alerts.
func (e *Engine) Firing() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}
