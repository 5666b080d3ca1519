package alerts

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bitdiag/bitdiag/pkg/types"
	"github.com/bitdiag/bitdiag/server/internal/config"
)

const (
	defaultCooldown = 15 * time.Minute
	maxHistoryLen   = 200
	recentWindow    = time.Hour
)

// Alert states.
const (
	StateFiring   = "firing"
	StateResolved = "resolved"
)

// Alert represents a single alert event produced by the rule engine.
type Alert struct {
	ID        string  `json:"id"`
	RuleName  string  `json:"rule_name"`
	Condition string  `json:"condition"`
	SourceID  string  `json:"source_id"`
	Severity  string  `json:"severity"`
	Message   string  `json:"message"`
	Field     string  `json:"field"`
	Value     float64 `json:"value"`

	// SourceState is the report state that triggered the alert, or that
	// cleared it once resolved.
	SourceState string `json:"source_state"`

	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	State      string     `json:"state"` // "firing" | "resolved"
}

type rule struct {
	config.AlertRule
	cond condition
}

// Engine evaluates alert rules against incoming Reports and delivers webhook
// notifications when rules fire or resolve.
//
// Engine is safe for concurrent use.
type Engine struct {
	rules    []rule
	webhooks []config.WebhookConfig
	client   *http.Client
	now      func() time.Time

	mu       sync.Mutex
	active   map[string]*Alert    // key: "ruleName:sourceID"
	lastFire map[string]time.Time // last fire time per key (for cooldown)
	history  []*Alert             // recently resolved alerts

	deliveries sync.WaitGroup
}

// New creates an Engine from the server alert configuration. Rules whose
// condition does not parse are logged and skipped. An Engine with no rules is
// valid; Evaluate becomes a no-op.
func New(cfg config.AlertsConfig) *Engine {
	e := &Engine{
		webhooks: cfg.Webhooks,
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
		active:   make(map[string]*Alert),
		lastFire: make(map[string]time.Time),
	}
	for _, r := range cfg.Rules {
		c, err := parseCondition(r.Condition)
		if err != nil {
			slog.Error("alerts: skipping rule", "rule", r.Name, "err", err)
			continue
		}
		if r.Severity == "" {
			r.Severity = "warning"
		}
		if r.Cooldown <= 0 {
			r.Cooldown = defaultCooldown
		}
		e.rules = append(e.rules, rule{AlertRule: r, cond: c})
	}
	return e
}

// Rules returns the number of active (parsed) rules.
func (e *Engine) Rules() int { return len(e.rules) }

// Evaluate tests all configured rules against r.
// Alerts that fire are stored and webhook delivery is triggered asynchronously.
// Alerts that were firing but whose condition is now false are resolved.
func (e *Engine) Evaluate(r *types.Report) {
	if len(e.rules) == 0 {
		return
	}

	now := e.now()
	for _, rl := range e.rules {
		key := rl.Name + ":" + r.SourceID
		fires, value := rl.cond.eval(r)

		e.mu.Lock()
		var out *Alert
		if fires {
			if _, firing := e.active[key]; !firing && now.Sub(e.lastFire[key]) > rl.Cooldown {
				a := &Alert{
					ID:          uuid.NewString(),
					RuleName:    rl.Name,
					Condition:   rl.Condition,
					SourceID:    r.SourceID,
					Severity:    rl.Severity,
					Field:       rl.cond.field,
					Value:       value,
					SourceState: r.State,
					Message:     message(rl, r, value),
					FiredAt:     now,
					State:       StateFiring,
				}
				e.active[key] = a
				e.lastFire[key] = now
				cp := *a
				out = &cp
				slog.Warn("alert fired",
					"rule", rl.Name,
					"source", r.SourceID,
					"value", value,
					"severity", rl.Severity,
				)
			}
		} else if a, ok := e.active[key]; ok {
			resolved := now
			a.State = StateResolved
			a.ResolvedAt = &resolved
			a.SourceState = r.State
			delete(e.active, key)

			e.history = append(e.history, a)
			if len(e.history) > maxHistoryLen {
				e.history = e.history[len(e.history)-maxHistoryLen:]
			}
			cp := *a
			out = &cp
			slog.Info("alert resolved", "rule", rl.Name, "source", r.SourceID)
		}
		e.mu.Unlock()

		if out != nil && len(e.webhooks) > 0 {
			e.deliveries.Add(1)
			go func() {
				defer e.deliveries.Done()
				e.deliver(out)
			}()
		}
	}
}

// Active returns copies of all currently firing alerts plus any alerts
// resolved within the past hour, newest first.
func (e *Engine) Active() []*Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-recentWindow)
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

// Wait blocks until every in-flight webhook delivery has finished.
func (e *Engine) Wait() {
	e.deliveries.Wait()
}

func message(r rule, rep *types.Report, value float64) string {
	if r.cond.field == "state" {
		return fmt.Sprintf("[%s] %s fired on %s: state is %s", r.Severity, r.Name, rep.SourceID, rep.State)
	}
	return fmt.Sprintf("[%s] %s fired on %s: %s (value %g)", r.Severity, r.Name, rep.SourceID, r.Condition, value)
}
