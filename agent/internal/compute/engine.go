package compute

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bitdiag/bitdiag/agent/internal/source"
	"github.com/bitdiag/bitdiag/pkg/diagnostic"
	"github.com/bitdiag/bitdiag/pkg/types"
)

// uptimeWindow is the number of recent poll outcomes tracked for uptime %.
const uptimeWindow = 20

// Engine maintains per-source state across polls and turns raw ReadResults
// into Reports.
//
// All exported methods are safe for concurrent use.
type Engine struct {
	mu     sync.Mutex
	states map[string]*sourceState
}

// NewEngine returns a ready-to-use Engine.
func NewEngine() *Engine {
	return &Engine{states: make(map[string]*sourceState)}
}

// Process diagnoses one ReadResult and returns the resulting Report.
//
// now is passed explicitly so callers (and tests) control the clock. Use
// time.Now() in production.
//
// A read failure yields state "unreachable". Text that fails to parse or
// diagnose yields "invalid" or "underflow" with ErrorMessage set and all
// numeric fields zero. Only reachable polls count towards UptimePct.
func (e *Engine) Process(res *source.ReadResult, now time.Time) *types.Report {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.stateFor(res.SourceID)
	reachable := res.Err == nil
	st.recordPoll(reachable)

	out := &types.Report{
		ID:         uuid.NewString(),
		SourceID:   res.SourceID,
		SourceType: res.SourceType,
		Timestamp:  now,
		UptimePct:  st.uptimePct(),
	}

	if !reachable {
		slog.Warn("compute: read failed, marking unreachable",
			"source", res.SourceID, "err", res.Err)
		out.State = types.StateUnreachable
		out.ErrorMessage = res.Err.Error()
		return out
	}

	out.Digest = digest(res.Text)
	out.Changed = out.Digest != st.prevDigest
	st.prevDigest = out.Digest

	report, err := diagnose(res.Text)
	out.State = Classify(err)
	if err != nil {
		slog.Warn("compute: diagnose failed",
			"source", res.SourceID, "state", out.State, "err", err)
		out.ErrorMessage = err.Error()
		return out
	}

	out.Records = report.Records
	out.Width = report.Width
	out.Gamma = report.Rates.Gamma
	out.Epsilon = report.Rates.Epsilon
	out.PowerConsumption = report.PowerConsumption()
	out.Oxygen = report.Ratings.Oxygen
	out.CO2 = report.Ratings.CO2
	out.LifeSupport = report.LifeSupport()
	out.TiePositions = report.Rates.Ties()

	if out.Changed {
		slog.Info("compute: report updated",
			"source", res.SourceID,
			"records", out.Records,
			"power_consumption", out.PowerConsumption,
			"life_support", out.LifeSupport,
		)
	}
	return out
}

// Forget drops all state kept for sourceID. Used when a source is removed
// by a config reload.
func (e *Engine) Forget(sourceID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.states, sourceID)
}

func diagnose(text string) (diagnostic.Report, error) {
	records, err := diagnostic.Parse(text)
	if err != nil {
		return diagnostic.Report{}, err
	}
	return diagnostic.Diagnose(records)
}

func digest(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// sourceState holds the previous input digest and availability history.
type sourceState struct {
	prevDigest string
	history    []bool // circular buffer of poll outcomes, newest last
}

func (e *Engine) stateFor(id string) *sourceState {
	if st, ok := e.states[id]; ok {
		return st
	}
	st := &sourceState{}
	e.states[id] = st
	return st
}

func (st *sourceState) recordPoll(reachable bool) {
	if len(st.history) >= uptimeWindow {
		st.history = st.history[1:]
	}
	st.history = append(st.history, reachable)
}

func (st *sourceState) uptimePct() float64 {
	if len(st.history) == 0 {
		return 100 // assume up before first observation
	}
	var ok int
	for _, s := range st.history {
		if s {
			ok++
		}
	}
	return float64(ok) / float64(len(st.history)) * 100
}
