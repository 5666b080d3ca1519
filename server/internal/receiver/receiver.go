package receiver

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/bitdiag/bitdiag/pkg/types"
	"github.com/bitdiag/bitdiag/server/internal/alerts"
	"github.com/bitdiag/bitdiag/server/internal/store"
)

// maxBodyBytes bounds a single POST; agents send at most 100 reports.
const maxBodyBytes = 4 << 20

// Receiver is the HTTP endpoint that accepts Reports from bitdiag-agent
// instances. Authentication is enforced upstream by auth.APIKey, so the
// receiver itself only performs structural validation.
type Receiver struct {
	store   *store.Store
	history *store.History // nil when history is disabled
	alerts  *alerts.Engine
	now     func() time.Time
}

// New creates a Receiver that writes accepted reports to st, appends them to
// hist when it is non-nil, and runs them through the alert engine.
func New(st *store.Store, hist *store.History, al *alerts.Engine) *Receiver {
	return &Receiver{store: st, history: hist, alerts: al, now: time.Now}
}

type acceptResponse struct {
	Accepted int `json:"accepted"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ServeHTTP handles POST /api/v1/reports. The body is either a single Report
// object or a JSON array of them. The whole batch is rejected with 400 if any
// report is malformed; nothing is stored in that case.
func (rc *Receiver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	reports, err := decode(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	for i, rep := range reports {
		if err := validate(rep); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("reports[%d]: %v", i, err)})
			return
		}
	}

	for _, rep := range reports {
		rc.accept(r.Context(), rep)
	}
	writeJSON(w, http.StatusAccepted, acceptResponse{Accepted: len(reports)})
}

// accept publishes rep. The ID is fixed before Put because stored reports
// are shared with concurrent readers and must not change afterwards.
func (rc *Receiver) accept(ctx context.Context, rep *types.Report) {
	if rep.ID == "" {
		rep.ID = uuid.NewString()
	}
	rc.store.Put(rep)
	if rc.history != nil {
		if err := rc.history.Append(ctx, rep, rc.now()); err != nil {
			slog.Warn("receiver: history append failed", "source_id", rep.SourceID, "err", err)
		}
	}
	if rc.alerts != nil {
		rc.alerts.Evaluate(rep)
	}

	slog.Debug("receiver: report stored",
		"source_id", rep.SourceID,
		"source_type", rep.SourceType,
		"state", rep.State,
		"power_consumption", rep.PowerConsumption,
		"life_support", rep.LifeSupport,
	)
}

// decode reads either one Report or an array of Reports.
func decode(body io.Reader) ([]*types.Report, error) {
	br := bufio.NewReader(body)
	first, err := peekNonSpace(br)
	if err != nil {
		return nil, fmt.Errorf("empty body")
	}

	dec := json.NewDecoder(br)
	if first == '[' {
		var reports []*types.Report
		if err := dec.Decode(&reports); err != nil {
			return nil, fmt.Errorf("decode reports: %w", err)
		}
		if len(reports) == 0 {
			return nil, fmt.Errorf("empty report batch")
		}
		return reports, nil
	}

	var rep types.Report
	if err := dec.Decode(&rep); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return []*types.Report{&rep}, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}

func validate(rep *types.Report) error {
	if rep == nil {
		return fmt.Errorf("null report")
	}
	if rep.SourceID == "" {
		return fmt.Errorf("source_id is required")
	}
	switch rep.State {
	case types.StateOK, types.StateInvalid, types.StateUnderflow, types.StateUnreachable, types.StateUnknown:
	case "":
		rep.State = types.StateUnknown
	default:
		return fmt.Errorf("unknown state %q", rep.State)
	}
	if rep.State == types.StateOK && (rep.Width < 1 || rep.Records < 1) {
		return fmt.Errorf("ok report needs records and width")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}
