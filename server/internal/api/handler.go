package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bitdiag/bitdiag/pkg/diagnostic"
	"github.com/bitdiag/bitdiag/pkg/types"
	"github.com/bitdiag/bitdiag/server/internal/alerts"
	"github.com/bitdiag/bitdiag/server/internal/store"
)

// maxDiagnoseBytes bounds the record text accepted by POST /api/v1/diagnose.
const maxDiagnoseBytes = 1 << 20

// Handler is the HTTP handler for all /api/v1/* read endpoints plus the
// stateless diagnose endpoint.
type Handler struct {
	store   *store.Store
	history *store.History // nil when history is disabled
	alerts  *alerts.Engine
	mux     *http.ServeMux
	now     func() time.Time
}

// New creates a Handler wired to the given stores and alert engine and
// registers all routes. hist may be nil.
func New(st *store.Store, hist *store.History, al *alerts.Engine) *Handler {
	h := &Handler{store: st, history: hist, alerts: al, mux: http.NewServeMux(), now: time.Now}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/reports", h.listReports)
	h.mux.HandleFunc("/api/v1/reports/", h.reportSubtree) // {id} and {id}/history
	h.mux.HandleFunc("/api/v1/diagnose", h.diagnose)
	h.mux.HandleFunc("/api/v1/alerts", h.listAlerts)
	h.mux.HandleFunc("/api/v1/snapshot", h.snapshot)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// Snapshot builds the full state dump served by /api/v1/snapshot and pushed
// by the WebSocket hub.
func (h *Handler) Snapshot() SnapshotResponse {
	entries := h.store.List()
	reports := make([]ReportResponse, 0, len(entries))
	for _, e := range entries {
		reports = append(reports, toReportResponse(e))
	}
	var active []*alerts.Alert
	if h.alerts != nil {
		active = h.alerts.Active()
	}
	if active == nil {
		active = []*alerts.Alert{}
	}
	return SnapshotResponse{
		Reports:     reports,
		Alerts:      active,
		GeneratedAt: h.now().UTC().Format(time.RFC3339),
	}
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health: state counts across live sources.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	entries := h.store.List()
	resp := HealthResponse{
		SourceCount:    len(entries),
		HistoryEnabled: h.history != nil,
	}
	if h.alerts != nil {
		for _, a := range h.alerts.Active() {
			if a.State == alerts.StateFiring {
				resp.AlertCount++
			}
		}
	}

	for _, e := range entries {
		switch e.Report.State {
		case types.StateOK:
			resp.OKCount++
		case types.StateInvalid:
			resp.InvalidCount++
		case types.StateUnderflow:
			resp.UnderflowCount++
		case types.StateUnreachable:
			resp.UnreachableCount++
		default:
			resp.UnknownCount++
		}
	}

	switch {
	case len(entries) == 0:
		resp.State = types.StateUnknown
	case resp.OKCount == len(entries):
		resp.State = "ok"
	case resp.OKCount == 0:
		resp.State = "critical"
	default:
		resp.State = "degraded"
	}
	jsonResp(w, http.StatusOK, resp)
}

// listReports returns GET /api/v1/reports: the latest report of every live source.
func (h *Handler) listReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.Snapshot().Reports)
}

// reportSubtree dispatches /api/v1/reports/{id} and /api/v1/reports/{id}/history.
func (h *Handler) reportSubtree(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/reports/")
	if rest == "" {
		h.listReports(w, r)
		return
	}
	if id, ok := strings.CutSuffix(rest, "/history"); ok && id != "" {
		h.reportHistory(w, r, id)
		return
	}
	if strings.Contains(rest, "/") {
		jsonErr(w, http.StatusNotFound, "not found")
		return
	}
	h.getReport(w, rest)
}

// getReport serves GET /api/v1/reports/{id}: a single live report.
func (h *Handler) getReport(w http.ResponseWriter, id string) {
	e, ok := h.store.Get(id)
	// Stale entries are treated as not found.
	if !ok || h.now().Sub(e.UpdatedAt) > h.store.TTL() {
		jsonErr(w, http.StatusNotFound, "source not found")
		return
	}
	jsonResp(w, http.StatusOK, toReportResponse(e))
}

// reportHistory serves GET /api/v1/reports/{id}/history?limit=N&since=RFC3339.
func (h *Handler) reportHistory(w http.ResponseWriter, r *http.Request, id string) {
	if h.history == nil {
		jsonErr(w, http.StatusNotFound, "history is disabled")
		return
	}

	q := r.URL.Query()
	limit := store.DefaultHistoryLimit
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 1000 {
			jsonErr(w, http.StatusBadRequest, "limit must be an integer in [1, 1000]")
			return
		}
		limit = n
	}
	var since time.Time
	if s := q.Get("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			jsonErr(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		since = t
	}

	reports, err := h.history.Query(r.Context(), id, since, limit)
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	if reports == nil {
		reports = []*types.Report{}
	}
	jsonResp(w, http.StatusOK, HistoryResponse{SourceID: id, Reports: reports})
}

// diagnose serves POST /api/v1/diagnose. The body is raw record text, one
// binary string per line. Failures answer 422 with the error kind.
func (h *Handler) diagnose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDiagnoseBytes))
	if err != nil {
		jsonErr(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	records, err := diagnostic.Parse(string(body))
	if err == nil {
		var rep diagnostic.Report
		rep, err = diagnostic.Diagnose(records)
		if err == nil {
			jsonResp(w, http.StatusOK, toDiagnoseResponse(rep))
			return
		}
	}

	kind := KindInvalidInput
	if errors.Is(err, diagnostic.ErrUnderflow) {
		kind = KindUnderflow
	}
	jsonResp(w, http.StatusUnprocessableEntity, DiagnoseError{Error: err.Error(), Kind: kind})
}

// listAlerts returns GET /api/v1/alerts: firing alerts plus those resolved
// within the past hour.
func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.Snapshot().Alerts)
}

// snapshot returns GET /api/v1/snapshot: full JSON dump of live state.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.Snapshot())
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

// toReportResponse maps a store.Entry to its JSON representation.
func toReportResponse(e *store.Entry) ReportResponse {
	rep := *e.Report
	out := ReportResponse{
		Report:   rep,
		Hints:    computeHints(&rep),
		LastSeen: e.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if rep.State == types.StateOK && rep.Width > 0 && rep.Width <= diagnostic.MaxWidth {
		out.GammaBits = diagnostic.Bits(rep.Gamma, rep.Width)
		out.EpsilonBits = diagnostic.Bits(rep.Epsilon, rep.Width)
		out.OxygenBits = diagnostic.Bits(rep.Oxygen, rep.Width)
		out.CO2Bits = diagnostic.Bits(rep.CO2, rep.Width)
	}
	return out
}

func toDiagnoseResponse(rep diagnostic.Report) DiagnoseResponse {
	ties := rep.Rates.Ties()
	if ties == nil {
		ties = []int{}
	}
	return DiagnoseResponse{
		Records:          rep.Records,
		Width:            rep.Width,
		Gamma:            rep.Rates.Gamma,
		Epsilon:          rep.Rates.Epsilon,
		PowerConsumption: rep.PowerConsumption(),
		Oxygen:           rep.Ratings.Oxygen,
		CO2:              rep.Ratings.CO2,
		LifeSupport:      rep.LifeSupport(),
		GammaBits:        diagnostic.Bits(rep.Rates.Gamma, rep.Width),
		EpsilonBits:      diagnostic.Bits(rep.Rates.Epsilon, rep.Width),
		OxygenBits:       diagnostic.Bits(rep.Ratings.Oxygen, rep.Width),
		CO2Bits:          diagnostic.Bits(rep.Ratings.CO2, rep.Width),
		Ones:             rep.Rates.Ones,
		TiePositions:     ties,
		OxygenSteps:      rep.Ratings.OxygenSteps,
		CO2Steps:         rep.Ratings.CO2Steps,
	}
}
