package metrics

import (
	"bytes"
	"log/slog"
	"net/http"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/bitdiag/bitdiag/pkg/types"
	"github.com/bitdiag/bitdiag/server/internal/store"
)

// Exporter serves the live store as Prometheus gauges. Values are computed
// at scrape time, so nothing has to be kept in sync with the receiver.
type Exporter struct {
	store *store.Store
}

// New returns an Exporter reading from st.
func New(st *store.Store) *Exporter {
	return &Exporter{store: st}
}

// gauge describes one per-source numeric family.
type gauge struct {
	name   string
	help   string
	value  func(*types.Report) float64
	okOnly bool // emitted only for reports in state ok
}

var gauges = []gauge{
	{"bitdiag_gamma", "Gamma rate of the latest report.", func(r *types.Report) float64 { return float64(r.Gamma) }, true},
	{"bitdiag_epsilon", "Epsilon rate of the latest report.", func(r *types.Report) float64 { return float64(r.Epsilon) }, true},
	{"bitdiag_power_consumption", "Gamma times epsilon.", func(r *types.Report) float64 { return float64(r.PowerConsumption) }, true},
	{"bitdiag_oxygen_rating", "Oxygen generator rating of the latest report.", func(r *types.Report) float64 { return float64(r.Oxygen) }, true},
	{"bitdiag_co2_rating", "CO2 scrubber rating of the latest report.", func(r *types.Report) float64 { return float64(r.CO2) }, true},
	{"bitdiag_life_support", "Oxygen rating times CO2 rating.", func(r *types.Report) float64 { return float64(r.LifeSupport) }, true},
	{"bitdiag_records", "Number of records in the latest diagnosed set.", func(r *types.Report) float64 { return float64(r.Records) }, true},
	{"bitdiag_tie_positions", "Bit positions where ones and zeros split evenly.", func(r *types.Report) float64 { return float64(len(r.TiePositions)) }, true},
	{"bitdiag_uptime_pct", "Share of recent polls that read the source successfully.", func(r *types.Report) float64 { return r.UptimePct }, false},
}

var states = []string{
	types.StateOK,
	types.StateInvalid,
	types.StateUnderflow,
	types.StateUnreachable,
	types.StateUnknown,
}

// Families builds the metric families for the current store contents.
func (e *Exporter) Families() []*dto.MetricFamily {
	entries := e.store.List()

	out := make([]*dto.MetricFamily, 0, len(gauges)+2)
	out = append(out, &dto.MetricFamily{
		Name:   ptr("bitdiag_sources"),
		Help:   ptr("Number of sources with a live report."),
		Type:   dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{gaugeMetric(float64(len(entries)))},
	})

	for _, g := range gauges {
		mf := &dto.MetricFamily{
			Name: ptr(g.name),
			Help: ptr(g.help),
			Type: dto.MetricType_GAUGE.Enum(),
		}
		for _, en := range entries {
			r := en.Report
			if g.okOnly && r.State != types.StateOK {
				continue
			}
			mf.Metric = append(mf.Metric, gaugeMetric(g.value(r), label("source_id", r.SourceID)))
		}
		if len(mf.Metric) > 0 {
			out = append(out, mf)
		}
	}

	if len(entries) > 0 {
		mf := &dto.MetricFamily{
			Name: ptr("bitdiag_state"),
			Help: ptr("1 for the current state of each source, 0 for the others."),
			Type: dto.MetricType_GAUGE.Enum(),
		}
		for _, en := range entries {
			for _, s := range states {
				v := 0.0
				if en.Report.State == s {
					v = 1
				}
				mf.Metric = append(mf.Metric, gaugeMetric(v,
					label("source_id", en.Report.SourceID), label("state", s)))
			}
		}
		out = append(out, mf)
	}
	return out
}

// ServeHTTP writes Families in the Prometheus text exposition format.
func (e *Exporter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var buf bytes.Buffer
	for _, mf := range e.Families() {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			slog.Error("metrics: encode family", "family", mf.GetName(), "err", err)
			http.Error(w, "encode metrics", http.StatusInternalServerError)
			return
		}
	}
	w.Header().Set("Content-Type", string(expfmt.NewFormat(expfmt.TypeTextPlain)))
	w.Write(buf.Bytes()) //nolint:errcheck
}

func gaugeMetric(v float64, labels ...*dto.LabelPair) *dto.Metric {
	return &dto.Metric{Label: labels, Gauge: &dto.Gauge{Value: ptr(v)}}
}

func label(name, value string) *dto.LabelPair {
	return &dto.LabelPair{Name: ptr(name), Value: ptr(value)}
}

func ptr[T any](v T) *T { return &v }
