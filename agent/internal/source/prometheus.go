package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/bitdiag/bitdiag/agent/internal/config"
)

const (
	// recordFamily is the metric family a prometheus source reads. Each
	// sample carries one record in its bits label; the sample value is the
	// record's ordinal, which fixes the order of the diagnostic set.
	//
	//	diagnostic_record{bits="10110"} 0
	//	diagnostic_record{bits="01001"} 1
	recordFamily = "diagnostic_record"
	bitsLabel    = "bits"
)

type promReader struct {
	src    config.Source
	client *http.Client
}

// Read scrapes src.Endpoint in Prometheus text format and rebuilds the
// record list from the diagnostic_record family.
func (r *promReader) Read(ctx context.Context) (*ReadResult, error) {
	res := newResult(r.src)

	body, err := fetch(ctx, r.client, r.src.Endpoint, string(expfmt.NewFormat(expfmt.TypeTextPlain)))
	if err != nil {
		res.Err = fmt.Errorf("prometheus source %q: %w", r.src.ID, err)
		slog.Warn("source: prometheus fetch failed", "source", r.src.ID, "err", err)
		return res, nil
	}

	mfs, err := parseMetrics(bytes.NewReader(body))
	if err != nil {
		res.Err = fmt.Errorf("prometheus source %q: %w", r.src.ID, err)
		return res, nil
	}
	res.Text = recordsText(mfs[recordFamily])
	return res, nil
}

// parseMetrics decodes a Prometheus text exposition from r into metric families.
// A partial result with a non-fatal parse warning is still returned successfully.
func parseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	return mfs, nil
}

// recordsText turns the samples of mf into newline-separated records ordered
// by sample value. Returns "" if mf is nil; the engine then reports invalid
// input for an empty set.
func recordsText(mf *dto.MetricFamily) string {
	if mf == nil {
		return ""
	}
	type sample struct {
		ord  float64
		bits string
	}
	var samples []sample
	for _, m := range mf.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == bitsLabel {
				samples = append(samples, sample{ord: sampleValue(m), bits: lp.GetValue()})
				break
			}
		}
	}
	sort.SliceStable(samples, func(i, j int) bool { return samples[i].ord < samples[j].ord })

	var b strings.Builder
	for _, s := range samples {
		b.WriteString(s.bits)
		b.WriteByte('\n')
	}
	return b.String()
}

// sampleValue returns the gauge, counter, or untyped value of m.
func sampleValue(m *dto.Metric) float64 {
	switch {
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	case m.Counter != nil:
		return m.Counter.GetValue()
	case m.Untyped != nil:
		return m.Untyped.GetValue()
	}
	return 0
}
