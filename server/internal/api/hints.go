package api

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bitdiag/bitdiag/pkg/types"
)

// Hint is one human-readable note about a source's latest report.
// The UI shows these as chips on the source card; Detail is the longer
// explanation shown on click.
type Hint struct {
	// Key is a stable machine-readable identifier (used for dedup/ordering).
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical"
	Level string `json:"level"`
	// Title is a short label shown on the chip.
	Title string `json:"title"`
	// Detail is the full explanation.
	Detail string `json:"detail"`
	// Value is an optional number tied to the hint (e.g. uptime %).
	Value *float64 `json:"value,omitempty"`
}

const lowUptimePct = 90

// computeHints derives hints from a report, critical first.
func computeHints(r *types.Report) []Hint {
	var hints []Hint

	switch r.State {
	case types.StateUnreachable:
		return []Hint{{
			Key:   "unreachable",
			Level: "critical",
			Title: "Can't read source",
			Detail: fmt.Sprintf(
				"The agent couldn't read this source on its last poll and got: %q. "+
					"Check the path or endpoint, the credentials, and that the producer is running. "+
					"The last good numbers are not kept; the report stays empty until a read succeeds.",
				r.ErrorMessage),
		}}

	case types.StateInvalid:
		return []Hint{{
			Key:   "invalid_input",
			Level: "critical",
			Title: "Invalid input",
			Detail: fmt.Sprintf(
				"The source was read but its records could not be diagnosed: %q. "+
					"Every non-blank line must be made of '0' and '1' only, all lines must have "+
					"the same width (at most 64 digits), and there must be at least one line.",
				r.ErrorMessage),
		}}

	case types.StateUnderflow:
		return []Hint{{
			Key:   "underflow",
			Level: "warning",
			Title: "Rating underflow",
			Detail: "The rates were fine but one of the rating passes could not settle on a single record. " +
				"This happens when the set contains duplicate records that agree on every position, " +
				"or when the filter leaves no candidates. Remove duplicates from the input to get ratings.",
		}}

	case types.StateUnknown:
		return []Hint{{
			Key:    "no_data",
			Level:  "info",
			Title:  "No data yet",
			Detail: "The agent has registered this source but has not produced a diagnosis for it yet.",
		}}
	}

	if r.UptimePct < lowUptimePct {
		v := r.UptimePct
		hints = append(hints, Hint{
			Key:   "low_uptime",
			Level: "warning",
			Title: fmt.Sprintf("%.0f%% uptime", v),
			Detail: fmt.Sprintf(
				"Only %.0f%% of the recent polls of this source succeeded. The numbers shown are from the "+
					"latest good read, but the source has been flapping.", v),
			Value: &v,
		})
	}

	if n := len(r.TiePositions); n > 0 {
		v := float64(n)
		pos := make([]string, n)
		for i, p := range r.TiePositions {
			pos[i] = fmt.Sprint(p)
		}
		hints = append(hints, Hint{
			Key:   "tie_bias",
			Level: "info",
			Title: fmt.Sprintf("%d tied position(s)", n),
			Detail: fmt.Sprintf(
				"At position(s) %s exactly half the records have a '1'. Gamma takes '1' there and "+
					"epsilon takes '0', so a single extra record could flip those bits.",
				strings.Join(pos, ", ")),
			Value: &v,
		})
	}

	if r.Changed {
		hints = append(hints, Hint{
			Key:    "input_changed",
			Level:  "info",
			Title:  "Input changed",
			Detail: "The records differ from the previous poll, so the numbers may have moved.",
		})
	}

	if len(hints) == 0 {
		hints = append(hints, Hint{
			Key:    "healthy",
			Level:  "ok",
			Title:  "All good",
			Detail: "Rates and ratings were computed from a clean, unambiguous set.",
		})
	}

	sort.SliceStable(hints, func(i, j int) bool {
		return levelRank(hints[i].Level) < levelRank(hints[j].Level)
	})
	return hints
}

func levelRank(level string) int {
	switch level {
	case "critical":
		return 0
	case "warning":
		return 1
	case "info":
		return 2
	default:
		return 3
	}
}
