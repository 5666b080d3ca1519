package types

import "time"

// Report states.
const (
	StateOK          = "ok"
	StateInvalid     = "invalid"
	StateUnderflow   = "underflow"
	StateUnreachable = "unreachable"
	StateUnknown     = "unknown"
)

// Report is one source's diagnostic result for a single poll.
// Numeric fields are zero unless State is StateOK.
type Report struct {
	ID         string    `json:"id"`
	SourceID   string    `json:"source_id"`
	SourceType string    `json:"source_type"`
	Timestamp  time.Time `json:"timestamp"`
	State      string    `json:"state"`

	Records int `json:"records"`
	Width   int `json:"width"`

	Gamma            uint64 `json:"gamma"`
	Epsilon          uint64 `json:"epsilon"`
	PowerConsumption uint64 `json:"power_consumption"`
	Oxygen           uint64 `json:"oxygen"`
	CO2              uint64 `json:"co2"`
	LifeSupport      uint64 `json:"life_support"`

	// TiePositions lists bit positions where ones and zeros split evenly
	// across the whole set; gamma took '1' there.
	TiePositions []int `json:"tie_positions,omitempty"`

	// Digest is the hex SHA-256 of the raw input text.
	Digest string `json:"digest,omitempty"`
	// Changed is true when Digest differs from the previous poll.
	Changed bool `json:"changed"`

	UptimePct    float64 `json:"uptime_pct"`
	ErrorMessage string  `json:"error_message,omitempty"`
}
