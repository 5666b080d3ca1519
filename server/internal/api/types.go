package api

import (
	"github.com/bitdiag/bitdiag/pkg/types"
	"github.com/bitdiag/bitdiag/server/internal/alerts"
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	// State is "ok" when every live source is ok, "critical" when none is,
	// "degraded" in between and "unknown" with no live sources.
	State            string `json:"state"`
	SourceCount      int    `json:"source_count"`
	OKCount          int    `json:"ok_count"`
	InvalidCount     int    `json:"invalid_count"`
	UnderflowCount   int    `json:"underflow_count"`
	UnreachableCount int    `json:"unreachable_count"`
	UnknownCount     int    `json:"unknown_count"`
	AlertCount       int    `json:"alert_count"`
	HistoryEnabled   bool   `json:"history_enabled"`
}

// ReportResponse is one source entry in GET /api/v1/reports or
// GET /api/v1/reports/{id}.
type ReportResponse struct {
	types.Report

	// Bit-string renderings of the four values, Width digits each.
	GammaBits   string `json:"gamma_bits,omitempty"`
	EpsilonBits string `json:"epsilon_bits,omitempty"`
	OxygenBits  string `json:"oxygen_bits,omitempty"`
	CO2Bits     string `json:"co2_bits,omitempty"`

	Hints    []Hint `json:"hints"`
	LastSeen string `json:"last_seen"` // RFC3339
}

// HistoryResponse is the payload for GET /api/v1/reports/{id}/history.
type HistoryResponse struct {
	SourceID string          `json:"source_id"`
	Reports  []*types.Report `json:"reports"`
}

// DiagnoseResponse is the payload for a successful POST /api/v1/diagnose.
type DiagnoseResponse struct {
	Records          int    `json:"records"`
	Width            int    `json:"width"`
	Gamma            uint64 `json:"gamma"`
	Epsilon          uint64 `json:"epsilon"`
	PowerConsumption uint64 `json:"power_consumption"`
	Oxygen           uint64 `json:"oxygen"`
	CO2              uint64 `json:"co2"`
	LifeSupport      uint64 `json:"life_support"`

	GammaBits   string `json:"gamma_bits"`
	EpsilonBits string `json:"epsilon_bits"`
	OxygenBits  string `json:"oxygen_bits"`
	CO2Bits     string `json:"co2_bits"`

	// Ones is the per-position count of '1' digits across the whole set.
	Ones         []int `json:"ones"`
	TiePositions []int `json:"tie_positions"`
	OxygenSteps  int   `json:"oxygen_steps"`
	CO2Steps     int   `json:"co2_steps"`
}

// Error kinds returned by POST /api/v1/diagnose.
const (
	KindInvalidInput = "invalid_input"
	KindUnderflow    = "underflow"
)

// DiagnoseError is the 422 body for POST /api/v1/diagnose.
type DiagnoseError struct {
	Error string `json:"error"`
	Kind  string `json:"kind"` // invalid_input | underflow
}

// SnapshotResponse is the payload for GET /api/v1/snapshot and the data of
// every WebSocket "snapshot" event.
type SnapshotResponse struct {
	Reports     []ReportResponse `json:"reports"`
	Alerts      []*alerts.Alert  `json:"alerts"`
	GeneratedAt string           `json:"generated_at"` // RFC3339
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
