package alerts

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bitdiag/bitdiag/pkg/types"
)

// condition is a parsed rule expression of the form "field op value".
type condition struct {
	field string
	op    string
	num   float64 // threshold for numeric fields
	str   string  // operand for state
}

// parseCondition compiles a rule condition string.
//
// Supported expressions (field operator value):
//
//	power_consumption > 5000
//	life_support > 1000000
//	gamma == 22
//	oxygen < 10
//	co2 >= 4
//	epsilon != 0
//	records < 12
//	width > 12
//	ties > 0
//	uptime_pct < 90
//	state == underflow
//	state != ok
func parseCondition(s string) (condition, error) {
	parts := strings.Fields(s)
	if len(parts) != 3 {
		return condition{}, fmt.Errorf("condition %q: want \"field op value\"", s)
	}
	c := condition{field: parts[0], op: parts[1]}

	if c.field == "state" {
		if c.op != "==" && c.op != "!=" {
			return condition{}, fmt.Errorf("condition %q: state supports == and != only", s)
		}
		c.str = parts[2]
		return c, nil
	}

	if _, ok := numericField(c.field, &types.Report{}); !ok {
		return condition{}, fmt.Errorf("condition %q: unknown field %q", s, c.field)
	}
	switch c.op {
	case ">", ">=", "<", "<=", "==", "!=":
	default:
		return condition{}, fmt.Errorf("condition %q: unknown operator %q", s, c.op)
	}
	v, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return condition{}, fmt.Errorf("condition %q: threshold: %w", s, err)
	}
	c.num = v
	return c, nil
}

// eval reports whether r satisfies c and the value that was compared.
// Numeric fields of a report that is not ok never fire, since they carry no
// measurement.
func (c condition) eval(r *types.Report) (bool, float64) {
	if c.field == "state" {
		eq := r.State == c.str
		if c.op == "==" {
			return eq, 0
		}
		return !eq, 0
	}
	if r.State != types.StateOK && c.field != "uptime_pct" {
		return false, 0
	}
	v, _ := numericField(c.field, r)
	return compareFloat(v, c.op, c.num), v
}

// numericField maps a field name to its value in the report.
func numericField(field string, r *types.Report) (float64, bool) {
	switch field {
	case "gamma":
		return float64(r.Gamma), true
	case "epsilon":
		return float64(r.Epsilon), true
	case "power_consumption":
		return float64(r.PowerConsumption), true
	case "oxygen":
		return float64(r.Oxygen), true
	case "co2":
		return float64(r.CO2), true
	case "life_support":
		return float64(r.LifeSupport), true
	case "records":
		return float64(r.Records), true
	case "width":
		return float64(r.Width), true
	case "ties":
		return float64(len(r.TiePositions)), true
	case "uptime_pct":
		return r.UptimePct, true
	default:
		return 0, false
	}
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	case "!=":
		return v != threshold
	default:
		return false
	}
}
