package diagnostic

import "fmt"

// Ratings is the result of the two narrowing passes.
type Ratings struct {
	Oxygen uint64 `json:"oxygen"`
	CO2    uint64 `json:"co2"`
	Width  int    `json:"width"`

	// OxygenSteps and CO2Steps count the positions each pass consumed
	// before converging. Both are at most Width.
	OxygenSteps int `json:"oxygen_steps"`
	CO2Steps    int `json:"co2_steps"`
}

// LifeSupport is oxygen × co2.
func (r Ratings) LifeSupport() uint64 { return r.Oxygen * r.CO2 }

// criterion decides whether a record whose bit matches (or does not match)
// the current majority survives a step.
type criterion func(matchesMajority bool) bool

var (
	keepMajority criterion = func(m bool) bool { return m }
	keepMinority criterion = func(m bool) bool { return !m }
)

// ComputeRatings runs the oxygen and CO2 passes over records.
//
// The oxygen pass keeps records whose bit equals the majority digit of the
// current candidates (ties resolve to '1'); the CO2 pass keeps the others
// (ties therefore keep '0'). A pass stops as soon as one candidate is left.
func ComputeRatings(records []Record) (Ratings, error) {
	width, err := Validate(records)
	if err != nil {
		return Ratings{}, err
	}

	oxygen, oxySteps, err := narrow(records, width, keepMajority)
	if err != nil {
		return Ratings{}, fmt.Errorf("diagnostic: oxygen rating: %w", err)
	}
	co2, co2Steps, err := narrow(records, width, keepMinority)
	if err != nil {
		return Ratings{}, fmt.Errorf("diagnostic: co2 rating: %w", err)
	}

	return Ratings{
		Oxygen:      oxygen.Value(),
		CO2:         co2.Value(),
		Width:       width,
		OxygenSteps: oxySteps,
		CO2Steps:    co2Steps,
	}, nil
}

// narrow filters candidates one position at a time until exactly one record
// remains. records is never modified; each step builds a fresh slice so the
// survivors keep their original relative order.
func narrow(records []Record, width int, keep criterion) (Record, int, error) {
	candidates := records
	steps := 0
	for i := 0; len(candidates) > 1; i++ {
		if i >= width {
			return "", steps, fmt.Errorf("%d identical candidates left after %d positions: %w",
				len(candidates), width, ErrUnderflow)
		}
		majority := majorityOne(countOnes(candidates, i), len(candidates))

		next := make([]Record, 0, len(candidates))
		for _, r := range candidates {
			if keep(r.Bit(i) == majority) {
				next = append(next, r)
			}
		}
		steps++
		if len(next) == 0 {
			return "", steps, fmt.Errorf("no candidates left at position %d: %w", i, ErrUnderflow)
		}
		candidates = next
	}
	return candidates[0], steps, nil
}
