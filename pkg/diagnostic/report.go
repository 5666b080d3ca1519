package diagnostic

// Report combines both derived pairs for one diagnostic set.
type Report struct {
	Records int     `json:"records"`
	Width   int     `json:"width"`
	Rates   Rates   `json:"rates"`
	Ratings Ratings `json:"ratings"`
}

// PowerConsumption is gamma × epsilon.
func (r Report) PowerConsumption() uint64 { return r.Rates.PowerConsumption() }

// LifeSupport is oxygen × co2.
func (r Report) LifeSupport() uint64 { return r.Ratings.LifeSupport() }

// Diagnose computes rates and ratings for records. If either computation
// fails the error is returned and the Report is zero.
func Diagnose(records []Record) (Report, error) {
	rates, err := ComputeRates(records)
	if err != nil {
		return Report{}, err
	}
	ratings, err := ComputeRatings(records)
	if err != nil {
		return Report{}, err
	}
	return Report{
		Records: len(records),
		Width:   rates.Width,
		Rates:   rates,
		Ratings: ratings,
	}, nil
}
