package diagnostic

// Rates is the result of one whole-set majority scan.
type Rates struct {
	Gamma   uint64 `json:"gamma"`
	Epsilon uint64 `json:"epsilon"`
	Width   int    `json:"width"`

	// Ones holds the number of records with a '1' at each position.
	Ones []int `json:"ones"`

	// Total is the number of records scanned.
	Total int `json:"total"`
}

// PowerConsumption is gamma × epsilon.
func (r Rates) PowerConsumption() uint64 { return r.Gamma * r.Epsilon }

// Ties returns the positions where ones and zeros were split exactly evenly.
// Those positions contribute a '1' to gamma.
func (r Rates) Ties() []int {
	var out []int
	for i, n := range r.Ones {
		if n*2 == r.Total {
			out = append(out, i)
		}
	}
	return out
}

// rateAcc is the gamma/epsilon accumulator threaded through ComputeRates.
type rateAcc struct {
	gamma, epsilon uint64
}

// push appends the next most-significant-first bit pair.
func (a rateAcc) push(majorityOne bool) rateAcc {
	next := rateAcc{gamma: a.gamma << 1, epsilon: a.epsilon << 1}
	if majorityOne {
		next.gamma |= 1
	} else {
		next.epsilon |= 1
	}
	return next
}

// ComputeRates derives gamma and epsilon from records.
//
// Position i contributes a '1' to gamma when count*2 >= total, so an exact tie
// resolves to '1'. Epsilon is always the bitwise complement of gamma within
// the record width.
func ComputeRates(records []Record) (Rates, error) {
	width, err := Validate(records)
	if err != nil {
		return Rates{}, err
	}

	ones := make([]int, width)
	acc := rateAcc{}
	for i := 0; i < width; i++ {
		ones[i] = countOnes(records, i)
		acc = acc.push(majorityOne(ones[i], len(records)))
	}

	return Rates{
		Gamma:   acc.gamma,
		Epsilon: acc.epsilon,
		Width:   width,
		Ones:    ones,
		Total:   len(records),
	}, nil
}

// countOnes counts records with a '1' at position i.
func countOnes(records []Record, i int) int {
	n := 0
	for _, r := range records {
		if r.Bit(i) {
			n++
		}
	}
	return n
}

// majorityOne applies the tie-biased majority rule.
func majorityOne(ones, total int) bool {
	return ones*2 >= total
}
