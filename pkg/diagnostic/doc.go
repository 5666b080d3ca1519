// Package diagnostic computes the submarine binary diagnostic report from a
// set of equal-length binary records.
//
// record.go parses and validates the input text into []Record. Every record
// must consist only of '0' and '1' and all records must share one width W,
// where 1 <= W <= MaxWidth.
//
// rates.go derives the rate pair (gamma, epsilon) from a single whole-set
// scan: the majority digit at each position forms gamma, its complement forms
// epsilon. An exact 50/50 split counts as a majority of '1'.
//
// ratings.go derives the rating pair (oxygen, CO2) by repeatedly narrowing
// the candidate set on one position at a time until a single record remains.
//
// Every function here is pure: inputs are never modified and no partial
// result is returned alongside an error. Failures wrap ErrInvalidInput or
// ErrUnderflow and can be tested with errors.Is.
package diagnostic
