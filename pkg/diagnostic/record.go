package diagnostic

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MaxWidth is the widest record accepted. At 32 bits both values fit in a
// uint32, so gamma × epsilon and oxygen × co2 cannot overflow a uint64.
const MaxWidth = 32

var (
	// ErrInvalidInput is returned for an empty set, a record containing a
	// character other than '0' or '1', or records of differing widths.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnderflow is returned when a rating pass runs out of candidates, or
	// out of positions, before exactly one record remains.
	ErrUnderflow = errors.New("underflow")
)

// Record is one fixed-width binary string, most significant bit first.
type Record string

// Bit reports whether position i holds a '1'.
func (r Record) Bit(i int) bool { return r[i] == '1' }

// Width returns the number of binary digits in r.
func (r Record) Width() int { return len(r) }

// Value interprets r as an unsigned base-2 integer.
func (r Record) Value() uint64 {
	var v uint64
	for i := 0; i < len(r); i++ {
		v <<= 1
		if r[i] == '1' {
			v |= 1
		}
	}
	return v
}

// Parse reads newline-separated records from text. Surrounding whitespace and
// blank lines are ignored; everything else must be a valid record.
func Parse(text string) ([]Record, error) {
	var records []Record
	for n, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := checkDigits(line); err != nil {
			return nil, fmt.Errorf("diagnostic: line %d: %w", n+1, err)
		}
		records = append(records, Record(line))
	}
	if _, err := Validate(records); err != nil {
		return nil, err
	}
	return records, nil
}

// Validate checks that records is a well-formed diagnostic set and returns
// its common width.
func Validate(records []Record) (int, error) {
	if len(records) == 0 {
		return 0, fmt.Errorf("diagnostic: empty set: %w", ErrInvalidInput)
	}
	width := records[0].Width()
	if width == 0 || width > MaxWidth {
		return 0, fmt.Errorf("diagnostic: record width %d outside 1..%d: %w", width, MaxWidth, ErrInvalidInput)
	}
	for i, r := range records {
		if r.Width() != width {
			return 0, fmt.Errorf("diagnostic: record %d has width %d, want %d: %w", i, r.Width(), width, ErrInvalidInput)
		}
		if err := checkDigits(string(r)); err != nil {
			return 0, fmt.Errorf("diagnostic: record %d: %w", i, err)
		}
	}
	return width, nil
}

// Bits formats v as a width-digit binary string.
func Bits(v uint64, width int) string {
	s := strconv.FormatUint(v, 2)
	if len(s) < width {
		s = strings.Repeat("0", width-len(s)) + s
	}
	return s
}

func checkDigits(s string) error {
	for i := 0; i < len(s); i++ {
		if s[i] != '0' && s[i] != '1' {
			return fmt.Errorf("unexpected %q at column %d: %w", s[i], i+1, ErrInvalidInput)
		}
	}
	return nil
}
