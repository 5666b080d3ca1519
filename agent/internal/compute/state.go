package compute

import (
	"errors"

	"github.com/bitdiag/bitdiag/pkg/diagnostic"
	"github.com/bitdiag/bitdiag/pkg/types"
)

// Classify maps a diagnose error to a report state.
// nil → ok; ErrUnderflow → underflow; ErrInvalidInput → invalid.
// Any other error is treated as invalid input.
func Classify(err error) string {
	switch {
	case err == nil:
		return types.StateOK
	case errors.Is(err, diagnostic.ErrUnderflow):
		return types.StateUnderflow
	default:
		return types.StateInvalid
	}
}
