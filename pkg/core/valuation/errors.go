package valuation

import "errors"

var (
	// ErrTerminalGrowthAboveWACC is returned when the Gordon model is undefined (g >= wacc).
	ErrTerminalGrowthAboveWACC = errors.New("terminal growth must be below WACC")
	// ErrCapitalWeights is returned when equity and debt weights do not sum to one.
	ErrCapitalWeights = errors.New("capital weights must sum to 1")
	// ErrUnknownParam is returned for a parameter name the scalar valuation does not know.
	ErrUnknownParam = errors.New("unknown valuation parameter")
	// ErrNoFinancials is returned when a valuation is requested without historical rows.
	ErrNoFinancials = errors.New("no historical financials")
)
