package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrDomain marks inputs outside the mathematical domain of the model.
	ErrDomain = errors.New("domain error")
	// ErrInvalidCurve marks curve parameters rejected at construction.
	ErrInvalidCurve = errors.New("invalid curve")

	ErrDivideByZero    = fmt.Errorf("%w: division by zero", ErrDomain)
	ErrNonPositiveSize = fmt.Errorf("%w: size must be positive", ErrDomain)
	ErrNonFinite       = fmt.Errorf("%w: non-finite result", ErrDomain)
)

// invalid builds a construction error for a single parameter.
func invalid(param string, value float64, rule string) error {
	return fmt.Errorf("%w: %s must be %s, got %g", ErrInvalidCurve, param, rule, value)
}

// degenerate builds a construction error for a parameter that would divide by zero.
func degenerate(param string, value float64, rule string) error {
	return fmt.Errorf("%w: %w: %s must be %s, got %g", ErrInvalidCurve, ErrDomain, param, rule, value)
}
