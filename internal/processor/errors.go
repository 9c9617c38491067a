package processor

import (
	"errors"
	"fmt"
)

// ErrNoInputLeg means a swap reported no positive input amount.
var ErrNoInputLeg = errors.New("swap has no input leg")

// InvariantError marks a failure caused by impossible input rather than by an
// unavailable collaborator.
type InvariantError struct {
	Op   string
	Pair string
	Err  error
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violated in %s for pair %s: %v", e.Op, e.Pair, e.Err)
}

func (e *InvariantError) Unwrap() error {
	return e.Err
}

// IsInvariant reports whether err is an invariant violation.
func IsInvariant(err error) bool {
	var inv *InvariantError
	return errors.As(err, &inv)
}

func invariant(op, pair string, err error) error {
	return &InvariantError{Op: op, Pair: pair, Err: err}
}
