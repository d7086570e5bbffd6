package payments

import (
	"errors"
	"fmt"
)

// Gateway failure reasons. Only "unreachable" is retryable by the caller.
const (
	ReasonUnreachable = "unreachable"
	ReasonRejected    = "rejected"
	ReasonDuplicate   = "duplicate"
)

type GatewayError struct {
	Reason string
	Err    error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway %s: %v", e.Reason, e.Err)
	}
	return "gateway " + e.Reason
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Retryable: transport-level trouble; the same call may succeed later.
func (e *GatewayError) Retryable() bool { return e.Reason == ReasonUnreachable }

func AsGatewayError(err error) (*GatewayError, bool) {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

var (
	// ErrInvalidCallback: callback parameters missing or malformed. The
	// gateway is never contacted on this path.
	ErrInvalidCallback = errors.New("invalid callback parameters")

	// ErrUnknownOrder: callback session id matches no order. Possible
	// tampering or a race; logged as an integrity event, nothing written.
	ErrUnknownOrder = errors.New("no order for gateway session")

	// ErrReconcileRace: a concurrent reconciliation owns the transition and
	// its write is not yet visible. Retryable.
	ErrReconcileRace = errors.New("concurrent reconciliation in progress")
)
