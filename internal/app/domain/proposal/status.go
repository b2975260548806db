package proposal

import "fmt"

// Status is the derived lifecycle state of a proposal. It is never stored;
// every reader recomputes it from the signature set, the terminal event and
// the wallet threshold, so all readers agree on the same answer.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusExecuted  Status = "executed"
	StatusCancelled Status = "cancelled"
	StatusRejected  Status = "rejected"
)

// ParseStatus converts a wire string into a Status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusApproved, StatusExecuted, StatusCancelled, StatusRejected:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown proposal status %q", s)
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusExecuted || s == StatusCancelled || s == StatusRejected
}

// DeriveStatus computes the status of a proposal against a wallet threshold.
// Terminal events take precedence over the signature count; an in-flight
// execution claim still reads as approved because the claim either completes
// to executed or rolls back to none.
func DeriveStatus(p Proposal, threshold int) Status {
	switch p.Terminal.Kind {
	case TerminalExecuted:
		return StatusExecuted
	case TerminalCancelled:
		return StatusCancelled
	case TerminalRejected:
		return StatusRejected
	}
	if len(p.Signatures) >= threshold {
		return StatusApproved
	}
	return StatusPending
}
