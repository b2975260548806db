package errors

import "fmt"

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Human-readable message
	Metadata map[string]string // Context for callers (wallet_id, proposal_id, actor)
	Cause    error             // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithMetadata creates a domain error carrying structured context.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the code from err, or CodeUnknown when err is not a domain
// error.
func CodeOf(err error) Code {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return CodeUnknown
}

// HasCode reports whether err is a domain error with the given code.
func HasCode(err error, code Code) bool {
	e, ok := err.(*Error)
	return ok && e.Code == code
}

// WalletNotFound reports a missing wallet.
func WalletNotFound(walletID string) *Error {
	return WithMetadata(CodeWalletNotFound, fmt.Sprintf("wallet %s not found", walletID),
		map[string]string{"wallet_id": walletID})
}

// ProposalNotFound reports a missing proposal.
func ProposalNotFound(proposalID string) *Error {
	return WithMetadata(CodeProposalNotFound, fmt.Sprintf("proposal %s not found", proposalID),
		map[string]string{"proposal_id": proposalID})
}

// InvalidMembers reports a rejected member set.
func InvalidMembers(reason string) *Error {
	return New(CodeInvalidMembers, reason)
}

// InvalidThreshold reports a threshold outside 1..len(members).
func InvalidThreshold(threshold, memberCount int) *Error {
	return WithMetadata(CodeInvalidThreshold,
		fmt.Sprintf("threshold %d must be between 1 and %d", threshold, memberCount),
		map[string]string{
			"threshold": fmt.Sprintf("%d", threshold),
			"members":   fmt.Sprintf("%d", memberCount),
		})
}

// Unauthorized reports an actor that is not permitted to perform an action.
func Unauthorized(actor, reason string) *Error {
	return WithMetadata(CodeUnauthorized, reason, map[string]string{"actor": actor})
}

// DuplicateSignature reports a member signing the same proposal twice.
func DuplicateSignature(proposalID, signer string) *Error {
	return WithMetadata(CodeDuplicateSignature,
		fmt.Sprintf("member %s already signed proposal %s", signer, proposalID),
		map[string]string{"proposal_id": proposalID, "actor": signer})
}

// ProposalClosed reports a mutation attempted on a terminal proposal.
func ProposalClosed(proposalID, state string) *Error {
	return WithMetadata(CodeProposalClosed,
		fmt.Sprintf("proposal %s is %s and accepts no further changes", proposalID, state),
		map[string]string{"proposal_id": proposalID, "state": state})
}

// InvalidSignature reports a signature rejected by the verifier.
func InvalidSignature(proposalID, signer string) *Error {
	return WithMetadata(CodeInvalidSignature,
		fmt.Sprintf("signature from %s rejected for proposal %s", signer, proposalID),
		map[string]string{"proposal_id": proposalID, "actor": signer})
}

// ThresholdNotMet reports an execution attempt before quorum.
func ThresholdNotMet(proposalID string, have, want int) *Error {
	return WithMetadata(CodeThresholdNotMet,
		fmt.Sprintf("proposal %s has %d of %d required signatures", proposalID, have, want),
		map[string]string{
			"proposal_id": proposalID,
			"signatures":  fmt.Sprintf("%d", have),
			"threshold":   fmt.Sprintf("%d", want),
		})
}

// AlreadyExecuted reports a lost execution race.
func AlreadyExecuted(proposalID string) *Error {
	return WithMetadata(CodeAlreadyExecuted,
		fmt.Sprintf("execution of proposal %s already claimed", proposalID),
		map[string]string{"proposal_id": proposalID})
}

// ExecutionFailed reports a transaction executor failure. The proposal remains
// approved and executable again.
func ExecutionFailed(proposalID string, cause error) *Error {
	return &Error{
		Code:     CodeExecutionFailed,
		Message:  fmt.Sprintf("execution of proposal %s failed", proposalID),
		Metadata: map[string]string{"proposal_id": proposalID},
		Cause:    cause,
	}
}

// StorageUnavailable reports an underlying store fault, distinct from domain
// errors.
func StorageUnavailable(op string, cause error) *Error {
	return Wrap(CodeStorageUnavailable, fmt.Sprintf("storage unavailable during %s", op), cause)
}

// RateLimited reports a caller that exceeded the request rate limit.
func RateLimited(key string) *Error {
	return WithMetadata(CodeRateLimited,
		fmt.Sprintf("request rate limit exceeded for %s", key),
		map[string]string{"actor": key})
}
