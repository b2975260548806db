// Package errors provides the structured error taxonomy for the treasury
// layer. Every caller-facing failure carries a machine-readable code and
// enough metadata (wallet id, proposal id, actor) for the caller to render an
// actionable message.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unclassified error.
	CodeUnknown Code = "UNKNOWN"

	// Wallet errors
	CodeWalletNotFound   Code = "WALLET_NOT_FOUND"
	CodeInvalidMembers   Code = "INVALID_MEMBERS"
	CodeInvalidThreshold Code = "INVALID_THRESHOLD"

	// Proposal errors
	CodeProposalNotFound   Code = "PROPOSAL_NOT_FOUND"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeDuplicateSignature Code = "DUPLICATE_SIGNATURE"
	CodeProposalClosed     Code = "PROPOSAL_CLOSED"
	CodeInvalidSignature   Code = "INVALID_SIGNATURE"

	// Execution errors
	CodeThresholdNotMet Code = "THRESHOLD_NOT_MET"
	CodeAlreadyExecuted Code = "ALREADY_EXECUTED"
	CodeExecutionFailed Code = "EXECUTION_FAILED"

	// Infrastructure errors
	CodeStorageUnavailable Code = "STORAGE_UNAVAILABLE"
	CodeRateLimited        Code = "RATE_LIMITED"
)
