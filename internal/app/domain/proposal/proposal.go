// Package proposal defines the proposal aggregate and the pure status
// derivation at the heart of the threshold-approval workflow. A proposal's
// lifecycle admits exactly two mutations: appending one signature from a
// member that has never signed, and setting the terminal event once.
package proposal

import "time"

// Signature records one member's approval of a proposal.
type Signature struct {
	ID         string    `json:"id"`
	ProposalID string    `json:"proposal_id"`
	Signer     string    `json:"signer"`
	Blob       string    `json:"blob"` // opaque, already-verified token
	SignedAt   time.Time `json:"signed_at"`
}

// TerminalKind enumerates the permanent end states plus the transient
// execution claim sentinel.
type TerminalKind string

const (
	// TerminalNone means no terminal event has been recorded.
	TerminalNone TerminalKind = ""
	// TerminalExecuting marks a claimed, in-flight execution attempt. It is
	// the compare-and-set sentinel of the claim-then-act protocol and rolls
	// back to TerminalNone if the executor fails.
	TerminalExecuting TerminalKind = "executing"
	TerminalExecuted  TerminalKind = "executed"
	TerminalCancelled TerminalKind = "cancelled"
	TerminalRejected  TerminalKind = "rejected"
)

// TerminalEvent is the single permanent end state of a proposal. At most one
// is ever set; once set (past the executing sentinel) it never changes.
type TerminalEvent struct {
	Kind   TerminalKind `json:"kind"`
	At     time.Time    `json:"at,omitempty"`
	Actor  string       `json:"actor,omitempty"`  // who cancelled or rejected
	Result string       `json:"result,omitempty"` // executor result reference
	Reason string       `json:"reason,omitempty"` // rejection reason
}

// Proposal is a pending action on a wallet awaiting member approval. Payload
// is never interpreted by this engine.
type Proposal struct {
	ID          string        `json:"id"`
	WalletID    string        `json:"wallet_id"`
	Payload     string        `json:"payload"`
	CreatedBy   string        `json:"created_by"`
	Description string        `json:"description,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	Signatures  []Signature   `json:"signatures"`
	Terminal    TerminalEvent `json:"terminal_event"`
}

// HasSigned reports whether the member already signed this proposal.
func (p Proposal) HasSigned(member string) bool {
	for _, sig := range p.Signatures {
		if sig.Signer == member {
			return true
		}
	}
	return false
}

// SignatureCount returns the number of distinct recorded signatures.
func (p Proposal) SignatureCount() int {
	return len(p.Signatures)
}

// Closed reports whether any terminal event (including the executing claim)
// has been recorded, which freezes the signature set.
func (p Proposal) Closed() bool {
	return p.Terminal.Kind != TerminalNone
}
