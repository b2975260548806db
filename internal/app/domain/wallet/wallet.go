// Package wallet defines the multisig wallet aggregate: a fixed member set
// and a signing threshold. Both are immutable after creation; changing either
// is a wallet-migration concern outside this engine.
package wallet

import (
	"strings"
	"time"

	apperr "github.com/Quorum-Labs/treasury_layer/internal/errors"
)

// MinMembers is the smallest member set that makes a shared wallet meaningful.
const MinMembers = 2

// Wallet is a shared wallet controlled by Members with signing threshold
// Threshold.
type Wallet struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Members   []string  `json:"members"`
	Threshold int       `json:"threshold"`
	Address   string    `json:"address,omitempty"` // optional on-chain address, opaque here
	CreatedAt time.Time `json:"created_at"`
}

// New validates and constructs a wallet. The ID and CreatedAt fields are
// assigned by the store.
func New(name string, members []string, threshold int, address string) (Wallet, error) {
	normalized := make([]string, 0, len(members))
	seen := make(map[string]bool, len(members))
	for _, m := range members {
		m = strings.TrimSpace(m)
		if m == "" {
			return Wallet{}, apperr.InvalidMembers("member identities must be non-empty")
		}
		if seen[m] {
			return Wallet{}, apperr.InvalidMembers("member " + m + " listed more than once")
		}
		seen[m] = true
		normalized = append(normalized, m)
	}
	if len(normalized) < MinMembers {
		return Wallet{}, apperr.InvalidMembers("a multisig wallet requires at least 2 members")
	}
	if threshold < 1 || threshold > len(normalized) {
		return Wallet{}, apperr.InvalidThreshold(threshold, len(normalized))
	}

	return Wallet{
		Name:      strings.TrimSpace(name),
		Members:   normalized,
		Threshold: threshold,
		Address:   strings.TrimSpace(address),
	}, nil
}

// HasMember reports whether identity belongs to the wallet.
func (w Wallet) HasMember(identity string) bool {
	for _, m := range w.Members {
		if m == identity {
			return true
		}
	}
	return false
}
