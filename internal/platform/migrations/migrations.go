// Package migrations applies the treasury layer database schema. Statements
// are idempotent so Apply can run on every startup.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

// Note: proposals deliberately have no status column. Status is derived from
// the signature set and the terminal event on every read, so it can never
// drift from the source of truth.
var statements = []string{
	`CREATE TABLE IF NOT EXISTS multisig_wallets (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		members    JSONB NOT NULL,
		threshold  INTEGER NOT NULL,
		address    TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS multisig_proposals (
		id              TEXT PRIMARY KEY,
		wallet_id       TEXT NOT NULL REFERENCES multisig_wallets(id),
		payload         TEXT NOT NULL,
		created_by      TEXT NOT NULL,
		description     TEXT NOT NULL DEFAULT '',
		created_at      TIMESTAMPTZ NOT NULL,
		terminal_kind   TEXT NOT NULL DEFAULT '',
		terminal_at     TIMESTAMPTZ,
		terminal_actor  TEXT NOT NULL DEFAULT '',
		terminal_result TEXT NOT NULL DEFAULT '',
		terminal_reason TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_multisig_proposals_wallet
		ON multisig_proposals(wallet_id)`,
	`CREATE TABLE IF NOT EXISTS multisig_signatures (
		id          TEXT PRIMARY KEY,
		proposal_id TEXT NOT NULL REFERENCES multisig_proposals(id),
		signer      TEXT NOT NULL,
		blob        TEXT NOT NULL,
		signed_at   TIMESTAMPTZ NOT NULL,
		UNIQUE (proposal_id, signer)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_multisig_signatures_proposal
		ON multisig_signatures(proposal_id)`,
}

// Apply executes every schema statement in order.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
