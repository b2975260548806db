// Package postgres implements the storage interfaces backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Quorum-Labs/treasury_layer/internal/app/domain/proposal"
	"github.com/Quorum-Labs/treasury_layer/internal/app/domain/wallet"
	"github.com/Quorum-Labs/treasury_layer/internal/app/storage"
	apperr "github.com/Quorum-Labs/treasury_layer/internal/errors"
)

// Store implements the storage interfaces backed by PostgreSQL. Per-proposal
// mutation serialization is provided by a row lock (SELECT ... FOR UPDATE) on
// the proposal record, so concurrent mutations of different proposals never
// block each other.
type Store struct {
	db *sql.DB
}

var _ storage.WalletStore = (*Store)(nil)
var _ storage.ProposalStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// --- WalletStore ------------------------------------------------------------

func (s *Store) CreateWallet(ctx context.Context, w wallet.Wallet) (wallet.Wallet, error) {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}

	membersJSON, err := json.Marshal(w.Members)
	if err != nil {
		return wallet.Wallet{}, apperr.StorageUnavailable("create wallet", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO multisig_wallets (id, name, members, threshold, address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, w.ID, w.Name, membersJSON, w.Threshold, w.Address, w.CreatedAt)
	if err != nil {
		return wallet.Wallet{}, apperr.StorageUnavailable("create wallet", err)
	}
	return w, nil
}

func (s *Store) GetWallet(ctx context.Context, id string) (wallet.Wallet, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, members, threshold, address, created_at
		FROM multisig_wallets
		WHERE id = $1
	`, id)

	w, err := scanWallet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return wallet.Wallet{}, apperr.WalletNotFound(id)
	}
	if err != nil {
		return wallet.Wallet{}, apperr.StorageUnavailable("get wallet", err)
	}
	return w, nil
}

func (s *Store) ListWallets(ctx context.Context, member string) ([]wallet.Wallet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, members, threshold, address, created_at
		FROM multisig_wallets
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, apperr.StorageUnavailable("list wallets", err)
	}
	defer rows.Close()

	result := make([]wallet.Wallet, 0)
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, apperr.StorageUnavailable("list wallets", err)
		}
		// Membership filtering happens here rather than in SQL so the stored
		// members column stays an opaque JSON document.
		if member == "" || w.HasMember(member) {
			result = append(result, w)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.StorageUnavailable("list wallets", err)
	}
	return result, nil
}

// --- ProposalStore ----------------------------------------------------------

func (s *Store) CreateProposal(ctx context.Context, p proposal.Proposal) (proposal.Proposal, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO multisig_proposals
			(id, wallet_id, payload, created_by, description, created_at, terminal_kind)
		VALUES ($1, $2, $3, $4, $5, $6, '')
	`, p.ID, p.WalletID, p.Payload, p.CreatedBy, p.Description, p.CreatedAt)
	if err != nil {
		return proposal.Proposal{}, apperr.StorageUnavailable("create proposal", err)
	}
	p.Signatures = nil
	p.Terminal = proposal.TerminalEvent{}
	return p, nil
}

func (s *Store) GetProposal(ctx context.Context, id string) (proposal.Proposal, error) {
	row := s.db.QueryRowContext(ctx, proposalSelect+` WHERE id = $1`, id)
	p, err := scanProposal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return proposal.Proposal{}, apperr.ProposalNotFound(id)
	}
	if err != nil {
		return proposal.Proposal{}, apperr.StorageUnavailable("get proposal", err)
	}

	sigs, err := s.loadSignatures(ctx, s.db, []string{p.ID})
	if err != nil {
		return proposal.Proposal{}, err
	}
	p.Signatures = sigs[p.ID]
	return p, nil
}

func (s *Store) ListProposals(ctx context.Context, walletID string) ([]proposal.Proposal, error) {
	rows, err := s.db.QueryContext(ctx, proposalSelect+`
		WHERE wallet_id = $1
		ORDER BY created_at DESC, id DESC
	`, walletID)
	if err != nil {
		return nil, apperr.StorageUnavailable("list proposals", err)
	}
	defer rows.Close()

	result := make([]proposal.Proposal, 0)
	ids := make([]string, 0)
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, apperr.StorageUnavailable("list proposals", err)
		}
		result = append(result, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.StorageUnavailable("list proposals", err)
	}

	if len(ids) > 0 {
		sigs, err := s.loadSignatures(ctx, s.db, ids)
		if err != nil {
			return nil, err
		}
		for i := range result {
			result[i].Signatures = sigs[result[i].ID]
		}
	}
	return result, nil
}

func (s *Store) MutateProposal(ctx context.Context, id string, mutate func(p *proposal.Proposal) error) (proposal.Proposal, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return proposal.Proposal{}, apperr.StorageUnavailable("mutate proposal", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, proposalSelect+` WHERE id = $1 FOR UPDATE`, id)
	p, err := scanProposal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return proposal.Proposal{}, apperr.ProposalNotFound(id)
	}
	if err != nil {
		return proposal.Proposal{}, apperr.StorageUnavailable("mutate proposal", err)
	}

	sigs, err := s.loadSignatures(ctx, tx, []string{p.ID})
	if err != nil {
		return proposal.Proposal{}, err
	}
	p.Signatures = sigs[p.ID]

	before := len(p.Signatures)
	beforeTerminal := p.Terminal

	if err := mutate(&p); err != nil {
		return proposal.Proposal{}, err
	}

	for i := before; i < len(p.Signatures); i++ {
		if p.Signatures[i].ID == "" {
			p.Signatures[i].ID = uuid.NewString()
		}
		if p.Signatures[i].ProposalID == "" {
			p.Signatures[i].ProposalID = p.ID
		}
		sig := p.Signatures[i]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO multisig_signatures (id, proposal_id, signer, blob, signed_at)
			VALUES ($1, $2, $3, $4, $5)
		`, sig.ID, p.ID, sig.Signer, sig.Blob, sig.SignedAt)
		if isUniqueViolation(err) {
			return proposal.Proposal{}, apperr.DuplicateSignature(p.ID, sig.Signer)
		}
		if err != nil {
			return proposal.Proposal{}, apperr.StorageUnavailable("record signature", err)
		}
	}

	if p.Terminal != beforeTerminal {
		var at sql.NullTime
		if !p.Terminal.At.IsZero() {
			at = sql.NullTime{Time: p.Terminal.At, Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE multisig_proposals
			SET terminal_kind = $2, terminal_at = $3, terminal_actor = $4,
			    terminal_result = $5, terminal_reason = $6
			WHERE id = $1
		`, p.ID, string(p.Terminal.Kind), at, p.Terminal.Actor, p.Terminal.Result, p.Terminal.Reason)
		if err != nil {
			return proposal.Proposal{}, apperr.StorageUnavailable("record terminal event", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return proposal.Proposal{}, apperr.StorageUnavailable("mutate proposal", err)
	}
	return p, nil
}

// --- scanning ---------------------------------------------------------------

const proposalSelect = `
	SELECT id, wallet_id, payload, created_by, description, created_at,
	       terminal_kind, terminal_at, terminal_actor, terminal_result, terminal_reason
	FROM multisig_proposals`

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanWallet(row scannable) (wallet.Wallet, error) {
	var (
		w           wallet.Wallet
		membersJSON []byte
	)
	if err := row.Scan(&w.ID, &w.Name, &membersJSON, &w.Threshold, &w.Address, &w.CreatedAt); err != nil {
		return wallet.Wallet{}, err
	}
	if err := json.Unmarshal(membersJSON, &w.Members); err != nil {
		return wallet.Wallet{}, err
	}
	return w, nil
}

func scanProposal(row scannable) (proposal.Proposal, error) {
	var (
		p  proposal.Proposal
		at sql.NullTime
	)
	if err := row.Scan(
		&p.ID, &p.WalletID, &p.Payload, &p.CreatedBy, &p.Description, &p.CreatedAt,
		(*string)(&p.Terminal.Kind), &at, &p.Terminal.Actor, &p.Terminal.Result, &p.Terminal.Reason,
	); err != nil {
		return proposal.Proposal{}, err
	}
	if at.Valid {
		p.Terminal.At = at.Time
	}
	return p, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func (s *Store) loadSignatures(ctx context.Context, q querier, proposalIDs []string) (map[string][]proposal.Signature, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, proposal_id, signer, blob, signed_at
		FROM multisig_signatures
		WHERE proposal_id = ANY($1)
		ORDER BY signed_at ASC, id ASC
	`, pq.Array(proposalIDs))
	if err != nil {
		return nil, apperr.StorageUnavailable("load signatures", err)
	}
	defer rows.Close()

	result := make(map[string][]proposal.Signature, len(proposalIDs))
	for rows.Next() {
		var sig proposal.Signature
		if err := rows.Scan(&sig.ID, &sig.ProposalID, &sig.Signer, &sig.Blob, &sig.SignedAt); err != nil {
			return nil, apperr.StorageUnavailable("load signatures", err)
		}
		result[sig.ProposalID] = append(result[sig.ProposalID], sig)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.StorageUnavailable("load signatures", err)
	}
	return result, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
