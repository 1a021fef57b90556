/**
 * @description
 * This file provides the PostgreSQL implementation of withdrawal request
 * persistence. The single-pending-request rule is enforced by a partial unique
 * index on (wallet_id) WHERE status = 'pending'; approval debits the wallet
 * and completes the request under one transaction.
 *
 * @dependencies
 * - context, encoding/json, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - github.com/jackc/pgerrcode: Postgres error code constants for unique violations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vyzio/finance-service/internal/domain"
)

const withdrawalColumns = `
	id, wallet_id, seller_id, amount, status, bank_snapshot, transfer_reference,
	rejection_reason, processed_by, processed_at, completed_at, created_at, updated_at
`

func scanWithdrawal(row pgx.Row) (*domain.Withdrawal, error) {
	var w domain.Withdrawal
	var snapshot []byte
	err := row.Scan(
		&w.ID, &w.WalletID, &w.SellerID, &w.Amount, &w.Status, &snapshot,
		&w.TransferReference, &w.RejectionReason, &w.ProcessedBy, &w.ProcessedAt,
		&w.CompletedAt, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrWithdrawalNotFound
		}
		return nil, err
	}
	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &w.BankSnapshot); err != nil {
			return nil, err
		}
	}
	return &w, nil
}

// CreateWithdrawal inserts a new pending withdrawal request. The partial
// unique index on pending requests turns a second concurrent request into
// ErrDuplicateWithdrawal.
func (r *PostgresRepository) CreateWithdrawal(ctx context.Context, withdrawal *domain.Withdrawal) error {
	snapshot, err := json.Marshal(withdrawal.BankSnapshot)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO withdrawal_requests (id, wallet_id, seller_id, amount, status, bank_snapshot)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err = r.db.QueryRow(ctx, query,
		withdrawal.ID, withdrawal.WalletID, withdrawal.SellerID, withdrawal.Amount,
		withdrawal.Status, snapshot,
	).Scan(&withdrawal.CreatedAt, &withdrawal.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrDuplicateWithdrawal
		}
		return err
	}
	return nil
}

// GetWithdrawalByID retrieves a single withdrawal request.
func (r *PostgresRepository) GetWithdrawalByID(ctx context.Context, withdrawalID uuid.UUID) (*domain.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests WHERE id = $1`
	return scanWithdrawal(r.db.QueryRow(ctx, query, withdrawalID))
}

// ApproveWithdrawal marks a pending request completed and debits the wallet in
// the same transaction. If the wallet balance no longer covers the amount the
// whole approval rolls back and the request stays pending.
func (r *PostgresRepository) ApproveWithdrawal(ctx context.Context, withdrawalID uuid.UUID, adminID uuid.UUID, transferReference string, debitDescription string) (*domain.Withdrawal, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	withdrawal, err := scanWithdrawal(tx.QueryRow(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawal_requests WHERE id = $1 FOR UPDATE`, withdrawalID))
	if err != nil {
		return nil, err
	}
	if withdrawal.Status != domain.WithdrawalPending {
		return nil, ErrWithdrawalNotPending
	}

	if _, err := debitWalletTx(ctx, tx, withdrawal.WalletID, withdrawal.Amount, debitDescription, &withdrawal.ID); err != nil {
		return nil, err
	}

	query := `
		UPDATE withdrawal_requests
		SET status = $1, transfer_reference = $2, processed_by = $3,
		    processed_at = NOW(), completed_at = NOW(), updated_at = NOW()
		WHERE id = $4
		RETURNING ` + withdrawalColumns
	withdrawal, err = scanWithdrawal(tx.QueryRow(ctx, query,
		domain.WithdrawalCompleted, transferReference, adminID, withdrawalID))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return withdrawal, nil
}

// RejectWithdrawal marks a pending request rejected. The wallet is untouched.
func (r *PostgresRepository) RejectWithdrawal(ctx context.Context, withdrawalID uuid.UUID, adminID uuid.UUID, reason string) (*domain.Withdrawal, error) {
	query := `
		UPDATE withdrawal_requests
		SET status = $1, rejection_reason = $2, processed_by = $3,
		    processed_at = NOW(), updated_at = NOW()
		WHERE id = $4 AND status = $5
		RETURNING ` + withdrawalColumns
	withdrawal, err := scanWithdrawal(r.db.QueryRow(ctx, query,
		domain.WithdrawalRejected, reason, adminID, withdrawalID, domain.WithdrawalPending))
	if err == nil {
		return withdrawal, nil
	}
	if !errors.Is(err, ErrWithdrawalNotFound) {
		return nil, err
	}
	return nil, r.classifyMissedWithdrawalUpdate(ctx, withdrawalID)
}

// CancelWithdrawal lets the owning seller cancel their own pending request.
func (r *PostgresRepository) CancelWithdrawal(ctx context.Context, withdrawalID uuid.UUID, sellerID uuid.UUID) (*domain.Withdrawal, error) {
	query := `
		UPDATE withdrawal_requests
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND seller_id = $3 AND status = $4
		RETURNING ` + withdrawalColumns
	withdrawal, err := scanWithdrawal(r.db.QueryRow(ctx, query,
		domain.WithdrawalCancelled, withdrawalID, sellerID, domain.WithdrawalPending))
	if err == nil {
		return withdrawal, nil
	}
	if !errors.Is(err, ErrWithdrawalNotFound) {
		return nil, err
	}
	return nil, r.classifyMissedWithdrawalUpdate(ctx, withdrawalID)
}

// classifyMissedWithdrawalUpdate distinguishes a missing request from one that
// is no longer pending after a status-guarded update matched zero rows.
func (r *PostgresRepository) classifyMissedWithdrawalUpdate(ctx context.Context, withdrawalID uuid.UUID) error {
	existing, err := r.GetWithdrawalByID(ctx, withdrawalID)
	if err != nil {
		return err
	}
	if existing.Status != domain.WithdrawalPending {
		return ErrWithdrawalNotPending
	}
	return ErrWithdrawalNotFound
}

// ListWithdrawalsBySeller returns a seller's withdrawal requests, newest first.
func (r *PostgresRepository) ListWithdrawalsBySeller(ctx context.Context, sellerID uuid.UUID) ([]domain.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests WHERE seller_id = $1 ORDER BY created_at DESC`
	return r.listWithdrawals(ctx, query, sellerID)
}

// ListPendingWithdrawals returns all pending requests for operator review,
// oldest first.
func (r *PostgresRepository) ListPendingWithdrawals(ctx context.Context) ([]domain.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests WHERE status = $1 ORDER BY created_at ASC`
	return r.listWithdrawals(ctx, query, domain.WithdrawalPending)
}

func (r *PostgresRepository) listWithdrawals(ctx context.Context, query string, args ...interface{}) ([]domain.Withdrawal, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var withdrawals []domain.Withdrawal
	for rows.Next() {
		withdrawal, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		withdrawals = append(withdrawals, *withdrawal)
	}
	return withdrawals, rows.Err()
}
