/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface
 * for wallets and the append-only wallet ledger. Every balance mutation locks the
 * wallet row with FOR UPDATE and writes its ledger entry inside the same
 * transaction, so a wallet's balance and its history can never diverge.
 *
 * @dependencies
 * - context, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vyzio/finance-service/internal/domain"
)

var (
	ErrWalletNotFound         = errors.New("wallet not found")
	ErrOrderNotFound          = errors.New("order not found")
	ErrWithdrawalNotFound     = errors.New("withdrawal request not found")
	ErrWithdrawalNotPending   = errors.New("withdrawal request is not pending")
	ErrDuplicateWithdrawal    = errors.New("a pending withdrawal request already exists")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrPlanNotFound           = errors.New("subscription plan not found")
	ErrSubscriptionNotFound   = errors.New("subscription not found")
	ErrCreditPackNotFound     = errors.New("credit pack not found")
	ErrNoCredits              = errors.New("no listing credits available")
	ErrPaymentNotFound        = errors.New("payment not found")
	ErrDuplicatePayment       = errors.New("payment already recorded for session")
	ErrDuplicateOrderNumber   = errors.New("order number already exists")
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const walletColumns = `
	id, seller_id, balance, pending_balance, total_earned, total_withdrawn,
	bank_name, iban, bic, account_holder_name, created_at, updated_at
`

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	var w domain.Wallet
	err := row.Scan(
		&w.ID, &w.SellerID, &w.Balance, &w.PendingBalance, &w.TotalEarned,
		&w.TotalWithdrawn, &w.BankName, &w.IBAN, &w.BIC, &w.AccountHolderName,
		&w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &w, nil
}

// GetWalletBySellerID retrieves a seller's wallet.
func (r *PostgresRepository) GetWalletBySellerID(ctx context.Context, sellerID uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM seller_wallets WHERE seller_id = $1`
	return scanWallet(r.db.QueryRow(ctx, query, sellerID))
}

// GetOrCreateWallet retrieves a seller's wallet, creating an empty one if it
// does not exist yet. The ON CONFLICT clause makes concurrent first calls safe.
func (r *PostgresRepository) GetOrCreateWallet(ctx context.Context, sellerID uuid.UUID) (*domain.Wallet, error) {
	query := `
		INSERT INTO seller_wallets (id, seller_id)
		VALUES ($1, $2)
		ON CONFLICT (seller_id) DO UPDATE SET updated_at = seller_wallets.updated_at
		RETURNING ` + walletColumns
	return scanWallet(r.db.QueryRow(ctx, query, uuid.New(), sellerID))
}

// insertLedgerEntry writes one append-only wallet ledger row inside the caller's transaction.
func insertLedgerEntry(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, txType domain.WalletTransactionType, amount, balanceAfter int64, description string, orderID, withdrawalID *uuid.UUID) error {
	query := `
		INSERT INTO wallet_transactions (id, wallet_id, type, amount, balance_after, description, order_id, withdrawal_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := tx.Exec(ctx, query, uuid.New(), walletID, txType, amount, balanceAfter, description, orderID, withdrawalID)
	return err
}

// lockWallet reads a wallet row FOR UPDATE inside the caller's transaction.
func lockWallet(ctx context.Context, tx pgx.Tx, walletID uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM seller_wallets WHERE id = $1 FOR UPDATE`
	return scanWallet(tx.QueryRow(ctx, query, walletID))
}

// ensureWalletTx resolves the seller's wallet id inside the caller's
// transaction, provisioning the wallet on the seller's first sale.
func ensureWalletTx(ctx context.Context, tx pgx.Tx, sellerID uuid.UUID) (uuid.UUID, error) {
	var walletID uuid.UUID
	err := tx.QueryRow(ctx, `SELECT id FROM seller_wallets WHERE seller_id = $1`, sellerID).Scan(&walletID)
	if err == nil {
		return walletID, nil
	}
	if err != pgx.ErrNoRows {
		return uuid.Nil, err
	}
	walletID = uuid.New()
	if _, err := tx.Exec(ctx, `INSERT INTO seller_wallets (id, seller_id) VALUES ($1, $2)`, walletID, sellerID); err != nil {
		return uuid.Nil, err
	}
	return walletID, nil
}

// CreditWallet atomically adds funds to a wallet and records the ledger entry.
func (r *PostgresRepository) CreditWallet(ctx context.Context, walletID uuid.UUID, amount int64, description string, orderID *uuid.UUID) (*domain.Wallet, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	wallet, err := creditWalletTx(ctx, tx, walletID, amount, description, orderID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return wallet, nil
}

// creditWalletTx applies a credit inside an existing transaction. It is shared
// with the order fund-release path so both run under the same commit.
func creditWalletTx(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, amount int64, description string, orderID *uuid.UUID) (*domain.Wallet, error) {
	wallet, err := lockWallet(ctx, tx, walletID)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE seller_wallets
		SET balance = balance + $1, total_earned = total_earned + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING ` + walletColumns
	wallet, err = scanWallet(tx.QueryRow(ctx, query, amount, walletID))
	if err != nil {
		return nil, err
	}

	if err := insertLedgerEntry(ctx, tx, walletID, domain.WalletTxCredit, amount, wallet.Balance, description, orderID, nil); err != nil {
		return nil, err
	}
	return wallet, nil
}

// DebitWallet atomically removes funds from a wallet and records the ledger entry.
// The row lock plus the balance re-check under the lock prevents concurrent
// debits from driving the balance negative.
func (r *PostgresRepository) DebitWallet(ctx context.Context, walletID uuid.UUID, amount int64, description string, withdrawalID *uuid.UUID) (*domain.Wallet, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	wallet, err := debitWalletTx(ctx, tx, walletID, amount, description, withdrawalID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return wallet, nil
}

func debitWalletTx(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, amount int64, description string, withdrawalID *uuid.UUID) (*domain.Wallet, error) {
	wallet, err := lockWallet(ctx, tx, walletID)
	if err != nil {
		return nil, err
	}
	if wallet.Balance < amount {
		return nil, ErrInsufficientFunds
	}

	query := `
		UPDATE seller_wallets
		SET balance = balance - $1, total_withdrawn = total_withdrawn + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING ` + walletColumns
	wallet, err = scanWallet(tx.QueryRow(ctx, query, amount, walletID))
	if err != nil {
		return nil, err
	}

	if err := insertLedgerEntry(ctx, tx, walletID, domain.WalletTxWithdrawal, -amount, wallet.Balance, description, nil, withdrawalID); err != nil {
		return nil, err
	}
	return wallet, nil
}

// AddPendingBalance adds held funds that are not yet withdrawable. Held funds
// do not touch the ledger until they are released into the balance. A negative
// amount removes a hold and is clamped at zero.
func (r *PostgresRepository) AddPendingBalance(ctx context.Context, walletID uuid.UUID, amount int64) error {
	query := `UPDATE seller_wallets SET pending_balance = GREATEST(pending_balance + $1, 0), updated_at = NOW() WHERE id = $2`
	result, err := r.db.Exec(ctx, query, amount, walletID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrWalletNotFound
	}
	return nil
}

// ReleasePendingBalance moves held funds into the withdrawable balance. The
// released amount is clamped to the current pending balance.
func (r *PostgresRepository) ReleasePendingBalance(ctx context.Context, walletID uuid.UUID, amount int64, description string, orderID *uuid.UUID) (*domain.Wallet, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	wallet, err := lockWallet(ctx, tx, walletID)
	if err != nil {
		return nil, err
	}
	if amount > wallet.PendingBalance {
		amount = wallet.PendingBalance
	}
	if amount <= 0 {
		return wallet, tx.Commit(ctx)
	}

	query := `
		UPDATE seller_wallets
		SET pending_balance = pending_balance - $1,
		    balance = balance + $1,
		    total_earned = total_earned + $1,
		    updated_at = NOW()
		WHERE id = $2
		RETURNING ` + walletColumns
	wallet, err = scanWallet(tx.QueryRow(ctx, query, amount, walletID))
	if err != nil {
		return nil, err
	}

	if err := insertLedgerEntry(ctx, tx, walletID, domain.WalletTxCredit, amount, wallet.Balance, description, orderID, nil); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return wallet, nil
}

// AdjustWallet applies a signed manual adjustment. A negative adjustment may
// not drive the balance below zero.
func (r *PostgresRepository) AdjustWallet(ctx context.Context, walletID uuid.UUID, amount int64, description string) (*domain.Wallet, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	wallet, err := lockWallet(ctx, tx, walletID)
	if err != nil {
		return nil, err
	}
	if wallet.Balance+amount < 0 {
		return nil, ErrInsufficientFunds
	}

	query := `
		UPDATE seller_wallets
		SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING ` + walletColumns
	wallet, err = scanWallet(tx.QueryRow(ctx, query, amount, walletID))
	if err != nil {
		return nil, err
	}

	if err := insertLedgerEntry(ctx, tx, walletID, domain.WalletTxAdjustment, amount, wallet.Balance, description, nil, nil); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return wallet, nil
}

// UpdateWalletBankDetails replaces the wallet's payout bank account fields.
func (r *PostgresRepository) UpdateWalletBankDetails(ctx context.Context, sellerID uuid.UUID, details domain.UpdateBankDetailsRequest) (*domain.Wallet, error) {
	query := `
		UPDATE seller_wallets
		SET bank_name = $1, iban = $2, bic = $3, account_holder_name = $4, updated_at = NOW()
		WHERE seller_id = $5
		RETURNING ` + walletColumns
	return scanWallet(r.db.QueryRow(ctx, query,
		details.BankName, details.IBAN, details.BIC, details.AccountHolderName, sellerID,
	))
}

// ListWalletTransactions returns a wallet's ledger history, newest first.
func (r *PostgresRepository) ListWalletTransactions(ctx context.Context, walletID uuid.UUID, opts domain.WalletTransactionListOptions) ([]domain.WalletTransaction, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, wallet_id, type, amount, balance_after, COALESCE(description, '') AS description,
		       order_id, withdrawal_id, created_at
		FROM wallet_transactions
		WHERE wallet_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, walletID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.WalletTransaction
	for rows.Next() {
		var entry domain.WalletTransaction
		err := rows.Scan(
			&entry.ID, &entry.WalletID, &entry.Type, &entry.Amount, &entry.BalanceAfter,
			&entry.Description, &entry.OrderID, &entry.WithdrawalID, &entry.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
