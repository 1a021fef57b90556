/**
 * @description
 * This file defines the seller wallet and ledger domain models for the
 * finance-service. A wallet tracks a seller's withdrawable and pending
 * balances, and every balance change is recorded as an immutable
 * WalletTransaction row.
 *
 * @notes
 * - Amounts are stored as `int64` in the smallest currency unit (cents),
 *   which avoids floating-point inaccuracies with financial data.
 * - WalletTransaction rows are append-only; they are never updated or
 *   deleted after insertion.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// WalletTransactionType enumerates the kinds of ledger entries a wallet can carry.
type WalletTransactionType string

const (
	WalletTxCredit     WalletTransactionType = "credit"
	WalletTxWithdrawal WalletTransactionType = "withdrawal"
	WalletTxRefund     WalletTransactionType = "refund"
	WalletTxAdjustment WalletTransactionType = "adjustment"
	WalletTxFee        WalletTransactionType = "fee"
)

// Wallet represents a seller's balance record. This struct maps directly to
// the `seller_wallets` table in the database.
type Wallet struct {
	ID                  uuid.UUID `json:"id"`
	SellerID            uuid.UUID `json:"seller_id"`
	Balance             int64     `json:"balance"`         // in cents, withdrawable
	PendingBalance      int64     `json:"pending_balance"` // in cents, held until release
	TotalEarned         int64     `json:"total_earned"`    // in cents
	TotalWithdrawn      int64     `json:"total_withdrawn"` // in cents
	BankName            *string   `json:"bank_name,omitempty"`
	IBAN                *string   `json:"iban,omitempty"`
	BIC                 *string   `json:"bic,omitempty"`
	AccountHolderName   *string   `json:"account_holder_name,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// HasBankDetails reports whether the wallet carries enough bank information
// to process a withdrawal against it.
func (w *Wallet) HasBankDetails() bool {
	return w.BankName != nil && *w.BankName != "" && w.IBAN != nil && *w.IBAN != ""
}

// WalletTransaction is one append-only ledger entry against a wallet.
// Amount is signed: credits are positive, debits negative. BalanceAfter is
// the wallet balance immediately after this entry was applied.
type WalletTransaction struct {
	ID           uuid.UUID             `json:"id"`
	WalletID     uuid.UUID             `json:"wallet_id"`
	Type         WalletTransactionType `json:"type"`
	Amount       int64                 `json:"amount"` // in cents, signed
	BalanceAfter int64                 `json:"balance_after"`
	Description  string                `json:"description"`
	OrderID      *uuid.UUID            `json:"order_id,omitempty"`
	WithdrawalID *uuid.UUID            `json:"withdrawal_id,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
}

// UpdateBankDetailsRequest is the DTO for updating a wallet's payout bank account.
type UpdateBankDetailsRequest struct {
	BankName          string `json:"bank_name"`
	IBAN              string `json:"iban"`
	BIC               string `json:"bic"`
	AccountHolderName string `json:"account_holder_name"`
}

// WalletTransactionListOptions controls pagination of ledger history queries.
type WalletTransactionListOptions struct {
	Limit  int
	Offset int
}
