/**
 * @description
 * This file defines the withdrawal request domain model. Sellers request a
 * payout from their wallet balance; an operator approves or rejects the
 * request. The wallet is only debited when a request is approved.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// WithdrawalStatus enumerates the lifecycle states of a withdrawal request.
type WithdrawalStatus string

const (
	WithdrawalPending    WithdrawalStatus = "pending"
	WithdrawalProcessing WithdrawalStatus = "processing"
	WithdrawalCompleted  WithdrawalStatus = "completed"
	WithdrawalRejected   WithdrawalStatus = "rejected"
	WithdrawalCancelled  WithdrawalStatus = "cancelled"
)

// BankSnapshot captures the wallet's bank details at the moment a withdrawal
// was requested, so a later bank-details change cannot redirect the payout.
type BankSnapshot struct {
	BankName          string `json:"bank_name"`
	IBAN              string `json:"iban"`
	BIC               string `json:"bic"`
	AccountHolderName string `json:"account_holder_name"`
}

// Withdrawal represents a payout request. This struct maps directly to the
// `withdrawal_requests` table in the database.
type Withdrawal struct {
	ID                uuid.UUID        `json:"id"`
	WalletID          uuid.UUID        `json:"wallet_id"`
	SellerID          uuid.UUID        `json:"seller_id"`
	Amount            int64            `json:"amount"` // in cents
	Status            WithdrawalStatus `json:"status"`
	BankSnapshot      BankSnapshot     `json:"bank_snapshot"`
	TransferReference *string          `json:"transfer_reference,omitempty"`
	RejectionReason   *string          `json:"rejection_reason,omitempty"`
	ProcessedBy       *uuid.UUID       `json:"processed_by,omitempty"`
	ProcessedAt       *time.Time       `json:"processed_at,omitempty"`
	CompletedAt       *time.Time       `json:"completed_at,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// RequestWithdrawalRequest is the DTO for creating a withdrawal request.
type RequestWithdrawalRequest struct {
	Amount int64 `json:"amount"` // in cents
}

// ApproveWithdrawalRequest is the DTO for an operator approving a request.
type ApproveWithdrawalRequest struct {
	TransferReference string `json:"transfer_reference"`
}

// RejectWithdrawalRequest is the DTO for an operator rejecting a request.
type RejectWithdrawalRequest struct {
	Reason string `json:"reason"`
}
