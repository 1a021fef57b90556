/**
 * @description
 * This file implements the withdrawal workflow: sellers request a payout from
 * their wallet balance, an operator approves or rejects the request, and the
 * wallet is only debited at approval time. Bank details are snapshotted when
 * the request is created so a later change cannot redirect the payout.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/vyzio/finance-service/internal/domain"
	"github.com/vyzio/finance-service/internal/store"
	"github.com/vyzio/finance-service/pkg/rabbitmq"
)

// RequestWithdrawal creates a pending withdrawal request. Validation order:
// positive amount, sufficient balance, minimum amount, no other pending
// request (the last enforced by the database).
func (s *Service) RequestWithdrawal(ctx context.Context, sellerID uuid.UUID, amount int64) (*domain.Withdrawal, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	wallet, err := s.repo.GetOrCreateWallet(ctx, sellerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}
	if amount > wallet.Balance {
		return nil, store.ErrInsufficientFunds
	}
	if amount < s.minWithdrawal {
		return nil, ErrBelowMinimumWithdrawal
	}
	if !wallet.HasBankDetails() {
		return nil, ErrBankDetailsMissing
	}

	withdrawal := &domain.Withdrawal{
		ID:       uuid.New(),
		WalletID: wallet.ID,
		SellerID: sellerID,
		Amount:   amount,
		Status:   domain.WithdrawalPending,
		BankSnapshot: domain.BankSnapshot{
			BankName:          deref(wallet.BankName),
			IBAN:              deref(wallet.IBAN),
			BIC:               deref(wallet.BIC),
			AccountHolderName: deref(wallet.AccountHolderName),
		},
	}
	if err := s.repo.CreateWithdrawal(ctx, withdrawal); err != nil {
		return nil, err
	}

	log.Printf("level=info component=app op=request_withdrawal withdrawal_id=%s seller_id=%s amount=%d", withdrawal.ID, sellerID, amount)
	s.publishEvent(ctx, EventWithdrawalRequested, rabbitmq.FinanceEvent{
		UserID:   sellerID,
		EntityID: withdrawal.ID,
		Amount:   amount,
	})
	return withdrawal, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ApproveWithdrawal debits the wallet and completes the request. An
// insufficient balance at approval time fails the approval and leaves the
// request pending for the operator to retry or reject.
func (s *Service) ApproveWithdrawal(ctx context.Context, withdrawalID, adminID uuid.UUID, transferReference string) (*domain.Withdrawal, error) {
	shortID := strings.ReplaceAll(withdrawalID.String(), "-", "")[:8]
	description := fmt.Sprintf("Retrait #%s", shortID)

	withdrawal, err := s.repo.ApproveWithdrawal(ctx, withdrawalID, adminID, transferReference, description)
	if err != nil {
		return nil, err
	}

	log.Printf("level=info component=app op=approve_withdrawal withdrawal_id=%s admin_id=%s amount=%d", withdrawal.ID, adminID, withdrawal.Amount)
	s.publishEvent(ctx, EventWithdrawalCompleted, rabbitmq.FinanceEvent{
		UserID:   withdrawal.SellerID,
		EntityID: withdrawal.ID,
		Amount:   withdrawal.Amount,
	})
	return withdrawal, nil
}

// GetWithdrawal returns one of the seller's withdrawal requests. Requests
// belonging to other sellers are reported as not found.
func (s *Service) GetWithdrawal(ctx context.Context, withdrawalID, sellerID uuid.UUID) (*domain.Withdrawal, error) {
	withdrawal, err := s.repo.GetWithdrawalByID(ctx, withdrawalID)
	if err != nil {
		return nil, err
	}
	if withdrawal.SellerID != sellerID {
		return nil, store.ErrWithdrawalNotFound
	}
	return withdrawal, nil
}

// RejectWithdrawal declines a pending request. The wallet is untouched.
func (s *Service) RejectWithdrawal(ctx context.Context, withdrawalID, adminID uuid.UUID, reason string) (*domain.Withdrawal, error) {
	withdrawal, err := s.repo.RejectWithdrawal(ctx, withdrawalID, adminID, reason)
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, EventWithdrawalRejected, rabbitmq.FinanceEvent{
		UserID:   withdrawal.SellerID,
		EntityID: withdrawal.ID,
		Reason:   reason,
	})
	return withdrawal, nil
}

// CancelWithdrawal lets the seller withdraw their own pending request.
func (s *Service) CancelWithdrawal(ctx context.Context, withdrawalID, sellerID uuid.UUID) (*domain.Withdrawal, error) {
	return s.repo.CancelWithdrawal(ctx, withdrawalID, sellerID)
}

// ListWithdrawals returns a seller's withdrawal requests, newest first.
func (s *Service) ListWithdrawals(ctx context.Context, sellerID uuid.UUID) ([]domain.Withdrawal, error) {
	return s.repo.ListWithdrawalsBySeller(ctx, sellerID)
}

// ListPendingWithdrawals returns all pending requests for operator review.
func (s *Service) ListPendingWithdrawals(ctx context.Context) ([]domain.Withdrawal, error) {
	return s.repo.ListPendingWithdrawals(ctx)
}
