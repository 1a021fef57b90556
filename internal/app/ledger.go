/**
 * @description
 * This file contains the wallet and ledger use cases: reading a seller's
 * wallet, browsing its transaction history, updating payout bank details, and
 * applying manual adjustments. Balance math itself lives in the repository so
 * every mutation runs under a row lock with its ledger entry.
 */

package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/vyzio/finance-service/internal/domain"
)

// GetWallet returns the seller's wallet, provisioning an empty one on first use.
func (s *Service) GetWallet(ctx context.Context, sellerID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.repo.GetOrCreateWallet(ctx, sellerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}
	return wallet, nil
}

// GetWalletTransactions returns the seller's ledger history, newest first.
func (s *Service) GetWalletTransactions(ctx context.Context, sellerID uuid.UUID, opts domain.WalletTransactionListOptions) ([]domain.WalletTransaction, error) {
	wallet, err := s.repo.GetOrCreateWallet(ctx, sellerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}
	return s.repo.ListWalletTransactions(ctx, wallet.ID, opts)
}

// UpdateBankDetails replaces the seller's payout bank account.
func (s *Service) UpdateBankDetails(ctx context.Context, sellerID uuid.UUID, details domain.UpdateBankDetailsRequest) (*domain.Wallet, error) {
	details.BankName = strings.TrimSpace(details.BankName)
	details.IBAN = strings.ToUpper(strings.ReplaceAll(details.IBAN, " ", ""))
	details.BIC = strings.ToUpper(strings.TrimSpace(details.BIC))
	details.AccountHolderName = strings.TrimSpace(details.AccountHolderName)

	if details.BankName == "" || details.IBAN == "" || details.AccountHolderName == "" {
		return nil, ErrBankDetailsMissing
	}

	// Ensure the wallet row exists before updating it.
	if _, err := s.repo.GetOrCreateWallet(ctx, sellerID); err != nil {
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}
	return s.repo.UpdateWalletBankDetails(ctx, sellerID, details)
}

// AdjustWallet applies a signed manual balance adjustment. Used by operators
// for goodwill credits and dispute settlements.
func (s *Service) AdjustWallet(ctx context.Context, sellerID uuid.UUID, amount int64, description string) (*domain.Wallet, error) {
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	wallet, err := s.repo.GetOrCreateWallet(ctx, sellerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}
	return s.repo.AdjustWallet(ctx, wallet.ID, amount, description)
}

// ReleaseHeldFunds manually moves held funds into the withdrawable balance.
// Used by operators when an order is stuck and the hold must be settled by
// hand; the released amount is clamped to what is actually held.
func (s *Service) ReleaseHeldFunds(ctx context.Context, sellerID uuid.UUID, amount int64, description string) (*domain.Wallet, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	wallet, err := s.repo.GetOrCreateWallet(ctx, sellerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}
	return s.repo.ReleasePendingBalance(ctx, wallet.ID, amount, description, nil)
}
