/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for all
 * data access operations required by the finance-service. By defining an interface,
 * we decouple the application's business logic from the specific database implementation
 * (e.g., PostgreSQL), making the code more modular and easier to test.
 *
 * @dependencies
 * - context: Standard Go library.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/vyzio/finance-service/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Wallet and ledger methods
	GetWalletBySellerID(ctx context.Context, sellerID uuid.UUID) (*domain.Wallet, error)
	GetOrCreateWallet(ctx context.Context, sellerID uuid.UUID) (*domain.Wallet, error)
	CreditWallet(ctx context.Context, walletID uuid.UUID, amount int64, description string, orderID *uuid.UUID) (*domain.Wallet, error)
	DebitWallet(ctx context.Context, walletID uuid.UUID, amount int64, description string, withdrawalID *uuid.UUID) (*domain.Wallet, error)
	AddPendingBalance(ctx context.Context, walletID uuid.UUID, amount int64) error
	ReleasePendingBalance(ctx context.Context, walletID uuid.UUID, amount int64, description string, orderID *uuid.UUID) (*domain.Wallet, error)
	AdjustWallet(ctx context.Context, walletID uuid.UUID, amount int64, description string) (*domain.Wallet, error)
	UpdateWalletBankDetails(ctx context.Context, sellerID uuid.UUID, details domain.UpdateBankDetailsRequest) (*domain.Wallet, error)
	ListWalletTransactions(ctx context.Context, walletID uuid.UUID, opts domain.WalletTransactionListOptions) ([]domain.WalletTransaction, error)

	// Order methods
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByID(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
	GetOrderBySessionID(ctx context.Context, sessionID string) (*domain.Order, error)
	// ConfirmOrderBySessionID moves a pending order to confirmed. Orders that
	// already progressed past pending are returned unchanged.
	ConfirmOrderBySessionID(ctx context.Context, sessionID string) (*domain.Order, error)
	UpdateOrder(ctx context.Context, order *domain.Order) error
	// ReleaseOrderFunds atomically credits the seller wallet and completes the
	// order. The boolean result is false when funds were already released, in
	// which case the call has no effect.
	ReleaseOrderFunds(ctx context.Context, orderID uuid.UUID, description string) (*domain.Order, bool, error)
	ListOrdersByBuyer(ctx context.Context, buyerID uuid.UUID, opts domain.OrderListOptions) ([]domain.Order, error)
	ListOrdersBySeller(ctx context.Context, sellerID uuid.UUID, opts domain.OrderListOptions) ([]domain.Order, error)
	GetSellerOrderStats(ctx context.Context, sellerID uuid.UUID) (*domain.SellerOrderStats, error)

	// Withdrawal methods
	CreateWithdrawal(ctx context.Context, withdrawal *domain.Withdrawal) error
	GetWithdrawalByID(ctx context.Context, withdrawalID uuid.UUID) (*domain.Withdrawal, error)
	// ApproveWithdrawal debits the wallet and completes the request in one
	// transaction. Only pending requests can be approved.
	ApproveWithdrawal(ctx context.Context, withdrawalID uuid.UUID, adminID uuid.UUID, transferReference string, debitDescription string) (*domain.Withdrawal, error)
	RejectWithdrawal(ctx context.Context, withdrawalID uuid.UUID, adminID uuid.UUID, reason string) (*domain.Withdrawal, error)
	CancelWithdrawal(ctx context.Context, withdrawalID uuid.UUID, sellerID uuid.UUID) (*domain.Withdrawal, error)
	ListWithdrawalsBySeller(ctx context.Context, sellerID uuid.UUID) ([]domain.Withdrawal, error)
	ListPendingWithdrawals(ctx context.Context) ([]domain.Withdrawal, error)

	// Subscription and plan methods
	GetPlanByID(ctx context.Context, planID uuid.UUID) (*domain.SubscriptionPlan, error)
	ListActivePlans(ctx context.Context) ([]domain.SubscriptionPlan, error)
	GetSubscriptionByUserID(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error)
	GetSubscriptionByGatewayID(ctx context.Context, gatewaySubscriptionID string) (*domain.Subscription, error)
	// UpsertSubscription replaces the user's subscription row, keyed by user id.
	UpsertSubscription(ctx context.Context, sub *domain.Subscription) error
	UpdateSubscription(ctx context.Context, sub *domain.Subscription) error
	// ConsumeSubscriptionSlot increments listings_used if the plan quota allows
	// it. Returns false when the quota is exhausted.
	ConsumeSubscriptionSlot(ctx context.Context, subscriptionID uuid.UUID) (bool, error)

	// Credit methods
	GetOrCreateCreditBalance(ctx context.Context, userID uuid.UUID) (*domain.CreditBalance, error)
	AddCredits(ctx context.Context, userID uuid.UUID, amount int, txType domain.CreditTransactionType, description string) (*domain.CreditBalance, error)
	UseCredit(ctx context.Context, userID uuid.UUID, listingID *uuid.UUID) (*domain.CreditBalance, error)
	RefundCredit(ctx context.Context, userID uuid.UUID, listingID *uuid.UUID) (*domain.CreditBalance, error)
	ListCreditTransactions(ctx context.Context, userID uuid.UUID, limit int, offset int) ([]domain.CreditTransaction, error)
	GetCreditPackByID(ctx context.Context, packID uuid.UUID) (*domain.CreditPack, error)
	ListActiveCreditPacks(ctx context.Context) ([]domain.CreditPack, error)

	// Payment audit methods
	CreatePayment(ctx context.Context, payment *domain.Payment) error
	GetPaymentBySessionID(ctx context.Context, sessionID string) (*domain.Payment, error)
	MarkPaymentCompleted(ctx context.Context, sessionID string, paymentIntentID, customerID *string) (*domain.Payment, error)
	MarkPaymentFailed(ctx context.Context, sessionID string) (*domain.Payment, error)

	// Webhook event methods
	// InsertWebhookEvent persists a gateway delivery keyed by its event id.
	// When a row already exists the existing record is returned with
	// created=false.
	InsertWebhookEvent(ctx context.Context, event *domain.WebhookEvent) (created bool, existing *domain.WebhookEvent, err error)
	MarkWebhookEventProcessed(ctx context.Context, eventID uuid.UUID) error
	RecordWebhookEventFailure(ctx context.Context, eventID uuid.UUID, errorMessage string) error
}
