/**
 * @description
 * This file implements the checkout use cases. Each checkout creates a hosted
 * gateway session plus a pending payment audit row keyed by the session id,
 * so the webhook reconciler can later tell what was sold. Purchase checkouts
 * additionally create a pending order that holds the funds split.
 */

package app

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/vyzio/finance-service/internal/domain"
	"github.com/vyzio/finance-service/internal/store"
	"github.com/vyzio/finance-service/pkg/stripeclient"
)

func (s *Service) successURL(path string) string {
	return s.frontendURL + path + "?session_id={CHECKOUT_SESSION_ID}"
}

// createPaymentAudit records a pending payment for a freshly created session.
func (s *Service) createPaymentAudit(ctx context.Context, userID uuid.UUID, paymentType domain.PaymentType, amount int64, sessionID string, metadata map[string]string) error {
	payment := &domain.Payment{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      paymentType,
		Status:    domain.PaymentPending,
		Amount:    amount,
		Currency:  "eur",
		SessionID: &sessionID,
		Metadata:  metadata,
	}
	if err := s.repo.CreatePayment(ctx, payment); err != nil {
		return fmt.Errorf("failed to record payment: %w", err)
	}
	return nil
}

// CreatePurchaseCheckout starts a checkout for buying a listing. The order is
// created up front in the pending state and confirmed by the webhook once the
// gateway reports the session completed.
func (s *Service) CreatePurchaseCheckout(ctx context.Context, buyerID uuid.UUID, req domain.PurchaseCheckoutRequest) (*domain.CheckoutResponse, error) {
	if req.ItemPrice <= 0 {
		return nil, ErrInvalidAmount
	}
	if err := s.consumeCheckoutRateLimit(ctx, buyerID); err != nil {
		return nil, err
	}

	metadata := map[string]string{
		"payment_type": string(domain.PaymentTypePurchase),
		"buyer_id":     buyerID.String(),
		"seller_id":    req.SellerID.String(),
		"listing_id":   req.ListingID.String(),
	}
	session, err := s.gateway.CreateCheckoutSession(ctx, stripeclient.CheckoutParams{
		Mode:        stripeclient.ModePayment,
		Amount:      req.ItemPrice,
		Currency:    "eur",
		ProductName: fmt.Sprintf("Achat annonce %s", req.ListingID),
		SuccessURL:  s.successURL("/orders/success"),
		CancelURL:   s.frontendURL + "/orders/cancelled",
		Metadata:    metadata,
	})
	if err != nil {
		return nil, err
	}

	order, err := s.CreateOrder(ctx, buyerID, domain.CreateOrderRequest{
		SellerID:         req.SellerID,
		ListingID:        req.ListingID,
		ItemPrice:        req.ItemPrice,
		PaymentSessionID: &session.ID,
	})
	if err != nil {
		return nil, err
	}
	if err := s.createPaymentAudit(ctx, buyerID, domain.PaymentTypePurchase, req.ItemPrice, session.ID, metadata); err != nil {
		return nil, err
	}

	log.Printf("level=info component=app op=purchase_checkout order=%s session=%s amount=%d", order.OrderNumber, session.ID, req.ItemPrice)
	return &domain.CheckoutResponse{
		SessionID:   session.ID,
		CheckoutURL: session.URL,
		OrderID:     order.ID.String(),
	}, nil
}

// CreateSubscriptionCheckout starts a checkout for a subscription plan.
func (s *Service) CreateSubscriptionCheckout(ctx context.Context, userID uuid.UUID, req domain.SubscriptionCheckoutRequest) (*domain.CheckoutResponse, error) {
	if err := s.consumeCheckoutRateLimit(ctx, userID); err != nil {
		return nil, err
	}
	plan, err := s.repo.GetPlanByID(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}

	metadata := map[string]string{
		"payment_type": string(domain.PaymentTypeSubscription),
		"user_id":      userID.String(),
		"plan_id":      plan.ID.String(),
	}
	session, err := s.gateway.CreateCheckoutSession(ctx, stripeclient.CheckoutParams{
		Mode:       stripeclient.ModeSubscription,
		PriceID:    plan.GatewayPriceID,
		SuccessURL: s.successURL("/subscription/success"),
		CancelURL:  s.frontendURL + "/subscription/cancelled",
		Metadata:   metadata,
	})
	if err != nil {
		return nil, err
	}
	if err := s.createPaymentAudit(ctx, userID, domain.PaymentTypeSubscription, plan.Price, session.ID, metadata); err != nil {
		return nil, err
	}

	log.Printf("level=info component=app op=subscription_checkout user_id=%s plan=%s session=%s", userID, plan.Name, session.ID)
	return &domain.CheckoutResponse{
		SessionID:   session.ID,
		CheckoutURL: session.URL,
	}, nil
}

// CreateCreditCheckout starts a checkout for a credit pack. When a listing id
// is provided the first credit is applied to that listing on completion.
func (s *Service) CreateCreditCheckout(ctx context.Context, userID uuid.UUID, req domain.CreditCheckoutRequest) (*domain.CheckoutResponse, error) {
	if err := s.consumeCheckoutRateLimit(ctx, userID); err != nil {
		return nil, err
	}
	pack, err := s.repo.GetCreditPackByID(ctx, req.CreditPackID)
	if err != nil {
		return nil, err
	}

	metadata := map[string]string{
		"payment_type": string(domain.PaymentTypePostCredit),
		"user_id":      userID.String(),
		"pack_id":      pack.ID.String(),
	}
	if req.ListingID != nil {
		metadata["listing_id"] = req.ListingID.String()
	}
	session, err := s.gateway.CreateCheckoutSession(ctx, stripeclient.CheckoutParams{
		Mode:        stripeclient.ModePayment,
		Amount:      pack.Price,
		Currency:    "eur",
		ProductName: fmt.Sprintf("Pack %s", pack.Name),
		SuccessURL:  s.successURL("/credits/success"),
		CancelURL:   s.frontendURL + "/credits/cancelled",
		Metadata:    metadata,
	})
	if err != nil {
		return nil, err
	}
	if err := s.createPaymentAudit(ctx, userID, domain.PaymentTypePostCredit, pack.Price, session.ID, metadata); err != nil {
		return nil, err
	}

	log.Printf("level=info component=app op=credit_checkout user_id=%s pack=%s session=%s", userID, pack.Name, session.ID)
	return &domain.CheckoutResponse{
		SessionID:   session.ID,
		CheckoutURL: session.URL,
	}, nil
}

// GetCheckoutPayment returns the payment recorded for a checkout session,
// restricted to its owner. The frontend polls this after the gateway
// redirects back with the session id.
func (s *Service) GetCheckoutPayment(ctx context.Context, userID uuid.UUID, sessionID string) (*domain.Payment, error) {
	payment, err := s.repo.GetPaymentBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if payment.UserID != userID {
		return nil, store.ErrPaymentNotFound
	}
	return payment, nil
}
