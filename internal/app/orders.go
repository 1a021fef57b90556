/**
 * @description
 * This file implements the order lifecycle: creation with fee split, payment
 * confirmation, shipping and delivery updates, receipt confirmation, the
 * exactly-once fund release to the seller's wallet, cancellation, and
 * disputes.
 *
 * Key features:
 * - Funds are held by the platform from payment until the buyer confirms
 *   receipt; the release credits the seller net of the platform fee.
 * - The release itself is guarded in the repository under a row lock, so a
 *   double confirm or replayed webhook can never pay a seller twice.
 */

package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/vyzio/finance-service/internal/domain"
	"github.com/vyzio/finance-service/internal/store"
	"github.com/vyzio/finance-service/pkg/rabbitmq"
)

const orderNumberCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// generateOrderNumber produces an order number like VYZ-2608-4K7QPZ:
// a fixed prefix, the two-digit year and month, and six random characters.
func (s *Service) generateOrderNumber() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate order number: %w", err)
	}
	for i, b := range buf {
		buf[i] = orderNumberCharset[int(b)%len(orderNumberCharset)]
	}
	return fmt.Sprintf("VYZ-%s-%s", s.now().Format("0601"), string(buf)), nil
}

// CreateOrder records a new pending order with the platform fee carved out of
// the item price. The fee is floor division, so the seller amount absorbs the
// remainder cent.
func (s *Service) CreateOrder(ctx context.Context, buyerID uuid.UUID, req domain.CreateOrderRequest) (*domain.Order, error) {
	if req.ItemPrice <= 0 {
		return nil, ErrInvalidAmount
	}

	fee := req.ItemPrice * s.feePercent / 100
	order := &domain.Order{
		ID:               uuid.New(),
		BuyerID:          buyerID,
		SellerID:         req.SellerID,
		ListingID:        req.ListingID,
		ItemPrice:        req.ItemPrice,
		PlatformFee:      fee,
		SellerAmount:     req.ItemPrice - fee,
		Status:           domain.OrderPending,
		PaymentSessionID: req.PaymentSessionID,
	}

	// Regenerate on a number collision; two attempts colliding twice is
	// practically impossible with a 36^6 space.
	for attempt := 0; attempt < 3; attempt++ {
		number, err := s.generateOrderNumber()
		if err != nil {
			return nil, err
		}
		order.OrderNumber = number

		err = s.repo.CreateOrder(ctx, order)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, store.ErrDuplicateOrderNumber) {
			return nil, fmt.Errorf("failed to create order: %w", err)
		}
	}
	return nil, store.ErrDuplicateOrderNumber
}

// ConfirmOrderPayment moves the order for a checkout session from pending to
// confirmed. Called by the reconciler when the gateway reports the session
// paid; replays are harmless.
func (s *Service) ConfirmOrderPayment(ctx context.Context, sessionID string) (*domain.Order, error) {
	order, err := s.repo.ConfirmOrderBySessionID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm order payment: %w", err)
	}

	if order.Status == domain.OrderConfirmed {
		s.publishEvent(ctx, EventOrderConfirmed, rabbitmq.FinanceEvent{
			UserID:   order.SellerID,
			EntityID: order.ID,
			Amount:   order.ItemPrice,
			Reason:   order.OrderNumber,
		})
	}
	return order, nil
}

// MarkShipped records that the seller handed the item to the carrier.
func (s *Service) MarkShipped(ctx context.Context, orderID, sellerID uuid.UUID) (*domain.Order, error) {
	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.SellerID != sellerID {
		return nil, ErrNotOrderParticipant
	}
	if !order.CanShip() {
		return nil, ErrInvalidOrderState
	}

	now := s.now()
	order.Status = domain.OrderShipped
	order.ShippedAt = &now
	if err := s.repo.UpdateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to mark order shipped: %w", err)
	}

	s.publishEvent(ctx, EventOrderShipped, rabbitmq.FinanceEvent{
		UserID:   order.BuyerID,
		EntityID: order.ID,
		Reason:   order.OrderNumber,
	})
	return order, nil
}

// MarkDelivered records carrier delivery. Only shipped orders can be delivered.
func (s *Service) MarkDelivered(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != domain.OrderShipped {
		return nil, ErrInvalidOrderState
	}

	now := s.now()
	order.Status = domain.OrderDelivered
	order.DeliveredAt = &now
	if err := s.repo.UpdateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to mark order delivered: %w", err)
	}
	return order, nil
}

// ConfirmReceipt lets the buyer confirm they received the item, which
// releases the held funds to the seller. A second confirm is rejected before
// it reaches the release path.
func (s *Service) ConfirmReceipt(ctx context.Context, orderID, buyerID uuid.UUID) (*domain.Order, error) {
	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != buyerID {
		return nil, ErrNotOrderParticipant
	}
	if order.BuyerConfirmedReceipt {
		return nil, ErrReceiptAlreadyConfirmed
	}
	if !order.CanConfirmReceipt() {
		return nil, ErrInvalidOrderState
	}

	return s.ReleaseFunds(ctx, orderID)
}

// ReleaseFunds credits the seller's wallet with the order's net amount and
// completes the order. The repository guarantees this happens at most once;
// a call against an already-released order returns the order unchanged.
func (s *Service) ReleaseFunds(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	description := fmt.Sprintf("Vente #%s", order.OrderNumber)
	order, released, err := s.repo.ReleaseOrderFunds(ctx, orderID, description)
	if err != nil {
		return nil, fmt.Errorf("failed to release order funds: %w", err)
	}
	if !released {
		log.Printf("level=info component=app op=release_funds outcome=noop order_id=%s msg=\"funds already released\"", orderID)
		return order, nil
	}

	log.Printf("level=info component=app op=release_funds outcome=released order_id=%s seller_id=%s amount=%d", order.ID, order.SellerID, order.SellerAmount)
	s.publishEvent(ctx, EventOrderFundsReleased, rabbitmq.FinanceEvent{
		UserID:   order.SellerID,
		EntityID: order.ID,
		Amount:   order.SellerAmount,
		Reason:   order.OrderNumber,
	})
	return order, nil
}

// CancelOrder cancels an order that has not entered fulfillment. Later stages
// must go through OpenDispute so released funds are never silently reversed.
func (s *Service) CancelOrder(ctx context.Context, orderID, actorID uuid.UUID, reason string) (*domain.Order, error) {
	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != actorID && order.SellerID != actorID {
		return nil, ErrNotOrderParticipant
	}
	if !order.CanCancel() {
		return nil, ErrInvalidOrderState
	}

	wasConfirmed := order.Status != domain.OrderPending

	now := s.now()
	order.Status = domain.OrderCancelled
	order.CancelledAt = &now
	order.CancellationReason = &reason
	if err := s.repo.UpdateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to cancel order: %w", err)
	}

	// Payment confirmation placed a hold on the seller wallet; lift it. The
	// pending balance is display-only, so a failure here is not fatal.
	if wasConfirmed {
		wallet, werr := s.repo.GetWalletBySellerID(ctx, order.SellerID)
		switch {
		case errors.Is(werr, store.ErrWalletNotFound):
			// No wallet means no hold was ever placed.
		case werr != nil:
			log.Printf("level=warn component=app op=cancel_order order_id=%s msg=\"failed to load wallet to lift hold\" err=%v", order.ID, werr)
		default:
			if herr := s.repo.AddPendingBalance(ctx, wallet.ID, -order.SellerAmount); herr != nil {
				log.Printf("level=warn component=app op=cancel_order order_id=%s msg=\"failed to lift pending hold\" err=%v", order.ID, herr)
			}
		}
	}

	s.publishEvent(ctx, EventOrderCancelled, rabbitmq.FinanceEvent{
		UserID:   actorID,
		EntityID: order.ID,
		Reason:   reason,
	})
	return order, nil
}

// OpenDispute flags an order in fulfillment or settled for manual review.
// When funds were already released the order is additionally marked for
// manual reconciliation; the seller's wallet is never clawed back
// automatically.
func (s *Service) OpenDispute(ctx context.Context, orderID, actorID uuid.UUID, reason string) (*domain.Order, error) {
	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != actorID && order.SellerID != actorID {
		return nil, ErrNotOrderParticipant
	}
	switch order.Status {
	case domain.OrderShipped, domain.OrderDelivered, domain.OrderCompleted:
	default:
		return nil, ErrInvalidOrderState
	}

	order.Status = domain.OrderDisputed
	order.DisputeReason = &reason
	if order.FundsReleased {
		order.NeedsManualReview = true
		log.Printf("level=warn component=app op=open_dispute order_id=%s msg=\"dispute opened after fund release; flagged for manual review\"", order.ID)
	}
	if err := s.repo.UpdateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to open dispute: %w", err)
	}

	s.publishEvent(ctx, EventOrderDisputed, rabbitmq.FinanceEvent{
		UserID:   actorID,
		EntityID: order.ID,
		Reason:   reason,
	})
	return order, nil
}

// GetOrder returns an order visible to one of its participants.
func (s *Service) GetOrder(ctx context.Context, orderID, userID uuid.UUID) (*domain.Order, error) {
	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != userID && order.SellerID != userID {
		return nil, ErrNotOrderParticipant
	}
	return order, nil
}

// ListBuyerOrders returns the orders a user placed.
func (s *Service) ListBuyerOrders(ctx context.Context, buyerID uuid.UUID, opts domain.OrderListOptions) ([]domain.Order, error) {
	return s.repo.ListOrdersByBuyer(ctx, buyerID, opts)
}

// ListSellerOrders returns the orders a user received as seller.
func (s *Service) ListSellerOrders(ctx context.Context, sellerID uuid.UUID, opts domain.OrderListOptions) ([]domain.Order, error) {
	return s.repo.ListOrdersBySeller(ctx, sellerID, opts)
}

// GetSellerStats aggregates a seller's order counts and sales totals.
func (s *Service) GetSellerStats(ctx context.Context, sellerID uuid.UUID) (*domain.SellerOrderStats, error) {
	return s.repo.GetSellerOrderStats(ctx, sellerID)
}
