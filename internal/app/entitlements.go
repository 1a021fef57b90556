/**
 * @description
 * This file implements the entitlement use cases: deciding whether a user may
 * create a listing, consuming a listing slot from either subscription quota
 * or the credit balance, and the subscription lifecycle mutations the
 * reconciler drives from gateway events.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/vyzio/finance-service/internal/domain"
	"github.com/vyzio/finance-service/internal/store"
	"github.com/vyzio/finance-service/pkg/rabbitmq"
)

// GetEntitlements summarizes what a user may currently do.
func (s *Service) GetEntitlements(ctx context.Context, userID uuid.UUID) (*domain.EntitlementView, error) {
	view := &domain.EntitlementView{}

	sub, err := s.repo.GetSubscriptionByUserID(ctx, userID)
	if err != nil && !errors.Is(err, store.ErrSubscriptionNotFound) {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	if sub != nil && sub.IsActive() {
		plan, err := s.repo.GetPlanByID(ctx, sub.PlanID)
		if err != nil {
			return nil, fmt.Errorf("failed to load plan: %w", err)
		}
		view.SubscriptionPlan = &plan.Name
		view.ListingsUsed = sub.ListingsUsed
		if plan.MaxListings == domain.UnlimitedListings {
			view.CanCreateListing = true
		} else {
			remaining := plan.MaxListings - sub.ListingsUsed
			if remaining < 0 {
				remaining = 0
			}
			view.ListingsRemaining = &remaining
			view.CanCreateListing = remaining > 0
		}
	}

	balance, err := s.repo.GetOrCreateCreditBalance(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load credit balance: %w", err)
	}
	view.CreditBalance = balance.Balance
	if !view.CanCreateListing && balance.Balance > 0 {
		view.CanCreateListing = true
	}
	if !view.CanCreateListing {
		view.Reason = "subscription quota exhausted and no listing credits available"
	}
	return view, nil
}

// ConsumeListingSlot spends one listing entitlement, preferring subscription
// quota over credits. Called by the listing-service when a listing is
// published.
func (s *Service) ConsumeListingSlot(ctx context.Context, userID uuid.UUID, listingID uuid.UUID) error {
	sub, err := s.repo.GetSubscriptionByUserID(ctx, userID)
	if err != nil && !errors.Is(err, store.ErrSubscriptionNotFound) {
		return fmt.Errorf("failed to load subscription: %w", err)
	}
	if sub != nil && sub.IsActive() {
		consumed, err := s.repo.ConsumeSubscriptionSlot(ctx, sub.ID)
		if err != nil {
			return fmt.Errorf("failed to consume subscription slot: %w", err)
		}
		if consumed {
			return nil
		}
	}

	if _, err := s.repo.UseCredit(ctx, userID, &listingID); err != nil {
		if errors.Is(err, store.ErrNoCredits) {
			return ErrEntitlementExhausted
		}
		return fmt.Errorf("failed to use listing credit: %w", err)
	}
	return nil
}

// RefundListingSlot returns one credit when a listing is removed before
// publication. Subscription quota is not refunded; only spent credits are.
func (s *Service) RefundListingSlot(ctx context.Context, userID uuid.UUID, listingID uuid.UUID) error {
	if _, err := s.repo.RefundCredit(ctx, userID, &listingID); err != nil {
		return fmt.Errorf("failed to refund listing credit: %w", err)
	}
	return nil
}

// periodEnd computes the end of a billing period starting at start.
func periodEnd(start time.Time, period domain.BillingPeriod) time.Time {
	if period == domain.BillingYearly {
		return start.Add(365 * 24 * time.Hour)
	}
	return start.Add(30 * 24 * time.Hour)
}

// ActivateSubscription creates or replaces the user's subscription after a
// completed subscription checkout. Usage counters start at zero.
func (s *Service) ActivateSubscription(ctx context.Context, userID, planID uuid.UUID, gatewaySubID, gatewayCustomerID string) (*domain.Subscription, error) {
	plan, err := s.repo.GetPlanByID(ctx, planID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	sub := &domain.Subscription{
		ID:                 uuid.New(),
		UserID:             userID,
		PlanID:             plan.ID,
		Status:             domain.SubscriptionActive,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   periodEnd(now, plan.BillingPeriod),
	}
	if gatewaySubID != "" {
		sub.GatewaySubscriptionID = &gatewaySubID
	}
	if gatewayCustomerID != "" {
		sub.GatewayCustomerID = &gatewayCustomerID
	}
	if err := s.repo.UpsertSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to activate subscription: %w", err)
	}

	log.Printf("level=info component=app op=activate_subscription user_id=%s plan=%s", userID, plan.Name)
	s.publishEvent(ctx, EventSubscriptionActivated, rabbitmq.FinanceEvent{
		UserID:   userID,
		EntityID: sub.ID,
		Reason:   plan.Name,
	})
	return sub, nil
}

// RenewSubscriptionPeriod starts a fresh billing period after a successful
// invoice charge and resets the usage counters.
func (s *Service) RenewSubscriptionPeriod(ctx context.Context, gatewaySubID string) (*domain.Subscription, error) {
	sub, err := s.repo.GetSubscriptionByGatewayID(ctx, gatewaySubID)
	if err != nil {
		return nil, err
	}
	plan, err := s.repo.GetPlanByID(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	sub.Status = domain.SubscriptionActive
	sub.CurrentPeriodStart = now
	sub.CurrentPeriodEnd = periodEnd(now, plan.BillingPeriod)
	sub.ListingsUsed = 0
	sub.BoostsUsed = 0
	if err := s.repo.UpdateSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to renew subscription: %w", err)
	}
	return sub, nil
}

// gatewayStatusMap translates the gateway's subscription status vocabulary
// into ours.
var gatewayStatusMap = map[string]domain.SubscriptionStatus{
	"active":   domain.SubscriptionActive,
	"trialing": domain.SubscriptionTrialing,
	"past_due": domain.SubscriptionPastDue,
	"unpaid":   domain.SubscriptionPastDue,
	"canceled": domain.SubscriptionCancelled,
	"paused":   domain.SubscriptionPaused,
}

// SyncSubscriptionFromGateway applies the gateway's view of a subscription:
// status, period window, and the cancel-at-period-end flag.
func (s *Service) SyncSubscriptionFromGateway(ctx context.Context, gatewaySubID, gatewayStatus string, periodStart, periodEndAt time.Time, cancelAtPeriodEnd bool) (*domain.Subscription, error) {
	sub, err := s.repo.GetSubscriptionByGatewayID(ctx, gatewaySubID)
	if err != nil {
		return nil, err
	}

	if status, ok := gatewayStatusMap[gatewayStatus]; ok {
		sub.Status = status
	} else {
		log.Printf("level=warn component=app op=sync_subscription gateway_sub_id=%s msg=\"unknown gateway status\" status=%s", gatewaySubID, gatewayStatus)
	}
	if !periodStart.IsZero() {
		sub.CurrentPeriodStart = periodStart
	}
	if !periodEndAt.IsZero() {
		sub.CurrentPeriodEnd = periodEndAt
	}
	sub.CancelAtPeriodEnd = cancelAtPeriodEnd
	if err := s.repo.UpdateSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to sync subscription: %w", err)
	}

	if sub.Status == domain.SubscriptionPastDue {
		s.publishEvent(ctx, EventSubscriptionPastDue, rabbitmq.FinanceEvent{
			UserID:   sub.UserID,
			EntityID: sub.ID,
		})
	}
	return sub, nil
}

// MarkSubscriptionPastDue flags a subscription after a failed invoice charge.
func (s *Service) MarkSubscriptionPastDue(ctx context.Context, gatewaySubID string) (*domain.Subscription, error) {
	sub, err := s.repo.GetSubscriptionByGatewayID(ctx, gatewaySubID)
	if err != nil {
		return nil, err
	}
	sub.Status = domain.SubscriptionPastDue
	if err := s.repo.UpdateSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to mark subscription past due: %w", err)
	}

	s.publishEvent(ctx, EventSubscriptionPastDue, rabbitmq.FinanceEvent{
		UserID:   sub.UserID,
		EntityID: sub.ID,
	})
	return sub, nil
}

// CancelSubscriptionByGatewayID ends a subscription immediately, driven by
// the gateway's subscription.deleted event.
func (s *Service) CancelSubscriptionByGatewayID(ctx context.Context, gatewaySubID string) (*domain.Subscription, error) {
	sub, err := s.repo.GetSubscriptionByGatewayID(ctx, gatewaySubID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	sub.Status = domain.SubscriptionCancelled
	sub.EndsAt = &now
	if err := s.repo.UpdateSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to cancel subscription: %w", err)
	}

	s.publishEvent(ctx, EventSubscriptionCancelled, rabbitmq.FinanceEvent{
		UserID:   sub.UserID,
		EntityID: sub.ID,
	})
	return sub, nil
}

// GrantCredits adds purchased credits plus any pack bonus to the user's
// balance after a completed credit checkout.
func (s *Service) GrantCredits(ctx context.Context, userID uuid.UUID, pack *domain.CreditPack) (*domain.CreditBalance, error) {
	balance, err := s.repo.AddCredits(ctx, userID, pack.Credits, domain.CreditTxPurchase, fmt.Sprintf("Pack %s", pack.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to add credits: %w", err)
	}
	if pack.BonusCredits > 0 {
		balance, err = s.repo.AddCredits(ctx, userID, pack.BonusCredits, domain.CreditTxBonus, fmt.Sprintf("Bonus pack %s", pack.Name))
		if err != nil {
			return nil, fmt.Errorf("failed to add bonus credits: %w", err)
		}
	}

	s.publishEvent(ctx, EventCreditsAdded, rabbitmq.FinanceEvent{
		UserID:   userID,
		EntityID: balance.ID,
		Amount:   int64(pack.TotalCredits()),
	})
	return balance, nil
}

// ListPlans returns the purchasable subscription plans.
func (s *Service) ListPlans(ctx context.Context) ([]domain.SubscriptionPlan, error) {
	return s.repo.ListActivePlans(ctx)
}

// ListCreditPacks returns the purchasable credit packs.
func (s *Service) ListCreditPacks(ctx context.Context) ([]domain.CreditPack, error) {
	return s.repo.ListActiveCreditPacks(ctx)
}

// ListCreditTransactions returns the user's credit history, newest first.
func (s *Service) ListCreditTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.CreditTransaction, error) {
	return s.repo.ListCreditTransactions(ctx, userID, limit, offset)
}
