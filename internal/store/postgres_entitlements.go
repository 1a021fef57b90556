/**
 * @description
 * This file provides the PostgreSQL implementation of entitlement persistence:
 * subscription plans, subscriptions, listing credits, and credit packs. Credit
 * balance mutations follow the same lock-then-log pattern as the wallet ledger.
 *
 * @dependencies
 * - context: Standard Go library.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vyzio/finance-service/internal/domain"
)

const planColumns = `
	id, name, billing_period, price, max_listings, boosts_per_month,
	gateway_price_id, active, created_at
`

func scanPlan(row pgx.Row) (*domain.SubscriptionPlan, error) {
	var p domain.SubscriptionPlan
	err := row.Scan(
		&p.ID, &p.Name, &p.BillingPeriod, &p.Price, &p.MaxListings,
		&p.BoostsPerMonth, &p.GatewayPriceID, &p.Active, &p.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return &p, nil
}

// GetPlanByID retrieves a subscription plan.
func (r *PostgresRepository) GetPlanByID(ctx context.Context, planID uuid.UUID) (*domain.SubscriptionPlan, error) {
	query := `SELECT ` + planColumns + ` FROM subscription_plans WHERE id = $1`
	return scanPlan(r.db.QueryRow(ctx, query, planID))
}

// ListActivePlans returns all purchasable plans, cheapest first.
func (r *PostgresRepository) ListActivePlans(ctx context.Context) ([]domain.SubscriptionPlan, error) {
	query := `SELECT ` + planColumns + ` FROM subscription_plans WHERE active = TRUE ORDER BY price ASC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []domain.SubscriptionPlan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, *plan)
	}
	return plans, rows.Err()
}

const subscriptionColumns = `
	id, user_id, plan_id, status, gateway_subscription_id, gateway_customer_id,
	current_period_start, current_period_end, cancel_at_period_end,
	listings_used, boosts_used, ends_at, created_at, updated_at
`

func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	var s domain.Subscription
	err := row.Scan(
		&s.ID, &s.UserID, &s.PlanID, &s.Status, &s.GatewaySubscriptionID,
		&s.GatewayCustomerID, &s.CurrentPeriodStart, &s.CurrentPeriodEnd,
		&s.CancelAtPeriodEnd, &s.ListingsUsed, &s.BoostsUsed, &s.EndsAt,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &s, nil
}

// GetSubscriptionByUserID retrieves a user's subscription.
func (r *PostgresRepository) GetSubscriptionByUserID(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = $1`
	return scanSubscription(r.db.QueryRow(ctx, query, userID))
}

// GetSubscriptionByGatewayID retrieves a subscription by the gateway's id.
func (r *PostgresRepository) GetSubscriptionByGatewayID(ctx context.Context, gatewaySubscriptionID string) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE gateway_subscription_id = $1`
	return scanSubscription(r.db.QueryRow(ctx, query, gatewaySubscriptionID))
}

// UpsertSubscription creates or replaces a user's subscription row. A user has
// at most one subscription, so the row is keyed by user_id.
func (r *PostgresRepository) UpsertSubscription(ctx context.Context, sub *domain.Subscription) error {
	query := `
		INSERT INTO subscriptions (
			id, user_id, plan_id, status, gateway_subscription_id, gateway_customer_id,
			current_period_start, current_period_end, cancel_at_period_end,
			listings_used, boosts_used, ends_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (user_id) DO UPDATE SET
			plan_id = EXCLUDED.plan_id,
			status = EXCLUDED.status,
			gateway_subscription_id = EXCLUDED.gateway_subscription_id,
			gateway_customer_id = EXCLUDED.gateway_customer_id,
			current_period_start = EXCLUDED.current_period_start,
			current_period_end = EXCLUDED.current_period_end,
			cancel_at_period_end = EXCLUDED.cancel_at_period_end,
			listings_used = EXCLUDED.listings_used,
			boosts_used = EXCLUDED.boosts_used,
			ends_at = EXCLUDED.ends_at,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		sub.ID, sub.UserID, sub.PlanID, sub.Status, sub.GatewaySubscriptionID,
		sub.GatewayCustomerID, sub.CurrentPeriodStart, sub.CurrentPeriodEnd,
		sub.CancelAtPeriodEnd, sub.ListingsUsed, sub.BoostsUsed, sub.EndsAt,
	).Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)
}

// UpdateSubscription persists the mutable fields of a subscription.
func (r *PostgresRepository) UpdateSubscription(ctx context.Context, sub *domain.Subscription) error {
	query := `
		UPDATE subscriptions
		SET plan_id = $1, status = $2, current_period_start = $3, current_period_end = $4,
		    cancel_at_period_end = $5, listings_used = $6, boosts_used = $7,
		    ends_at = $8, updated_at = NOW()
		WHERE id = $9
	`
	result, err := r.db.Exec(ctx, query,
		sub.PlanID, sub.Status, sub.CurrentPeriodStart, sub.CurrentPeriodEnd,
		sub.CancelAtPeriodEnd, sub.ListingsUsed, sub.BoostsUsed, sub.EndsAt, sub.ID,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

// ConsumeSubscriptionSlot increments listings_used if the plan quota allows
// it. The guard lives in the WHERE clause so concurrent consumers cannot
// overshoot the quota.
func (r *PostgresRepository) ConsumeSubscriptionSlot(ctx context.Context, subscriptionID uuid.UUID) (bool, error) {
	query := `
		UPDATE subscriptions s
		SET listings_used = s.listings_used + 1, updated_at = NOW()
		FROM subscription_plans p
		WHERE s.id = $1
		  AND p.id = s.plan_id
		  AND s.status IN ('active', 'trialing')
		  AND (p.max_listings = -1 OR s.listings_used < p.max_listings)
	`
	result, err := r.db.Exec(ctx, query, subscriptionID)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

const creditBalanceColumns = `
	id, user_id, balance, total_purchased, total_used, created_at, updated_at
`

func scanCreditBalance(row pgx.Row) (*domain.CreditBalance, error) {
	var b domain.CreditBalance
	err := row.Scan(
		&b.ID, &b.UserID, &b.Balance, &b.TotalPurchased, &b.TotalUsed,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetOrCreateCreditBalance retrieves a user's credit balance, creating an
// empty one on first use.
func (r *PostgresRepository) GetOrCreateCreditBalance(ctx context.Context, userID uuid.UUID) (*domain.CreditBalance, error) {
	query := `
		INSERT INTO credit_balances (id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = credit_balances.updated_at
		RETURNING ` + creditBalanceColumns
	return scanCreditBalance(r.db.QueryRow(ctx, query, uuid.New(), userID))
}

func insertCreditEntry(ctx context.Context, tx pgx.Tx, balanceID uuid.UUID, txType domain.CreditTransactionType, amount, balanceAfter int, description string, listingID *uuid.UUID) error {
	query := `
		INSERT INTO credit_transactions (id, balance_id, type, amount, balance_after, description, listing_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := tx.Exec(ctx, query, uuid.New(), balanceID, txType, amount, balanceAfter, description, listingID)
	return err
}

func (r *PostgresRepository) lockCreditBalance(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.CreditBalance, error) {
	// Ensure the row exists before locking it; first-time users have no balance row.
	ensure := `INSERT INTO credit_balances (id, user_id) VALUES ($1, $2) ON CONFLICT (user_id) DO NOTHING`
	if _, err := tx.Exec(ctx, ensure, uuid.New(), userID); err != nil {
		return nil, err
	}
	query := `SELECT ` + creditBalanceColumns + ` FROM credit_balances WHERE user_id = $1 FOR UPDATE`
	return scanCreditBalance(tx.QueryRow(ctx, query, userID))
}

// AddCredits grants listing credits and records the entry. txType is
// CreditTxPurchase for the paid portion and CreditTxBonus for pack bonuses.
func (r *PostgresRepository) AddCredits(ctx context.Context, userID uuid.UUID, amount int, txType domain.CreditTransactionType, description string) (*domain.CreditBalance, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	balance, err := r.lockCreditBalance(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE credit_balances
		SET balance = balance + $1, total_purchased = total_purchased + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING ` + creditBalanceColumns
	balance, err = scanCreditBalance(tx.QueryRow(ctx, query, amount, balance.ID))
	if err != nil {
		return nil, err
	}

	if err := insertCreditEntry(ctx, tx, balance.ID, txType, amount, balance.Balance, description, nil); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return balance, nil
}

// UseCredit spends one listing credit. Fails with ErrNoCredits when the
// balance is empty.
func (r *PostgresRepository) UseCredit(ctx context.Context, userID uuid.UUID, listingID *uuid.UUID) (*domain.CreditBalance, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	balance, err := r.lockCreditBalance(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if balance.Balance <= 0 {
		return nil, ErrNoCredits
	}

	query := `
		UPDATE credit_balances
		SET balance = balance - 1, total_used = total_used + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + creditBalanceColumns
	balance, err = scanCreditBalance(tx.QueryRow(ctx, query, balance.ID))
	if err != nil {
		return nil, err
	}

	if err := insertCreditEntry(ctx, tx, balance.ID, domain.CreditTxUse, -1, balance.Balance, "Listing credit used", listingID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return balance, nil
}

// RefundCredit returns one previously spent credit, e.g. when listing
// publication fails after the slot was consumed.
func (r *PostgresRepository) RefundCredit(ctx context.Context, userID uuid.UUID, listingID *uuid.UUID) (*domain.CreditBalance, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	balance, err := r.lockCreditBalance(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE credit_balances
		SET balance = balance + 1, total_used = GREATEST(total_used - 1, 0), updated_at = NOW()
		WHERE id = $1
		RETURNING ` + creditBalanceColumns
	balance, err = scanCreditBalance(tx.QueryRow(ctx, query, balance.ID))
	if err != nil {
		return nil, err
	}

	if err := insertCreditEntry(ctx, tx, balance.ID, domain.CreditTxRefund, 1, balance.Balance, "Listing credit refunded", listingID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return balance, nil
}

// ListCreditTransactions returns a user's credit history, newest first.
func (r *PostgresRepository) ListCreditTransactions(ctx context.Context, userID uuid.UUID, limit int, offset int) ([]domain.CreditTransaction, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT t.id, t.balance_id, t.type, t.amount, t.balance_after,
		       COALESCE(t.description, '') AS description, t.listing_id, t.created_at
		FROM credit_transactions t
		JOIN credit_balances b ON b.id = t.balance_id
		WHERE b.user_id = $1
		ORDER BY t.created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.CreditTransaction
	for rows.Next() {
		var entry domain.CreditTransaction
		err := rows.Scan(
			&entry.ID, &entry.BalanceID, &entry.Type, &entry.Amount,
			&entry.BalanceAfter, &entry.Description, &entry.ListingID, &entry.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

const creditPackColumns = `
	id, name, credits, bonus_credits, price, gateway_price_id, active, created_at
`

func scanCreditPack(row pgx.Row) (*domain.CreditPack, error) {
	var p domain.CreditPack
	err := row.Scan(
		&p.ID, &p.Name, &p.Credits, &p.BonusCredits, &p.Price,
		&p.GatewayPriceID, &p.Active, &p.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrCreditPackNotFound
		}
		return nil, err
	}
	return &p, nil
}

// GetCreditPackByID retrieves a credit pack.
func (r *PostgresRepository) GetCreditPackByID(ctx context.Context, packID uuid.UUID) (*domain.CreditPack, error) {
	query := `SELECT ` + creditPackColumns + ` FROM credit_packs WHERE id = $1`
	return scanCreditPack(r.db.QueryRow(ctx, query, packID))
}

// ListActiveCreditPacks returns all purchasable packs, cheapest first.
func (r *PostgresRepository) ListActiveCreditPacks(ctx context.Context) ([]domain.CreditPack, error) {
	query := `SELECT ` + creditPackColumns + ` FROM credit_packs WHERE active = TRUE ORDER BY price ASC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var packs []domain.CreditPack
	for rows.Next() {
		pack, err := scanCreditPack(rows)
		if err != nil {
			return nil, err
		}
		packs = append(packs, *pack)
	}
	return packs, rows.Err()
}
