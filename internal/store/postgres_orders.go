/**
 * @description
 * This file provides the PostgreSQL implementation of order persistence,
 * including the atomic fund-release path. Releasing funds locks the order row
 * FOR UPDATE, checks the funds_released flag under the lock, and performs the
 * wallet credit plus order completion in one transaction, which is what makes
 * the release exactly-once even under concurrent confirm-receipt calls.
 *
 * @dependencies
 * - context: Standard Go library.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - github.com/jackc/pgerrcode: Postgres error code constants for unique violations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vyzio/finance-service/internal/domain"
)

const orderColumns = `
	id, order_number, buyer_id, seller_id, listing_id, item_price, platform_fee,
	seller_amount, status, payment_session_id, buyer_confirmed_receipt,
	funds_released, needs_manual_review, shipped_at, delivered_at, completed_at,
	cancelled_at, cancellation_reason, dispute_reason, created_at, updated_at
`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.BuyerID, &o.SellerID, &o.ListingID, &o.ItemPrice,
		&o.PlatformFee, &o.SellerAmount, &o.Status, &o.PaymentSessionID,
		&o.BuyerConfirmedReceipt, &o.FundsReleased, &o.NeedsManualReview,
		&o.ShippedAt, &o.DeliveredAt, &o.CompletedAt, &o.CancelledAt,
		&o.CancellationReason, &o.DisputeReason, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &o, nil
}

// CreateOrder inserts a new order row. A unique violation on the order number
// is surfaced as ErrDuplicateOrderNumber so the caller can regenerate and retry.
func (r *PostgresRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	query := `
		INSERT INTO orders (
			id, order_number, buyer_id, seller_id, listing_id, item_price,
			platform_fee, seller_amount, status, payment_session_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		order.ID, order.OrderNumber, order.BuyerID, order.SellerID, order.ListingID,
		order.ItemPrice, order.PlatformFee, order.SellerAmount, order.Status,
		order.PaymentSessionID,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrDuplicateOrderNumber
		}
		return err
	}
	return nil
}

// GetOrderByID retrieves a single order.
func (r *PostgresRepository) GetOrderByID(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return scanOrder(r.db.QueryRow(ctx, query, orderID))
}

// GetOrderBySessionID retrieves the order created for a checkout session.
func (r *PostgresRepository) GetOrderBySessionID(ctx context.Context, sessionID string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE payment_session_id = $1`
	return scanOrder(r.db.QueryRow(ctx, query, sessionID))
}

// ConfirmOrderBySessionID moves a pending order to confirmed and parks the
// seller amount on the wallet's pending balance, both in one transaction.
// When the order already progressed past pending (a replayed webhook), the
// current row is returned unchanged and no funds are held twice.
func (r *PostgresRepository) ConfirmOrderBySessionID(ctx context.Context, sessionID string) (*domain.Order, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE orders
		SET status = $1, updated_at = NOW()
		WHERE payment_session_id = $2 AND status = $3
		RETURNING ` + orderColumns
	order, err := scanOrder(tx.QueryRow(ctx, query, domain.OrderConfirmed, sessionID, domain.OrderPending))
	if err != nil {
		if !errors.Is(err, ErrOrderNotFound) {
			return nil, err
		}
		return r.GetOrderBySessionID(ctx, sessionID)
	}

	walletID, err := ensureWalletTx(ctx, tx, order.SellerID)
	if err != nil {
		return nil, err
	}
	holdQuery := `UPDATE seller_wallets SET pending_balance = pending_balance + $1, updated_at = NOW() WHERE id = $2`
	if _, err := tx.Exec(ctx, holdQuery, order.SellerAmount, walletID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return order, nil
}

// UpdateOrder persists the mutable fields of an order.
func (r *PostgresRepository) UpdateOrder(ctx context.Context, order *domain.Order) error {
	query := `
		UPDATE orders
		SET status = $1, buyer_confirmed_receipt = $2, needs_manual_review = $3,
		    shipped_at = $4, delivered_at = $5, completed_at = $6, cancelled_at = $7,
		    cancellation_reason = $8, dispute_reason = $9, updated_at = NOW()
		WHERE id = $10
	`
	result, err := r.db.Exec(ctx, query,
		order.Status, order.BuyerConfirmedReceipt, order.NeedsManualReview,
		order.ShippedAt, order.DeliveredAt, order.CompletedAt, order.CancelledAt,
		order.CancellationReason, order.DisputeReason, order.ID,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// ReleaseOrderFunds credits the seller's wallet with the order's seller amount
// and completes the order, all under a single transaction. Returns false when
// the funds were already released, which makes retries and double confirms
// harmless.
func (r *PostgresRepository) ReleaseOrderFunds(ctx context.Context, orderID uuid.UUID, description string) (*domain.Order, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	// Lock the order row first; the funds_released check must happen under the lock.
	order, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, orderID))
	if err != nil {
		return nil, false, err
	}
	if order.FundsReleased {
		return order, false, tx.Commit(ctx)
	}

	walletID, err := ensureWalletTx(ctx, tx, order.SellerID)
	if err != nil {
		return nil, false, err
	}

	// Release the hold placed at payment confirmation. Clamped so orders
	// confirmed before holds existed still release cleanly.
	unholdQuery := `UPDATE seller_wallets SET pending_balance = GREATEST(pending_balance - $1, 0), updated_at = NOW() WHERE id = $2`
	if _, err := tx.Exec(ctx, unholdQuery, order.SellerAmount, walletID); err != nil {
		return nil, false, err
	}

	if _, err := creditWalletTx(ctx, tx, walletID, order.SellerAmount, description, &order.ID); err != nil {
		return nil, false, err
	}

	updateQuery := `
		UPDATE orders
		SET funds_released = TRUE, buyer_confirmed_receipt = TRUE, status = $1,
		    completed_at = NOW(), updated_at = NOW()
		WHERE id = $2
		RETURNING ` + orderColumns
	order, err = scanOrder(tx.QueryRow(ctx, updateQuery, domain.OrderCompleted, orderID))
	if err != nil {
		return nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return order, true, nil
}

// ListOrdersByBuyer returns a buyer's orders, newest first.
func (r *PostgresRepository) ListOrdersByBuyer(ctx context.Context, buyerID uuid.UUID, opts domain.OrderListOptions) ([]domain.Order, error) {
	return r.listOrders(ctx, "buyer_id", buyerID, opts)
}

// ListOrdersBySeller returns a seller's orders, newest first.
func (r *PostgresRepository) ListOrdersBySeller(ctx context.Context, sellerID uuid.UUID, opts domain.OrderListOptions) ([]domain.Order, error) {
	return r.listOrders(ctx, "seller_id", sellerID, opts)
}

func (r *PostgresRepository) listOrders(ctx context.Context, column string, partyID uuid.UUID, opts domain.OrderListOptions) ([]domain.Order, error) {
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

	query := `SELECT ` + orderColumns + ` FROM orders WHERE ` + column + ` = $1`
	args := []interface{}{partyID}
	if opts.Status != "" {
		query += ` AND status = $2`
		args = append(args, opts.Status)
	}
	query += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}

// GetSellerOrderStats aggregates order counts and sales totals for a seller.
func (r *PostgresRepository) GetSellerOrderStats(ctx context.Context, sellerID uuid.UUID) (*domain.SellerOrderStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'shipped'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'disputed'),
			COALESCE(SUM(item_price) FILTER (WHERE status = 'completed'), 0),
			COALESCE(SUM(seller_amount) FILTER (WHERE status = 'completed'), 0)
		FROM orders
		WHERE seller_id = $1
	`
	var stats domain.SellerOrderStats
	err := r.db.QueryRow(ctx, query, sellerID).Scan(
		&stats.TotalOrders, &stats.PendingOrders, &stats.ShippedOrders,
		&stats.CompletedOrders, &stats.DisputedOrders, &stats.GrossSales,
		&stats.NetEarnings,
	)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
