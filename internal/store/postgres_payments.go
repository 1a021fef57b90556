/**
 * @description
 * This file provides the PostgreSQL implementation of payment audit records
 * and webhook event persistence. Both tables carry a unique index on their
 * gateway identifier (checkout session id and gateway event id), which is
 * what the reconciler's idempotency rests on.
 *
 * @dependencies
 * - context, encoding/json, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - github.com/jackc/pgerrcode: Postgres error code constants for unique violations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vyzio/finance-service/internal/domain"
)

const paymentColumns = `
	id, user_id, type, status, amount, currency, session_id, payment_intent_id,
	customer_id, invoice_id, metadata, completed_at, created_at, updated_at
`

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	var metadata []byte
	err := row.Scan(
		&p.ID, &p.UserID, &p.Type, &p.Status, &p.Amount, &p.Currency,
		&p.SessionID, &p.PaymentIntentID, &p.CustomerID, &p.InvoiceID,
		&metadata, &p.CompletedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

// CreatePayment inserts a payment audit record. A second insert for the same
// checkout session is rejected with ErrDuplicatePayment.
func (r *PostgresRepository) CreatePayment(ctx context.Context, payment *domain.Payment) error {
	metadata, err := json.Marshal(payment.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO payments (
			id, user_id, type, status, amount, currency, session_id,
			payment_intent_id, customer_id, invoice_id, metadata, completed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`
	err = r.db.QueryRow(ctx, query,
		payment.ID, payment.UserID, payment.Type, payment.Status, payment.Amount,
		payment.Currency, payment.SessionID, payment.PaymentIntentID,
		payment.CustomerID, payment.InvoiceID, metadata, payment.CompletedAt,
	).Scan(&payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrDuplicatePayment
		}
		return err
	}
	return nil
}

// GetPaymentBySessionID retrieves the payment recorded for a checkout session.
func (r *PostgresRepository) GetPaymentBySessionID(ctx context.Context, sessionID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE session_id = $1`
	return scanPayment(r.db.QueryRow(ctx, query, sessionID))
}

// MarkPaymentCompleted records a successful charge for a checkout session.
func (r *PostgresRepository) MarkPaymentCompleted(ctx context.Context, sessionID string, paymentIntentID, customerID *string) (*domain.Payment, error) {
	query := `
		UPDATE payments
		SET status = $1,
		    payment_intent_id = COALESCE($2, payment_intent_id),
		    customer_id = COALESCE($3, customer_id),
		    completed_at = NOW(), updated_at = NOW()
		WHERE session_id = $4
		RETURNING ` + paymentColumns
	return scanPayment(r.db.QueryRow(ctx, query, domain.PaymentCompleted, paymentIntentID, customerID, sessionID))
}

// MarkPaymentFailed records a failed charge for a checkout session.
func (r *PostgresRepository) MarkPaymentFailed(ctx context.Context, sessionID string) (*domain.Payment, error) {
	query := `
		UPDATE payments
		SET status = $1, updated_at = NOW()
		WHERE session_id = $2
		RETURNING ` + paymentColumns
	return scanPayment(r.db.QueryRow(ctx, query, domain.PaymentFailed, sessionID))
}

const webhookEventColumns = `
	id, gateway_event_id, event_type, payload, processed, processed_at,
	error_message, retry_count, created_at
`

func scanWebhookEvent(row pgx.Row) (*domain.WebhookEvent, error) {
	var e domain.WebhookEvent
	err := row.Scan(
		&e.ID, &e.GatewayEventID, &e.Type, &e.Payload, &e.Processed,
		&e.ProcessedAt, &e.ErrorMessage, &e.RetryCount, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// InsertWebhookEvent persists a gateway delivery exactly once, keyed by the
// gateway's event id. When the unique index rejects the insert the existing
// row is fetched and returned with created=false.
func (r *PostgresRepository) InsertWebhookEvent(ctx context.Context, event *domain.WebhookEvent) (bool, *domain.WebhookEvent, error) {
	query := `
		INSERT INTO webhook_events (id, gateway_event_id, event_type, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query,
		event.ID, event.GatewayEventID, event.Type, event.Payload,
	).Scan(&event.CreatedAt)
	if err == nil {
		return true, event, nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return false, nil, err
	}

	existing, err := scanWebhookEvent(r.db.QueryRow(ctx,
		`SELECT `+webhookEventColumns+` FROM webhook_events WHERE gateway_event_id = $1`, event.GatewayEventID))
	if err != nil {
		return false, nil, err
	}
	return false, existing, nil
}

// MarkWebhookEventProcessed flags an event as fully handled.
func (r *PostgresRepository) MarkWebhookEventProcessed(ctx context.Context, eventID uuid.UUID) error {
	query := `
		UPDATE webhook_events
		SET processed = TRUE, processed_at = NOW(), error_message = NULL
		WHERE id = $1
	`
	_, err := r.db.Exec(ctx, query, eventID)
	return err
}

// RecordWebhookEventFailure stores the handler error and bumps the retry
// counter so the gateway's redelivery can be correlated with past attempts.
func (r *PostgresRepository) RecordWebhookEventFailure(ctx context.Context, eventID uuid.UUID, errorMessage string) error {
	query := `
		UPDATE webhook_events
		SET error_message = $1, retry_count = retry_count + 1
		WHERE id = $2
	`
	_, err := r.db.Exec(ctx, query, errorMessage, eventID)
	return err
}
