package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/simaogato/settlement-backend/internal/domain"
)

// outboxRepository implements domain.OutboxRepository
type outboxRepository struct {
	q querier
}

const outboxColumns = `id, payment_id, payload, status, attempts, next_run_at, last_error, created_at`

// Add stores a pending event
func (r *outboxRepository) Add(ctx context.Context, event *domain.OutboxEvent) error {
	payload, err := event.MarshalPayload()
	if err != nil {
		return fmt.Errorf("failed to encode outbox payload: %w", err)
	}

	query := `
		INSERT INTO outbox_events (` + outboxColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.q.ExecContext(ctx, query,
		event.ID,
		event.PaymentID,
		payload,
		string(event.Status),
		event.Attempts,
		event.NextRunAt,
		event.LastError,
		event.CreatedAt,
	)
	if err != nil {
		return translate(err, "failed to add outbox event %s", event.ID)
	}
	return nil
}

// ClaimDue leases due events. SKIP LOCKED lets concurrent relays claim disjoint batches.
func (r *outboxRepository) ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*domain.OutboxEvent, error) {
	query := `
		UPDATE outbox_events
		SET next_run_at = $2
		WHERE id IN (
			SELECT id
			FROM outbox_events
			WHERE status = $3 AND next_run_at <= $1
			ORDER BY created_at ASC
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + outboxColumns

	rows, err := r.q.QueryContext(ctx, query, now, now.Add(lease), string(domain.OutboxStatusPending), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim outbox events: %w", err)
	}
	defer rows.Close()

	events, err := scanOutboxEvents(rows)
	if err != nil {
		return nil, err
	}
	// RETURNING does not preserve the subquery order
	sort.Slice(events, func(i, j int) bool {
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
	return events, nil
}

// MarkDelivered records a successful delivery
func (r *outboxRepository) MarkDelivered(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE outbox_events SET status = $1, last_error = '' WHERE id = $2`

	result, err := r.q.ExecContext(ctx, query, string(domain.OutboxStatusDelivered), id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event delivered: %w", err)
	}
	return expectOneRow(result, "outbox event %s", id)
}

// MarkRetry reschedules a failed delivery
func (r *outboxRepository) MarkRetry(ctx context.Context, id uuid.UUID, attempts int, nextRunAt time.Time, lastErr string) error {
	query := `UPDATE outbox_events SET attempts = $1, next_run_at = $2, last_error = $3 WHERE id = $4`

	result, err := r.q.ExecContext(ctx, query, attempts, nextRunAt, lastErr, id)
	if err != nil {
		return fmt.Errorf("failed to reschedule outbox event: %w", err)
	}
	return expectOneRow(result, "outbox event %s", id)
}

// MarkFailed gives up on an event
func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, attempts int, lastErr string) error {
	query := `UPDATE outbox_events SET status = $1, attempts = $2, last_error = $3 WHERE id = $4`

	result, err := r.q.ExecContext(ctx, query, string(domain.OutboxStatusFailed), attempts, lastErr, id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event failed: %w", err)
	}
	return expectOneRow(result, "outbox event %s", id)
}

// ListByPayment retrieves the events written for a payment, oldest first
func (r *outboxRepository) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]*domain.OutboxEvent, error) {
	query := `SELECT ` + outboxColumns + ` FROM outbox_events WHERE payment_id = $1 ORDER BY created_at ASC`

	rows, err := r.q.QueryContext(ctx, query, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list outbox events: %w", err)
	}
	defer rows.Close()

	return scanOutboxEvents(rows)
}

type outboxRows interface {
	rowScanner
	Next() bool
	Err() error
}

func scanOutboxEvents(rows outboxRows) ([]*domain.OutboxEvent, error) {
	events := make([]*domain.OutboxEvent, 0)
	for rows.Next() {
		var event domain.OutboxEvent
		var payload []byte
		var status string

		err := rows.Scan(
			&event.ID,
			&event.PaymentID,
			&payload,
			&status,
			&event.Attempts,
			&event.NextRunAt,
			&event.LastError,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		event.Status = domain.OutboxStatus(status)

		if err := json.Unmarshal(payload, &event.Payload); err != nil {
			return nil, fmt.Errorf("failed to decode outbox payload %s: %w", event.ID, err)
		}
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outbox events: %w", err)
	}
	return events, nil
}
