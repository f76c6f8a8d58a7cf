package store

import (
	"context"
	"fmt"
	"time"

	"github.com/RealmKnight/CNWC-BLET-GCA-PLD-App-sub010/internal/domain"
	"github.com/jackc/pgx/v5"
)

const recordColumns = `id, recipient_id, channel, payload, status, retry_count, max_attempts,
	next_attempt_at, first_attempted_at, last_attempted_at, sent_at, error_message,
	transport_id, cost_amount, dedup_key, created_at`

func scanRecord(row pgx.Row) (*domain.DeliveryRecord, error) {
	var rec domain.DeliveryRecord
	err := row.Scan(
		&rec.ID, &rec.RecipientID, &rec.Channel, &rec.Payload, &rec.Status,
		&rec.RetryCount, &rec.MaxAttempts, &rec.NextAttemptAt,
		&rec.FirstAttemptedAt, &rec.LastAttemptedAt, &rec.SentAt,
		&rec.ErrorMessage, &rec.TransportID, &rec.CostAmount, &rec.DedupKey,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Enqueue inserts a new pending record and returns its id. When a dedup key
// is set and a record with the same key already exists, the insert is a
// no-op and inserted is false.
func (s *PostgresStore) Enqueue(ctx context.Context, rec domain.DeliveryRecord) (string, bool, error) {
	var id string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO delivery_queue (recipient_id, channel, payload, max_attempts, next_attempt_at, dedup_key)
		VALUES ($1, $2, $3, $4, NOW(), $5)
		ON CONFLICT (dedup_key) WHERE dedup_key IS NOT NULL DO NOTHING
		RETURNING id
	`, rec.RecipientID, rec.Channel, rec.Payload, rec.MaxAttempts, rec.DedupKey).Scan(&id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("inserting delivery record: %w", err)
	}
	return id, true, nil
}

// SelectDue returns dispatch-eligible records for a channel, oldest first.
// Push records are retried from the failed state; SMS failures are terminal
// so only pending rows qualify there.
func (s *PostgresStore) SelectDue(ctx context.Context, channel domain.Channel, limit int) ([]domain.DeliveryRecord, error) {
	statuses := []string{domain.StatusPending, domain.StatusFailed}
	if channel == domain.ChannelSMS {
		statuses = []string{domain.StatusPending}
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+recordColumns+`
		FROM delivery_queue
		WHERE channel = $1
		  AND status = ANY($2)
		  AND next_attempt_at <= NOW()
		  AND retry_count < max_attempts
		ORDER BY next_attempt_at ASC, created_at ASC
		LIMIT $3
	`, channel, statuses, limit)
	if err != nil {
		return nil, fmt.Errorf("querying due records: %w", err)
	}
	defer rows.Close()

	var records []domain.DeliveryRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning delivery record: %w", err)
		}
		records = append(records, *rec)
	}

	if records == nil {
		records = []domain.DeliveryRecord{}
	}

	return records, nil
}

// MarkSent finalizes a successful dispatch: status, sent_at, transport id,
// cost, and the attempt counters. The error message is cleared.
func (s *PostgresStore) MarkSent(ctx context.Context, id, transportID string, cost *float64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE delivery_queue SET
			status = 'sent',
			sent_at = NOW(),
			retry_count = retry_count + 1,
			first_attempted_at = COALESCE(first_attempted_at, NOW()),
			last_attempted_at = NOW(),
			error_message = NULL,
			transport_id = $2,
			cost_amount = $3
		WHERE id = $1
	`, id, transportID, cost)
	if err != nil {
		return fmt.Errorf("marking record sent: %w", err)
	}
	return nil
}

// MarkFailed records a failed dispatch attempt. A non-nil nextAttemptAt
// reschedules the record (push backoff); nil leaves next_attempt_at alone,
// which together with retry_count >= max_attempts makes the failure
// terminal.
func (s *PostgresStore) MarkFailed(ctx context.Context, id, errMsg string, nextAttemptAt *time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE delivery_queue SET
			status = 'failed',
			retry_count = retry_count + 1,
			first_attempted_at = COALESCE(first_attempted_at, NOW()),
			last_attempted_at = NOW(),
			error_message = $2,
			next_attempt_at = COALESCE($3, next_attempt_at)
		WHERE id = $1
	`, id, errMsg, nextAttemptAt)
	if err != nil {
		return fmt.Errorf("marking record failed: %w", err)
	}
	return nil
}

// GetRecord returns a single delivery record by id, or nil when not found.
func (s *PostgresStore) GetRecord(ctx context.Context, id string) (*domain.DeliveryRecord, error) {
	rec, err := scanRecord(s.pool.QueryRow(ctx, `
		SELECT `+recordColumns+` FROM delivery_queue WHERE id = $1
	`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying delivery record: %w", err)
	}
	return rec, nil
}

// ListRecords returns delivery records with optional filtering, newest first.
func (s *PostgresStore) ListRecords(ctx context.Context, channel, status, recipientID string, limit int) ([]domain.DeliveryRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM delivery_queue`
	args := []interface{}{}
	argIdx := 1
	conditions := []string{}

	if channel != "" {
		conditions = append(conditions, fmt.Sprintf("channel = $%d", argIdx))
		args = append(args, channel)
		argIdx++
	}
	if status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, status)
		argIdx++
	}
	if recipientID != "" {
		conditions = append(conditions, fmt.Sprintf("recipient_id = $%d", argIdx))
		args = append(args, recipientID)
		argIdx++
	}

	if len(conditions) > 0 {
		query += " WHERE "
		for i, c := range conditions {
			if i > 0 {
				query += " AND "
			}
			query += c
		}
	}

	query += " ORDER BY created_at DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying delivery records: %w", err)
	}
	defer rows.Close()

	var records []domain.DeliveryRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning delivery record: %w", err)
		}
		records = append(records, *rec)
	}

	if records == nil {
		records = []domain.DeliveryRecord{}
	}

	return records, nil
}
