package store

import (
	"context"
	"fmt"

	"github.com/RealmKnight/CNWC-BLET-GCA-PLD-App-sub010/internal/domain"
)

// RecordDispatch appends one row to the write-only dispatch log.
func (s *PostgresStore) RecordDispatch(ctx context.Context, rec domain.DispatchRecord) error {
	var errMsg *string
	if rec.Error != "" {
		errMsg = &rec.Error
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO dispatch_log (notification_id, user_id, channel, success, error, cost, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.NotificationID, rec.UserID, rec.Channel, rec.Success, errMsg, rec.Cost, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("inserting dispatch record: %w", err)
	}
	return nil
}

// PipelineMetrics holds aggregated dispatch statistics for the dashboard.
type PipelineMetrics struct {
	TotalDispatches int     `json:"total_dispatches"`
	SuccessCount    int     `json:"success_count"`
	FailedCount     int     `json:"failed_count"`
	SuccessRate     float64 `json:"success_rate"`
	TotalSMSCost    float64 `json:"total_sms_cost"`
	PendingPush     int     `json:"pending_push"`
	PendingSMS      int     `json:"pending_sms"`
	ExhaustedPush   int     `json:"exhausted_push"`
}

// GetPipelineMetrics returns aggregated dispatch statistics.
func (s *PostgresStore) GetPipelineMetrics(ctx context.Context) (*PipelineMetrics, error) {
	var m PipelineMetrics

	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE success) AS success,
			COUNT(*) FILTER (WHERE NOT success) AS failed,
			COALESCE(SUM(cost) FILTER (WHERE channel = 'sms' AND success), 0) AS sms_cost
		FROM dispatch_log
	`).Scan(&m.TotalDispatches, &m.SuccessCount, &m.FailedCount, &m.TotalSMSCost)
	if err != nil {
		return nil, fmt.Errorf("querying dispatch metrics: %w", err)
	}

	if m.TotalDispatches > 0 {
		m.SuccessRate = float64(m.SuccessCount) / float64(m.TotalDispatches) * 100
	}

	err = s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE channel = 'push' AND status IN ('pending', 'failed') AND retry_count < max_attempts) AS pending_push,
			COUNT(*) FILTER (WHERE channel = 'sms' AND status = 'pending') AS pending_sms,
			COUNT(*) FILTER (WHERE channel = 'push' AND status = 'failed' AND retry_count >= max_attempts) AS exhausted_push
		FROM delivery_queue
	`).Scan(&m.PendingPush, &m.PendingSMS, &m.ExhaustedPush)
	if err != nil {
		return nil, fmt.Errorf("querying queue depth: %w", err)
	}

	return &m, nil
}
