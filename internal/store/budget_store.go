package store

import (
	"context"
	"fmt"
	"time"

	"github.com/RealmKnight/CNWC-BLET-GCA-PLD-App-sub010/internal/domain"
)

// ApplySpend adds a successful SMS send's cost to the running ledger as a
// single server-side statement. The CASE arms implement reset-and-set: the
// first spend of a new day (or month) replaces the total instead of adding
// to a stale one, and because it is one UPDATE there is no read-modify-write
// window for concurrent drains to lose a spend in.
func (s *PostgresStore) ApplySpend(ctx context.Context, cost float64, now time.Time) error {
	day := now.Format("2006-01-02")
	month := now.Format("2006-01")

	_, err := s.pool.Exec(ctx, `
		UPDATE sms_budget SET
			current_daily_spend = CASE WHEN last_daily_reset = $2 THEN current_daily_spend + $1 ELSE $1 END,
			last_daily_reset = $2,
			current_monthly_spend = CASE WHEN last_monthly_reset = $3 THEN current_monthly_spend + $1 ELSE $1 END,
			last_monthly_reset = $3,
			updated_at = NOW()
		WHERE id = 1
	`, cost, day, month)
	if err != nil {
		return fmt.Errorf("applying sms spend: %w", err)
	}
	return nil
}

// GetBudget returns the singleton budget row.
func (s *PostgresStore) GetBudget(ctx context.Context) (*domain.SMSBudget, error) {
	var b domain.SMSBudget
	err := s.pool.QueryRow(ctx, `
		SELECT daily_budget, monthly_budget, current_daily_spend, current_monthly_spend,
		       last_daily_reset, last_monthly_reset, updated_at
		FROM sms_budget WHERE id = 1
	`).Scan(
		&b.DailyBudget, &b.MonthlyBudget, &b.CurrentDailySpend, &b.CurrentMonthlySpend,
		&b.LastDailyReset, &b.LastMonthlyReset, &b.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("querying sms budget: %w", err)
	}
	return &b, nil
}
