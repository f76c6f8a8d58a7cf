package domain

import "time"

// SMSBudget is the singleton spend ledger for the SMS lane. The reset
// markers record which day and month the running totals belong to; the
// totals reset to the incoming cost (not zero) on the first spend of a new
// period. Figures are advisory — nothing in the pipeline blocks on them.
type SMSBudget struct {
	DailyBudget         float64   `json:"daily_budget"`
	MonthlyBudget       float64   `json:"monthly_budget"`
	CurrentDailySpend   float64   `json:"current_daily_spend"`
	CurrentMonthlySpend float64   `json:"current_monthly_spend"`
	LastDailyReset      string    `json:"last_daily_reset"`
	LastMonthlyReset    string    `json:"last_monthly_reset"`
	UpdatedAt           time.Time `json:"updated_at"`
}
