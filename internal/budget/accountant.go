package budget

import (
	"time"

	"github.com/RealmKnight/CNWC-BLET-GCA-PLD-App-sub010/internal/domain"
)

// DayMarker and MonthMarker are the reset-boundary formats stored on the
// ledger row.
const (
	DayMarker   = "2006-01-02"
	MonthMarker = "2006-01"
)

// Apply folds one spend into a ledger snapshot using reset-and-set: when the
// stored marker no longer matches the current period, the running total is
// replaced by the incoming cost rather than added to a stale figure. This is
// the in-memory mirror of the single-statement SQL update, kept as a pure
// function so the boundary arithmetic stays testable.
func Apply(b domain.SMSBudget, cost float64, now time.Time) domain.SMSBudget {
	day := now.Format(DayMarker)
	month := now.Format(MonthMarker)

	if b.LastDailyReset == day {
		b.CurrentDailySpend += cost
	} else {
		b.CurrentDailySpend = cost
		b.LastDailyReset = day
	}

	if b.LastMonthlyReset == month {
		b.CurrentMonthlySpend += cost
	} else {
		b.CurrentMonthlySpend = cost
		b.LastMonthlyReset = month
	}

	b.UpdatedAt = now
	return b
}

// Snapshot is the budget view exposed to operators. The over-budget flags
// are advisory: the pipeline never blocks a send on them.
type Snapshot struct {
	domain.SMSBudget
	DailyRemaining    float64 `json:"daily_remaining"`
	MonthlyRemaining  float64 `json:"monthly_remaining"`
	OverDailyBudget   bool    `json:"over_daily_budget"`
	OverMonthlyBudget bool    `json:"over_monthly_budget"`
}

// Snap derives the operator view, treating totals from a previous period as
// zero so a quiet new day reads as a fresh budget even before the first
// spend writes the new marker.
func Snap(b domain.SMSBudget, now time.Time) Snapshot {
	effective := b
	if b.LastDailyReset != now.Format(DayMarker) {
		effective.CurrentDailySpend = 0
	}
	if b.LastMonthlyReset != now.Format(MonthMarker) {
		effective.CurrentMonthlySpend = 0
	}

	return Snapshot{
		SMSBudget:         effective,
		DailyRemaining:    b.DailyBudget - effective.CurrentDailySpend,
		MonthlyRemaining:  b.MonthlyBudget - effective.CurrentMonthlySpend,
		OverDailyBudget:   b.DailyBudget > 0 && effective.CurrentDailySpend >= b.DailyBudget,
		OverMonthlyBudget: b.MonthlyBudget > 0 && effective.CurrentMonthlySpend >= b.MonthlyBudget,
	}
}
