package budget

import (
	"testing"
	"time"

	"github.com/RealmKnight/CNWC-BLET-GCA-PLD-App-sub010/internal/domain"
)

func TestApply_SameDayAccumulates(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	b := domain.SMSBudget{
		CurrentDailySpend:   1.00,
		CurrentMonthlySpend: 10.00,
		LastDailyReset:      "2025-06-15",
		LastMonthlyReset:    "2025-06",
	}

	got := Apply(b, 0.0079, now)

	if got.CurrentDailySpend != 1.0079 {
		t.Errorf("daily spend = %v, want 1.0079", got.CurrentDailySpend)
	}
	if got.CurrentMonthlySpend != 10.0079 {
		t.Errorf("monthly spend = %v, want 10.0079", got.CurrentMonthlySpend)
	}
}

func TestApply_NewDayResetsToCost(t *testing.T) {
	now := time.Date(2025, 6, 16, 0, 0, 1, 0, time.UTC)
	b := domain.SMSBudget{
		CurrentDailySpend:   4.50,
		CurrentMonthlySpend: 10.00,
		LastDailyReset:      "2025-06-15",
		LastMonthlyReset:    "2025-06",
	}

	got := Apply(b, 0.0079, now)

	if got.CurrentDailySpend != 0.0079 {
		t.Errorf("daily spend = %v, want reset to 0.0079", got.CurrentDailySpend)
	}
	if got.LastDailyReset != "2025-06-16" {
		t.Errorf("daily marker = %q, want 2025-06-16", got.LastDailyReset)
	}
	if got.CurrentMonthlySpend != 10.0079 {
		t.Errorf("monthly spend = %v, want 10.0079 (same month accumulates)", got.CurrentMonthlySpend)
	}
}

func TestApply_NewMonthResetsBoth(t *testing.T) {
	now := time.Date(2025, 7, 1, 0, 0, 1, 0, time.UTC)
	b := domain.SMSBudget{
		CurrentDailySpend:   4.50,
		CurrentMonthlySpend: 80.00,
		LastDailyReset:      "2025-06-30",
		LastMonthlyReset:    "2025-06",
	}

	got := Apply(b, 0.0079, now)

	if got.CurrentDailySpend != 0.0079 || got.CurrentMonthlySpend != 0.0079 {
		t.Errorf("spends = %v/%v, want both reset to 0.0079", got.CurrentDailySpend, got.CurrentMonthlySpend)
	}
	if got.LastMonthlyReset != "2025-07" {
		t.Errorf("monthly marker = %q, want 2025-07", got.LastMonthlyReset)
	}
}

func TestSnap_StalePeriodReadsAsZero(t *testing.T) {
	now := time.Date(2025, 6, 16, 9, 0, 0, 0, time.UTC)
	b := domain.SMSBudget{
		DailyBudget:         5.00,
		MonthlyBudget:       100.00,
		CurrentDailySpend:   4.99,
		CurrentMonthlySpend: 40.00,
		LastDailyReset:      "2025-06-15",
		LastMonthlyReset:    "2025-06",
	}

	snap := Snap(b, now)

	if snap.CurrentDailySpend != 0 {
		t.Errorf("stale daily spend should read as 0, got %v", snap.CurrentDailySpend)
	}
	if snap.DailyRemaining != 5.00 {
		t.Errorf("daily remaining = %v, want 5.00", snap.DailyRemaining)
	}
	if snap.CurrentMonthlySpend != 40.00 {
		t.Errorf("current month spend = %v, want 40.00", snap.CurrentMonthlySpend)
	}
	if snap.OverDailyBudget {
		t.Error("fresh day should not be over budget")
	}
}

func TestSnap_OverBudgetFlags(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	b := domain.SMSBudget{
		DailyBudget:         5.00,
		MonthlyBudget:       100.00,
		CurrentDailySpend:   5.25,
		CurrentMonthlySpend: 60.00,
		LastDailyReset:      "2025-06-15",
		LastMonthlyReset:    "2025-06",
	}

	snap := Snap(b, now)

	if !snap.OverDailyBudget {
		t.Error("daily budget exceeded, flag should be set")
	}
	if snap.OverMonthlyBudget {
		t.Error("monthly budget not exceeded")
	}
	if snap.DailyRemaining != -0.25 {
		t.Errorf("daily remaining = %v, want -0.25", snap.DailyRemaining)
	}
}

func TestSnap_ZeroBudgetNeverFlags(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	b := domain.SMSBudget{
		CurrentDailySpend: 3.00,
		LastDailyReset:    "2025-06-15",
		LastMonthlyReset:  "2025-06",
	}

	if snap := Snap(b, now); snap.OverDailyBudget || snap.OverMonthlyBudget {
		t.Error("unset budgets must never flag over-budget")
	}
}
