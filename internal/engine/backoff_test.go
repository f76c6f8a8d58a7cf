package engine

import (
	"testing"
	"time"
)

func TestRetryDelay_Tiers(t *testing.T) {
	tests := []struct {
		retryCount int
		want       time.Duration
	}{
		{1, 20 * time.Second},
		{2, 20 * time.Second},
		{3, 20 * time.Second},
		{4, 3 * time.Minute},
		{5, 3 * time.Minute},
		{6, 3 * time.Minute},
		{7, 60 * time.Minute},
		{10, 60 * time.Minute},
		{12, 60 * time.Minute},
		{13, 120 * time.Minute},
		{20, 120 * time.Minute},
	}

	for _, tt := range tests {
		if got := RetryDelay(tt.retryCount); got != tt.want {
			t.Errorf("RetryDelay(%d) = %v, want %v", tt.retryCount, got, tt.want)
		}
	}
}

func TestRetryDelay_Monotonic(t *testing.T) {
	prev := RetryDelay(1)
	for rc := 2; rc <= 13; rc++ {
		cur := RetryDelay(rc)
		if cur < prev {
			t.Errorf("RetryDelay(%d) = %v is less than RetryDelay(%d) = %v", rc, cur, rc-1, prev)
		}
		prev = cur
	}
}

func TestNextAttemptAt(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	got := NextAttemptAt(now, 3)
	want := now.Add(20 * time.Second)
	if !got.Equal(want) {
		t.Errorf("NextAttemptAt(now, 3) = %v, want %v", got, want)
	}

	got = NextAttemptAt(now, 7)
	want = now.Add(time.Hour)
	if !got.Equal(want) {
		t.Errorf("NextAttemptAt(now, 7) = %v, want %v", got, want)
	}
}
