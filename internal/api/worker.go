package api

import (
	"context"
	"net/http"

	"github.com/RealmKnight/CNWC-BLET-GCA-PLD-App-sub010/internal/worker"
)

// Drainer is the worker-invocation surface the handler needs.
type Drainer interface {
	Drain(ctx context.Context) (worker.Summary, error)
}

// Reminder is the scheduler-invocation surface the handler needs.
type Reminder interface {
	Run(ctx context.Context) (int, error)
}

// WorkerHandler exposes the periodic jobs as on-demand HTTP triggers, for
// external schedulers and manual dashboard runs.
type WorkerHandler struct {
	drainer  Drainer
	reminder Reminder
}

func NewWorkerHandler(drainer Drainer, reminder Reminder) *WorkerHandler {
	return &WorkerHandler{drainer: drainer, reminder: reminder}
}

type drainResponse struct {
	Success   bool `json:"success"`
	Processed int  `json:"processed"`
	Failures  int  `json:"failures"`
}

// Run drains both delivery lanes once. Per-record failures are reported in
// the counts; only infrastructure failures produce a 500.
func (h *WorkerHandler) Run(w http.ResponseWriter, r *http.Request) {
	summary, err := h.drainer.Drain(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "worker run failed: "+err.Error())
		return
	}

	respondJSON(w, http.StatusOK, drainResponse{
		Success:   true,
		Processed: summary.Processed,
		Failures:  summary.Failures,
	})
}

type remindersResponse struct {
	Success  bool `json:"success"`
	Enqueued int  `json:"enqueued"`
}

// RunReminders matches meeting occurrences against the lead windows and
// enqueues reminders.
func (h *WorkerHandler) RunReminders(w http.ResponseWriter, r *http.Request) {
	enqueued, err := h.reminder.Run(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "reminder run failed: "+err.Error())
		return
	}

	respondJSON(w, http.StatusOK, remindersResponse{Success: true, Enqueued: enqueued})
}
