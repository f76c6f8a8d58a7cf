package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Runner drives the periodic jobs (queue drain, reminder matching) on cron
// schedules inside the server process, replacing an external trigger.
type Runner struct {
	cron   *cron.Cron
	logger *slog.Logger
}

func NewRunner(logger *slog.Logger) *Runner {
	return &Runner{
		cron:   cron.New(),
		logger: logger,
	}
}

// Schedule registers a named job on a cron spec. Job errors are logged; the
// schedule keeps firing regardless.
func (r *Runner) Schedule(spec, name string, job func(context.Context) error) error {
	_, err := r.cron.AddFunc(spec, func() {
		if err := job(context.Background()); err != nil {
			r.logger.Error("scheduled job failed", "job", name, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling %s on %q: %w", name, spec, err)
	}
	r.logger.Info("job scheduled", "job", name, "spec", spec)
	return nil
}

func (r *Runner) Start() {
	r.cron.Start()
}

// Stop halts the schedule and waits for running jobs to finish.
func (r *Runner) Stop() {
	<-r.cron.Stop().Done()
}
