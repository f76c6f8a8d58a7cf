package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RealmKnight/CNWC-BLET-GCA-PLD-App-sub010/internal/domain"
	"github.com/RealmKnight/CNWC-BLET-GCA-PLD-App-sub010/internal/engine"
	"github.com/RealmKnight/CNWC-BLET-GCA-PLD-App-sub010/internal/transport"
)

// Queue is the slice of the record store the drainer needs.
type Queue interface {
	SelectDue(ctx context.Context, channel domain.Channel, limit int) ([]domain.DeliveryRecord, error)
	MarkSent(ctx context.Context, id, transportID string, cost *float64) error
	MarkFailed(ctx context.Context, id, errMsg string, nextAttemptAt *time.Time) error
}

// Preferences resolves a recipient's current SMS eligibility at drain time.
type Preferences interface {
	GetPreference(ctx context.Context, userID string) (*domain.UserPreference, error)
}

// Budget records successful SMS spend.
type Budget interface {
	ApplySpend(ctx context.Context, cost float64, now time.Time) error
}

// Metrics is the write-only dispatch log.
type Metrics interface {
	RecordDispatch(ctx context.Context, rec domain.DispatchRecord) error
}

// Claims hands out dispatch leases so overlapping invocations don't
// double-send.
type Claims interface {
	Claim(ctx context.Context, recordID string) (bool, error)
	Release(ctx context.Context, recordID string)
}

// Breaker guards the outbound providers.
type Breaker interface {
	Allow(ctx context.Context, channel string) (string, bool)
	RecordSuccess(ctx context.Context, channel string)
	RecordFailure(ctx context.Context, channel string)
}

// PushSender dispatches one push payload and returns a receipt id.
type PushSender interface {
	Send(ctx context.Context, p domain.PushPayload) (string, error)
}

// SMSSender dispatches one SMS payload.
type SMSSender interface {
	Send(ctx context.Context, p domain.SMSPayload) (*transport.SMSResult, error)
}

// Summary is the aggregate result of one drain invocation.
type Summary struct {
	Processed int `json:"processed"`
	Failures  int `json:"failures"`
}

// StatusUpdate is published on the bus after every record disposition.
type StatusUpdate struct {
	RecordID    string         `json:"record_id"`
	RecipientID string         `json:"recipient_id"`
	Channel     domain.Channel `json:"channel"`
	Status      string         `json:"status"`
	Attempt     int            `json:"attempt"`
	Error       string         `json:"error,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// TopicDeliveryStatus is the bus topic status updates are published on.
const TopicDeliveryStatus = "delivery.status"

// Drainer drains both delivery lanes to completion for one invocation. The
// two lanes are independent failure domains: a crash in one must not stop
// the other, so each runs in its own goroutine and reports its own error.
type Drainer struct {
	queue   Queue
	prefs   Preferences
	budget  Budget
	metrics Metrics
	claims  Claims
	breaker Breaker
	push    PushSender
	sms     SMSSender
	bus     *engine.Bus
	logger  *slog.Logger

	batchSize   int
	concurrency int
	now         func() time.Time

	// Guards against overlapping drains inside one process; claims cover
	// overlap across processes.
	running atomic.Bool
}

type Options struct {
	BatchSize   int
	Concurrency int
	Now         func() time.Time
}

func NewDrainer(queue Queue, prefs Preferences, budget Budget, metrics Metrics,
	claims Claims, breaker Breaker, push PushSender, sms SMSSender,
	bus *engine.Bus, logger *slog.Logger, opts Options) *Drainer {

	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Drainer{
		queue:       queue,
		prefs:       prefs,
		budget:      budget,
		metrics:     metrics,
		claims:      claims,
		breaker:     breaker,
		push:        push,
		sms:         sms,
		bus:         bus,
		logger:      logger,
		batchSize:   opts.BatchSize,
		concurrency: opts.Concurrency,
		now:         opts.Now,
	}
}

// Drain runs both lanes once and returns aggregate counts. Per-record
// failures are absorbed into the failure count; only batch-level errors
// (failing to query the due set) surface as an error, alongside whatever the
// other lane managed to process.
func (d *Drainer) Drain(ctx context.Context) (Summary, error) {
	if !d.running.CompareAndSwap(false, true) {
		d.logger.Warn("drain already in progress, skipping run")
		return Summary{}, nil
	}
	defer d.running.Store(false)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		total    Summary
		laneErrs []error
	)

	lanes := []struct {
		channel domain.Channel
		run     func(context.Context, domain.DeliveryRecord) bool
	}{
		{domain.ChannelPush, d.dispatchPush},
		{domain.ChannelSMS, d.dispatchSMS},
	}

	for _, lane := range lanes {
		wg.Add(1)
		go func(channel domain.Channel, dispatch func(context.Context, domain.DeliveryRecord) bool) {
			defer wg.Done()
			summary, err := d.drainLane(ctx, channel, dispatch)
			mu.Lock()
			total.Processed += summary.Processed
			total.Failures += summary.Failures
			if err != nil {
				laneErrs = append(laneErrs, err)
			}
			mu.Unlock()
		}(lane.channel, lane.run)
	}

	wg.Wait()

	d.logger.Info("drain complete",
		"processed", total.Processed,
		"failures", total.Failures,
	)

	return total, errors.Join(laneErrs...)
}

// drainLane selects one batch of due records for a channel and dispatches
// them with bounded concurrency. Each record is claimed before dispatch and
// released after; an unclaimable record belongs to another invocation and is
// skipped without counting.
func (d *Drainer) drainLane(ctx context.Context, channel domain.Channel, dispatch func(context.Context, domain.DeliveryRecord) bool) (Summary, error) {
	records, err := d.queue.SelectDue(ctx, channel, d.batchSize)
	if err != nil {
		d.logger.Error("failed to select due records", "channel", channel, "error", err)
		return Summary{}, err
	}
	if len(records) == 0 {
		return Summary{}, nil
	}

	if state, allowed := d.breaker.Allow(ctx, string(channel)); !allowed {
		// Provider circuit is open. Records stay due and will be picked up
		// once the cooldown lets a probe through.
		d.logger.Warn("provider circuit open, skipping lane",
			"channel", channel,
			"state", state,
			"due", len(records),
		)
		return Summary{}, nil
	}

	jobs := make(chan domain.DeliveryRecord)
	var wg sync.WaitGroup
	var counts laneCounts

	workers := d.concurrency
	if workers > len(records) {
		workers = len(records)
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range jobs {
				d.dispatchClaimed(ctx, rec, dispatch, &counts)
			}
		}()
	}

	for _, rec := range records {
		jobs <- rec
	}
	close(jobs)
	wg.Wait()

	return Summary{
		Processed: int(counts.processed.Load()),
		Failures:  int(counts.failures.Load()),
	}, nil
}

type laneCounts struct {
	processed atomic.Int64
	failures  atomic.Int64
}

func (d *Drainer) dispatchClaimed(ctx context.Context, rec domain.DeliveryRecord, dispatch func(context.Context, domain.DeliveryRecord) bool, counts *laneCounts) {
	claimed, err := d.claims.Claim(ctx, rec.ID)
	if err != nil {
		// Fail open: losing the claim store must not halt deliveries. The
		// at-least-once contract tolerates a rare duplicate.
		d.logger.Warn("claim store unavailable, dispatching unclaimed", "record_id", rec.ID, "error", err)
	} else if !claimed {
		return
	} else {
		defer d.claims.Release(ctx, rec.ID)
	}

	counts.processed.Add(1)
	if !dispatch(ctx, rec) {
		counts.failures.Add(1)
	}
}

// dispatchPush attempts one push record. On failure the retry scheduler
// picks the next attempt time unless the attempt ceiling is reached.
func (d *Drainer) dispatchPush(ctx context.Context, rec domain.DeliveryRecord) bool {
	var payload domain.PushPayload
	if err := json.Unmarshal(rec.Payload, &payload); err != nil {
		d.finishFailed(ctx, rec, "malformed push payload: "+err.Error(), nil)
		return false
	}

	receiptID, err := d.push.Send(ctx, payload)
	if err != nil {
		d.breaker.RecordFailure(ctx, string(domain.ChannelPush))
		attempt := rec.RetryCount + 1
		var next *time.Time
		if attempt < rec.MaxAttempts {
			t := engine.NextAttemptAt(d.now(), attempt)
			next = &t
		}
		d.finishFailed(ctx, rec, err.Error(), next)
		return false
	}

	d.breaker.RecordSuccess(ctx, string(domain.ChannelPush))
	d.finishSent(ctx, rec, receiptID, nil)
	return true
}

// dispatchSMS attempts one SMS record. Eligibility is re-validated here, not
// just at enqueue time: a user who opted out or got locked out after the
// record was enqueued must not receive the message. SMS failures are
// terminal — each send is billed, and a retry would double-bill.
func (d *Drainer) dispatchSMS(ctx context.Context, rec domain.DeliveryRecord) bool {
	pref, err := d.prefs.GetPreference(ctx, rec.RecipientID)
	if err != nil {
		d.finishFailed(ctx, rec, "resolving recipient preferences: "+err.Error(), nil)
		return false
	}
	if pref == nil {
		d.finishFailed(ctx, rec, "recipient has no preference row", nil)
		return false
	}
	if ok, reason := pref.SMSEligible(d.now()); !ok {
		d.finishFailed(ctx, rec, reason, nil)
		return false
	}

	var payload domain.SMSPayload
	if err := json.Unmarshal(rec.Payload, &payload); err != nil {
		d.finishFailed(ctx, rec, "malformed sms payload: "+err.Error(), nil)
		return false
	}

	normalized, err := transport.NormalizePhone(payload.PhoneNumber)
	if err != nil {
		d.finishFailed(ctx, rec, err.Error(), nil)
		return false
	}
	payload.PhoneNumber = normalized

	result, err := d.sms.Send(ctx, payload)
	if err != nil {
		d.breaker.RecordFailure(ctx, string(domain.ChannelSMS))
		d.finishFailed(ctx, rec, err.Error(), nil)
		return false
	}

	d.breaker.RecordSuccess(ctx, string(domain.ChannelSMS))

	cost := result.Cost
	d.finishSent(ctx, rec, result.TransportID, &cost)

	if cost > 0 {
		if err := d.budget.ApplySpend(ctx, cost, d.now()); err != nil {
			d.logger.Error("failed to apply sms spend", "record_id", rec.ID, "cost", cost, "error", err)
		}
	}
	return true
}

func (d *Drainer) finishSent(ctx context.Context, rec domain.DeliveryRecord, transportID string, cost *float64) {
	if err := d.queue.MarkSent(ctx, rec.ID, transportID, cost); err != nil {
		d.logger.Error("failed to mark record sent", "record_id", rec.ID, "error", err)
	}

	d.record(ctx, rec, true, "", cost)
	d.publish(rec, domain.StatusSent, rec.RetryCount+1, "")

	d.logger.Info("delivery sent",
		"record_id", rec.ID,
		"recipient_id", rec.RecipientID,
		"channel", rec.Channel,
		"attempt", rec.RetryCount+1,
		"transport_id", transportID,
	)
}

func (d *Drainer) finishFailed(ctx context.Context, rec domain.DeliveryRecord, reason string, next *time.Time) {
	if err := d.queue.MarkFailed(ctx, rec.ID, reason, next); err != nil {
		d.logger.Error("failed to mark record failed", "record_id", rec.ID, "error", err)
	}

	d.record(ctx, rec, false, reason, nil)
	d.publish(rec, domain.StatusFailed, rec.RetryCount+1, reason)

	d.logger.Warn("delivery failed",
		"record_id", rec.ID,
		"recipient_id", rec.RecipientID,
		"channel", rec.Channel,
		"attempt", rec.RetryCount+1,
		"error", reason,
		"will_retry", next != nil,
	)
}

func (d *Drainer) record(ctx context.Context, rec domain.DeliveryRecord, success bool, errMsg string, cost *float64) {
	err := d.metrics.RecordDispatch(ctx, domain.DispatchRecord{
		NotificationID: rec.ID,
		UserID:         rec.RecipientID,
		Channel:        rec.Channel,
		Success:        success,
		Error:          errMsg,
		Cost:           cost,
		Timestamp:      d.now(),
	})
	if err != nil {
		d.logger.Error("failed to record dispatch metric", "record_id", rec.ID, "error", err)
	}
}

func (d *Drainer) publish(rec domain.DeliveryRecord, status string, attempt int, errMsg string) {
	if d.bus == nil {
		return
	}
	d.bus.Publish(TopicDeliveryStatus, StatusUpdate{
		RecordID:    rec.ID,
		RecipientID: rec.RecipientID,
		Channel:     rec.Channel,
		Status:      status,
		Attempt:     attempt,
		Error:       errMsg,
		Timestamp:   d.now(),
	})
}
