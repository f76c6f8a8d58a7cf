package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/RealmKnight/CNWC-BLET-GCA-PLD-App-sub010/internal/domain"
)

// Lead identifiers, also used as the preference-flag selector in the store.
const (
	LeadWeek = "week"
	LeadDay  = "day"
	LeadHour = "hour"
)

// leadWindow pairs a lead time with its match buffer. The buffer makes the
// match a tolerance window rather than an exact hit: the job runs
// periodically and an occurrence must not slip between two invocations.
type leadWindow struct {
	lead   string
	offset time.Duration
	buffer time.Duration
	phrase string
}

var leadWindows = []leadWindow{
	{LeadWeek, 7 * 24 * time.Hour, time.Hour, "in one week"},
	{LeadDay, 24 * time.Hour, time.Hour, "tomorrow"},
	{LeadHour, time.Hour, 5 * time.Minute, "in one hour"},
}

// Meetings is the occurrence/recipient slice of the store.
type Meetings interface {
	OccurrencesBetween(ctx context.Context, from, to time.Time) ([]domain.Occurrence, error)
	RecipientsFor(ctx context.Context, groupID, lead string) ([]domain.UserPreference, error)
}

// Queue accepts reminder records. Enqueue reports inserted=false when the
// dedup key already exists, which is how repeat matches within one buffer
// window stay single-send.
type Queue interface {
	Enqueue(ctx context.Context, rec domain.DeliveryRecord) (string, bool, error)
}

// Scheduler fans meeting occurrences inside a lead window out to subscribed
// recipients as delivery records.
type Scheduler struct {
	meetings        Meetings
	queue           Queue
	logger          *slog.Logger
	pushMaxAttempts int
	now             func() time.Time
}

func NewScheduler(meetings Meetings, queue Queue, logger *slog.Logger, pushMaxAttempts int) *Scheduler {
	if pushMaxAttempts <= 0 {
		pushMaxAttempts = 10
	}
	return &Scheduler{
		meetings:        meetings,
		queue:           queue,
		logger:          logger,
		pushMaxAttempts: pushMaxAttempts,
		now:             time.Now,
	}
}

// Run matches every lead window once and enqueues reminders, returning how
// many records were actually inserted. A failing window is reported but does
// not stop the others.
func (s *Scheduler) Run(ctx context.Context) (int, error) {
	now := s.now()
	enqueued := 0
	var windowErrs []error

	for _, w := range leadWindows {
		target := now.Add(w.offset)
		occurrences, err := s.meetings.OccurrencesBetween(ctx, target.Add(-w.buffer), target.Add(w.buffer))
		if err != nil {
			windowErrs = append(windowErrs, fmt.Errorf("matching %s window: %w", w.lead, err))
			continue
		}

		for _, occ := range occurrences {
			n, err := s.fanOut(ctx, occ, w)
			if err != nil {
				windowErrs = append(windowErrs, err)
				continue
			}
			enqueued += n
		}
	}

	s.logger.Info("reminder run complete", "enqueued", enqueued, "window_errors", len(windowErrs))
	return enqueued, errors.Join(windowErrs...)
}

// fanOut enqueues one reminder per subscribed member of the occurrence's
// group. A single member's enqueue failure is logged and skipped; the rest
// of the group still gets its reminders.
func (s *Scheduler) fanOut(ctx context.Context, occ domain.Occurrence, w leadWindow) (int, error) {
	recipients, err := s.meetings.RecipientsFor(ctx, occ.GroupID, w.lead)
	if err != nil {
		return 0, fmt.Errorf("resolving recipients for occurrence %s: %w", occ.ID, err)
	}

	count := 0
	for _, pref := range recipients {
		rec, ok := s.buildRecord(occ, w, pref)
		if !ok {
			continue
		}

		_, inserted, err := s.queue.Enqueue(ctx, rec)
		if err != nil {
			s.logger.Error("failed to enqueue reminder",
				"occurrence_id", occ.ID, "user_id", pref.UserID, "lead", w.lead, "error", err)
			continue
		}
		if inserted {
			count++
		}
	}

	return count, nil
}

// buildRecord picks the recipient's channel and assembles the reminder
// payload. SMS is used only when the recipient prefers it and is eligible
// right now; everyone else falls back to push, and members with no push
// token get nothing.
func (s *Scheduler) buildRecord(occ domain.Occurrence, w leadWindow, pref domain.UserPreference) (domain.DeliveryRecord, bool) {
	dedup := fmt.Sprintf("reminder:%s:%s:%s", occ.ID, w.lead, pref.UserID)
	body := reminderBody(occ, w.phrase)

	if pref.ContactPreference == domain.ContactSMS {
		if ok, _ := pref.SMSEligible(s.now()); ok {
			payload, _ := json.Marshal(domain.SMSPayload{
				PhoneNumber: pref.Phone,
				Content:     body,
				FullContent: body,
			})
			return domain.DeliveryRecord{
				RecipientID: pref.UserID,
				Channel:     domain.ChannelSMS,
				Payload:     payload,
				MaxAttempts: 1,
				DedupKey:    &dedup,
			}, true
		}
	}

	if pref.PushToken == "" {
		return domain.DeliveryRecord{}, false
	}

	payload, _ := json.Marshal(domain.PushPayload{
		Token: pref.PushToken,
		Title: "Meeting reminder",
		Body:  body,
		Data: map[string]string{
			"occurrence_id": occ.ID,
			"lead":          w.lead,
		},
		Sound:     "default",
		ChannelID: "meetings",
	})
	return domain.DeliveryRecord{
		RecipientID: pref.UserID,
		Channel:     domain.ChannelPush,
		Payload:     payload,
		MaxAttempts: s.pushMaxAttempts,
		DedupKey:    &dedup,
	}, true
}

func reminderBody(occ domain.Occurrence, phrase string) string {
	when := occ.ScheduledAt.Format("Mon Jan 2 at 3:04 PM")
	if occ.Location != "" {
		return fmt.Sprintf("%s is %s: %s, %s", occ.Title, phrase, when, occ.Location)
	}
	return fmt.Sprintf("%s is %s: %s", occ.Title, phrase, when)
}
