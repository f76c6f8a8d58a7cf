package store

import (
	"context"
	"fmt"
	"time"

	"github.com/RealmKnight/CNWC-BLET-GCA-PLD-App-sub010/internal/domain"
)

// OccurrencesBetween returns non-deleted meeting occurrences scheduled
// inside the window, soonest first.
func (s *PostgresStore) OccurrencesBetween(ctx context.Context, from, to time.Time) ([]domain.Occurrence, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, group_id, title, COALESCE(location, ''), scheduled_at
		FROM meeting_occurrences
		WHERE NOT is_deleted AND scheduled_at >= $1 AND scheduled_at <= $2
		ORDER BY scheduled_at ASC
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("querying occurrences: %w", err)
	}
	defer rows.Close()

	var occurrences []domain.Occurrence
	for rows.Next() {
		var o domain.Occurrence
		if err := rows.Scan(&o.ID, &o.GroupID, &o.Title, &o.Location, &o.ScheduledAt); err != nil {
			return nil, fmt.Errorf("scanning occurrence: %w", err)
		}
		occurrences = append(occurrences, o)
	}

	if occurrences == nil {
		occurrences = []domain.Occurrence{}
	}

	return occurrences, nil
}

// RecipientsFor returns the preference rows of a group's members who have
// the given lead-time reminder flag enabled.
func (s *PostgresStore) RecipientsFor(ctx context.Context, groupID, lead string) ([]domain.UserPreference, error) {
	flag := map[string]string{
		"week": "notify_week_before",
		"day":  "notify_day_before",
		"hour": "notify_hour_before",
	}[lead]
	if flag == "" {
		return nil, fmt.Errorf("unknown lead time %q", lead)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT p.user_id, COALESCE(p.phone, ''), COALESCE(p.push_token, ''),
		       p.contact_preference, p.sms_opt_out, p.sms_lockout_until,
		       p.phone_verification_status
		FROM user_preferences p
		JOIN group_members m ON m.user_id = p.user_id
		WHERE m.group_id = $1 AND p.`+flag+` = TRUE
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("querying reminder recipients: %w", err)
	}
	defer rows.Close()

	var prefs []domain.UserPreference
	for rows.Next() {
		var p domain.UserPreference
		err := rows.Scan(
			&p.UserID, &p.Phone, &p.PushToken, &p.ContactPreference,
			&p.SMSOptOut, &p.SMSLockoutUntil, &p.PhoneVerificationStatus,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning recipient: %w", err)
		}
		prefs = append(prefs, p)
	}

	if prefs == nil {
		prefs = []domain.UserPreference{}
	}

	return prefs, nil
}
