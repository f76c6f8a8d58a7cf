package store

import (
	"context"
	"fmt"
	"time"

	"github.com/RealmKnight/CNWC-BLET-GCA-PLD-App-sub010/internal/domain"
	"github.com/jackc/pgx/v5"
)

// GetPreference returns a user's preference row, or nil when not found.
func (s *PostgresStore) GetPreference(ctx context.Context, userID string) (*domain.UserPreference, error) {
	var p domain.UserPreference
	var phone, pin, token, division *string
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, phone, pin_number, push_token, contact_preference, sms_opt_out,
		       sms_lockout_until, phone_verification_status,
		       notify_week_before, notify_day_before, notify_hour_before,
		       division_id, is_division_admin
		FROM user_preferences WHERE user_id = $1
	`, userID).Scan(
		&p.UserID, &phone, &pin, &token, &p.ContactPreference, &p.SMSOptOut,
		&p.SMSLockoutUntil, &p.PhoneVerificationStatus,
		&p.NotifyWeekBefore, &p.NotifyDayBefore, &p.NotifyHourBefore,
		&division, &p.IsDivisionAdmin,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying user preference: %w", err)
	}
	if phone != nil {
		p.Phone = *phone
	}
	if pin != nil {
		p.PinNumber = *pin
	}
	if token != nil {
		p.PushToken = *token
	}
	if division != nil {
		p.DivisionID = *division
	}
	return &p, nil
}

// SetSMSLockout sets the lockout timestamp on a user's preferences. Every
// SMS send to the user is rejected while it is in the future.
func (s *PostgresStore) SetSMSLockout(ctx context.Context, userID string, until time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE user_preferences SET sms_lockout_until = $2, updated_at = NOW()
		WHERE user_id = $1
	`, userID, until)
	if err != nil {
		return fmt.Errorf("setting sms lockout: %w", err)
	}
	return nil
}

// MarkPhoneVerified upserts the verified phone onto the user's preferences
// and clears any lockout.
func (s *PostgresStore) MarkPhoneVerified(ctx context.Context, userID, phone string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_preferences (user_id, phone, phone_verification_status, sms_lockout_until, updated_at)
		VALUES ($1, $2, 'verified', NULL, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			phone = EXCLUDED.phone,
			phone_verification_status = 'verified',
			sms_lockout_until = NULL,
			updated_at = NOW()
	`, userID, phone)
	if err != nil {
		return fmt.Errorf("marking phone verified: %w", err)
	}
	return nil
}
