package store

import (
	"context"
	"fmt"
)

// NotifyDivisionAdmins writes one admin message per administrator of the
// user's division. This is a direct insert, not a queue enqueue: the alert
// must not depend on the SMS/push pipeline it is reporting a failure of.
func (s *PostgresStore) NotifyDivisionAdmins(ctx context.Context, aboutUserID, subject, body string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO admin_messages (recipient_id, about_user_id, subject, body)
		SELECT admin.user_id, $1, $2, $3
		FROM user_preferences admin
		WHERE admin.is_division_admin = TRUE
		  AND admin.division_id = (SELECT division_id FROM user_preferences WHERE user_id = $1)
	`, aboutUserID, subject, body)
	if err != nil {
		return fmt.Errorf("inserting admin messages: %w", err)
	}
	return nil
}
