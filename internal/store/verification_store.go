package store

import (
	"context"
	"fmt"

	"github.com/RealmKnight/CNWC-BLET-GCA-PLD-App-sub010/internal/domain"
	"github.com/jackc/pgx/v5"
)

// CreateSession inserts a new verification session and returns its id.
func (s *PostgresStore) CreateSession(ctx context.Context, sess domain.VerificationSession) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO verification_sessions (user_id, phone, otp_hash, expires_at, session_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, sess.UserID, sess.Phone, sess.OTPHash, sess.ExpiresAt, sess.SessionID).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("inserting verification session: %w", err)
	}
	return id, nil
}

// LatestActiveSession returns the most recent unverified session for a
// (user, phone) pair, or nil when there is none. Expiry and attempt caps are
// the guard's concern, not the query's: a stale session must still be found
// so its rejection reason can be reported.
func (s *PostgresStore) LatestActiveSession(ctx context.Context, userID, phone string) (*domain.VerificationSession, error) {
	var sess domain.VerificationSession
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, phone, otp_hash, expires_at, attempts, verified, session_id, created_at
		FROM verification_sessions
		WHERE user_id = $1 AND phone = $2 AND verified = FALSE
		ORDER BY created_at DESC
		LIMIT 1
	`, userID, phone).Scan(
		&sess.ID, &sess.UserID, &sess.Phone, &sess.OTPHash, &sess.ExpiresAt,
		&sess.Attempts, &sess.Verified, &sess.SessionID, &sess.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying verification session: %w", err)
	}
	return &sess, nil
}

// IncrementAttempts bumps a session's attempt counter and returns the new
// value.
func (s *PostgresStore) IncrementAttempts(ctx context.Context, id string) (int, error) {
	var attempts int
	err := s.pool.QueryRow(ctx, `
		UPDATE verification_sessions SET attempts = attempts + 1
		WHERE id = $1
		RETURNING attempts
	`, id).Scan(&attempts)
	if err != nil {
		return 0, fmt.Errorf("incrementing session attempts: %w", err)
	}
	return attempts, nil
}

// TotalFailedAttempts sums attempts across every unverified session for a
// user. This is the cross-session counter behind the 24h lockout.
func (s *PostgresStore) TotalFailedAttempts(ctx context.Context, userID string) (int, error) {
	var total int
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(attempts), 0)
		FROM verification_sessions
		WHERE user_id = $1 AND verified = FALSE
	`, userID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("summing failed attempts: %w", err)
	}
	return total, nil
}

// MarkSessionVerified flags a session as successfully verified. Verified
// sessions are terminal and never reused.
func (s *PostgresStore) MarkSessionVerified(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE verification_sessions SET verified = TRUE WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("marking session verified: %w", err)
	}
	return nil
}
