package domain

import "time"

// VerificationSession is one OTP issuance. Only the bcrypt hash of the code
// is stored, never the code itself. A session is usable while it is
// unverified, unexpired, and under the per-session attempt cap; after
// success or expiry a new session must be issued.
type VerificationSession struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Phone     string    `json:"phone"`
	OTPHash   string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	Attempts  int       `json:"attempts"`
	Verified  bool      `json:"verified"`
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

// AdminMessage is a direct write to the admin message store. It deliberately
// bypasses the delivery queue: lockout alerts must not ride the channel
// whose failure they report.
type AdminMessage struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipient_id"`
	AboutUserID string    `json:"about_user_id"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	CreatedAt   time.Time `json:"created_at"`
}
