package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/RealmKnight/CNWC-BLET-GCA-PLD-App-sub010/internal/domain"
	"github.com/RealmKnight/CNWC-BLET-GCA-PLD-App-sub010/internal/transport"
)

const (
	codeLength             = 6
	sessionTTL             = 2 * time.Minute
	maxAttemptsPerSession  = 3
	maxTotalFailedAttempts = 6
	lockoutDuration        = 24 * time.Hour
)

// Client-correctable verification failures. The API layer maps these to 400;
// anything else is an infrastructure failure and maps to 500.
var (
	ErrNoActiveSession = errors.New("no active verification session, request a new code")
	ErrSessionExpired  = errors.New("verification code expired, request a new code")
	ErrTooManyAttempts = errors.New("too many attempts for this code, request a new one")
	ErrLockedOut       = errors.New("verification locked, try again later")
	ErrPinMismatch     = errors.New("pin number does not match our records")
)

// CodeMismatchError reports a wrong code along with how many tries are left
// on the current session.
type CodeMismatchError struct {
	AttemptsRemaining int
}

func (e *CodeMismatchError) Error() string {
	return fmt.Sprintf("incorrect code, %d attempts remaining", e.AttemptsRemaining)
}

// Sessions is the verification-session slice of the store.
type Sessions interface {
	CreateSession(ctx context.Context, sess domain.VerificationSession) (string, error)
	LatestActiveSession(ctx context.Context, userID, phone string) (*domain.VerificationSession, error)
	IncrementAttempts(ctx context.Context, id string) (int, error)
	TotalFailedAttempts(ctx context.Context, userID string) (int, error)
	MarkSessionVerified(ctx context.Context, id string) error
}

// Preferences is the user-preference slice the guard mutates.
type Preferences interface {
	GetPreference(ctx context.Context, userID string) (*domain.UserPreference, error)
	SetSMSLockout(ctx context.Context, userID string, until time.Time) error
	MarkPhoneVerified(ctx context.Context, userID, phone string) error
}

// Admins receives lockout alerts through the side channel.
type Admins interface {
	NotifyDivisionAdmins(ctx context.Context, aboutUserID, subject, body string) error
}

// SMSSender delivers the code itself. OTP messages go straight to the
// transport, never through the delivery queue: a code with a 2 minute expiry
// cannot wait out a retry tier.
type SMSSender interface {
	Send(ctx context.Context, p domain.SMSPayload) (*transport.SMSResult, error)
}

// IssueResult is the session metadata returned to the caller. The code is
// never part of it.
type IssueResult struct {
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Guard runs the phone verification state machine: per-session attempt caps,
// a cross-session failure total, and a 24 hour SMS lockout when the total is
// exhausted.
type Guard struct {
	sessions Sessions
	prefs    Preferences
	admins   Admins
	sms      SMSSender
	logger   *slog.Logger
	now      func() time.Time
}

func NewGuard(sessions Sessions, prefs Preferences, admins Admins, sms SMSSender, logger *slog.Logger) *Guard {
	return &Guard{
		sessions: sessions,
		prefs:    prefs,
		admins:   admins,
		sms:      sms,
		logger:   logger,
		now:      time.Now,
	}
}

// Issue creates a fresh verification session for (userID, phone) and sends
// the code by SMS. An active lockout rejects issuance up front: sending
// would be pointless since the eventual verify would be rejected anyway.
func (g *Guard) Issue(ctx context.Context, userID, rawPhone string) (*IssueResult, error) {
	phone, err := transport.NormalizePhone(rawPhone)
	if err != nil {
		return nil, err
	}

	pref, err := g.prefs.GetPreference(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading preferences: %w", err)
	}
	if pref != nil && pref.SMSLockoutUntil != nil && pref.SMSLockoutUntil.After(g.now()) {
		return nil, ErrLockedOut
	}

	code, err := generateCode()
	if err != nil {
		return nil, fmt.Errorf("generating code: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing code: %w", err)
	}

	sess := domain.VerificationSession{
		UserID:    userID,
		Phone:     phone,
		OTPHash:   string(hash),
		ExpiresAt: g.now().Add(sessionTTL),
		SessionID: uuid.NewString(),
	}

	if _, err := g.sessions.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	content := fmt.Sprintf("Your verification code is %s. It expires in 2 minutes.", code)
	if _, err := g.sms.Send(ctx, domain.SMSPayload{PhoneNumber: phone, Content: content}); err != nil {
		return nil, fmt.Errorf("sending verification code: %w", err)
	}

	g.logger.Info("verification code issued", "user_id", userID, "session_id", sess.SessionID)

	return &IssueResult{SessionID: sess.SessionID, ExpiresAt: sess.ExpiresAt}, nil
}

// Verify checks a submitted code against the user's most recent session.
// Pre-checks reject without mutating anything; only a genuine code mismatch
// burns an attempt.
func (g *Guard) Verify(ctx context.Context, userID, rawPhone, code, pinNumber string) error {
	phone, err := transport.NormalizePhone(rawPhone)
	if err != nil {
		return err
	}

	pref, err := g.prefs.GetPreference(ctx, userID)
	if err != nil {
		return fmt.Errorf("loading preferences: %w", err)
	}
	if pref != nil && pref.SMSLockoutUntil != nil && pref.SMSLockoutUntil.After(g.now()) {
		return ErrLockedOut
	}
	if pref != nil && pref.PinNumber != "" && pref.PinNumber != pinNumber {
		return ErrPinMismatch
	}

	sess, err := g.sessions.LatestActiveSession(ctx, userID, phone)
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}
	if sess == nil {
		return ErrNoActiveSession
	}
	if g.now().After(sess.ExpiresAt) {
		return ErrSessionExpired
	}
	if sess.Attempts >= maxAttemptsPerSession {
		return ErrTooManyAttempts
	}

	if bcrypt.CompareHashAndPassword([]byte(sess.OTPHash), []byte(code)) != nil {
		return g.recordMismatch(ctx, userID, sess)
	}

	if err := g.sessions.MarkSessionVerified(ctx, sess.ID); err != nil {
		return fmt.Errorf("marking session verified: %w", err)
	}
	if err := g.prefs.MarkPhoneVerified(ctx, userID, phone); err != nil {
		return fmt.Errorf("updating preferences: %w", err)
	}

	g.logger.Info("phone verified", "user_id", userID, "session_id", sess.SessionID)
	return nil
}

// recordMismatch burns one attempt and, when the cross-session failure total
// reaches the hard cap, locks the user out of SMS for 24 hours and alerts
// their division admins through the side channel.
func (g *Guard) recordMismatch(ctx context.Context, userID string, sess *domain.VerificationSession) error {
	attempts, err := g.sessions.IncrementAttempts(ctx, sess.ID)
	if err != nil {
		return fmt.Errorf("recording failed attempt: %w", err)
	}

	total, err := g.sessions.TotalFailedAttempts(ctx, userID)
	if err != nil {
		return fmt.Errorf("summing failed attempts: %w", err)
	}

	if total >= maxTotalFailedAttempts {
		until := g.now().Add(lockoutDuration)
		if err := g.prefs.SetSMSLockout(ctx, userID, until); err != nil {
			return fmt.Errorf("applying lockout: %w", err)
		}

		body := fmt.Sprintf("A member exhausted %d phone verification attempts and has been locked out of SMS until %s.",
			total, until.Format(time.RFC1123))
		if err := g.admins.NotifyDivisionAdmins(ctx, userID, "Phone verification lockout", body); err != nil {
			// The lockout itself is already in place; losing the alert is
			// logged, not fatal.
			g.logger.Error("failed to notify division admins of lockout", "user_id", userID, "error", err)
		}

		g.logger.Warn("verification lockout applied", "user_id", userID, "total_failed", total, "until", until)
		return ErrLockedOut
	}

	remaining := maxAttemptsPerSession - attempts
	if remaining < 0 {
		remaining = 0
	}
	return &CodeMismatchError{AttemptsRemaining: remaining}
}

func generateCode() (string, error) {
	max := big.NewInt(1000000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeLength, n.Int64()), nil
}
