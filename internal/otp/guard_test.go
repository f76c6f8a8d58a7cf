package otp

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/RealmKnight/CNWC-BLET-GCA-PLD-App-sub010/internal/domain"
	"github.com/RealmKnight/CNWC-BLET-GCA-PLD-App-sub010/internal/transport"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeSessions struct {
	created     []domain.VerificationSession
	session     *domain.VerificationSession
	incremented int
	total       int
	verifiedIDs []string
}

func (f *fakeSessions) CreateSession(_ context.Context, sess domain.VerificationSession) (string, error) {
	f.created = append(f.created, sess)
	return "sess-db-id", nil
}

func (f *fakeSessions) LatestActiveSession(_ context.Context, _, _ string) (*domain.VerificationSession, error) {
	return f.session, nil
}

func (f *fakeSessions) IncrementAttempts(_ context.Context, _ string) (int, error) {
	f.incremented++
	f.session.Attempts++
	return f.session.Attempts, nil
}

func (f *fakeSessions) TotalFailedAttempts(_ context.Context, _ string) (int, error) {
	if f.total > 0 {
		return f.total, nil
	}
	if f.session != nil {
		return f.session.Attempts, nil
	}
	return 0, nil
}

func (f *fakeSessions) MarkSessionVerified(_ context.Context, id string) error {
	f.verifiedIDs = append(f.verifiedIDs, id)
	return nil
}

type fakePrefs struct {
	pref          *domain.UserPreference
	lockouts      []time.Time
	verifiedPhone string
}

func (f *fakePrefs) GetPreference(_ context.Context, _ string) (*domain.UserPreference, error) {
	return f.pref, nil
}

func (f *fakePrefs) SetSMSLockout(_ context.Context, _ string, until time.Time) error {
	f.lockouts = append(f.lockouts, until)
	return nil
}

func (f *fakePrefs) MarkPhoneVerified(_ context.Context, _, phone string) error {
	f.verifiedPhone = phone
	return nil
}

type fakeAdmins struct {
	notices int
	subject string
}

func (f *fakeAdmins) NotifyDivisionAdmins(_ context.Context, _, subject, _ string) error {
	f.notices++
	f.subject = subject
	return nil
}

type fakeSMS struct {
	sent []domain.SMSPayload
	err  error
}

func (f *fakeSMS) Send(_ context.Context, p domain.SMSPayload) (*transport.SMSResult, error) {
	f.sent = append(f.sent, p)
	if f.err != nil {
		return nil, f.err
	}
	return &transport.SMSResult{TransportID: "SM-1"}, nil
}

func hashCode(t *testing.T, code string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashing test code: %v", err)
	}
	return string(h)
}

func activeSession(t *testing.T, code string) *domain.VerificationSession {
	t.Helper()
	return &domain.VerificationSession{
		ID:        "sess-1",
		UserID:    "user-1",
		Phone:     "+15551234567",
		OTPHash:   hashCode(t, code),
		ExpiresAt: testNow.Add(time.Minute),
		SessionID: "pub-sess-1",
	}
}

func newTestGuard(sessions *fakeSessions, prefs *fakePrefs, admins *fakeAdmins, sms *fakeSMS) *Guard {
	g := NewGuard(sessions, prefs, admins, sms, testLogger())
	g.now = func() time.Time { return testNow }
	return g
}

func TestIssue(t *testing.T) {
	sessions := &fakeSessions{}
	sms := &fakeSMS{}
	g := newTestGuard(sessions, &fakePrefs{}, &fakeAdmins{}, sms)

	res, err := g.Issue(context.Background(), "user-1", "(555) 123-4567")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if len(sessions.created) != 1 {
		t.Fatalf("sessions created = %d, want 1", len(sessions.created))
	}
	sess := sessions.created[0]
	if sess.Phone != "+15551234567" {
		t.Errorf("session phone = %q, want normalized +15551234567", sess.Phone)
	}
	if sess.OTPHash == "" {
		t.Error("session must store a code hash")
	}
	if !sess.ExpiresAt.Equal(testNow.Add(2 * time.Minute)) {
		t.Errorf("expiry = %v, want now+2m", sess.ExpiresAt)
	}
	if len(sms.sent) != 1 || sms.sent[0].PhoneNumber != "+15551234567" {
		t.Errorf("code SMS = %+v, want one message to normalized phone", sms.sent)
	}
	if res.SessionID == "" || !res.ExpiresAt.Equal(sess.ExpiresAt) {
		t.Errorf("result = %+v", res)
	}
}

func TestIssue_RejectedDuringLockout(t *testing.T) {
	lockout := testNow.Add(time.Hour)
	prefs := &fakePrefs{pref: &domain.UserPreference{UserID: "user-1", SMSLockoutUntil: &lockout}}
	sessions := &fakeSessions{}
	sms := &fakeSMS{}
	g := newTestGuard(sessions, prefs, &fakeAdmins{}, sms)

	_, err := g.Issue(context.Background(), "user-1", "5551234567")
	if !errors.Is(err, ErrLockedOut) {
		t.Fatalf("err = %v, want ErrLockedOut", err)
	}
	if len(sessions.created) != 0 || len(sms.sent) != 0 {
		t.Error("lockout must reject before creating a session or sending")
	}
}

func TestVerify_Success(t *testing.T) {
	sessions := &fakeSessions{session: activeSession(t, "123456")}
	prefs := &fakePrefs{}
	g := newTestGuard(sessions, prefs, &fakeAdmins{}, &fakeSMS{})

	if err := g.Verify(context.Background(), "user-1", "555-123-4567", "123456", ""); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	if len(sessions.verifiedIDs) != 1 || sessions.verifiedIDs[0] != "sess-1" {
		t.Errorf("verified sessions = %v, want [sess-1]", sessions.verifiedIDs)
	}
	if prefs.verifiedPhone != "+15551234567" {
		t.Errorf("preference phone = %q, want +15551234567", prefs.verifiedPhone)
	}
	if sessions.incremented != 0 {
		t.Error("success must not burn an attempt")
	}
}

func TestVerify_NoActiveSession(t *testing.T) {
	g := newTestGuard(&fakeSessions{}, &fakePrefs{}, &fakeAdmins{}, &fakeSMS{})

	err := g.Verify(context.Background(), "user-1", "5551234567", "123456", "")
	if !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("err = %v, want ErrNoActiveSession", err)
	}
}

func TestVerify_ExpiredSessionRejectsCorrectCode(t *testing.T) {
	sess := activeSession(t, "123456")
	sess.ExpiresAt = testNow.Add(-time.Second)
	sessions := &fakeSessions{session: sess}
	g := newTestGuard(sessions, &fakePrefs{}, &fakeAdmins{}, &fakeSMS{})

	err := g.Verify(context.Background(), "user-1", "5551234567", "123456", "")
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("err = %v, want ErrSessionExpired", err)
	}
	if len(sessions.verifiedIDs) != 0 || sessions.incremented != 0 {
		t.Error("expired session must reject without mutation")
	}
}

func TestVerify_AttemptCapRejectsCorrectCode(t *testing.T) {
	sess := activeSession(t, "123456")
	sess.Attempts = 3
	sessions := &fakeSessions{session: sess}
	g := newTestGuard(sessions, &fakePrefs{}, &fakeAdmins{}, &fakeSMS{})

	err := g.Verify(context.Background(), "user-1", "5551234567", "123456", "")
	if !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("err = %v, want ErrTooManyAttempts", err)
	}
	if len(sessions.verifiedIDs) != 0 {
		t.Error("capped session must never verify")
	}
}

func TestVerify_WrongCodeBurnsAttempt(t *testing.T) {
	sessions := &fakeSessions{session: activeSession(t, "123456")}
	g := newTestGuard(sessions, &fakePrefs{}, &fakeAdmins{}, &fakeSMS{})

	err := g.Verify(context.Background(), "user-1", "5551234567", "999999", "")

	var mismatch *CodeMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("err = %v, want CodeMismatchError", err)
	}
	if mismatch.AttemptsRemaining != 2 {
		t.Errorf("attempts remaining = %d, want 2", mismatch.AttemptsRemaining)
	}
	if sessions.incremented != 1 {
		t.Errorf("incremented = %d, want 1", sessions.incremented)
	}
}

func TestVerify_CrossSessionLockout(t *testing.T) {
	sessions := &fakeSessions{session: activeSession(t, "123456"), total: 6}
	prefs := &fakePrefs{}
	admins := &fakeAdmins{}
	g := newTestGuard(sessions, prefs, admins, &fakeSMS{})

	err := g.Verify(context.Background(), "user-1", "5551234567", "999999", "")
	if !errors.Is(err, ErrLockedOut) {
		t.Fatalf("err = %v, want ErrLockedOut", err)
	}

	if len(prefs.lockouts) != 1 {
		t.Fatalf("lockouts = %d, want 1", len(prefs.lockouts))
	}
	if want := testNow.Add(24 * time.Hour); !prefs.lockouts[0].Equal(want) {
		t.Errorf("lockout until = %v, want %v", prefs.lockouts[0], want)
	}
	if admins.notices != 1 {
		t.Errorf("admin notices = %d, want 1", admins.notices)
	}
}

func TestVerify_LockedOutPreCheck(t *testing.T) {
	lockout := testNow.Add(time.Hour)
	prefs := &fakePrefs{pref: &domain.UserPreference{UserID: "user-1", SMSLockoutUntil: &lockout}}
	sessions := &fakeSessions{session: activeSession(t, "123456")}
	g := newTestGuard(sessions, prefs, &fakeAdmins{}, &fakeSMS{})

	err := g.Verify(context.Background(), "user-1", "5551234567", "123456", "")
	if !errors.Is(err, ErrLockedOut) {
		t.Fatalf("err = %v, want ErrLockedOut", err)
	}
	if sessions.incremented != 0 || len(sessions.verifiedIDs) != 0 {
		t.Error("active lockout must reject without mutation")
	}
}

func TestVerify_PinMismatch(t *testing.T) {
	prefs := &fakePrefs{pref: &domain.UserPreference{UserID: "user-1", PinNumber: "4321"}}
	sessions := &fakeSessions{session: activeSession(t, "123456")}
	g := newTestGuard(sessions, prefs, &fakeAdmins{}, &fakeSMS{})

	err := g.Verify(context.Background(), "user-1", "5551234567", "123456", "1111")
	if !errors.Is(err, ErrPinMismatch) {
		t.Fatalf("err = %v, want ErrPinMismatch", err)
	}
	if sessions.incremented != 0 {
		t.Error("pin mismatch must not burn a code attempt")
	}
}
