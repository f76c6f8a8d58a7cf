package domain

import "time"

// Phone verification statuses on a user's preference row.
const (
	PhoneUnverified = "unverified"
	PhonePending    = "pending"
	PhoneVerified   = "verified"
)

// Contact preference values.
const (
	ContactPush = "push"
	ContactSMS  = "sms"
)

// UserPreference is the notification-relevant slice of a member's settings.
// SMSLockoutUntil in the future blocks every SMS send to the user, OTP and
// notification alike.
type UserPreference struct {
	UserID                  string     `json:"user_id"`
	Phone                   string     `json:"phone,omitempty"`
	PinNumber               string     `json:"-"`
	PushToken               string     `json:"push_token,omitempty"`
	ContactPreference       string     `json:"contact_preference"`
	SMSOptOut               bool       `json:"sms_opt_out"`
	SMSLockoutUntil         *time.Time `json:"sms_lockout_until,omitempty"`
	PhoneVerificationStatus string     `json:"phone_verification_status"`
	NotifyWeekBefore        bool       `json:"notify_week_before"`
	NotifyDayBefore         bool       `json:"notify_day_before"`
	NotifyHourBefore        bool       `json:"notify_hour_before"`
	DivisionID              string     `json:"division_id,omitempty"`
	IsDivisionAdmin         bool       `json:"is_division_admin"`
}

// SMSEligible reports whether a notification SMS may be sent to this user
// right now, and if not, why. Checked at enqueue time and again immediately
// before dispatch so a record enqueued before an opt-out or lockout does not
// still send.
func (p *UserPreference) SMSEligible(now time.Time) (bool, string) {
	if p.SMSOptOut {
		return false, "recipient opted out of sms"
	}
	if p.SMSLockoutUntil != nil && p.SMSLockoutUntil.After(now) {
		return false, "sms lockout active"
	}
	if p.PhoneVerificationStatus != PhoneVerified {
		return false, "phone not verified"
	}
	if p.Phone == "" {
		return false, "no phone number on file"
	}
	return true, ""
}
