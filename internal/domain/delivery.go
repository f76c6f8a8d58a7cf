package domain

import (
	"encoding/json"
	"time"
)

// Channel identifies the transport lane a delivery record belongs to.
type Channel string

const (
	ChannelPush Channel = "push"
	ChannelSMS  Channel = "sms"
)

// Delivery record lifecycle statuses.
const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// DeliveryRecord is one outbound notification queued for dispatch. Records
// are the durable source of truth for what needs sending and what was sent;
// they are never deleted.
type DeliveryRecord struct {
	ID               string          `json:"id"`
	RecipientID      string          `json:"recipient_id"`
	Channel          Channel         `json:"channel"`
	Payload          json.RawMessage `json:"payload"`
	Status           string          `json:"status"`
	RetryCount       int             `json:"retry_count"`
	MaxAttempts      int             `json:"max_attempts"`
	NextAttemptAt    time.Time       `json:"next_attempt_at"`
	FirstAttemptedAt *time.Time      `json:"first_attempted_at,omitempty"`
	LastAttemptedAt  *time.Time      `json:"last_attempted_at,omitempty"`
	SentAt           *time.Time      `json:"sent_at,omitempty"`
	ErrorMessage     *string         `json:"error_message,omitempty"`
	TransportID      *string         `json:"transport_id,omitempty"`
	CostAmount       *float64        `json:"cost_amount,omitempty"`
	DedupKey         *string         `json:"dedup_key,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// PushPayload is the channel-specific content of a push record.
type PushPayload struct {
	Token     string            `json:"token"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	Sound     string            `json:"sound,omitempty"`
	Priority  string            `json:"priority,omitempty"`
	ChannelID string            `json:"channel_id,omitempty"`
}

// SMSPayload is the channel-specific content of an SMS record. Content is
// what goes over the wire; FullContent keeps the untruncated text for the
// audit trail.
type SMSPayload struct {
	PhoneNumber string `json:"phone_number"`
	Content     string `json:"content"`
	FullContent string `json:"full_content,omitempty"`
	Priority    string `json:"priority,omitempty"`
	Truncated   bool   `json:"truncated"`
}

// DispatchRecord is one row in the write-only dispatch log. Every dispatch
// attempt, success or failure, on either channel, produces exactly one.
type DispatchRecord struct {
	NotificationID string    `json:"notification_id"`
	UserID         string    `json:"user_id"`
	Channel        Channel   `json:"channel"`
	Success        bool      `json:"success"`
	Error          string    `json:"error,omitempty"`
	Cost           *float64  `json:"cost,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}
