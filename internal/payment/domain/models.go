package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// EventKind is the closed set of webhook event kinds this service reacts
// to. Anything else maps to EventUnhandled and is acknowledged without
// effect, so an unknown provider event never bounces forever.
type EventKind int

const (
	EventUnhandled EventKind = iota
	EventSubscriptionActivated
	EventSubscriptionCancelled
	EventPaymentFailed
)

// Provider event type strings, as delivered on the wire.
const (
	TypeSubscriptionActivated     = "subscription.activated"
	TypeSubscriptionAuthenticated = "subscription.authenticated"
	TypeSubscriptionCancelled     = "subscription.cancelled"
	TypeSubscriptionCompleted     = "subscription.completed"
	TypePaymentFailed             = "payment.failed"
)

// KindOf maps a wire event type onto the closed kind set.
func KindOf(eventType string) EventKind {
	switch eventType {
	case TypeSubscriptionActivated, TypeSubscriptionAuthenticated:
		return EventSubscriptionActivated
	case TypeSubscriptionCancelled, TypeSubscriptionCompleted:
		return EventSubscriptionCancelled
	case TypePaymentFailed:
		return EventPaymentFailed
	default:
		return EventUnhandled
	}
}

func (k EventKind) String() string {
	switch k {
	case EventSubscriptionActivated:
		return "subscription_activated"
	case EventSubscriptionCancelled:
		return "subscription_cancelled"
	case EventPaymentFailed:
		return "payment_failed"
	default:
		return "unhandled"
	}
}

// WebhookEvent is the parsed, signature-verified inbound event.
type WebhookEvent struct {
	ID      string       `json:"id"`
	Type    string       `json:"type"`
	Payload EventPayload `json:"payload"`
}

// EventPayload carries the subscription details attached to an event.
// Cancellation events carry only the subscription identifier.
type EventPayload struct {
	SubscriptionID string     `json:"subscription_id"`
	CustomerID     string     `json:"customer_id,omitempty"`
	Email          string     `json:"email,omitempty"`
	Plan           string     `json:"plan,omitempty"`
	PeriodEnd      *time.Time `json:"period_end,omitempty"`
	Reason         string     `json:"reason,omitempty"`
}

// ProcessedEvent is the idempotency ledger entry recorded after an event
// has produced its effect. Entries expire after RetentionWindow.
//
// The ledger key is the event type string, so a later event of the same
// type is absorbed as a duplicate even when it targets a different
// subscription. That mirrors the provider integration this service was
// built against; see DESIGN.md before changing the key.
type ProcessedEvent struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	EventKey    string       `gorm:"uniqueIndex;not null"`
	EventType   string       `gorm:"type:text;not null"`
	ProcessedAt time.Time    `gorm:"index;not null"`
}

// TableName sets the database table name.
func (ProcessedEvent) TableName() string { return "processed_events" }

// RetentionWindow bounds how long ledger entries are kept.
const RetentionWindow = 30 * 24 * time.Hour
