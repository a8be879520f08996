// internal/model/delivery.go
package model

import "time"

// Delivery statuses. Pending covers both "not yet attempted" and provider
// soft failures; StatusReason records which (see the reason constants).
const (
	DeliveryPending = "pending"
	DeliverySent    = "sent"
	DeliveryFailed  = "failed"
)

// Status reasons persisted alongside a non-sent delivery.
const (
	ReasonProviderDeferred    = "provider_deferred"
	ReasonChannelUnconfigured = "channel_unconfigured"
	ReasonMissingContact      = "missing_contact"
	ReasonUnsupportedMethod   = "unsupported_method"
	ReasonTimeout             = "timeout"
)

type Delivery struct {
	ID           int        `db:"id" json:"id"`
	NewsletterID int        `db:"newsletter_id" json:"newsletter_id"`
	SubscriberID int        `db:"subscriber_id" json:"subscriber_id"`
	Method       string     `db:"method" json:"method"`
	Status       string     `db:"status" json:"status"`
	StatusReason string     `db:"status_reason" json:"status_reason,omitempty"`
	AttemptCount int        `db:"attempt_count" json:"attempt_count"`
	SentAt       *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	OpenedAt     *time.Time `db:"opened_at" json:"opened_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// DeliveryStats summarizes one fan-out: Sent+Pending+Failed == Total.
type DeliveryStats struct {
	Total   int `json:"total"`
	Sent    int `json:"sent"`
	Pending int `json:"pending"`
	Failed  int `json:"failed"`
}
