// Package channel holds the per-contact-method delivery adapters. An
// adapter attempts exactly one external send and reports the outcome; it
// never lets a transport error escape as a Go error.
package channel

import (
	"context"

	"github.com/openletter/newsletter-backend/internal/model"
)

// Outcome statuses.
const (
	OutcomeSent     = "sent"
	OutcomeDeferred = "deferred"
	OutcomeFailed   = "failed"
)

// Outcome is the result of one send attempt. Deferred means the provider
// accepted the request but delivery is not confirmed (soft failure or an
// unconfigured channel); Reason says which.
type Outcome struct {
	Status string
	Reason string
}

func Sent() Outcome                  { return Outcome{Status: OutcomeSent} }
func Deferred(reason string) Outcome { return Outcome{Status: OutcomeDeferred, Reason: reason} }
func Failed(reason string) Outcome   { return Outcome{Status: OutcomeFailed, Reason: reason} }

// Adapter is implemented once per contact method.
type Adapter interface {
	// Method returns the contact method this adapter serves ("email", "sms").
	Method() string
	// Send attempts delivery of the newsletter to one subscriber.
	Send(ctx context.Context, sub *model.Subscriber, n *model.Newsletter, categoryNames []string) Outcome
}
