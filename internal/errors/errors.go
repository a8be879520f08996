// internal/errors/errors.go
package appErrors

import "fmt"

// ErrNewsletterNotFound is a sentinel error
type ErrNewsletterNotFound struct {
	NewsletterID int
}

func (e *ErrNewsletterNotFound) Error() string {
	return fmt.Sprintf("newsletter with ID %d not found", e.NewsletterID)
}

// Helper constructor
func NewNewsletterNotFound(id int) error {
	return &ErrNewsletterNotFound{NewsletterID: id}
}

// ErrSubscriberNotFound covers lookups by ID or by token.
type ErrSubscriberNotFound struct {
	Ref string
}

func (e *ErrSubscriberNotFound) Error() string {
	return fmt.Sprintf("subscriber %s not found", e.Ref)
}

func NewSubscriberNotFound(ref string) error {
	return &ErrSubscriberNotFound{Ref: ref}
}

type ErrDeliveryNotFound struct {
	DeliveryID int
}

func (e *ErrDeliveryNotFound) Error() string {
	return fmt.Sprintf("delivery with ID %d not found", e.DeliveryID)
}

func NewDeliveryNotFound(id int) error {
	return &ErrDeliveryNotFound{DeliveryID: id}
}

// ErrStoreUnavailable wraps a persistence-layer failure. It aborts the
// calling operation; it is never absorbed into per-recipient statuses.
type ErrStoreUnavailable struct {
	Err error
}

func (e *ErrStoreUnavailable) Error() string {
	return fmt.Sprintf("store unavailable: %v", e.Err)
}

func (e *ErrStoreUnavailable) Unwrap() error { return e.Err }

func NewStoreUnavailable(err error) error {
	return &ErrStoreUnavailable{Err: err}
}

// ErrValidation rejects malformed input before any delivery record exists.
type ErrValidation struct {
	Msg string
}

func (e *ErrValidation) Error() string { return e.Msg }

func NewValidation(format string, args ...any) error {
	return &ErrValidation{Msg: fmt.Sprintf(format, args...)}
}

// ErrAlreadySent guards the one-way draft -> sent transition.
type ErrAlreadySent struct {
	NewsletterID int
}

func (e *ErrAlreadySent) Error() string {
	return fmt.Sprintf("newsletter with ID %d has already been sent", e.NewsletterID)
}

func NewAlreadySent(id int) error {
	return &ErrAlreadySent{NewsletterID: id}
}
