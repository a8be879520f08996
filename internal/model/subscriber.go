// internal/model/subscriber.go
package model

import "time"

// Contact methods a subscriber can choose.
const (
	ContactEmail = "email"
	ContactSMS   = "sms"
)

type Subscriber struct {
	ID               int       `db:"id" json:"id"`
	FirstName        string    `db:"first_name" json:"first_name"`
	ContactMethod    string    `db:"contact_method" json:"contact_method"`
	Email            string    `db:"email" json:"email,omitempty"`
	Phone            string    `db:"phone" json:"phone,omitempty"`
	IsActive         bool      `db:"is_active" json:"is_active"`
	Frequency        string    `db:"frequency" json:"frequency"`
	UnsubscribeToken string    `db:"unsubscribe_token" json:"-"`
	PreferencesToken string    `db:"preferences_token" json:"-"`
	CategoryIDs      []int     `json:"category_ids,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// Contact returns the address deliveries should go to for the chosen
// method, or "" when the required field is missing.
func (s *Subscriber) Contact() string {
	switch s.ContactMethod {
	case ContactEmail:
		return s.Email
	case ContactSMS:
		return s.Phone
	}
	return ""
}
