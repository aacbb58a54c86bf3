package domain

import "time"

// Recipient is the engine's view of a contact record. Tags and Fields are
// mutable through the recipient store only; the engine never holds a copy
// across a suspend point.
type Recipient struct {
	ID              string            `json:"id"`
	Email           string            `json:"email"`
	FirstName       string            `json:"firstName,omitempty"`
	LastName        string            `json:"lastName,omitempty"`
	Tags            []string          `json:"tags"`
	Fields          map[string]string `json:"fields"`
	EngagementScore int               `json:"engagementScore"`
	Created         time.Time         `json:"created"`
	Modified        time.Time         `json:"modified"`
}

// HasTag reports set membership on the recipient's tags.
func (r *Recipient) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// DeliveryRecord is one audit entry for a sent message, keyed by execution
// and action so that a redelivered wake-up never double-sends.
type DeliveryRecord struct {
	ID          string
	ExecutionID int64
	ActionID    string
	RecipientID string
	Subject     string
	SentAt      time.Time
}

// Runner is one registered engine instance. LastActive is heartbeat-updated
// and used to detect claims held by dead runners.
type Runner struct {
	ID         int64
	Name       string
	Started    time.Time
	LastActive time.Time
}
