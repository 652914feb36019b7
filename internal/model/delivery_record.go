package model

import "time"

// DeliveryStatus is the outcome recorded for one send attempt.
type DeliveryStatus string

const (
	DeliverySent   DeliveryStatus = "sent"
	DeliveryFailed DeliveryStatus = "failed"
)

// DeliveryRecord is an append-only audit entry, one per send attempt.
type DeliveryRecord struct {
	ID           int64          `json:"id"`
	SenderID     *int64         `json:"sender_id,omitempty"`
	Recipients   string         `json:"recipients"` // raw, as submitted
	Subject      string         `json:"subject"`
	Body         string         `json:"body"`
	Attachments  string         `json:"attachments"` // JSON metadata
	Status       DeliveryStatus `json:"status"`
	ErrorMessage *string        `json:"error_message,omitempty"`
	SentAt       time.Time      `json:"sent_at"`
}
