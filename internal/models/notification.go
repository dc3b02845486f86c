package models

import "time"

// Event types pushed on the notification channel.
const (
	EventApplicationDecided = "application.decided"
	EventPaymentRecorded    = "payment.recorded"
)

// Event is the payload published to the realtime notification channel
// consumed by the portal frontends.
type Event struct {
	Type      string            `json:"type"`
	StudentID string            `json:"student_id,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
	At        time.Time         `json:"at"`
}
