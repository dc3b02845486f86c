package models

import "time"

// PaymentStatus mirrors the gateway's intent lifecycle.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Payment is a recorded tuition payment. ApplicationID links the payment
// to the progression application it settles; legacy records carry no link
// and are matched by semester + description instead.
type Payment struct {
	ID               string        `db:"id" json:"id"`
	StudentID        string        `db:"student_id" json:"student_id"`
	StudentName      string        `db:"student_name" json:"student_name"`
	ApplicationID    *string       `db:"application_id" json:"application_id,omitempty"`
	Amount           float64       `db:"amount" json:"amount"`
	Currency         string        `db:"currency" json:"currency"`
	Course           string        `db:"course" json:"course,omitempty"`
	RollNumber       string        `db:"roll_number" json:"roll_number,omitempty"`
	Semester         string        `db:"semester" json:"semester,omitempty"`
	Description      string        `db:"description" json:"description,omitempty"`
	Status           PaymentStatus `db:"status" json:"status"`
	ProviderIntentID string        `db:"provider_intent_id" json:"provider_intent_id,omitempty"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
}
