package models

import "time"

// ApplicationStatus is the progression request state machine. Pending is
// initial; Approved and Rejected are terminal and never transition again.
type ApplicationStatus string

const (
	ApplicationStatusPending  ApplicationStatus = "Pending"
	ApplicationStatusApproved ApplicationStatus = "Approved"
	ApplicationStatusRejected ApplicationStatus = "Rejected"
)

// Valid reports whether the status is a known state.
func (s ApplicationStatus) Valid() bool {
	switch s {
	case ApplicationStatusPending, ApplicationStatusApproved, ApplicationStatusRejected:
		return true
	}
	return false
}

// Terminal reports whether the status accepts no further transitions.
func (s ApplicationStatus) Terminal() bool {
	return s == ApplicationStatusApproved || s == ApplicationStatusRejected
}

// ApplicationTypeProgression is the default application type.
const ApplicationTypeProgression = "Progression"

// Application is a student's formal request to progress to a target
// semester. At most one Pending application may exist per
// (student, target_semester) pair; the store enforces this with a partial
// unique index.
type Application struct {
	ID             string            `db:"id" json:"id"`
	StudentID      string            `db:"student_id" json:"student_id"`
	Type           string            `db:"type" json:"type"`
	TargetSemester string            `db:"target_semester" json:"target_semester"`
	Status         ApplicationStatus `db:"status" json:"status"`
	Remarks        string            `db:"remarks" json:"remarks,omitempty"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time         `db:"updated_at" json:"updated_at"`
}

// ApplicationDetail joins the student summary for the admin review screen.
type ApplicationDetail struct {
	Application
	Student StudentSummary `json:"student"`
}

// ApplicationFilter scopes application listings.
type ApplicationFilter struct {
	StudentID string
	Status    ApplicationStatus
}

// EnrollmentState answers "is this student fully enrolled for the semester
// they were approved into". Confirmed requires an Approved application plus
// a qualifying succeeded payment for the target semester.
type EnrollmentState struct {
	Confirmed      bool         `json:"confirmed"`
	Application    *Application `json:"application,omitempty"`
	PaymentID      string       `json:"payment_id,omitempty"`
	TargetSemester string       `json:"target_semester,omitempty"`
}
