package models

import "time"

// StudentStatus is the lifecycle state of a student record.
type StudentStatus string

const (
	StudentStatusActive    StudentStatus = "Active"
	StudentStatusInactive  StudentStatus = "Inactive"
	StudentStatusGraduated StudentStatus = "Graduated"
)

// DefaultSemester is assigned to newly registered students.
const DefaultSemester = "Semester 1"

// Student represents a learner registered in the institution. Semester is
// a discrete ordered label ("Semester N") and is only ever advanced by an
// approved progression application or an explicit admin update.
type Student struct {
	ID        string        `db:"id" json:"id"`
	StudentNo string        `db:"student_no" json:"student_no"`
	FullName  string        `db:"full_name" json:"full_name"`
	Email     string        `db:"email" json:"email"`
	Age       int           `db:"age" json:"age"`
	Course    string        `db:"course" json:"course"`
	Semester  string        `db:"semester" json:"semester"`
	Status    StudentStatus `db:"status" json:"status"`
	AvatarURL string        `db:"avatar_url" json:"avatar_url,omitempty"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt time.Time     `db:"updated_at" json:"updated_at"`
}

// StudentSummary is the compact projection joined onto applications.
type StudentSummary struct {
	ID        string `db:"student_id" json:"id"`
	StudentNo string `db:"student_no" json:"student_no"`
	FullName  string `db:"student_name" json:"full_name"`
	Email     string `db:"student_email" json:"email"`
	Semester  string `db:"student_semester" json:"semester"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Status    StudentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
