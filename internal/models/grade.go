package models

import "time"

// GradeLetter is the closed set of letter grades the institution awards.
type GradeLetter string

const (
	GradeAPlus  GradeLetter = "A+"
	GradeA      GradeLetter = "A"
	GradeAMinus GradeLetter = "A-"
	GradeBPlus  GradeLetter = "B+"
	GradeB      GradeLetter = "B"
	GradeBMinus GradeLetter = "B-"
	GradeCPlus  GradeLetter = "C+"
	GradeC      GradeLetter = "C"
	GradeCMinus GradeLetter = "C-"
	GradeDPlus  GradeLetter = "D+"
	GradeD      GradeLetter = "D"
	GradeF      GradeLetter = "F"
)

var gradePoints = map[GradeLetter]float64{
	GradeAPlus:  4.0,
	GradeA:      4.0,
	GradeAMinus: 3.7,
	GradeBPlus:  3.3,
	GradeB:      3.0,
	GradeBMinus: 2.7,
	GradeCPlus:  2.3,
	GradeC:      2.0,
	GradeCMinus: 1.7,
	GradeDPlus:  1.3,
	GradeD:      1.0,
	GradeF:      0.0,
}

// Valid reports whether the letter is part of the grading scale.
func (g GradeLetter) Valid() bool {
	_, ok := gradePoints[g]
	return ok
}

// Points maps the letter to its grade-point value. Letters outside the
// scale contribute 0.0; new rows are validated at creation, so this only
// applies to legacy data.
func (g GradeLetter) Points() float64 {
	return gradePoints[g]
}

// Grade is a single subject result belonging to exactly one student.
type Grade struct {
	ID        string      `db:"id" json:"id"`
	StudentID string      `db:"student_id" json:"student_id"`
	Subject   string      `db:"subject" json:"subject"`
	Code      string      `db:"code" json:"code"`
	Letter    GradeLetter `db:"letter" json:"grade"`
	Score     *float64    `db:"score" json:"score,omitempty"`
	Semester  string      `db:"semester" json:"semester"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt time.Time   `db:"updated_at" json:"updated_at"`
}

// GradeDetail enriches a grade with its student for admin listings.
type GradeDetail struct {
	Grade
	StudentName string `db:"student_name" json:"student_name"`
	StudentNo   string `db:"student_no" json:"student_no"`
}

// GradeFilter scopes grade queries.
type GradeFilter struct {
	StudentID string
	Semester  string
}
