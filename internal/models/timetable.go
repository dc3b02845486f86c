package models

// TimetableEntry is a single weekly class slot.
type TimetableEntry struct {
	ID        string `db:"id" json:"id"`
	Day       string `db:"day" json:"day"`
	Subject   string `db:"subject" json:"subject"`
	StartTime string `db:"start_time" json:"start_time"`
	EndTime   string `db:"end_time" json:"end_time"`
	Location  string `db:"location" json:"location,omitempty"`
	Semester  string `db:"semester" json:"semester,omitempty"`
}
