package models

import "time"

// ActivityCategory classifies a deed.
type ActivityCategory string

const (
	CategoryDiscipline ActivityCategory = "Discipline"
	CategoryAcademics  ActivityCategory = "Academics"
	CategorySports     ActivityCategory = "Sports"
	CategoryLeadership ActivityCategory = "Leadership"
	CategoryOther      ActivityCategory = "Other"
)

// ActivityCategories lists the accepted categories.
func ActivityCategories() []ActivityCategory {
	return []ActivityCategory{CategoryDiscipline, CategoryAcademics, CategorySports, CategoryLeadership, CategoryOther}
}

// Valid reports whether the category is accepted.
func (c ActivityCategory) Valid() bool {
	for _, known := range ActivityCategories() {
		if c == known {
			return true
		}
	}
	return false
}

const (
	MinActivityPoints = 1
	MaxActivityPoints = 100
)

// Activity is an append-only record of points awarded to a student.
type Activity struct {
	ID         string           `db:"id" json:"id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	TeacherID  *string          `db:"teacher_id" json:"teacher_id,omitempty"`
	RecordedBy string           `db:"recorded_by" json:"recorded_by"`
	Category   ActivityCategory `db:"category" json:"category"`
	Reason     string           `db:"reason" json:"reason"`
	Points     int64            `db:"points" json:"points"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
}

// ActivityDetail joins the teacher name for listings.
type ActivityDetail struct {
	Activity
	TeacherName *string `db:"teacher_name" json:"teacher_name,omitempty"`
}

// ActivityFilter captures list parameters for activities.
type ActivityFilter struct {
	StudentID string
	TeacherID string
	Category  ActivityCategory
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
}

// RecordActivityRequest awards points to a student.
type RecordActivityRequest struct {
	StudentID string           `json:"student_id" validate:"required,uuid"`
	TeacherID string           `json:"teacher_id" validate:"omitempty,uuid"`
	Category  ActivityCategory `json:"category" validate:"required,activity_category"`
	Reason    string           `json:"reason" validate:"required,max=255"`
	Points    int64            `json:"points" validate:"min=1,max=100"`
}
