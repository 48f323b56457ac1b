package models

import (
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceLeave   AttendanceStatus = "leave"
)

func (s AttendanceStatus) Valid() bool {
	return s == AttendancePresent || s == AttendanceLeave
}

// AttendanceDayLayout keys attendance records by calendar day.
const AttendanceDayLayout = "2006-01-02"

type AttendanceRecord struct {
	ID       uuid.UUID        `json:"id" gorm:"primaryKey;type:uuid"`
	Email    string           `json:"email" gorm:"not null;uniqueIndex:idx_attendance_email_day"`
	Day      string           `json:"day" gorm:"not null;uniqueIndex:idx_attendance_email_day"`
	Status   AttendanceStatus `json:"status" gorm:"type:varchar(16);not null"`
	MarkedAt time.Time        `json:"marked_at" gorm:"not null"`
}

func (AttendanceRecord) TableName() string {
	return "attendance_records"
}

func (r *AttendanceRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.Must(uuid.NewV4())
	}
	return nil
}

// ReviewRecord is the durable audit entry written after a task review is
// committed to the ledger.
type ReviewRecord struct {
	ID            uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	TaskID        string    `json:"task_id" gorm:"not null;uniqueIndex"`
	Title         string    `json:"title" gorm:"not null"`
	Category      string    `json:"category" gorm:"not null;index"`
	ZoneName      string    `json:"zone_name"`
	Comment       string    `json:"comment" gorm:"type:text;not null"`
	ReviewerEmail string    `json:"reviewer_email" gorm:"index"`
	ReviewedAt    time.Time `json:"reviewed_at" gorm:"not null;index"`
	CreatedAt     time.Time `json:"created_at"`
}

func (ReviewRecord) TableName() string {
	return "review_records"
}

func (r *ReviewRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.Must(uuid.NewV4())
	}
	return nil
}

// NewReviewRecord builds the archive entry for a reviewed task.
func NewReviewRecord(task Task, reviewer string) ReviewRecord {
	rec := ReviewRecord{
		ID:            uuid.Must(uuid.NewV4()),
		TaskID:        task.ID.String(),
		Title:         task.Title,
		Category:      task.Category,
		ZoneName:      task.ZoneName,
		Comment:       task.Comment,
		ReviewerEmail: NormalizeEmail(reviewer),
	}
	if task.ReviewedAt != nil {
		rec.ReviewedAt = *task.ReviewedAt
	}
	return rec
}
