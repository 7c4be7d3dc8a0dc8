package models

import (
	"time"

	"faceattend/internal/face"
)

// Admin is a dashboard operator.
type Admin struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Username     string    `json:"username" gorm:"uniqueIndex;size:60;not null"`
	PasswordHash string    `json:"-" gorm:"not null"`
	CreatedAt    time.Time `json:"created_at"`
}

// Student is an enrolled person with one face encoding.
type Student struct {
	ID                 uint            `json:"id" gorm:"primaryKey"`
	Name               string          `json:"name" gorm:"size:120;not null"`
	RegistrationNumber string          `json:"registration_number" gorm:"size:40;uniqueIndex;not null"`
	Encoding           face.Descriptor `json:"-" gorm:"not null"`
	PhotoURL           string          `json:"photo_url,omitempty" gorm:"size:500"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// Attendance is one recognition of a student on a calendar day.
type Attendance struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	StudentID uint      `json:"student_id" gorm:"not null;uniqueIndex:idx_attendance_student_day"`
	Student   Student   `json:"student" gorm:"constraint:OnDelete:CASCADE;"`
	Timestamp time.Time `json:"timestamp" gorm:"not null;index"`
	Day       string    `json:"day" gorm:"size:10;not null;uniqueIndex:idx_attendance_student_day"` // YYYY-MM-DD
}

// All lists every model for AutoMigrate.
func All() []any {
	return []any{&Admin{}, &Student{}, &Attendance{}}
}
