// models/training.go
package models

import (
	"time"

	"gorm.io/datatypes"
)

type TrainingStatus string

const (
	TrainingStatusScheduled TrainingStatus = "scheduled"
	TrainingStatusCompleted TrainingStatus = "completed"
)

// Recurrence selects how many weekly sessions a schedule request generates.
type Recurrence string

const (
	RecurrenceNone    Recurrence = "none"
	Recurrence4Weeks  Recurrence = "4weeks"
	Recurrence8Weeks  Recurrence = "8weeks"
	Recurrence12Weeks Recurrence = "12weeks"
)

// Exercise is one line of a training program.
type Exercise struct {
	Name   string  `json:"name"`
	Sets   int     `json:"sets,omitempty"`
	Reps   int     `json:"reps,omitempty"`
	Weight float64 `json:"weight,omitempty"`
}

// TrainingTemplate is a reusable program definition.
type TrainingTemplate struct {
	ID        string                        `gorm:"primaryKey" json:"id"`
	Title     string                        `gorm:"not null" json:"title"`
	Type      string                        `json:"type"`
	Duration  int                           `json:"duration"` // minutes
	Intensity string                        `json:"intensity"`
	Exercises datatypes.JSONSlice[Exercise] `json:"exercises"`
	Notes     string                        `gorm:"type:text" json:"notes"`

	Timestamps
}

// TrainingSession carries either ScheduleDate (scheduled) or Date (completed), never both.
type TrainingSession struct {
	ID              string                        `gorm:"primaryKey" json:"id"`
	TemplateID      *string                       `gorm:"index" json:"template_id,omitempty"`
	Title           string                        `gorm:"not null" json:"title"`
	Type            string                        `json:"type"`
	Duration        int                           `json:"duration"`
	Intensity       string                        `json:"intensity"`
	Exercises       datatypes.JSONSlice[Exercise] `json:"exercises"`
	Notes           string                        `gorm:"type:text" json:"notes"`
	Status          TrainingStatus                `gorm:"index;not null" json:"status"`
	ScheduleDate    *time.Time                    `gorm:"index" json:"schedule_date,omitempty"`
	Date            *time.Time                    `json:"date,omitempty"`
	XP              int64                         `json:"xp"`
	RecurrenceGroup *string                       `gorm:"index" json:"recurrence_group,omitempty"`

	Timestamps
}

func (TrainingSession) TableName() string { return "training" }
