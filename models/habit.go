// models/habit.go
package models

import (
	"time"

	"gorm.io/datatypes"
)

type HabitFrequency string

const (
	HabitFrequencyDaily  HabitFrequency = "daily"
	HabitFrequencyWeekly HabitFrequency = "weekly"
)

// DefaultHabitXP is awarded per completion when a habit does not set its own reward.
const DefaultHabitXP = 25

type Habit struct {
	ID              string         `gorm:"primaryKey" json:"id"`
	Title           string         `gorm:"not null" json:"title"`
	Slug            string         `gorm:"index" json:"slug"`
	SearchKey       string         `gorm:"index" json:"search_key"`
	Category        string         `json:"category"`
	Frequency       HabitFrequency `gorm:"default:'daily'" json:"frequency"`
	TargetPerWeek   int            `gorm:"default:7" json:"target_per_week"`
	XPPerCompletion int64          `gorm:"default:25" json:"xp_per_completion"`

	// Streak state, mutated only by a completion
	Streak         int                         `gorm:"not null;default:0" json:"streak"`
	BestStreak     int                         `gorm:"not null;default:0" json:"best_streak"`
	LastCompleted  *time.Time                  `json:"last_completed,omitempty"`
	CompletedDates datatypes.JSONSlice[string] `json:"completed_dates"`

	ProjectID *string `gorm:"index" json:"project_id,omitempty"`
	QuestID   *string `gorm:"index" json:"quest_id,omitempty"`

	Timestamps
}
