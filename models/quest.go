// models/quest.go
package models

import "time"

type QuestStatus string

const (
	QuestStatusTodo       QuestStatus = "todo"
	QuestStatusInProgress QuestStatus = "in_progress"
	QuestStatusCompleted  QuestStatus = "completed"
)

type Quest struct {
	ID          string      `gorm:"primaryKey" json:"id"`
	Title       string      `gorm:"not null" json:"title"`
	Slug        string      `gorm:"index" json:"slug"`
	SearchKey   string      `gorm:"index" json:"search_key"`
	Description string      `gorm:"type:text" json:"description"`
	Status      QuestStatus `gorm:"index;default:'todo'" json:"status"`
	Priority    string      `gorm:"default:'medium'" json:"priority"`
	XPReward    int64       `gorm:"default:50" json:"xp_reward"`
	Deadline    *time.Time  `json:"deadline,omitempty"`
	ProjectID   *string     `gorm:"index" json:"project_id,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`

	Timestamps
}
