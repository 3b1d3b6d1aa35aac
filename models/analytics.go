// models/analytics.go
package models

import "time"

// AnalyticsDay is the per-calendar-day bucket. Date is truncated to local midnight.
type AnalyticsDay struct {
	ID              string    `gorm:"primaryKey" json:"id"`
	Date            time.Time `gorm:"uniqueIndex;not null" json:"date"`
	XPEarned        int64     `gorm:"not null;default:0" json:"xp_earned"`
	HabitsCompleted int       `gorm:"not null;default:0" json:"habits_completed"`
	QuestsCompleted int       `gorm:"not null;default:0" json:"quests_completed"`
}

func (AnalyticsDay) TableName() string { return "analytics" }
