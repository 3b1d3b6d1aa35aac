// models/feedback.go
package models

import "time"

type Feedback struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Message   string    `gorm:"type:text" json:"message"`
	Rating    int       `json:"rating"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Feedback) TableName() string { return "feedback" }
