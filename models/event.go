// models/event.go
package models

import "time"

type Event struct {
	ID    string     `gorm:"primaryKey" json:"id"`
	Title string     `gorm:"not null" json:"title"`
	Kind  string     `json:"kind"`
	Start time.Time  `gorm:"index" json:"start"`
	End   *time.Time `json:"end,omitempty"`

	Timestamps
}
