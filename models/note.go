// models/note.go
package models

import "gorm.io/datatypes"

type Note struct {
	ID        string                      `gorm:"primaryKey" json:"id"`
	Title     string                      `json:"title"`
	SearchKey string                      `gorm:"index" json:"search_key"`
	Content   string                      `gorm:"type:text" json:"content"`
	Tags      datatypes.JSONSlice[string] `json:"tags"`

	Timestamps
}
