// models/project.go
package models

type Project struct {
	ID          string `gorm:"primaryKey" json:"id"`
	Title       string `gorm:"not null" json:"title"`
	Slug        string `gorm:"index" json:"slug"`
	SearchKey   string `gorm:"index" json:"search_key"`
	Description string `gorm:"type:text" json:"description"`
	Color       string `json:"color"`

	Timestamps
}
