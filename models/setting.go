// models/setting.go
package models

// Well-known settings rows
const (
	SettingTheme            = "theme"
	SettingLastAutoSync     = "last_auto_sync"
	SettingAppearance       = "appearance"
	SettingDashboardWidgets = "dashboard_widgets"
)

// Setting is a key/value row; ID is the key.
type Setting struct {
	ID    string `gorm:"primaryKey" json:"id"`
	Value string `gorm:"type:text" json:"value"`

	Timestamps
}
