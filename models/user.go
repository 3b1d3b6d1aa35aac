// models/user.go
package models

import (
	"time"

	"gorm.io/datatypes"
)

// GuestUserID is the reserved id of the local-only guest persona.
const GuestUserID = "guest"

// User is the player aggregate. XP is cumulative; XPToNextLevel is the absolute XP total that
// triggers the next level-up.
type User struct {
	ID      string `gorm:"primaryKey" json:"id"`
	Name    string `json:"name"`
	IsGuest bool   `gorm:"default:false" json:"is_guest"`

	// Core progression
	XP            int64 `gorm:"not null;default:0" json:"xp"`
	Level         int   `gorm:"not null;default:1" json:"level"`
	XPToNextLevel int64 `gorm:"not null;default:100" json:"xp_to_next_level"`

	// Navigation targets pinned by the user, e.g. "habits", "training"
	Favorites datatypes.JSONSlice[string] `json:"favorites"`

	LastLevelUpAt *time.Time `json:"last_level_up_at,omitempty"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// NewUser returns a fresh aggregate at level 1.
func NewUser(id, name string) User {
	return User{
		ID:            id,
		Name:          name,
		IsGuest:       id == GuestUserID,
		Level:         1,
		XPToNextLevel: 100,
		Favorites:     datatypes.JSONSlice[string]{},
	}
}

// HasFavorite reports whether target is pinned.
func (u User) HasFavorite(target string) bool {
	for _, f := range u.Favorites {
		if f == target {
			return true
		}
	}
	return false
}
