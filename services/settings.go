package services

import (
	"context"
	"errors"

	"initium-core/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Themes accepted by ChangeTheme.
var Themes = []string{"cosmic", "professional", "minimal", "warm", "ocean", "neon"}

type SettingsService struct {
	DB *gorm.DB
}

func NewSettingsService(db *gorm.DB) *SettingsService {
	return &SettingsService{DB: db}
}

// Get returns the value stored under key; ok is false when the row does not exist.
func (s *SettingsService) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	var row models.Setting
	err = s.DB.WithContext(ctx).Where("id = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, storageErr(err)
	}
	return row.Value, true, nil
}

// Set upserts key = value.
func (s *SettingsService) Set(ctx context.Context, key, value string) error {
	return storageErr(setSettingTx(s.DB.WithContext(ctx), key, value))
}

func setSettingTx(tx *gorm.DB, key, value string) error {
	row := models.Setting{ID: key, Value: value}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
}

// ChangeTheme persists the theme row.
func (s *SettingsService) ChangeTheme(ctx context.Context, theme string) error {
	for _, t := range Themes {
		if t == theme {
			return s.Set(ctx, models.SettingTheme, theme)
		}
	}
	return validationf("unknown theme %q", theme)
}

// Theme returns the stored theme or the default one.
func (s *SettingsService) Theme(ctx context.Context) (string, error) {
	v, ok, err := s.Get(ctx, models.SettingTheme)
	if err != nil || !ok {
		return Themes[0], err
	}
	return v, nil
}
