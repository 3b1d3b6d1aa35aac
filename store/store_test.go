package store

import (
	"testing"

	"initium-core/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	st, err := Open(Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestOpenLocksDataFile(t *testing.T) {
	dir := t.TempDir()
	first, err := Open(Config{DataDir: dir})
	require.NoError(t, err)

	_, err = Open(Config{DataDir: dir})
	require.ErrorIs(t, err, ErrLocked)

	require.NoError(t, first.Close())
	again, err := Open(Config{DataDir: dir})
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func TestReplaceSnapshotKeepsDeviceLocalSettings(t *testing.T) {
	st := openTest(t)
	db := st.DB

	require.NoError(t, db.Create(&[]models.Setting{
		{ID: models.SettingTheme, Value: "warm"},
		{ID: models.SettingLastAutoSync, Value: "42"},
	}).Error)
	require.NoError(t, db.Create(&models.Habit{ID: "old", Title: "Old"}).Error)

	snap, err := ReadSnapshot(db, SyncTables...)
	require.NoError(t, err)
	require.Len(t, snap.Settings, 1)
	assert.Equal(t, models.SettingTheme, snap.Settings[0].ID)

	incoming := &Snapshot{
		Habits: []models.Habit{{ID: "new", Title: "New"}},
		Settings: []models.Setting{
			{ID: models.SettingTheme, Value: "neon"},
			{ID: models.SettingLastAutoSync, Value: "7"},
		},
	}
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return ReplaceSnapshot(tx, incoming, SyncTables...)
	}))

	var habits []models.Habit
	require.NoError(t, db.Find(&habits).Error)
	require.Len(t, habits, 1)
	assert.Equal(t, "new", habits[0].ID)

	var marker models.Setting
	require.NoError(t, db.Where("id = ?", models.SettingLastAutoSync).First(&marker).Error)
	assert.Equal(t, "42", marker.Value)
	var theme models.Setting
	require.NoError(t, db.Where("id = ?", models.SettingTheme).First(&theme).Error)
	assert.Equal(t, "neon", theme.Value)
}

func TestReplaceSnapshotIsAtomic(t *testing.T) {
	st := openTest(t)
	db := st.DB
	require.NoError(t, db.Create(&models.Habit{ID: "keep", Title: "Keep"}).Error)

	// Duplicate primary keys make the insert fail after the clear.
	bad := &Snapshot{Habits: []models.Habit{{ID: "dup", Title: "A"}, {ID: "dup", Title: "B"}}}
	err := db.Transaction(func(tx *gorm.DB) error {
		return ReplaceSnapshot(tx, bad, TableHabits)
	})
	require.Error(t, err)

	var habits []models.Habit
	require.NoError(t, db.Find(&habits).Error)
	require.Len(t, habits, 1)
	assert.Equal(t, "keep", habits[0].ID)
}

func TestClearAllRemovesEverything(t *testing.T) {
	st := openTest(t)
	db := st.DB
	u := models.NewUser("u1", "")
	require.NoError(t, db.Create(&u).Error)
	require.NoError(t, db.Create(&models.Setting{ID: models.SettingLastAutoSync, Value: "1"}).Error)

	require.NoError(t, db.Transaction(ClearAll))

	snap, err := ReadSnapshot(db, AllTables...)
	require.NoError(t, err)
	assert.Zero(t, snap.Total())
	var n int64
	require.NoError(t, db.Model(&models.Setting{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestSnapshotCounts(t *testing.T) {
	snap := &Snapshot{
		Habits: make([]models.Habit, 2),
		Notes:  make([]models.Note, 3),
	}
	assert.Equal(t, 5, snap.Total())
	assert.Equal(t, 2, snap.Counts()[TableHabits])
	assert.Equal(t, 0, snap.Len(TableUsers))
}
