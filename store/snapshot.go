// store/snapshot.go
package store

import (
	"fmt"

	"initium-core/models"

	"gorm.io/gorm"
)

// Table names a managed table.
type Table string

const (
	TableUsers             Table = "users"
	TableHabits            Table = "habits"
	TableQuests            Table = "quests"
	TableProjects          Table = "projects"
	TableNotes             Table = "notes"
	TableEvents            Table = "events"
	TableTraining          Table = "training"
	TableTrainingTemplates Table = "training_templates"
	TableAnalytics         Table = "analytics"
	TableSettings          Table = "settings"
	TableFeedback          Table = "feedback"
)

// SyncTables is everything moved between the local store and a cloud account.
var SyncTables = []Table{
	TableUsers, TableHabits, TableQuests, TableProjects, TableNotes, TableEvents,
	TableTraining, TableTrainingTemplates, TableAnalytics, TableSettings, TableFeedback,
}

// BackupTables is the set carried by a backup file.
var BackupTables = []Table{
	TableQuests, TableHabits, TableNotes, TableEvents, TableProjects,
	TableTraining, TableAnalytics, TableFeedback,
}

// AllTables is every managed table; used by a factory reset.
var AllTables = SyncTables

// deviceLocalSettings never leave the device and survive a sync write-back.
var deviceLocalSettings = []string{models.SettingLastAutoSync}

// Snapshot is the full content of the managed tables. It is also the wire format exchanged with the
// cloud account service.
type Snapshot struct {
	Users             []models.User             `json:"users"`
	Habits            []models.Habit            `json:"habits"`
	Quests            []models.Quest            `json:"quests"`
	Projects          []models.Project          `json:"projects"`
	Notes             []models.Note             `json:"notes"`
	Events            []models.Event            `json:"events"`
	Training          []models.TrainingSession  `json:"training"`
	TrainingTemplates []models.TrainingTemplate `json:"training_templates"`
	Analytics         []models.AnalyticsDay     `json:"analytics"`
	Settings          []models.Setting          `json:"settings"`
	Feedback          []models.Feedback         `json:"feedback"`
}

// rows returns a pointer to the slice backing t.
func (s *Snapshot) rows(t Table) (any, error) {
	switch t {
	case TableUsers:
		return &s.Users, nil
	case TableHabits:
		return &s.Habits, nil
	case TableQuests:
		return &s.Quests, nil
	case TableProjects:
		return &s.Projects, nil
	case TableNotes:
		return &s.Notes, nil
	case TableEvents:
		return &s.Events, nil
	case TableTraining:
		return &s.Training, nil
	case TableTrainingTemplates:
		return &s.TrainingTemplates, nil
	case TableAnalytics:
		return &s.Analytics, nil
	case TableSettings:
		return &s.Settings, nil
	case TableFeedback:
		return &s.Feedback, nil
	}
	return nil, fmt.Errorf("store: unknown table %q", t)
}

// Len returns the number of rows held for t.
func (s *Snapshot) Len(t Table) int {
	switch t {
	case TableUsers:
		return len(s.Users)
	case TableHabits:
		return len(s.Habits)
	case TableQuests:
		return len(s.Quests)
	case TableProjects:
		return len(s.Projects)
	case TableNotes:
		return len(s.Notes)
	case TableEvents:
		return len(s.Events)
	case TableTraining:
		return len(s.Training)
	case TableTrainingTemplates:
		return len(s.TrainingTemplates)
	case TableAnalytics:
		return len(s.Analytics)
	case TableSettings:
		return len(s.Settings)
	case TableFeedback:
		return len(s.Feedback)
	}
	return 0
}

// Counts reports row counts per table.
func (s *Snapshot) Counts() map[Table]int {
	out := make(map[Table]int, len(SyncTables))
	for _, t := range SyncTables {
		out[t] = s.Len(t)
	}
	return out
}

// Total is the number of rows across every table.
func (s *Snapshot) Total() int {
	n := 0
	for _, c := range s.Counts() {
		n += c
	}
	return n
}

func model(t Table) (any, error) {
	switch t {
	case TableUsers:
		return &models.User{}, nil
	case TableHabits:
		return &models.Habit{}, nil
	case TableQuests:
		return &models.Quest{}, nil
	case TableProjects:
		return &models.Project{}, nil
	case TableNotes:
		return &models.Note{}, nil
	case TableEvents:
		return &models.Event{}, nil
	case TableTraining:
		return &models.TrainingSession{}, nil
	case TableTrainingTemplates:
		return &models.TrainingTemplate{}, nil
	case TableAnalytics:
		return &models.AnalyticsDay{}, nil
	case TableSettings:
		return &models.Setting{}, nil
	case TableFeedback:
		return &models.Feedback{}, nil
	}
	return nil, fmt.Errorf("store: unknown table %q", t)
}

// ReadSnapshot reads the given tables fully. Device-local settings are left out.
func ReadSnapshot(tx *gorm.DB, tables ...Table) (*Snapshot, error) {
	snap := &Snapshot{}
	for _, t := range tables {
		dest, err := snap.rows(t)
		if err != nil {
			return nil, err
		}
		q := tx.Order("id")
		if t == TableSettings {
			q = q.Where("id NOT IN ?", deviceLocalSettings)
		}
		if err := q.Find(dest).Error; err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", t, err)
		}
	}
	return snap, nil
}

// Clear deletes every row of the given tables, keeping device-local settings.
func Clear(tx *gorm.DB, tables ...Table) error {
	return clearTables(tx, false, tables...)
}

// ClearAll deletes every row of every managed table, device-local settings included.
func ClearAll(tx *gorm.DB) error {
	return clearTables(tx, true, AllTables...)
}

func clearTables(tx *gorm.DB, includeLocal bool, tables ...Table) error {
	for _, t := range tables {
		m, err := model(t)
		if err != nil {
			return err
		}
		q := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		if t == TableSettings && !includeLocal {
			q = q.Where("id NOT IN ?", deviceLocalSettings)
		}
		if err := q.Delete(m).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", t, err)
		}
	}
	return nil
}

// Insert bulk-inserts the snapshot rows of the given tables. Device-local settings in the snapshot
// are skipped.
func Insert(tx *gorm.DB, snap *Snapshot, tables ...Table) error {
	for _, t := range tables {
		if t == TableSettings {
			snap.Settings = withoutLocalSettings(snap.Settings)
		}
		if snap.Len(t) == 0 {
			continue
		}
		rows, err := snap.rows(t)
		if err != nil {
			return err
		}
		if err := tx.CreateInBatches(rows, 200).Error; err != nil {
			return fmt.Errorf("failed to insert %s: %w", t, err)
		}
	}
	return nil
}

// ReplaceSnapshot clears the given tables and inserts the snapshot content. Callers run it inside a
// transaction so the replacement is all-or-nothing.
func ReplaceSnapshot(tx *gorm.DB, snap *Snapshot, tables ...Table) error {
	if err := Clear(tx, tables...); err != nil {
		return err
	}
	return Insert(tx, snap, tables...)
}

func withoutLocalSettings(in []models.Setting) []models.Setting {
	out := in[:0:0]
	for _, s := range in {
		local := false
		for _, id := range deviceLocalSettings {
			if s.ID == id {
				local = true
				break
			}
		}
		if !local {
			out = append(out, s)
		}
	}
	return out
}
