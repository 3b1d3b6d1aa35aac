package services

import (
	"context"
	"testing"
	"time"

	"initium-core/models"
	"initium-core/store"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

var day0 = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	db       *gorm.DB
	clock    *clockwork.FakeClock
	prog     *ProgressionService
	habits   *HabitService
	training *TrainingService
	quests   *QuestService
	settings *SettingsService
	backups  *BackupService
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	st, err := store.Open(store.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st.DB
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	log := zaptest.NewLogger(t)
	clock := clockwork.NewFakeClockAt(day0)

	prog := NewProgressionService(db, log)
	prog.Clock = clock
	prog.Location = time.UTC

	backups := NewBackupService(db, nil, log)
	backups.Clock = clock

	f := &fixture{
		db:       db,
		clock:    clock,
		prog:     prog,
		habits:   NewHabitService(db),
		training: NewTrainingService(db, prog, log),
		quests:   NewQuestService(db, prog, log),
		settings: NewSettingsService(db),
		backups:  backups,
	}
	_, err := prog.EnsureUser(context.Background(), "u1", "Ada")
	require.NoError(t, err)
	return f
}

func (f *fixture) user(t *testing.T) *models.User {
	t.Helper()
	u, err := f.prog.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	return u
}

func (f *fixture) habit(t *testing.T, xp int64) *models.Habit {
	t.Helper()
	h, err := f.habits.Create(context.Background(), HabitInput{Title: "Read 20 pages", XPPerCompletion: xp})
	require.NoError(t, err)
	return h
}
