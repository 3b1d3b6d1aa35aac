package services

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"initium-core/models"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBucket struct {
	key  string
	body []byte
}

func (b *fakeBucket) Put(_ context.Context, key string, body []byte, _ string) (string, error) {
	b.key, b.body = key, body
	return "https://cdn.example.test/" + key, nil
}

func seed(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()
	h := f.habit(t, 20)
	_, err := f.prog.CompleteHabit(ctx, "u1", h.ID)
	require.NoError(t, err)
	_, err = f.quests.CreateQuest(ctx, QuestInput{Title: "Write report"})
	require.NoError(t, err)
	_, err = f.quests.CreateNote(ctx, "Groceries", "eggs, milk", []string{"home"})
	require.NoError(t, err)
	_, err = f.training.ScheduleRecurring(ctx, legDay(), day0, models.Recurrence4Weeks)
	require.NoError(t, err)
	require.NoError(t, f.db.Create(&models.Feedback{ID: "fb1", Message: "love it", Rating: 5}).Error)
}

func TestBackupRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seed(t, f)

	exported, err := f.backups.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, BackupApp, exported.Meta.App)
	assert.Equal(t, BackupVersion, exported.Meta.Version)
	assert.Len(t, exported.Training, 4)

	var buf bytes.Buffer
	_, err = exported.WriteTo(&buf)
	require.NoError(t, err)

	require.NoError(t, f.backups.FactoryReset(ctx))
	empty, err := f.backups.Export(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty.Habits)
	assert.Empty(t, empty.Training)

	require.NoError(t, f.backups.Import(ctx, &buf))
	restored, err := f.backups.Export(ctx)
	require.NoError(t, err)

	opts := []cmp.Option{cmpopts.IgnoreFields(Backup{}, "Meta"), cmpopts.EquateEmpty()}
	if diff := cmp.Diff(exported, restored, opts...); diff != "" {
		t.Fatalf("restored backup differs (-want +got):\n%s", diff)
	}
}

func TestImportRejectsWrongMarker(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seed(t, f)

	before, err := f.backups.Export(ctx)
	require.NoError(t, err)

	for _, doc := range []string{
		`{"meta":{"app":"OTHER","version":1},"habits":[]}`,
		`{"habits":[]}`,
		`not json`,
	} {
		err := f.backups.Import(ctx, strings.NewReader(doc))
		assert.ErrorIs(t, err, ErrImportFormatInvalid, doc)
	}

	after, err := f.backups.Export(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(before, after, cmpopts.IgnoreFields(Backup{}, "Meta"), cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("store changed after rejected import (-want +got):\n%s", diff)
	}
}

func TestImportKeepsUserAndSettings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.prog.AwardXP(ctx, "u1", 60, "test")
	require.NoError(t, err)
	require.NoError(t, f.settings.ChangeTheme(ctx, "warm"))

	doc := `{"meta":{"app":"INITIUM","version":1,"date":"2025-03-01T00:00:00Z"},
		"habits":[{"id":"h1","title":"Stretch","xp_per_completion":10,"streak":3,"best_streak":7}]}`
	require.NoError(t, f.backups.Import(ctx, strings.NewReader(doc)))

	h, err := f.habits.Get(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, 7, h.BestStreak)
	assert.EqualValues(t, 60, f.user(t).XP)
	theme, err := f.settings.Theme(ctx)
	require.NoError(t, err)
	assert.Equal(t, "warm", theme)
}

func TestFactoryResetClearsEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seed(t, f)
	require.NoError(t, f.settings.Set(ctx, models.SettingLastAutoSync, "1"))

	require.NoError(t, f.backups.FactoryReset(ctx))

	for _, m := range []any{&models.User{}, &models.Habit{}, &models.TrainingSession{}, &models.Setting{}, &models.AnalyticsDay{}} {
		var n int64
		require.NoError(t, f.db.Model(m).Count(&n).Error)
		assert.Zero(t, n, "%T", m)
	}
}

func TestUpload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.backups.Upload(ctx, "u1")
	assert.ErrorIs(t, err, ErrValidation)

	bucket := &fakeBucket{}
	f.backups.Bucket = bucket
	url, err := f.backups.Upload(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "backups/u1/initium-backup-2025-03-10.json", bucket.key)
	assert.Equal(t, "https://cdn.example.test/"+bucket.key, url)

	parsed, err := ParseBackup(bytes.NewReader(bucket.body))
	require.NoError(t, err)
	assert.Equal(t, BackupApp, parsed.Meta.App)
}
