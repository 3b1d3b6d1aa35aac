package services

import (
	"context"
	"testing"

	"initium-core/models"
	"initium-core/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newCloud(t *testing.T) *CloudAccountService {
	t.Helper()
	st, err := store.Open(store.Config{DataDir: t.TempDir(), Migrate: MigrateCloud})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return NewCloudAccountService(st.DB, zaptest.NewLogger(t))
}

func TestCloudPushReplacesAccount(t *testing.T) {
	cloud := newCloud(t)
	ctx := context.Background()

	first := &store.Snapshot{
		Users:  []models.User{models.NewUser("u1", "Ada")},
		Habits: []models.Habit{{ID: "h1", Title: "Read"}, {ID: "h2", Title: "Run"}},
	}
	got, err := cloud.Push(ctx, "u1", first)
	require.NoError(t, err)
	assert.Len(t, got.Habits, 2)
	assert.Len(t, got.Users, 1)

	// Last sync wins: rows missing from the second push are gone.
	second := &store.Snapshot{Habits: []models.Habit{{ID: "h2", Title: "Run 5k", Streak: 3}}}
	got, err = cloud.Push(ctx, "u1", second)
	require.NoError(t, err)
	require.Len(t, got.Habits, 1)
	assert.Equal(t, "Run 5k", got.Habits[0].Title)
	assert.Equal(t, 3, got.Habits[0].Streak)
	assert.Empty(t, got.Users)

	// Accounts are isolated.
	other, err := cloud.Snapshot(ctx, "u2")
	require.NoError(t, err)
	assert.Zero(t, other.Total())
}

func TestCloudMigrateDeduplicates(t *testing.T) {
	cloud := newCloud(t)
	ctx := context.Background()

	snap := &store.Snapshot{
		Quests: []models.Quest{{ID: "q1", Title: "Ship", XPReward: 50}},
		Notes:  []models.Note{{ID: "n1", Title: "Idea"}},
	}
	n, err := cloud.Migrate(ctx, "u1", snap)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	snap.Quests[0].Title = "Ship v2"
	n, err = cloud.Migrate(ctx, "u1", snap)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := cloud.Snapshot(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got.Quests, 1)
	assert.Equal(t, "Ship v2", got.Quests[0].Title)
	assert.Len(t, got.Notes, 1)
}

func TestCloudRejectsRowsWithoutID(t *testing.T) {
	cloud := newCloud(t)
	_, err := cloud.Push(context.Background(), "u1", &store.Snapshot{Habits: []models.Habit{{Title: "no id"}}})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = cloud.Push(context.Background(), "", &store.Snapshot{})
	assert.ErrorIs(t, err, ErrValidation)
}
