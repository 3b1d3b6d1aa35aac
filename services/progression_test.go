package services

import (
	"context"
	"math"
	"testing"
	"time"

	"initium-core/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextThreshold(t *testing.T) {
	cases := map[int64]int64{
		100: 150,
		150: 225,
		225: 337,
		1:   2,
		0:   1,
	}
	for in, want := range cases {
		assert.Equal(t, want, NextThreshold(in), "NextThreshold(%d)", in)
	}
}

func TestApplyXPPolicies(t *testing.T) {
	t.Run("cascade", func(t *testing.T) {
		u := models.NewUser("u", "")
		gained := ApplyXP(&u, 150, LevelPolicyCascade, day0)
		assert.Equal(t, 2, gained)
		assert.Equal(t, 3, u.Level)
		assert.EqualValues(t, 150, u.XP)
		assert.EqualValues(t, 225, u.XPToNextLevel)
		require.NotNil(t, u.LastLevelUpAt)
		assert.True(t, u.LastLevelUpAt.Equal(day0))
	})

	t.Run("single step", func(t *testing.T) {
		u := models.NewUser("u", "")
		gained := ApplyXP(&u, 150, LevelPolicySingleStep, day0)
		assert.Equal(t, 1, gained)
		assert.Equal(t, 2, u.Level)
		assert.EqualValues(t, 150, u.XP)
		assert.EqualValues(t, 150, u.XPToNextLevel)
	})

	t.Run("below threshold", func(t *testing.T) {
		u := models.NewUser("u", "")
		assert.Zero(t, ApplyXP(&u, 99, LevelPolicyCascade, day0))
		assert.Equal(t, 1, u.Level)
		assert.Nil(t, u.LastLevelUpAt)
	})
}

func TestParseLevelPolicy(t *testing.T) {
	p, err := ParseLevelPolicy("")
	require.NoError(t, err)
	assert.Equal(t, LevelPolicyCascade, p)

	p, err = ParseLevelPolicy("single")
	require.NoError(t, err)
	assert.Equal(t, LevelPolicySingleStep, p)

	_, err = ParseLevelPolicy("double")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestValidateXPAmount(t *testing.T) {
	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), -1, 2.5, math.MaxInt32 + 1} {
		_, err := ValidateXPAmount(bad)
		assert.ErrorIs(t, err, ErrValidation, "amount %v", bad)
	}
	n, err := ValidateXPAmount(40)
	require.NoError(t, err)
	assert.EqualValues(t, 40, n)

	n, err = ValidateXPAmount(math.MaxInt32)
	require.NoError(t, err, "upper bound is inclusive")
	assert.EqualValues(t, math.MaxInt32, n)
}

func TestAwardXPIsMonotonic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	prev := f.user(t)
	for _, amount := range []float64{0, 10, 90, 1, 500, 0, 37} {
		u, err := f.prog.AwardXP(ctx, "u1", amount, "test")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, u.XP, prev.XP)
		assert.GreaterOrEqual(t, u.Level, prev.Level)
		assert.GreaterOrEqual(t, u.XPToNextLevel, prev.XPToNextLevel)
		assert.Less(t, u.XP, u.XPToNextLevel)
		prev = u
	}
	assert.EqualValues(t, 638, prev.XP)
}

func TestAwardXPRejectsInvalidWithoutMutation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.prog.AwardXP(ctx, "u1", -5, "test")
	require.ErrorIs(t, err, ErrValidation)
	_, err = f.prog.AwardXP(ctx, "u1", math.NaN(), "test")
	require.ErrorIs(t, err, ErrValidation)

	u := f.user(t)
	assert.Zero(t, u.XP)
	assert.Equal(t, 1, u.Level)

	day, err := f.prog.Today(ctx)
	require.NoError(t, err)
	assert.Zero(t, day.XPEarned)
}

func TestAwardXPUnknownUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.prog.AwardXP(context.Background(), "nobody", 10, "test")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAwardXPSinglePolicyPersists(t *testing.T) {
	f := newFixture(t)
	f.prog.Policy = LevelPolicySingleStep

	u, err := f.prog.AwardXP(context.Background(), "u1", 150, "test")
	require.NoError(t, err)
	assert.Equal(t, 2, u.Level)

	stored := f.user(t)
	assert.Equal(t, 2, stored.Level)
	assert.EqualValues(t, 150, stored.XPToNextLevel)
}

func TestAwardXPBucketsByDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.prog.AwardXP(ctx, "u1", 10, "test")
	require.NoError(t, err)
	f.clock.Advance(3 * time.Hour)
	_, err = f.prog.AwardXP(ctx, "u1", 15, "test")
	require.NoError(t, err)

	day, err := f.prog.Today(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 25, day.XPEarned)

	// Next calendar day starts a new bucket.
	f.clock.Advance(24 * time.Hour)
	_, err = f.prog.AwardXP(ctx, "u1", 5, "test")
	require.NoError(t, err)
	day, err = f.prog.Today(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 5, day.XPEarned)

	var count int64
	require.NoError(t, f.db.Model(&models.AnalyticsDay{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestEnsureUserIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.prog.AwardXP(ctx, "u1", 40, "test")
	require.NoError(t, err)
	u, err := f.prog.EnsureUser(ctx, "u1", "Other")
	require.NoError(t, err)
	assert.EqualValues(t, 40, u.XP)
	assert.Equal(t, "Ada", u.Name)
}

func TestToggleFavorite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.prog.ToggleFavorite(ctx, "u1", "/habits")
	require.NoError(t, err)
	assert.True(t, u.HasFavorite("/habits"))

	u, err = f.prog.ToggleFavorite(ctx, "u1", "/habits")
	require.NoError(t, err)
	assert.False(t, u.HasFavorite("/habits"))

	_, err = f.prog.ToggleFavorite(ctx, "u1", "")
	assert.ErrorIs(t, err, ErrValidation)
}
