package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"initium-core/models"

	"go.uber.org/zap"
)

// Optimistic runs a speculative update: apply mutates in-memory state immediately, persist performs
// the durable write, and on failure reload restores the in-memory state from the store.
func Optimistic(apply func(), persist func() error, reload func() error) error {
	apply()
	err := persist()
	if err == nil {
		return nil
	}
	if rerr := reload(); rerr != nil {
		return errors.Join(storageErr(err), fmt.Errorf("reload after failed write: %w", rerr))
	}
	return storageErr(err)
}

// AppState is the in-memory view a UI renders from: the signed-in user aggregate and the habit list.
// Mutations go through Optimistic so readers see the speculative value at once and the stored value
// after a failed write.
type AppState struct {
	Progression *ProgressionService
	Habits      *HabitService

	mu     sync.RWMutex
	userID string
	user   models.User
	habits []models.Habit
	log    *zap.Logger
}

func NewAppState(progression *ProgressionService, habits *HabitService, log *zap.Logger) *AppState {
	if log == nil {
		log = zap.NewNop()
	}
	return &AppState{Progression: progression, Habits: habits, log: log}
}

// Load replaces the view with the stored state of userID, creating the aggregate if needed.
func (a *AppState) Load(ctx context.Context, userID string) error {
	u, err := a.Progression.EnsureUser(ctx, userID, "")
	if err != nil {
		return err
	}
	habits, err := a.Habits.List(ctx)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.userID, a.user, a.habits = userID, *u, habits
	a.mu.Unlock()
	return nil
}

// Reload refreshes the view for the current user.
func (a *AppState) Reload(ctx context.Context) error {
	a.mu.RLock()
	id := a.userID
	a.mu.RUnlock()
	if id == "" {
		return nil
	}
	return a.Load(ctx, id)
}

func (a *AppState) User() models.User {
	a.mu.RLock()
	defer a.mu.RUnlock()
	u := a.user
	u.Favorites = append(u.Favorites[:0:0], a.user.Favorites...)
	return u
}

func (a *AppState) HabitList() []models.Habit {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]models.Habit(nil), a.habits...)
}

// CurrentUserID is the id of the loaded user.
func (a *AppState) CurrentUserID() (string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.userID == "" {
		return "", fmt.Errorf("%w: no user loaded", ErrNotFound)
	}
	return a.userID, nil
}

// CompleteHabit rejects a same-day completion from the view, then applies the streak and XP
// speculatively while the transaction runs.
func (a *AppState) CompleteHabit(ctx context.Context, habitID string) (*HabitCompletion, error) {
	userID, err := a.CurrentUserID()
	if err != nil {
		return nil, err
	}

	a.mu.RLock()
	idx := -1
	for i := range a.habits {
		if a.habits[i].ID == habitID {
			idx = i
			break
		}
	}
	var current models.Habit
	if idx >= 0 {
		current = a.habits[idx]
	}
	a.mu.RUnlock()

	now := a.Progression.now()
	if idx >= 0 {
		if _, err := NextStreak(&current, now, a.Progression.Location); err != nil {
			return nil, err
		}
	}

	var result *HabitCompletion
	err = Optimistic(
		func() {
			if idx < 0 {
				return
			}
			a.mu.Lock()
			defer a.mu.Unlock()
			if idx >= len(a.habits) || a.habits[idx].ID != habitID {
				return
			}
			h := &a.habits[idx]
			streak, _ := NextStreak(h, now, a.Progression.Location)
			h.Streak = streak
			if streak > h.BestStreak {
				h.BestStreak = streak
			}
			h.LastCompleted = &now
			xp := h.XPPerCompletion
			if xp <= 0 {
				xp = models.DefaultHabitXP
			}
			ApplyXP(&a.user, xp, a.Progression.Policy, now)
		},
		func() error {
			var err error
			result, err = a.Progression.CompleteHabit(ctx, userID, habitID)
			return err
		},
		func() error {
			a.log.Warn("↩️  [STATE] habit completion failed, reloading view", zap.String("habit_id", habitID))
			return a.Reload(ctx)
		},
	)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.user = result.User
	for i := range a.habits {
		if a.habits[i].ID == habitID {
			a.habits[i] = result.Habit
		}
	}
	a.mu.Unlock()
	return result, nil
}

// ToggleFavorite flips target in the view and persists it, rolling back on failure.
func (a *AppState) ToggleFavorite(ctx context.Context, target string) (*models.User, error) {
	userID, err := a.CurrentUserID()
	if err != nil {
		return nil, err
	}

	var stored *models.User
	err = Optimistic(
		func() {
			a.mu.Lock()
			a.user.Favorites = toggle(a.user.Favorites, target)
			a.mu.Unlock()
		},
		func() error {
			var err error
			stored, err = a.Progression.ToggleFavorite(ctx, userID, target)
			return err
		},
		func() error { return a.Reload(ctx) },
	)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.user = *stored
	a.mu.Unlock()
	return stored, nil
}
