package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"initium-core/metrics"
	"initium-core/models"
	"initium-core/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// HabitCompletion is the outcome of a successful completion.
type HabitCompletion struct {
	Habit        models.Habit `json:"habit"`
	User         models.User  `json:"user"`
	LevelsGained int          `json:"levels_gained"`
}

// DaysBetween counts calendar days from earlier to later in loc. Negative when earlier is after later.
func DaysBetween(later, earlier time.Time, loc *time.Location) int {
	a, b := later.In(loc), earlier.In(loc)
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(da.Sub(db).Hours() / 24)
}

// NextStreak computes the streak after completing h at now:
//
//	never completed  -> 1
//	same day         -> ErrAlreadyCompletedToday
//	previous day     -> streak + 1
//	gap or anomaly   -> 1
func NextStreak(h *models.Habit, now time.Time, loc *time.Location) (int, error) {
	if h.LastCompleted == nil {
		return 1, nil
	}
	switch d := DaysBetween(now, *h.LastCompleted, loc); {
	case d == 0:
		return h.Streak, ErrAlreadyCompletedToday
	case d == 1:
		return h.Streak + 1, nil
	default:
		return 1, nil
	}
}

// CompleteHabit advances the habit streak and awards its XP in a single transaction.
func (s *ProgressionService) CompleteHabit(ctx context.Context, userID, habitID string) (*HabitCompletion, error) {
	var out HabitCompletion
	var gained int
	var awarded int64
	err := s.Transaction(ctx, func(tx *gorm.DB) error {
		var h models.Habit
		if err := tx.Where("id = ?", habitID).First(&h).Error; err != nil {
			return err
		}

		now := s.now()
		streak, err := NextStreak(&h, now, s.Location)
		if err != nil {
			return err
		}
		h.Streak = streak
		if h.Streak > h.BestStreak {
			h.BestStreak = h.Streak
		}
		h.LastCompleted = &now
		h.CompletedDates = append(h.CompletedDates, now.Format(time.DateOnly))
		if err := tx.Save(&h).Error; err != nil {
			return err
		}

		xp := h.XPPerCompletion
		if xp <= 0 {
			xp = models.DefaultHabitXP
		}
		u, levels, err := s.AwardInTx(tx, userID, xp, "habit")
		if err != nil {
			return err
		}
		if err := s.bumpDayInTx(tx, now, func(d *models.AnalyticsDay) { d.HabitsCompleted++ }); err != nil {
			return err
		}

		out = HabitCompletion{Habit: h, User: *u, LevelsGained: levels}
		gained, awarded = levels, xp
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyCompletedToday) {
			metrics.HabitCompletionsTotal.WithLabelValues("already_completed").Inc()
			s.log.Info("ℹ️  [HABIT] already completed today", zap.String("habit_id", habitID))
			return nil, err
		}
		metrics.HabitCompletionsTotal.WithLabelValues("failed").Inc()
		return nil, storageErr(err)
	}

	metrics.HabitCompletionsTotal.WithLabelValues("ok").Inc()
	s.observeAward(awarded, gained)
	s.log.Info("🔥 [HABIT] completed",
		zap.String("habit_id", habitID),
		zap.Int("streak", out.Habit.Streak),
		zap.Int("best_streak", out.Habit.BestStreak))
	return &out, nil
}

// HabitInput carries the user-editable habit fields.
type HabitInput struct {
	Title           string                `json:"title"`
	Category        string                `json:"category"`
	Frequency       models.HabitFrequency `json:"frequency"`
	TargetPerWeek   int                   `json:"target_per_week"`
	XPPerCompletion int64                 `json:"xp_per_completion"`
	ProjectID       *string               `json:"project_id"`
	QuestID         *string               `json:"quest_id"`
}

type HabitService struct {
	DB *gorm.DB
}

func NewHabitService(db *gorm.DB) *HabitService {
	return &HabitService{DB: db}
}

func (s *HabitService) Create(ctx context.Context, in HabitInput) (*models.Habit, error) {
	title := utils.NormalizeTitle(in.Title)
	if title == "" {
		return nil, validationf("habit title is required")
	}
	if in.XPPerCompletion < 0 {
		return nil, validationf("xp_per_completion must not be negative")
	}
	freq := in.Frequency
	switch freq {
	case "":
		freq = models.HabitFrequencyDaily
	case models.HabitFrequencyDaily, models.HabitFrequencyWeekly:
	default:
		return nil, validationf("unknown frequency %q", freq)
	}
	xp := in.XPPerCompletion
	if xp == 0 {
		xp = models.DefaultHabitXP
	}
	target := in.TargetPerWeek
	if target <= 0 {
		target = 7
	}

	h := models.Habit{
		ID:              uuid.NewString(),
		Title:           title,
		Slug:            utils.Slugify(title),
		SearchKey:       utils.SearchKey(title),
		Category:        in.Category,
		Frequency:       freq,
		TargetPerWeek:   target,
		XPPerCompletion: xp,
		CompletedDates:  datatypes.JSONSlice[string]{},
		ProjectID:       in.ProjectID,
		QuestID:         in.QuestID,
	}
	if err := s.DB.WithContext(ctx).Create(&h).Error; err != nil {
		return nil, storageErr(err)
	}
	return &h, nil
}

func (s *HabitService) List(ctx context.Context) ([]models.Habit, error) {
	var habits []models.Habit
	if err := s.DB.WithContext(ctx).Order("created_at ASC").Find(&habits).Error; err != nil {
		return nil, storageErr(err)
	}
	return habits, nil
}

func (s *HabitService) Get(ctx context.Context, id string) (*models.Habit, error) {
	var h models.Habit
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&h).Error; err != nil {
		return nil, storageErr(err)
	}
	return &h, nil
}

func (s *HabitService) Delete(ctx context.Context, id string) error {
	res := s.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.Habit{})
	if res.Error != nil {
		return storageErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: habit %s", ErrNotFound, id)
	}
	return nil
}
