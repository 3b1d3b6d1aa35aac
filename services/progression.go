package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"initium-core/metrics"
	"initium-core/models"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LevelPolicy decides how many level-ups a single award may trigger.
type LevelPolicy string

const (
	// LevelPolicyCascade keeps levelling up while XP is at or above the threshold.
	LevelPolicyCascade LevelPolicy = "cascade"
	// LevelPolicySingleStep applies at most one level-up per award.
	LevelPolicySingleStep LevelPolicy = "single"
)

// ParseLevelPolicy accepts "cascade" (or empty) and "single".
func ParseLevelPolicy(s string) (LevelPolicy, error) {
	switch LevelPolicy(s) {
	case "", LevelPolicyCascade:
		return LevelPolicyCascade, nil
	case LevelPolicySingleStep:
		return LevelPolicySingleStep, nil
	}
	return "", validationf("unknown level policy %q", s)
}

// LevelGrowth is the geometric growth of the level-up threshold.
const LevelGrowth = 1.5

// NextThreshold returns floor(threshold * 1.5), always strictly above threshold.
func NextThreshold(threshold int64) int64 {
	next := int64(math.Floor(float64(threshold) * LevelGrowth))
	if next <= threshold {
		next = threshold + 1
	}
	return next
}

// ApplyXP adds amount to u and applies level-ups per policy. It returns the number of levels gained.
func ApplyXP(u *models.User, amount int64, policy LevelPolicy, now time.Time) int {
	if u.Level < 1 {
		u.Level = 1
	}
	if u.XPToNextLevel <= 0 {
		u.XPToNextLevel = 100
	}
	u.XP += amount

	gained := 0
	for u.XP >= u.XPToNextLevel {
		u.Level++
		u.XPToNextLevel = NextThreshold(u.XPToNextLevel)
		gained++
		if policy == LevelPolicySingleStep {
			break
		}
	}
	if gained > 0 {
		at := now
		u.LastLevelUpAt = &at
	}
	return gained
}

// ValidateXPAmount accepts finite, non-negative, whole amounts.
func ValidateXPAmount(amount float64) (int64, error) {
	switch {
	case math.IsNaN(amount):
		return 0, validationf("xp amount is NaN")
	case math.IsInf(amount, 0):
		return 0, validationf("xp amount is infinite")
	case amount < 0:
		return 0, validationf("xp amount %v is negative", amount)
	case amount != math.Trunc(amount):
		return 0, validationf("xp amount %v is not a whole number", amount)
	case amount > math.MaxInt32:
		return 0, validationf("xp amount %v is too large", amount)
	}
	return int64(amount), nil
}

type ProgressionService struct {
	DB       *gorm.DB
	Policy   LevelPolicy
	Clock    clockwork.Clock
	Location *time.Location

	log *zap.Logger
	// mu linearizes read-modify-write cycles on the user aggregate.
	mu sync.Mutex
}

func NewProgressionService(db *gorm.DB, log *zap.Logger) *ProgressionService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProgressionService{
		DB:       db,
		Policy:   LevelPolicyCascade,
		Clock:    clockwork.NewRealClock(),
		Location: time.Local,
		log:      log,
	}
}

func (s *ProgressionService) now() time.Time {
	return s.Clock.Now().In(s.Location)
}

// StartOfDay truncates t to midnight in the service location.
func (s *ProgressionService) StartOfDay(t time.Time) time.Time {
	t = t.In(s.Location)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.Location)
}

// Transaction runs fn in one store transaction while holding the progression lock, so XP awards
// made through AwardInTx commit atomically with the caller's own writes.
func (s *ProgressionService) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.DB.WithContext(ctx).Transaction(fn)
}

// EnsureUser returns the aggregate for userID, creating it at level 1 when missing (idempotent).
func (s *ProgressionService) EnsureUser(ctx context.Context, userID, name string) (*models.User, error) {
	if userID == "" {
		return nil, validationf("user id is required")
	}
	var u models.User
	err := s.DB.WithContext(ctx).Where("id = ?", userID).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		u = models.NewUser(userID, name)
		if err := s.DB.WithContext(ctx).Create(&u).Error; err != nil {
			return nil, storageErr(err)
		}
		s.log.Info("👤 [XP] created user aggregate", zap.String("user_id", userID))
		return &u, nil
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return &u, nil
}

// GetUser loads the aggregate for userID.
func (s *ProgressionService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var u models.User
	if err := s.DB.WithContext(ctx).Where("id = ?", userID).First(&u).Error; err != nil {
		return nil, storageErr(err)
	}
	return &u, nil
}

// AwardXP validates amount, applies it to the user aggregate and upserts today's analytics bucket,
// all in one transaction. Invalid amounts are logged and rejected without any mutation.
func (s *ProgressionService) AwardXP(ctx context.Context, userID string, amount float64, source string) (*models.User, error) {
	xp, err := ValidateXPAmount(amount)
	if err != nil {
		s.log.Warn("🚫 [XP] rejected award",
			zap.String("user_id", userID), zap.Float64("amount", amount), zap.String("source", source), zap.Error(err))
		return nil, err
	}

	var updated *models.User
	var gained int
	err = s.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		updated, gained, err = s.AwardInTx(tx, userID, xp, source)
		return err
	})
	if err != nil {
		return nil, storageErr(err)
	}
	s.observeAward(xp, gained)
	return updated, nil
}

// AwardInTx applies amount inside tx. Callers must hold the progression lock (see Transaction)
// and report the returned level count through observeAward once the transaction commits.
func (s *ProgressionService) AwardInTx(tx *gorm.DB, userID string, amount int64, source string) (*models.User, int, error) {
	if amount < 0 {
		return nil, 0, validationf("xp amount %d is negative", amount)
	}
	var u models.User
	if err := tx.Where("id = ?", userID).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, fmt.Errorf("%w: user %s", ErrNotFound, userID)
		}
		return nil, 0, err
	}

	now := s.now()
	gained := ApplyXP(&u, amount, s.Policy, now)
	if err := tx.Save(&u).Error; err != nil {
		return nil, 0, err
	}

	if err := s.bumpDayInTx(tx, now, func(d *models.AnalyticsDay) { d.XPEarned += amount }); err != nil {
		return nil, 0, err
	}

	s.log.Info("🎮 [XP] awarded",
		zap.String("user_id", userID),
		zap.Int64("amount", amount),
		zap.String("source", source),
		zap.Int64("xp", u.XP),
		zap.Int("level", u.Level),
		zap.Int64("xp_to_next_level", u.XPToNextLevel),
		zap.Int("levels_gained", gained))
	return &u, gained, nil
}

func (s *ProgressionService) observeAward(amount int64, levels int) {
	metrics.XPAwardedTotal.Add(float64(amount))
	if levels > 0 {
		metrics.LevelUpsTotal.Add(float64(levels))
	}
}

// bumpDayInTx finds today's bucket by the half-open [startOfDay, startOfDay+24h) range, creating it
// when absent, and applies mutate.
func (s *ProgressionService) bumpDayInTx(tx *gorm.DB, now time.Time, mutate func(*models.AnalyticsDay)) error {
	start := s.StartOfDay(now)
	end := start.Add(24 * time.Hour)

	var day models.AnalyticsDay
	err := tx.Where("date >= ? AND date < ?", start, end).First(&day).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		day = models.AnalyticsDay{ID: uuid.NewString(), Date: start}
		mutate(&day)
		return tx.Create(&day).Error
	case err != nil:
		return err
	}
	mutate(&day)
	return tx.Save(&day).Error
}

// Today returns today's analytics bucket, or a zero bucket when nothing was recorded yet.
func (s *ProgressionService) Today(ctx context.Context) (*models.AnalyticsDay, error) {
	start := s.StartOfDay(s.now())
	var day models.AnalyticsDay
	err := s.DB.WithContext(ctx).Where("date >= ? AND date < ?", start, start.Add(24*time.Hour)).First(&day).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.AnalyticsDay{Date: start}, nil
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return &day, nil
}

// ToggleFavorite pins or unpins a navigation target.
func (s *ProgressionService) ToggleFavorite(ctx context.Context, userID, target string) (*models.User, error) {
	if target == "" {
		return nil, validationf("favorite target is required")
	}
	var u models.User
	err := s.Transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", userID).First(&u).Error; err != nil {
			return err
		}
		u.Favorites = toggle(u.Favorites, target)
		return tx.Save(&u).Error
	})
	if err != nil {
		return nil, storageErr(err)
	}
	return &u, nil
}

func toggle(set []string, target string) []string {
	out := make([]string, 0, len(set)+1)
	found := false
	for _, v := range set {
		if v == target {
			found = true
			continue
		}
		out = append(out, v)
	}
	if !found {
		out = append(out, target)
	}
	return out
}
