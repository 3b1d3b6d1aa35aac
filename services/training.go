package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"initium-core/models"
	"initium-core/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultSessionXP is awarded for a scheduled session that carries no XP of its own.
const DefaultSessionXP = 50

// RecurrenceCount maps a recurrence to the number of weekly sessions it generates.
func RecurrenceCount(r models.Recurrence) (int, error) {
	switch r {
	case "", models.RecurrenceNone:
		return 1, nil
	case models.Recurrence4Weeks:
		return 4, nil
	case models.Recurrence8Weeks:
		return 8, nil
	case models.Recurrence12Weeks:
		return 12, nil
	}
	return 0, validationf("unknown recurrence %q", r)
}

// SessionXP is round(duration * 1.5).
func SessionXP(duration int) int64 {
	return int64(math.Round(float64(duration) * 1.5))
}

// TrainingResult is returned by operations that award XP.
type TrainingResult struct {
	Session      models.TrainingSession `json:"session"`
	User         models.User            `json:"user"`
	LevelsGained int                    `json:"levels_gained"`
}

type TrainingService struct {
	DB          *gorm.DB
	Progression *ProgressionService

	log *zap.Logger
}

func NewTrainingService(db *gorm.DB, progression *ProgressionService, log *zap.Logger) *TrainingService {
	if log == nil {
		log = zap.NewNop()
	}
	return &TrainingService{DB: db, Progression: progression, log: log}
}

func validateTemplate(t *models.TrainingTemplate) error {
	t.Title = utils.NormalizeTitle(t.Title)
	if t.Title == "" {
		return validationf("training title is required")
	}
	if t.Duration < 0 {
		return validationf("training duration must not be negative")
	}
	return nil
}

func sessionFromTemplate(t models.TrainingTemplate) models.TrainingSession {
	s := models.TrainingSession{
		ID:        uuid.NewString(),
		Title:     t.Title,
		Type:      t.Type,
		Duration:  t.Duration,
		Intensity: t.Intensity,
		Exercises: t.Exercises,
		Notes:     t.Notes,
		XP:        SessionXP(t.Duration),
	}
	if t.ID != "" {
		id := t.ID
		s.TemplateID = &id
	}
	return s
}

// ScheduleRecurring creates one scheduled session per week starting at start, inserted
// atomically. Every session after the first carries the batch's recurrence group.
func (s *TrainingService) ScheduleRecurring(ctx context.Context, tmpl models.TrainingTemplate, start time.Time, rec models.Recurrence) ([]models.TrainingSession, error) {
	count, err := RecurrenceCount(rec)
	if err != nil {
		return nil, err
	}
	if err := validateTemplate(&tmpl); err != nil {
		return nil, err
	}
	if start.IsZero() {
		return nil, validationf("schedule date is required")
	}

	var group *string
	if count > 1 {
		g := fmt.Sprintf("group-%d", s.Progression.Clock.Now().UnixMilli())
		group = &g
	}

	sessions := make([]models.TrainingSession, count)
	for i := range sessions {
		at := start.AddDate(0, 0, 7*i)
		sess := sessionFromTemplate(tmpl)
		sess.Status = models.TrainingStatusScheduled
		sess.ScheduleDate = &at
		if i > 0 {
			sess.RecurrenceGroup = group
		}
		sessions[i] = sess
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&sessions).Error
	})
	if err != nil {
		return nil, storageErr(err)
	}

	s.log.Info("📅 [TRAINING] scheduled sessions",
		zap.String("title", tmpl.Title), zap.String("recurrence", string(rec)), zap.Int("count", count))
	return sessions, nil
}

// StartNow records a session completed right now and awards its XP in one transaction.
func (s *TrainingService) StartNow(ctx context.Context, userID string, tmpl models.TrainingTemplate) (*TrainingResult, error) {
	if err := validateTemplate(&tmpl); err != nil {
		return nil, err
	}

	var out TrainingResult
	err := s.Progression.Transaction(ctx, func(tx *gorm.DB) error {
		now := s.Progression.now()
		sess := sessionFromTemplate(tmpl)
		sess.Status = models.TrainingStatusCompleted
		sess.Date = &now
		if err := tx.Create(&sess).Error; err != nil {
			return err
		}
		u, levels, err := s.Progression.AwardInTx(tx, userID, sess.XP, "training")
		if err != nil {
			return err
		}
		out = TrainingResult{Session: sess, User: *u, LevelsGained: levels}
		return nil
	})
	if err != nil {
		return nil, storageErr(err)
	}
	s.Progression.observeAward(out.Session.XP, out.LevelsGained)
	return &out, nil
}

// CompleteScheduled marks a scheduled session completed now and awards its XP (or 50 when unset).
func (s *TrainingService) CompleteScheduled(ctx context.Context, userID, sessionID string) (*TrainingResult, error) {
	var out TrainingResult
	var awarded int64
	err := s.Progression.Transaction(ctx, func(tx *gorm.DB) error {
		var sess models.TrainingSession
		if err := tx.Where("id = ?", sessionID).First(&sess).Error; err != nil {
			return err
		}
		if sess.Status == models.TrainingStatusCompleted {
			return validationf("session %s is already completed", sessionID)
		}

		now := s.Progression.now()
		sess.Status = models.TrainingStatusCompleted
		sess.Date = &now
		sess.ScheduleDate = nil
		if err := tx.Save(&sess).Error; err != nil {
			return err
		}

		awarded = sess.XP
		if awarded <= 0 {
			awarded = DefaultSessionXP
		}
		u, levels, err := s.Progression.AwardInTx(tx, userID, awarded, "training")
		if err != nil {
			return err
		}
		out = TrainingResult{Session: sess, User: *u, LevelsGained: levels}
		return nil
	})
	if err != nil {
		return nil, storageErr(err)
	}
	s.Progression.observeAward(awarded, out.LevelsGained)
	return &out, nil
}

// List returns sessions filtered by status (all when empty): scheduled ones by upcoming date,
// completed ones most recent first.
func (s *TrainingService) List(ctx context.Context, status models.TrainingStatus) ([]models.TrainingSession, error) {
	q := s.DB.WithContext(ctx)
	switch status {
	case models.TrainingStatusScheduled:
		q = q.Where("status = ?", status).Order("schedule_date ASC")
	case models.TrainingStatusCompleted:
		q = q.Where("status = ?", status).Order("date DESC")
	case "":
		q = q.Order("created_at ASC")
	default:
		return nil, validationf("unknown status %q", status)
	}
	var sessions []models.TrainingSession
	if err := q.Find(&sessions).Error; err != nil {
		return nil, storageErr(err)
	}
	return sessions, nil
}

func (s *TrainingService) Delete(ctx context.Context, id string) error {
	res := s.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.TrainingSession{})
	if res.Error != nil {
		return storageErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: session %s", ErrNotFound, id)
	}
	return nil
}

func (s *TrainingService) CreateTemplate(ctx context.Context, tmpl models.TrainingTemplate) (*models.TrainingTemplate, error) {
	if err := validateTemplate(&tmpl); err != nil {
		return nil, err
	}
	tmpl.ID = uuid.NewString()
	if err := s.DB.WithContext(ctx).Create(&tmpl).Error; err != nil {
		return nil, storageErr(err)
	}
	return &tmpl, nil
}

func (s *TrainingService) GetTemplate(ctx context.Context, id string) (*models.TrainingTemplate, error) {
	var t models.TrainingTemplate
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, storageErr(err)
	}
	return &t, nil
}

func (s *TrainingService) ListTemplates(ctx context.Context) ([]models.TrainingTemplate, error) {
	var out []models.TrainingTemplate
	if err := s.DB.WithContext(ctx).Order("title ASC").Find(&out).Error; err != nil {
		return nil, storageErr(err)
	}
	return out, nil
}
