package services

import (
	"context"
	"time"

	"initium-core/models"
	"initium-core/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DefaultQuestXP is awarded for a quest that carries no reward of its own.
const DefaultQuestXP = 50

// QuestResult is returned by CompleteQuest.
type QuestResult struct {
	Quest        models.Quest `json:"quest"`
	User         models.User  `json:"user"`
	LevelsGained int          `json:"levels_gained"`
}

// QuestService covers quests plus the projects and notes that group them.
type QuestService struct {
	DB          *gorm.DB
	Progression *ProgressionService

	log *zap.Logger
}

func NewQuestService(db *gorm.DB, progression *ProgressionService, log *zap.Logger) *QuestService {
	if log == nil {
		log = zap.NewNop()
	}
	return &QuestService{DB: db, Progression: progression, log: log}
}

type QuestInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	XPReward    int64      `json:"xp_reward"`
	Deadline    *time.Time `json:"deadline"`
	ProjectID   *string    `json:"project_id"`
}

func (s *QuestService) CreateQuest(ctx context.Context, in QuestInput) (*models.Quest, error) {
	title := utils.NormalizeTitle(in.Title)
	if title == "" {
		return nil, validationf("quest title is required")
	}
	if in.XPReward < 0 {
		return nil, validationf("xp_reward must not be negative")
	}
	q := models.Quest{
		ID:          uuid.NewString(),
		Title:       title,
		Slug:        utils.Slugify(title),
		SearchKey:   utils.SearchKey(title),
		Description: in.Description,
		Status:      models.QuestStatusTodo,
		Priority:    in.Priority,
		XPReward:    in.XPReward,
		Deadline:    in.Deadline,
		ProjectID:   in.ProjectID,
	}
	if q.Priority == "" {
		q.Priority = "medium"
	}
	if q.XPReward == 0 {
		q.XPReward = DefaultQuestXP
	}
	if err := s.DB.WithContext(ctx).Create(&q).Error; err != nil {
		return nil, storageErr(err)
	}
	return &q, nil
}

// CompleteQuest closes the quest, counts it in today's bucket and awards its reward atomically.
func (s *QuestService) CompleteQuest(ctx context.Context, userID, questID string) (*QuestResult, error) {
	var out QuestResult
	err := s.Progression.Transaction(ctx, func(tx *gorm.DB) error {
		var q models.Quest
		if err := tx.Where("id = ?", questID).First(&q).Error; err != nil {
			return err
		}
		if q.Status == models.QuestStatusCompleted {
			return validationf("quest %s is already completed", questID)
		}

		now := s.Progression.now()
		q.Status = models.QuestStatusCompleted
		q.CompletedAt = &now
		if err := tx.Save(&q).Error; err != nil {
			return err
		}

		u, levels, err := s.Progression.AwardInTx(tx, userID, q.XPReward, "quest")
		if err != nil {
			return err
		}
		if err := s.Progression.bumpDayInTx(tx, now, func(d *models.AnalyticsDay) { d.QuestsCompleted++ }); err != nil {
			return err
		}
		out = QuestResult{Quest: q, User: *u, LevelsGained: levels}
		return nil
	})
	if err != nil {
		return nil, storageErr(err)
	}
	s.Progression.observeAward(out.Quest.XPReward, out.LevelsGained)
	s.log.Info("🏁 [QUEST] completed", zap.String("quest_id", questID), zap.Int64("xp", out.Quest.XPReward))
	return &out, nil
}

func (s *QuestService) ListQuests(ctx context.Context, status models.QuestStatus) ([]models.Quest, error) {
	q := s.DB.WithContext(ctx).Order("created_at ASC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var quests []models.Quest
	if err := q.Find(&quests).Error; err != nil {
		return nil, storageErr(err)
	}
	return quests, nil
}

func (s *QuestService) CreateProject(ctx context.Context, title, description, color string) (*models.Project, error) {
	title = utils.NormalizeTitle(title)
	if title == "" {
		return nil, validationf("project title is required")
	}
	p := models.Project{
		ID:          uuid.NewString(),
		Title:       title,
		Slug:        utils.Slugify(title),
		SearchKey:   utils.SearchKey(title),
		Description: description,
		Color:       color,
	}
	if err := s.DB.WithContext(ctx).Create(&p).Error; err != nil {
		return nil, storageErr(err)
	}
	return &p, nil
}

func (s *QuestService) CreateNote(ctx context.Context, title, content string, tags []string) (*models.Note, error) {
	title = utils.NormalizeTitle(title)
	if title == "" && content == "" {
		return nil, validationf("note is empty")
	}
	if tags == nil {
		tags = []string{}
	}
	n := models.Note{
		ID:        uuid.NewString(),
		Title:     title,
		SearchKey: utils.SearchKey(title + " " + content),
		Content:   content,
		Tags:      datatypes.JSONSlice[string](tags),
	}
	if err := s.DB.WithContext(ctx).Create(&n).Error; err != nil {
		return nil, storageErr(err)
	}
	return &n, nil
}

// SearchResult groups matches by table.
type SearchResult struct {
	Habits   []models.Habit   `json:"habits"`
	Quests   []models.Quest   `json:"quests"`
	Projects []models.Project `json:"projects"`
	Notes    []models.Note    `json:"notes"`
}

// Search matches the accent-folded query against every searchable table.
func (s *QuestService) Search(ctx context.Context, query string, limit int) (*SearchResult, error) {
	key := utils.SearchKey(query)
	if key == "" {
		return nil, validationf("search query is empty")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	like := "%" + key + "%"
	db := s.DB.WithContext(ctx)

	var out SearchResult
	if err := db.Where("search_key LIKE ?", like).Limit(limit).Find(&out.Habits).Error; err != nil {
		return nil, storageErr(err)
	}
	if err := db.Where("search_key LIKE ?", like).Limit(limit).Find(&out.Quests).Error; err != nil {
		return nil, storageErr(err)
	}
	if err := db.Where("search_key LIKE ?", like).Limit(limit).Find(&out.Projects).Error; err != nil {
		return nil, storageErr(err)
	}
	if err := db.Where("search_key LIKE ?", like).Limit(limit).Find(&out.Notes).Error; err != nil {
		return nil, storageErr(err)
	}
	return &out, nil
}
