package services

import (
	"context"

	"invest-tournament-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AchievementService struct {
	DB *gorm.DB
}

func NewAchievementService(db *gorm.DB) *AchievementService {
	return &AchievementService{DB: db}
}

// SeedCatalog upserts the static achievement definitions.
func (s *AchievementService) SeedCatalog(ctx context.Context) error {
	catalog := make([]models.AchievementType, len(models.AchievementCatalog))
	copy(catalog, models.AchievementCatalog)
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "description", "rarity", "threshold"}),
	}).Create(&catalog).Error
}

// meetsThreshold reports whether every counter named in req has reached its value.
// Unknown counters never match.
func meetsThreshold(stats *models.InvestorStats, req map[string]int64) bool {
	if len(req) == 0 {
		return false
	}
	for key, required := range req {
		have, ok := stats.Counter(key)
		if !ok || have < required {
			return false
		}
	}
	return true
}

// bumpStats applies counter increments for a user inside tx and returns the new row.
func bumpStats(tx *gorm.DB, userID string, updates map[string]any) (*models.InvestorStats, error) {
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&models.InvestorStats{UserID: userID}).Error; err != nil {
		return nil, err
	}
	if len(updates) > 0 {
		if err := tx.Model(&models.InvestorStats{}).Where("user_id = ?", userID).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	var stats models.InvestorStats
	if err := tx.Where("user_id = ?", userID).First(&stats).Error; err != nil {
		return nil, err
	}
	return &stats, nil
}

// awardAchievements grants every catalog entry the stats now satisfy and returns the
// ones that were newly awarded.
func awardAchievements(tx *gorm.DB, stats *models.InvestorStats, tournamentID *string) ([]models.AchievementType, error) {
	var awarded []models.AchievementType
	for _, a := range models.AchievementCatalog {
		if !meetsThreshold(stats, a.Threshold.Data()) {
			continue
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.UserAchievement{
			UserID:       stats.UserID,
			Code:         a.Code,
			TournamentID: tournamentID,
		})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 1 {
			awarded = append(awarded, a)
			logrus.WithFields(logrus.Fields{"user_id": stats.UserID, "code": a.Code}).Info("🎖️ [ACHIEVEMENT] Awarded")
		}
	}
	return awarded, nil
}

// GetUserAchievementsEndpoint lists a user's achievements with their definitions.
func (s *AchievementService) GetUserAchievementsEndpoint(c *fiber.Ctx) error {
	userID := c.Params("user_id")
	achievements, err := s.ForUser(c.Context(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(achievements)
}

// UserAchievementView is an awarded achievement joined with its definition.
type UserAchievementView struct {
	models.UserAchievement
	Name        string `json:"name"`
	Description string `json:"description"`
	Rarity      string `json:"rarity"`
}

func (s *AchievementService) ForUser(ctx context.Context, userID string) ([]UserAchievementView, error) {
	var rows []UserAchievementView
	err := s.DB.WithContext(ctx).Table("user_achievements AS ua").
		Select("ua.*, at.name, at.description, at.rarity").
		Joins("JOIN achievement_types AS at ON at.code = ua.code").
		Where("ua.user_id = ?", userID).
		Order("ua.awarded_at ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, wrapDB(err, "achievements")
	}
	return rows, nil
}
