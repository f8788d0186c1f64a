package services

import (
	"context"
	"slices"
	"strings"
	"time"

	"invest-tournament-system/config"
	"invest-tournament-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EligibilityService maintains the per-author reading aggregates and evaluates payout
// eligibility from them.
type EligibilityService struct {
	DB  *gorm.DB
	Cfg config.EligibilityConfig
	now func() time.Time
}

func NewEligibilityService(db *gorm.DB, cfg config.EligibilityConfig) *EligibilityService {
	return &EligibilityService{DB: db, Cfg: cfg, now: time.Now}
}

// SessionInput is a reading session reported by the client.
type SessionInput struct {
	ArticleID        string    `json:"article_id"`
	AuthorID         string    `json:"author_id"`
	ReaderID         string    `json:"reader_id"`
	StartedAt        time.Time `json:"started_at"`
	EndedAt          time.Time `json:"ended_at"`
	ScrollPercentage float64   `json:"scroll_percentage"`
}

func (in *SessionInput) validate() error {
	if in.ArticleID == "" || in.AuthorID == "" || in.ReaderID == "" {
		return Validation("article_id, author_id and reader_id are required")
	}
	if in.ReaderID == in.AuthorID {
		return Validation("authors cannot read their own articles for eligibility")
	}
	if in.StartedAt.IsZero() || in.EndedAt.IsZero() {
		return Validation("started_at and ended_at are required (RFC3339)")
	}
	if in.EndedAt.Before(in.StartedAt) {
		return Validation("ended_at must not be before started_at")
	}
	if in.ScrollPercentage < 0 || in.ScrollPercentage > 100 {
		return Validation("scroll_percentage must be within 0-100")
	}
	return nil
}

// RecordSession stores a session and folds it into the author's reader aggregate and,
// when the article is registered, its read count, in the same transaction. Sessions never
// register articles: publication dates come only from RecordPublication.
func (s *EligibilityService) RecordSession(ctx context.Context, in SessionInput) (*models.ReadingSession, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	complete := IsCompleteRead(in.ScrollPercentage, s.Cfg)
	session := models.ReadingSession{
		ID:               uuid.NewString(),
		ArticleID:        in.ArticleID,
		AuthorID:         in.AuthorID,
		ReaderID:         in.ReaderID,
		StartedAt:        in.StartedAt,
		EndedAt:          in.EndedAt,
		DurationSeconds:  int(in.EndedAt.Sub(in.StartedAt).Seconds()),
		ScrollPercentage: in.ScrollPercentage,
		IsComplete:       complete,
	}
	completeInc := 0
	if complete {
		completeInc = 1
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&session).Error; err != nil {
			return err
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "author_id"}, {Name: "reader_id"}},
			DoUpdates: clause.Set{
				{Column: clause.Column{Name: "last_read_at"}, Value: gorm.Expr("GREATEST(author_readers.last_read_at, EXCLUDED.last_read_at)")},
				{Column: clause.Column{Name: "read_count"}, Value: gorm.Expr("author_readers.read_count + 1")},
				{Column: clause.Column{Name: "complete_reads"}, Value: gorm.Expr("author_readers.complete_reads + ?", completeInc)},
			},
		}).Create(&models.AuthorReader{
			AuthorID:      in.AuthorID,
			ReaderID:      in.ReaderID,
			LastReadAt:    in.EndedAt,
			ReadCount:     1,
			CompleteReads: completeInc,
		}).Error; err != nil {
			return err
		}
		return tx.Model(&models.AuthorArticle{}).
			Where("author_id = ? AND article_id = ?", in.AuthorID, in.ArticleID).
			Update("total_reads", gorm.Expr("total_reads + 1")).Error
	})
	if err != nil {
		return nil, Transient(err, "failed to record reading session")
	}
	return &session, nil
}

// RecordPublication registers an article as published by authorID.
func (s *EligibilityService) RecordPublication(ctx context.Context, authorID, articleID string, publishedAt time.Time) (*models.AuthorArticle, error) {
	if authorID == "" || articleID == "" {
		return nil, Validation("author_id and article_id are required")
	}
	now := s.now()
	if publishedAt.IsZero() {
		publishedAt = now
	}
	if publishedAt.After(now) {
		return nil, Validation("published_at cannot be in the future")
	}
	article := models.AuthorArticle{AuthorID: authorID, ArticleID: articleID, PublishedAt: publishedAt}
	if err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "author_id"}, {Name: "article_id"}},
		DoUpdates: clause.Set{
			{Column: clause.Column{Name: "published_at"}, Value: gorm.Expr("LEAST(author_articles.published_at, EXCLUDED.published_at)")},
		},
	}).Create(&article).Error; err != nil {
		return nil, Transient(err, "failed to record article")
	}
	return &article, nil
}

// Activity counts the windowed inputs of one author from the aggregate tables.
func (s *EligibilityService) Activity(ctx context.Context, authorID string, now time.Time) (AuthorActivity, error) {
	var a AuthorActivity
	db := s.DB.WithContext(ctx)

	var articles int64
	if err := db.Model(&models.AuthorArticle{}).
		Where("author_id = ? AND published_at >= ?", authorID, now.AddDate(0, 0, -s.Cfg.ArticleWindowDays)).
		Count(&articles).Error; err != nil {
		return a, Transient(err, "failed to count articles")
	}
	var readers int64
	if err := db.Model(&models.AuthorReader{}).
		Where("author_id = ? AND last_read_at >= ?", authorID, now.AddDate(0, 0, -s.Cfg.ReaderWindowDays)).
		Count(&readers).Error; err != nil {
		return a, Transient(err, "failed to count readers")
	}
	var violations int64
	if err := db.Model(&models.AuthorViolation{}).
		Where("author_id = ? AND active = ?", authorID, true).
		Count(&violations).Error; err != nil {
		return a, Transient(err, "failed to count violations")
	}
	var wallet models.TokenWallet
	if err := db.Where("user_id = ?", authorID).Limit(1).Find(&wallet).Error; err != nil {
		return a, Transient(err, "failed to load wallet")
	}

	a.ArticlesInWindow = int(articles)
	a.UniqueReadersInWindow = int(readers)
	a.ActiveViolations = int(violations)
	a.WalletConfigured = wallet.ID != "" && wallet.Configured()
	return a, nil
}

// Evaluate scores authorID now and stores the result.
func (s *EligibilityService) Evaluate(ctx context.Context, authorID string) (*models.AuthorEligibility, error) {
	now := s.now()
	activity, err := s.Activity(ctx, authorID, now)
	if err != nil {
		return nil, err
	}
	result := EvaluateEligibility(authorID, activity, s.Cfg, now)
	if err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "author_id"}},
		UpdateAll: true,
	}).Create(&result).Error; err != nil {
		return nil, Transient(err, "failed to store eligibility")
	}
	return &result, nil
}

// EvaluateAll re-scores every author with any recorded article or reader.
func (s *EligibilityService) EvaluateAll(ctx context.Context) (evaluated, eligible int, err error) {
	var authors []string
	if err := s.DB.WithContext(ctx).Raw(
		"SELECT author_id FROM author_articles UNION SELECT author_id FROM author_readers",
	).Scan(&authors).Error; err != nil {
		return 0, 0, Transient(err, "failed to list authors")
	}
	for _, id := range authors {
		if ctx.Err() != nil {
			return evaluated, eligible, ctx.Err()
		}
		res, err := s.Evaluate(ctx, id)
		if err != nil {
			logrus.WithError(err).WithField("author_id", id).Warn("⚠️ [ELIGIBILITY] Evaluation failed")
			continue
		}
		evaluated++
		if res.IsEligible {
			eligible++
		}
	}
	logrus.WithFields(logrus.Fields{"evaluated": evaluated, "eligible": eligible}).Info("✅ [ELIGIBILITY] Daily evaluation finished")
	return evaluated, eligible, nil
}

func callerIsAdmin(c *fiber.Ctx) bool {
	roles, _ := c.Locals("user_roles").([]string)
	return slices.Contains(roles, "admin")
}

// sessionReader is the reader a session is recorded for. Only admins may record a
// session on behalf of another user.
func sessionReader(caller string, admin bool, requested string) (string, error) {
	if requested == "" || requested == caller {
		return caller, nil
	}
	if !admin {
		return "", Forbidden("reading sessions can only be recorded for yourself")
	}
	return requested, nil
}

// canPublishFor reports whether caller may register articles for authorID.
func canPublishFor(caller string, admin bool, authorID string) bool {
	return admin || (caller != "" && caller == authorID)
}

// RecordSessionEndpoint handles POST /reading/sessions. The reader is the caller.
func (s *EligibilityService) RecordSessionEndpoint(c *fiber.Ctx) error {
	var in SessionInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
	}
	caller, _ := c.Locals("user_id").(string)
	reader, err := sessionReader(caller, callerIsAdmin(c), in.ReaderID)
	if err != nil {
		return respondError(c, err)
	}
	in.ReaderID = reader
	session, err := s.RecordSession(c.Context(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(session)
}

// RecordArticleEndpoint handles POST /authors/:author_id/articles for the author
// themselves or an admin.
func (s *EligibilityService) RecordArticleEndpoint(c *fiber.Ctx) error {
	caller, _ := c.Locals("user_id").(string)
	if !canPublishFor(caller, callerIsAdmin(c), c.Params("author_id")) {
		return respondError(c, Forbidden("articles can only be registered by their author"))
	}
	var req struct {
		ArticleID   string    `json:"article_id"`
		PublishedAt time.Time `json:"published_at"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
	}
	article, err := s.RecordPublication(c.Context(), c.Params("author_id"), req.ArticleID, req.PublishedAt)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(article)
}

// GetEligibilityEndpoint returns the stored evaluation, evaluating on first request.
func (s *EligibilityService) GetEligibilityEndpoint(c *fiber.Ctx) error {
	authorID := c.Params("author_id")
	var stored models.AuthorEligibility
	if err := s.DB.WithContext(c.Context()).Where("author_id = ?", authorID).Limit(1).Find(&stored).Error; err != nil {
		return respondError(c, wrapDB(err, "eligibility"))
	}
	if stored.AuthorID != "" {
		return c.JSON(stored)
	}
	res, err := s.Evaluate(c.Context(), authorID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

// EvaluateEndpoint forces a fresh evaluation.
func (s *EligibilityService) EvaluateEndpoint(c *fiber.Ctx) error {
	res, err := s.Evaluate(c.Context(), c.Params("author_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

// CreateViolationEndpoint records an active violation against an author (admin).
func (s *EligibilityService) CreateViolationEndpoint(c *fiber.Ctx) error {
	var req struct {
		Kind        string `json:"kind"`
		Description string `json:"description"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if strings.TrimSpace(req.Kind) == "" {
		return respondError(c, Validation("kind is required"))
	}
	v := models.AuthorViolation{
		ID:          uuid.NewString(),
		AuthorID:    c.Params("author_id"),
		Kind:        req.Kind,
		Description: req.Description,
		Active:      true,
	}
	if err := s.DB.WithContext(c.Context()).Create(&v).Error; err != nil {
		return respondError(c, Transient(err, "failed to record violation"))
	}
	logrus.WithFields(logrus.Fields{"author_id": v.AuthorID, "kind": v.Kind}).Warn("🚩 [ELIGIBILITY] Violation recorded")
	return c.Status(201).JSON(v)
}

// ResolveViolationEndpoint deactivates a violation (admin).
func (s *EligibilityService) ResolveViolationEndpoint(c *fiber.Ctx) error {
	now := s.now()
	res := s.DB.WithContext(c.Context()).Model(&models.AuthorViolation{}).
		Where("id = ? AND author_id = ? AND active = ?", c.Params("violation_id"), c.Params("author_id"), true).
		Updates(map[string]any{"active": false, "resolved_at": now})
	if res.Error != nil {
		return respondError(c, Transient(res.Error, "failed to resolve violation"))
	}
	if res.RowsAffected == 0 {
		return respondError(c, NotFound("active violation not found"))
	}
	return c.SendStatus(fiber.StatusNoContent)
}
