package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"invest-tournament-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type FriendService struct {
	DB *gorm.DB
	now func() time.Time
}

func NewFriendService(db *gorm.DB) *FriendService {
	return &FriendService{DB: db, now: time.Now}
}

// UserSummary is the public view of a user in search results and friend lists.
type UserSummary struct {
	ExternalUserID string     `json:"user_id"`
	Username       string     `json:"username"`
	DisplayName    string     `json:"display_name"`
	AvatarURL      *string    `json:"avatar_url,omitempty"`
	Bio            *string    `json:"bio,omitempty"`
	FriendsSince   *time.Time `json:"friendship_date,omitempty"`
}

func summarize(u models.UserProfile) UserSummary {
	return UserSummary{
		ExternalUserID: u.ExternalUserID,
		Username:       u.Username,
		DisplayName:    u.Name(),
		AvatarURL:      u.AvatarURL,
		Bio:            u.Bio,
	}
}

// Search finds users by username or display name, accent- and script-insensitively.
func (s *FriendService) Search(ctx context.Context, query, exclude string, limit int) ([]UserSummary, error) {
	db := s.DB.WithContext(ctx).Model(&models.UserProfile{}).Limit(limit).Order("username ASC")
	if q := strings.TrimSpace(query); q != "" {
		term := "%" + models.SearchKeyFor(q) + "%"
		db = db.Where("search_key LIKE ? OR LOWER(username) LIKE ?", term, "%"+strings.ToLower(q)+"%")
	}
	if exclude != "" {
		db = db.Where("external_user_id <> ?", exclude)
	}
	var users []models.UserProfile
	if err := db.Find(&users).Error; err != nil {
		return nil, Transient(err, "search failed")
	}
	res := make([]UserSummary, len(users))
	for i, u := range users {
		res[i] = summarize(u)
	}
	return res, nil
}

// SearchUsersEndpoint handles GET /users/search?q=.
func (s *FriendService) SearchUsersEndpoint(c *fiber.Ctx) error {
	limit, err := strconv.Atoi(c.Query("limit", "20"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 20
	}
	userID, _ := c.Locals("user_id").(string)
	res, err := s.Search(c.Context(), c.Query("q"), userID, limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

func (s *FriendService) areFriends(tx *gorm.DB, a, b string) (bool, error) {
	var n int64
	err := tx.Model(&models.Friendship{}).Where("user_id = ? AND friend_id = ?", a, b).Count(&n).Error
	return n > 0, err
}

// SendRequest asks toUserID to become fromUserID's friend.
func (s *FriendService) SendRequest(ctx context.Context, fromUserID, toUserID, message string) (*models.FriendRequest, error) {
	if toUserID == "" {
		return nil, Validation("to_user_id is required")
	}
	if fromUserID == toUserID {
		return nil, Validation("cannot send a friend request to yourself")
	}

	req := models.FriendRequest{
		ID:         uuid.NewString(),
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		Message:    message,
		Status:     models.FriendRequestPending,
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target int64
		if err := tx.Model(&models.UserProfile{}).Where("external_user_id = ?", toUserID).Count(&target).Error; err != nil {
			return err
		}
		if target == 0 {
			return NotFound("user not found")
		}
		friends, err := s.areFriends(tx, fromUserID, toUserID)
		if err != nil {
			return err
		}
		if friends {
			return Conflict("already friends")
		}
		var pending int64
		if err := tx.Model(&models.FriendRequest{}).
			Where("status = ? AND ((from_user_id = ? AND to_user_id = ?) OR (from_user_id = ? AND to_user_id = ?))",
				models.FriendRequestPending, fromUserID, toUserID, toUserID, fromUserID).
			Count(&pending).Error; err != nil {
			return err
		}
		if pending > 0 {
			return Conflict("a friend request between these users is already pending")
		}
		return tx.Create(&req).Error
	})
	if err != nil {
		return nil, wrapDB(err, "friend request")
	}
	return &req, nil
}

// Respond accepts or declines a pending request addressed to userID. Accepting creates
// the friendship in both directions in the same transaction.
func (s *FriendService) Respond(ctx context.Context, requestID, userID string, accept bool) (*models.FriendRequest, error) {
	var req models.FriendRequest
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&req, "id = ?", requestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFound("friend request not found")
			}
			return err
		}
		if req.ToUserID != userID {
			return Forbidden("friend request is addressed to another user")
		}
		if req.Status != models.FriendRequestPending {
			return Conflict("friend request is already %s", req.Status)
		}

		now := s.now()
		req.RespondedAt = &now
		req.Status = models.FriendRequestDeclined
		if accept {
			req.Status = models.FriendRequestAccepted
		}
		if err := tx.Model(&models.FriendRequest{}).Where("id = ?", req.ID).Updates(map[string]any{
			"status":       req.Status,
			"responded_at": now,
		}).Error; err != nil {
			return err
		}
		if !accept {
			return nil
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&[]models.Friendship{
			{UserID: req.FromUserID, FriendID: req.ToUserID, CreatedAt: now},
			{UserID: req.ToUserID, FriendID: req.FromUserID, CreatedAt: now},
		}).Error
	})
	if err != nil {
		return nil, wrapDB(err, "friend request")
	}
	logrus.WithFields(logrus.Fields{"request_id": requestID, "status": req.Status}).Info("🤝 [FRIENDS] Request answered")
	return &req, nil
}

// Remove ends a friendship in both directions.
func (s *FriendService) Remove(ctx context.Context, userID, friendID string) error {
	var removed int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("(user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)",
			userID, friendID, friendID, userID).Delete(&models.Friendship{})
		removed = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return Transient(err, "failed to remove friend")
	}
	if removed == 0 {
		return NotFound("friendship not found")
	}
	return nil
}

// Friends lists userID's friends with their profiles.
func (s *FriendService) Friends(ctx context.Context, userID string) ([]UserSummary, error) {
	var links []models.Friendship
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&links).Error; err != nil {
		return nil, Transient(err, "failed to load friends")
	}
	if len(links) == 0 {
		return []UserSummary{}, nil
	}
	ids := make([]string, len(links))
	for i, l := range links {
		ids[i] = l.FriendID
	}
	var users []models.UserProfile
	if err := s.DB.WithContext(ctx).Where("external_user_id IN ?", ids).Find(&users).Error; err != nil {
		return nil, Transient(err, "failed to load friend profiles")
	}
	byID := make(map[string]models.UserProfile, len(users))
	for _, u := range users {
		byID[u.ExternalUserID] = u
	}

	out := make([]UserSummary, 0, len(links))
	for _, l := range links {
		u, ok := byID[l.FriendID]
		if !ok {
			u = models.UserProfile{ExternalUserID: l.FriendID}
		}
		sum := summarize(u)
		since := l.CreatedAt
		sum.FriendsSince = &since
		out = append(out, sum)
	}
	return out, nil
}

// PendingRequests lists requests waiting for userID's answer.
func (s *FriendService) PendingRequests(ctx context.Context, userID string) ([]models.FriendRequest, error) {
	var reqs []models.FriendRequest
	if err := s.DB.WithContext(ctx).
		Where("to_user_id = ? AND status = ?", userID, models.FriendRequestPending).
		Order("created_at DESC").
		Find(&reqs).Error; err != nil {
		return nil, Transient(err, "failed to load friend requests")
	}
	if len(reqs) == 0 {
		return reqs, nil
	}
	ids := make([]string, len(reqs))
	for i, r := range reqs {
		ids[i] = r.FromUserID
	}
	var users []models.UserProfile
	if err := s.DB.WithContext(ctx).Where("external_user_id IN ?", ids).Find(&users).Error; err != nil {
		return nil, Transient(err, "failed to load requester profiles")
	}
	byID := make(map[string]*models.UserProfile, len(users))
	for i := range users {
		byID[users[i].ExternalUserID] = &users[i]
	}
	for i := range reqs {
		reqs[i].FromUser = byID[reqs[i].FromUserID]
	}
	return reqs, nil
}

// FriendActivities returns the newest tournament activity of userID's friends.
func (s *FriendService) FriendActivities(ctx context.Context, userID string, limit int) ([]models.TournamentActivity, error) {
	var activities []models.TournamentActivity
	err := s.DB.WithContext(ctx).
		Where("user_id IN (?)", s.DB.Model(&models.Friendship{}).Select("friend_id").Where("user_id = ?", userID)).
		Order("created_at DESC").
		Limit(limit).
		Find(&activities).Error
	if err != nil {
		return nil, Transient(err, "failed to load friend activities")
	}
	return activities, nil
}

func (s *FriendService) SendRequestEndpoint(c *fiber.Ctx) error {
	var body struct {
		ToUserID string `json:"to_user_id"`
		Message  string `json:"message"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	userID, _ := c.Locals("user_id").(string)
	req, err := s.SendRequest(c.Context(), userID, body.ToUserID, body.Message)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(req)
}

func (s *FriendService) AcceptRequestEndpoint(c *fiber.Ctx) error {
	return s.respondEndpoint(c, true)
}

func (s *FriendService) DeclineRequestEndpoint(c *fiber.Ctx) error {
	return s.respondEndpoint(c, false)
}

func (s *FriendService) respondEndpoint(c *fiber.Ctx, accept bool) error {
	userID, _ := c.Locals("user_id").(string)
	req, err := s.Respond(c.Context(), c.Params("id"), userID, accept)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(req)
}

func (s *FriendService) RemoveFriendEndpoint(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if err := s.Remove(c.Context(), userID, c.Params("friend_id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *FriendService) ListFriendsEndpoint(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	friends, err := s.Friends(c.Context(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(friends)
}

func (s *FriendService) ListRequestsEndpoint(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	reqs, err := s.PendingRequests(c.Context(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(reqs)
}

func (s *FriendService) FriendActivitiesEndpoint(c *fiber.Ctx) error {
	limit, err := strconv.Atoi(c.Query("limit", "50"))
	if err != nil || limit <= 0 || limit > 200 {
		limit = 50
	}
	userID, _ := c.Locals("user_id").(string)
	activities, err := s.FriendActivities(c.Context(), userID, limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(activities)
}
