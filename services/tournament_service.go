package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"invest-tournament-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// enrollmentWindow is how long before the start date a tournament opens for enrollment.
const enrollmentWindow = 7 * 24 * time.Hour

type TournamentService struct {
	DB                    *gorm.DB
	Hub                   *EventHub
	Rankings              *RankingService
	DefaultInitialBalance decimal.Decimal
	now                   func() time.Time
}

func NewTournamentService(db *gorm.DB, hub *EventHub, rankings *RankingService, defaultInitialBalance decimal.Decimal) *TournamentService {
	return &TournamentService{
		DB:                    db,
		Hub:                   hub,
		Rankings:              rankings,
		DefaultInitialBalance: defaultInitialBalance,
		now:                   time.Now,
	}
}

func newActivity(tournamentID, userID, userName string, kind models.ActivityType, description string) models.TournamentActivity {
	return models.TournamentActivity{
		ID:           uuid.NewString(),
		TournamentID: tournamentID,
		UserID:       userID,
		UserName:     userName,
		Type:         kind,
		Description:  description,
	}
}

var manualTransitions = map[models.TournamentStatus][]models.TournamentStatus{
	models.TournamentStatusUpcoming:  {models.TournamentStatusEnrolling, models.TournamentStatusOngoing, models.TournamentStatusCancelled},
	models.TournamentStatusEnrolling: {models.TournamentStatusOngoing, models.TournamentStatusCancelled},
	models.TournamentStatusOngoing:   {models.TournamentStatusEnded, models.TournamentStatusCancelled},
}

// TransitionAllowed reports whether an operator may move a tournament from one status to
// another. Settling and settled are only reachable through settlement.
func TransitionAllowed(from, to models.TournamentStatus) bool {
	for _, s := range manualTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

var statusOrder = map[models.TournamentStatus]int{
	models.TournamentStatusUpcoming:  0,
	models.TournamentStatusEnrolling: 1,
	models.TournamentStatusOngoing:   2,
	models.TournamentStatusEnded:     3,
}

// PlannedStatus is the status the calendar implies for t at now. The monitor only ever
// moves a tournament forward, so a manual early start is never undone.
func PlannedStatus(t *models.Tournament, now time.Time) models.TournamentStatus {
	planned := models.TournamentStatusUpcoming
	switch {
	case !now.Before(t.EndDate):
		planned = models.TournamentStatusEnded
	case !now.Before(t.StartDate):
		planned = models.TournamentStatusOngoing
	case !now.Before(t.StartDate.Add(-enrollmentWindow)):
		planned = models.TournamentStatusEnrolling
	}
	cur, tracked := statusOrder[t.Status]
	if !tracked || statusOrder[planned] <= cur {
		return t.Status
	}
	return planned
}

// AdvanceStatuses applies PlannedStatus to every tournament still on the calendar and
// returns the ids that reached ended.
func (s *TournamentService) AdvanceStatuses(ctx context.Context) ([]string, error) {
	var tournaments []models.Tournament
	if err := s.DB.WithContext(ctx).Where("status IN ?", []models.TournamentStatus{
		models.TournamentStatusUpcoming,
		models.TournamentStatusEnrolling,
		models.TournamentStatusOngoing,
	}).Find(&tournaments).Error; err != nil {
		return nil, Transient(err, "failed to list tournaments for status check")
	}

	now := s.now()
	var ended []string
	for i := range tournaments {
		t := &tournaments[i]
		next := PlannedStatus(t, now)
		if next == t.Status {
			continue
		}
		moved, err := s.moveStatus(ctx, t, next)
		if err != nil {
			logrus.WithError(err).WithField("tournament_id", t.ID).Warn("⚠️ [STATUS] Transition failed")
			continue
		}
		if moved && next == models.TournamentStatusEnded {
			ended = append(ended, t.ID)
		}
	}
	return ended, nil
}

// freeze writes a last valuation and ranking while the tournament is still ongoing.
// Those stored figures are what settlement ranks.
func (s *TournamentService) freeze(ctx context.Context, t *models.Tournament) bool {
	if s.Rankings == nil {
		return false
	}
	if _, err := s.Rankings.Refresh(ctx, t.ID); err != nil {
		logrus.WithError(err).WithField("tournament_id", t.ID).
			Warn("⚠️ [STATUS] Final valuation failed, settlement will value at claim time")
		return false
	}
	return true
}

// SettlementDue lists tournaments waiting for settlement: every ended one, and ongoing
// ones past their end date. Settlement is idempotent, so a tournament left ended by an
// operator, a failed attempt or a restart is picked up again.
func (s *TournamentService) SettlementDue(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.DB.WithContext(ctx).Model(&models.Tournament{}).
		Where("status = ? OR (status = ? AND end_date <= ?)",
			models.TournamentStatusEnded, models.TournamentStatusOngoing, s.now()).
		Order("end_date ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, Transient(err, "failed to list tournaments due for settlement")
	}
	return ids, nil
}

// moveStatus flips t to next if nobody changed it meanwhile. Leaving ongoing for ended
// freezes the final valuation first.
func (s *TournamentService) moveStatus(ctx context.Context, t *models.Tournament, next models.TournamentStatus) (bool, error) {
	from := t.Status
	updates := map[string]any{"status": next}
	var frozenAt *time.Time
	if from == models.TournamentStatusOngoing && next == models.TournamentStatusEnded && s.freeze(ctx, t) {
		at := s.now()
		frozenAt = &at
		updates["frozen_at"] = at
	}
	moved := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Tournament{}).
			Where("id = ? AND status = ?", t.ID, from).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		moved = true
		activity := newActivity(t.ID, "", "", models.ActivityStatusChange,
			fmt.Sprintf("%s is now %s", t.Name, next))
		activity.Metadata = map[string]any{"from": from, "to": next}
		return tx.Create(&activity).Error
	})
	if err != nil || !moved {
		return false, err
	}
	t.Status = next
	if frozenAt != nil {
		t.FrozenAt = frozenAt
	}

	logrus.WithFields(logrus.Fields{"tournament_id": t.ID, "from": from, "to": next}).
		Info("🔄 [STATUS] Tournament status changed")
	if s.Hub != nil {
		s.Hub.Publish(Event{Type: EventStatus, TournamentID: t.ID, Payload: messagePayload(string(next))})
	}
	if next == models.TournamentStatusCancelled && s.Rankings != nil {
		s.Rankings.Forget(t.ID)
	}
	return true, nil
}

type createTournamentRequest struct {
	Name               string                `json:"name"`
	Type               models.TournamentType `json:"type"`
	Description        string                `json:"description"`
	ShortDescription   string                `json:"short_description"`
	StartDate          time.Time             `json:"start_date"`
	EndDate            time.Time             `json:"end_date"`
	InitialBalance     decimal.Decimal       `json:"initial_balance"`
	MaxParticipants    int                   `json:"max_participants"`
	EntryFee           decimal.Decimal       `json:"entry_fee"`
	PrizePool          decimal.Decimal       `json:"prize_pool"`
	RiskLimit          decimal.Decimal       `json:"risk_limit_percentage"`
	MinHoldingRate     decimal.Decimal       `json:"min_holding_rate"`
	MaxSingleStockRate decimal.Decimal       `json:"max_single_stock_rate"`
	AllowedSymbols     []string              `json:"allowed_symbols"`
	Rules              []string              `json:"rules"`
	PayoutTable        datatypes.JSON        `json:"payout_table"`
	IsFeatured         bool                  `json:"is_featured"`
}

func (r *createTournamentRequest) validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return Validation("name is required")
	}
	if r.StartDate.IsZero() || r.EndDate.IsZero() {
		return Validation("start_date and end_date are required (RFC3339)")
	}
	if !r.EndDate.After(r.StartDate) {
		return Validation("end_date must be after start_date")
	}
	if r.InitialBalance.IsNegative() || r.EntryFee.IsNegative() || r.PrizePool.IsNegative() {
		return Validation("initial_balance, entry_fee and prize_pool must not be negative")
	}
	if r.MaxParticipants < 0 {
		return Validation("max_participants must be a non-negative integer")
	}
	if r.MaxSingleStockRate.IsNegative() || r.MaxSingleStockRate.GreaterThan(hundred) {
		return Validation("max_single_stock_rate must be between 0 and 100")
	}
	table, err := ParsePayoutTable(r.PayoutTable)
	if err != nil {
		return err
	}
	return table.Validate()
}

// Create stores a new tournament. Its first status follows the calendar.
func (s *TournamentService) Create(ctx context.Context, createdBy string, req createTournamentRequest) (*models.Tournament, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if req.Type == "" {
		req.Type = models.TournamentTypeSpecial
	}
	initial := req.InitialBalance
	if initial.IsZero() {
		initial = s.DefaultInitialBalance
	}
	symbols := make([]string, 0, len(req.AllowedSymbols))
	for _, sym := range req.AllowedSymbols {
		if sym = strings.ToUpper(strings.TrimSpace(sym)); sym != "" {
			symbols = append(symbols, sym)
		}
	}

	t := models.Tournament{
		ID:                  uuid.NewString(),
		Name:                strings.TrimSpace(req.Name),
		Slug:                slug.Make(req.Name),
		Type:                req.Type,
		Description:         req.Description,
		ShortDescription:    req.ShortDescription,
		Status:              models.TournamentStatusUpcoming,
		StartDate:           req.StartDate,
		EndDate:             req.EndDate,
		InitialBalance:      initial,
		MaxParticipants:     req.MaxParticipants,
		EntryFee:            req.EntryFee,
		PrizePool:           req.PrizePool,
		RiskLimitPercentage: req.RiskLimit,
		MinHoldingRate:      req.MinHoldingRate,
		MaxSingleStockRate:  req.MaxSingleStockRate,
		AllowedSymbols:      datatypes.NewJSONSlice(symbols),
		Rules:               datatypes.NewJSONSlice(req.Rules),
		PayoutTable:         req.PayoutTable,
		IsFeatured:          req.IsFeatured,
		CreatedBy:           createdBy,
	}
	t.Status = PlannedStatus(&t, s.now())

	if err := s.DB.WithContext(ctx).Create(&t).Error; err != nil {
		return nil, Transient(err, "failed to create tournament")
	}
	logrus.WithFields(logrus.Fields{"tournament_id": t.ID, "status": t.Status}).Info("🏆 [TOURNAMENT] Created")
	return &t, nil
}

// CreateTournamentEndpoint handles POST /tournaments (admin).
func (s *TournamentService) CreateTournamentEndpoint(c *fiber.Ctx) error {
	var req createTournamentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
	}
	userID, _ := c.Locals("user_id").(string)
	t, err := s.Create(c.Context(), userID, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(t)
}

// ListTournamentsEndpoint lists tournaments, optionally filtered by status and type.
// The legacy client statuses active and finished are accepted.
func (s *TournamentService) ListTournamentsEndpoint(c *fiber.Ctx) error {
	limit, err := strconv.Atoi(c.Query("limit", "50"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 50
	}
	offset, err := strconv.Atoi(c.Query("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	db := s.DB.WithContext(c.Context()).Model(&models.Tournament{})
	if status := c.Query("status"); status != "" {
		db = db.Where("status = ?", models.NormalizeStatus(status))
	}
	if kind := c.Query("type"); kind != "" {
		db = db.Where("type = ?", kind)
	}

	var tournaments []models.Tournament
	if err := db.Order("start_date DESC").Limit(limit).Offset(offset).Find(&tournaments).Error; err != nil {
		return respondError(c, wrapDB(err, "tournaments"))
	}
	return c.JSON(tournaments)
}

// FeaturedTournamentsEndpoint lists featured tournaments that are still running or ahead.
func (s *TournamentService) FeaturedTournamentsEndpoint(c *fiber.Ctx) error {
	var tournaments []models.Tournament
	if err := s.DB.WithContext(c.Context()).
		Where("is_featured = ? AND status IN ?", true, []models.TournamentStatus{
			models.TournamentStatusUpcoming,
			models.TournamentStatusEnrolling,
			models.TournamentStatusOngoing,
		}).
		Order("start_date ASC").
		Limit(10).
		Find(&tournaments).Error; err != nil {
		return respondError(c, wrapDB(err, "tournaments"))
	}
	return c.JSON(tournaments)
}

func (s *TournamentService) get(ctx context.Context, id string) (*models.Tournament, error) {
	var t models.Tournament
	if err := s.DB.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, Transient(err, "failed to load tournament")
	}
	return &t, nil
}

func (s *TournamentService) GetTournamentEndpoint(c *fiber.Ctx) error {
	t, err := s.get(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(t)
}

// PlatformStatistics summarises every tournament on the platform.
type PlatformStatistics struct {
	TotalTournaments  int64                             `json:"total_tournaments"`
	ByStatus          map[models.TournamentStatus]int64 `json:"by_status"`
	ActiveTournaments int64                             `json:"active_tournaments"`
	TotalParticipants int64                             `json:"total_participants"`
	TotalPrizePool    decimal.Decimal                   `json:"total_prize_pool"`
	AverageReturn     decimal.Decimal                   `json:"average_return"`
	UpdatedAt         time.Time                         `json:"updated_at"`
}

// PlatformStatisticsEndpoint handles GET /tournaments/statistics.
func (s *TournamentService) PlatformStatisticsEndpoint(c *fiber.Ctx) error {
	ctx := c.Context()
	stats := PlatformStatistics{ByStatus: map[models.TournamentStatus]int64{}, UpdatedAt: s.now()}

	type statusCount struct {
		Status models.TournamentStatus
		Count  int64
	}
	var counts []statusCount
	if err := s.DB.WithContext(ctx).Model(&models.Tournament{}).
		Select("status, COUNT(*) AS count").Group("status").Scan(&counts).Error; err != nil {
		return respondError(c, wrapDB(err, "tournament statistics"))
	}
	for _, sc := range counts {
		stats.ByStatus[sc.Status] = sc.Count
		stats.TotalTournaments += sc.Count
	}
	stats.ActiveTournaments = stats.ByStatus[models.TournamentStatusOngoing]

	if err := s.DB.WithContext(ctx).Model(&models.TournamentParticipant{}).
		Where("status = ?", models.ParticipantStatusActive).
		Count(&stats.TotalParticipants).Error; err != nil {
		return respondError(c, wrapDB(err, "participants"))
	}

	var pool struct{ Pool decimal.NullDecimal }
	if err := s.DB.WithContext(ctx).Model(&models.Tournament{}).
		Select("SUM(prize_pool) AS pool").Scan(&pool).Error; err != nil {
		return respondError(c, wrapDB(err, "prize pools"))
	}
	var avg struct{ Avg decimal.NullDecimal }
	if err := s.DB.WithContext(ctx).Table("tournament_rankings AS r").
		Joins("JOIN tournaments AS t ON t.id = r.tournament_id").
		Where("t.status = ?", models.TournamentStatusOngoing).
		Select("AVG(r.total_return_percent) AS avg").Scan(&avg).Error; err != nil {
		return respondError(c, wrapDB(err, "rankings"))
	}
	stats.TotalPrizePool = pool.Pool.Decimal
	stats.AverageReturn = avg.Avg.Decimal.Round(4)
	return c.JSON(stats)
}

// Delete removes a tournament and everything it owns. Settled history is kept.
func (s *TournamentService) Delete(ctx context.Context, id string) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t models.Tournament
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&t, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTournamentNotFound
			}
			return err
		}
		if t.Status == models.TournamentStatusSettling || t.Status == models.TournamentStatusSettled {
			return Conflict("a %s tournament cannot be deleted", t.Status)
		}
		// Children first, then the tournament itself.
		for _, child := range []any{
			&models.TournamentRanking{},
			&models.TournamentTrade{},
			&models.TournamentHolding{},
			&models.PortfolioSnapshot{},
			&models.TournamentPortfolio{},
			&models.TournamentActivity{},
			&models.TournamentParticipant{},
		} {
			if err := tx.Where("tournament_id = ?", id).Delete(child).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Tournament{}, "id = ?", id).Error
	})
	if err != nil {
		var svcErr *Error
		if errors.As(err, &svcErr) {
			return err
		}
		return Transient(err, "failed to delete tournament")
	}
	if s.Rankings != nil {
		s.Rankings.Forget(id)
	}
	logrus.WithField("tournament_id", id).Info("🗑️ [TOURNAMENT] Deleted")
	return nil
}

func (s *TournamentService) DeleteTournamentEndpoint(c *fiber.Ctx) error {
	if err := s.Delete(c.Context(), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// UpdateStatus applies an operator status change.
func (s *TournamentService) UpdateStatus(ctx context.Context, id string, to models.TournamentStatus) (*models.Tournament, error) {
	t, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status == to {
		return t, nil
	}
	if !TransitionAllowed(t.Status, to) {
		return nil, Conflict("cannot move tournament from %s to %s", t.Status, to)
	}
	moved, err := s.moveStatus(ctx, t, to)
	if err != nil {
		return nil, Transient(err, "failed to update status")
	}
	if !moved {
		return nil, Conflict("tournament status changed concurrently, retry")
	}
	return t, nil
}

// UpdateStatusEndpoint handles PATCH /tournaments/:id/status (admin).
func (s *TournamentService) UpdateStatusEndpoint(c *fiber.Ctx) error {
	var req struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.Status == "" {
		return respondError(c, Validation("status is required"))
	}
	t, err := s.UpdateStatus(c.Context(), c.Params("id"), models.NormalizeStatus(req.Status))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(t)
}

// JoinRequest carries the display details a participant is shown with.
type JoinRequest struct {
	UserName  string  `json:"user_name"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// Join enrolls userID, charges the entry fee from the token wallet and opens a portfolio
// funded with the tournament's initial balance.
func (s *TournamentService) Join(ctx context.Context, tournamentID, userID string, req JoinRequest) (*models.TournamentParticipant, *models.TournamentPortfolio, error) {
	if userID == "" {
		return nil, nil, Validation("user id is required")
	}
	if strings.TrimSpace(req.UserName) == "" {
		var profile models.UserProfile
		if err := s.DB.WithContext(ctx).Where("external_user_id = ?", userID).Limit(1).Find(&profile).Error; err == nil && profile.ID != "" {
			req.UserName = profile.Name()
			if req.AvatarURL == nil {
				req.AvatarURL = profile.AvatarURL
			}
		}
	}

	now := s.now()
	var participant models.TournamentParticipant
	var portfolio models.TournamentPortfolio
	var t models.Tournament

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&t, "id = ?", tournamentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTournamentNotFound
			}
			return err
		}
		if t.Status != models.TournamentStatusUpcoming && t.Status != models.TournamentStatusEnrolling {
			return Conflict("tournament is %s and no longer accepts participants", t.Status)
		}

		var existing int64
		if err := tx.Model(&models.TournamentParticipant{}).
			Where("tournament_id = ? AND user_id = ?", tournamentID, userID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return Conflict("user already joined this tournament")
		}
		if t.MaxParticipants > 0 && t.CurrentParticipants >= t.MaxParticipants {
			return Conflict("tournament is full")
		}

		if t.EntryFee.IsPositive() {
			ref := fmt.Sprintf("entry:%s:%s", tournamentID, userID)
			if err := applyWalletTx(tx, userID, t.EntryFee.Neg(), models.WalletTxEntryFee, ref,
				fmt.Sprintf("Entry fee for %s", t.Name)); err != nil {
				return err
			}
		}

		participant = models.TournamentParticipant{
			ID:           uuid.NewString(),
			TournamentID: tournamentID,
			UserID:       userID,
			UserName:     req.UserName,
			AvatarURL:    req.AvatarURL,
			Status:       models.ParticipantStatusActive,
			EntryFeePaid: t.EntryFee,
			JoinedAt:     now,
		}
		if err := tx.Create(&participant).Error; err != nil {
			return err
		}

		portfolio = models.TournamentPortfolio{
			ID:             uuid.NewString(),
			TournamentID:   tournamentID,
			UserID:         userID,
			UserName:       req.UserName,
			CashBalance:    t.InitialBalance,
			EquityValue:    decimal.Zero,
			TotalAssets:    t.InitialBalance,
			InitialBalance: t.InitialBalance,
			PeakAssets:     t.InitialBalance,
			LastUpdated:    now,
		}
		if err := tx.Create(&portfolio).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.Tournament{}).Where("id = ?", tournamentID).
			Update("current_participants", gorm.Expr("current_participants + 1")).Error; err != nil {
			return err
		}

		if _, err := bumpStats(tx, userID, map[string]any{
			"tournaments_joined": gorm.Expr("tournaments_joined + 1"),
		}); err != nil {
			return err
		}

		activity := newActivity(tournamentID, userID, req.UserName, models.ActivityJoined,
			fmt.Sprintf("%s joined %s", req.UserName, t.Name))
		return tx.Create(&activity).Error
	})
	if err != nil {
		var svcErr *Error
		if errors.As(err, &svcErr) {
			return nil, nil, err
		}
		return nil, nil, Transient(err, "failed to join tournament")
	}

	logrus.WithFields(logrus.Fields{"tournament_id": tournamentID, "user_id": userID}).Info("🙋 [TOURNAMENT] Participant joined")
	return &participant, &portfolio, nil
}

// JoinTournamentEndpoint handles POST /tournaments/:id/join for the calling user.
func (s *TournamentService) JoinTournamentEndpoint(c *fiber.Ctx) error {
	var req JoinRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
	}
	userID, _ := c.Locals("user_id").(string)
	participant, portfolio, err := s.Join(c.Context(), c.Params("id"), userID, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"participant": participant, "portfolio": portfolio})
}

// ParticipantsEndpoint lists participants in join order.
func (s *TournamentService) ParticipantsEndpoint(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := s.get(c.Context(), id); err != nil {
		return respondError(c, err)
	}
	var participants []models.TournamentParticipant
	if err := s.DB.WithContext(c.Context()).
		Where("tournament_id = ?", id).
		Order("joined_at ASC").
		Find(&participants).Error; err != nil {
		return respondError(c, wrapDB(err, "participants"))
	}
	return c.JSON(participants)
}

// ActivitiesEndpoint returns the newest feed entries of a tournament.
func (s *TournamentService) ActivitiesEndpoint(c *fiber.Ctx) error {
	limit, err := strconv.Atoi(c.Query("limit", "50"))
	if err != nil || limit <= 0 || limit > 200 {
		limit = 50
	}
	var activities []models.TournamentActivity
	if err := s.DB.WithContext(c.Context()).
		Where("tournament_id = ?", c.Params("id")).
		Order("created_at DESC").
		Limit(limit).
		Find(&activities).Error; err != nil {
		return respondError(c, wrapDB(err, "activities"))
	}
	return c.JSON(activities)
}
