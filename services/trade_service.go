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
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TradeService executes simulated orders against a participant's tournament portfolio.
type TradeService struct {
	DB       *gorm.DB
	Rules    TradeRules
	Prices   PriceSource
	Locker   *TradeLocker
	Rankings *RankingService
	Hub      *EventHub
	now      func() time.Time
}

func NewTradeService(db *gorm.DB, rules TradeRules, prices PriceSource, locker *TradeLocker, rankings *RankingService, hub *EventHub) *TradeService {
	return &TradeService{
		DB:       db,
		Rules:    rules,
		Prices:   prices,
		Locker:   locker,
		Rankings: rankings,
		Hub:      hub,
		now:      time.Now,
	}
}

// Execute runs one order for userID. Orders for the same (tournament, user) never overlap;
// a concurrent order is rejected with ErrTradeInProgress.
func (s *TradeService) Execute(ctx context.Context, tournamentID, userID string, order Order) (*TradeOutcome, error) {
	order.Symbol = strings.ToUpper(strings.TrimSpace(order.Symbol))
	if order.Symbol == "" {
		return nil, Validation("symbol is required")
	}

	release, err := s.Locker.Acquire(ctx, tournamentID, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	quoted, err := s.Prices.Prices(ctx, []string{order.Symbol})
	if err != nil {
		return nil, err
	}
	quote, ok := quoted[order.Symbol]
	if order.Price, err = s.Rules.ExecutionPrice(order.Symbol, order.Price, quote, ok); err != nil {
		return nil, err
	}

	var outcome *TradeOutcome
	var awarded []models.AchievementType
	now := s.now()

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Shared lock: trades may run side by side but settlement waits for them.
		var t models.Tournament
		if err := tx.Clauses(clause.Locking{Strength: "SHARE"}).First(&t, "id = ?", tournamentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTournamentNotFound
			}
			return err
		}

		var portfolio models.TournamentPortfolio
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("tournament_id = ? AND user_id = ?", tournamentID, userID).
			First(&portfolio).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotParticipant
			}
			return err
		}

		var holdings []models.TournamentHolding
		if err := tx.Where("tournament_id = ? AND user_id = ? AND shares > 0", tournamentID, userID).
			Find(&holdings).Error; err != nil {
			return err
		}
		symbols := make([]string, 0, len(holdings))
		for _, h := range holdings {
			symbols = append(symbols, h.Symbol)
		}
		marks, err := s.Prices.Prices(ctx, symbols)
		if err != nil {
			return err
		}

		out, err := s.Rules.ApplyTrade(&t, portfolio, holdings, order, marks, now)
		if err != nil {
			return err
		}

		if err := tx.Model(&models.TournamentPortfolio{}).Where("id = ?", portfolio.ID).Updates(map[string]any{
			"cash_balance":      out.Portfolio.CashBalance,
			"equity_value":      out.Portfolio.EquityValue,
			"total_assets":      out.Portfolio.TotalAssets,
			"total_return":      out.Portfolio.TotalReturn,
			"return_percentage": out.Portfolio.ReturnPercentage,
			"realized_pnl":      out.Portfolio.RealizedPnL,
			"total_trades":      out.Portfolio.TotalTrades,
			"sell_trades":       out.Portfolio.SellTrades,
			"winning_trades":    out.Portfolio.WinningTrades,
			"max_drawdown":      out.Portfolio.MaxDrawdown,
			"peak_assets":       out.Portfolio.PeakAssets,
			"last_updated":      now,
		}).Error; err != nil {
			return err
		}

		if out.HoldingRemoved {
			if err := tx.Where("tournament_id = ? AND user_id = ? AND symbol = ?", tournamentID, userID, order.Symbol).
				Delete(&models.TournamentHolding{}).Error; err != nil {
				return err
			}
		} else if out.Holding != nil {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "tournament_id"}, {Name: "user_id"}, {Name: "symbol"}},
				DoUpdates: clause.AssignmentColumns([]string{"name", "shares", "average_price", "current_price", "last_updated"}),
			}).Create(out.Holding).Error; err != nil {
				return err
			}
		}

		if err := tx.Create(&out.Trade).Error; err != nil {
			return err
		}

		amount := out.Trade.Amount
		activity := newActivity(tournamentID, userID, portfolio.UserName, models.ActivityTrade,
			fmt.Sprintf("%s %s %d %s @ %s", portfolio.UserName, pastTense(order.Action), order.Quantity, order.Symbol, order.Price.StringFixed(2)))
		activity.Amount = &amount
		activity.Symbol = order.Symbol
		if err := tx.Create(&activity).Error; err != nil {
			return err
		}

		stats, err := bumpStats(tx, userID, map[string]any{
			"total_trades":  gorm.Expr("total_trades + 1"),
			"last_trade_at": now,
		})
		if err != nil {
			return err
		}
		tid := tournamentID
		if awarded, err = awardAchievements(tx, stats, &tid); err != nil {
			return err
		}
		for _, a := range awarded {
			ach := newActivity(tournamentID, userID, portfolio.UserName, models.ActivityAchievement,
				fmt.Sprintf("%s earned %s", portfolio.UserName, a.Name))
			if err := tx.Create(&ach).Error; err != nil {
				return err
			}
		}

		outcome = out
		return nil
	})
	if err != nil {
		var svcErr *Error
		if errors.As(err, &svcErr) {
			return nil, err
		}
		return nil, Transient(err, "trade transaction rolled back")
	}

	logrus.WithFields(logrus.Fields{
		"tournament_id": tournamentID,
		"user_id":       userID,
		"symbol":        order.Symbol,
		"action":        order.Action,
		"quantity":      order.Quantity,
	}).Info("💹 [TRADE] Order executed")

	if s.Hub != nil {
		s.Hub.Publish(Event{Type: EventActivity, TournamentID: tournamentID, Payload: outcome.Trade, At: now})
	}
	if s.Rankings != nil {
		s.Rankings.Invalidate(tournamentID)
	}
	return outcome, nil
}

func pastTense(a models.TradeAction) string {
	if a == models.TradeActionSell {
		return "sold"
	}
	return "bought"
}

// ExecuteTradeEndpoint places an order for the calling user.
func (s *TradeService) ExecuteTradeEndpoint(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	var order Order
	if err := c.BodyParser(&order); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
	}
	order.Action = models.TradeAction(strings.ToLower(string(order.Action)))

	out, err := s.Execute(c.Context(), c.Params("id"), userID, order)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(out)
}

// Portfolio returns a participant's portfolio with live marks on every holding.
func (s *TradeService) Portfolio(ctx context.Context, tournamentID, userID string) (*models.TournamentPortfolio, error) {
	var p models.TournamentPortfolio
	if err := s.DB.WithContext(ctx).
		Where("tournament_id = ? AND user_id = ?", tournamentID, userID).
		First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotParticipant
		}
		return nil, wrapDB(err, "portfolio")
	}

	var holdings []models.TournamentHolding
	if err := s.DB.WithContext(ctx).
		Where("tournament_id = ? AND user_id = ? AND shares > 0", tournamentID, userID).
		Order("symbol ASC").
		Find(&holdings).Error; err != nil {
		return nil, wrapDB(err, "holdings")
	}
	symbols := make([]string, len(holdings))
	for i, h := range holdings {
		symbols[i] = h.Symbol
	}
	marks, err := s.Prices.Prices(ctx, symbols)
	if err != nil {
		return nil, err
	}

	var t models.Tournament
	if err := s.DB.WithContext(ctx).Select("status").First(&t, "id = ?", tournamentID).Error; err != nil {
		return nil, wrapDB(err, "tournament")
	}
	if t.Status == models.TournamentStatusOngoing {
		ValuePortfolio(p.CashBalance, p.InitialBalance, holdings, marks).Apply(&p, holdings, s.now())
	} else {
		// Ended tournaments report the frozen valuation; only per-holding figures are derived.
		frozen := ValuePortfolio(p.CashBalance, p.InitialBalance, holdings, PriceMap{})
		for i, hv := range frozen.Holdings {
			holdings[i].MarketValue = hv.MarketValue
			holdings[i].UnrealizedPnL = hv.UnrealizedPnL
		}
	}
	p.Holdings = holdings
	return &p, nil
}

// GetPortfolioEndpoint returns the caller's portfolio, or another participant's when
// user_id is given.
func (s *TradeService) GetPortfolioEndpoint(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	if userID == "" {
		userID, _ = c.Locals("user_id").(string)
	}
	p, err := s.Portfolio(c.Context(), c.Params("id"), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(p)
}

// ListTradesEndpoint returns the caller's trade history in a tournament, newest first.
func (s *TradeService) ListTradesEndpoint(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	limit, err := strconv.Atoi(c.Query("limit", "50"))
	if err != nil || limit <= 0 || limit > 200 {
		limit = 50
	}
	var trades []models.TournamentTrade
	if err := s.DB.WithContext(c.Context()).
		Where("tournament_id = ? AND user_id = ?", c.Params("id"), userID).
		Order("executed_at DESC").
		Limit(limit).
		Find(&trades).Error; err != nil {
		return respondError(c, wrapDB(err, "trades"))
	}
	return c.JSON(trades)
}
